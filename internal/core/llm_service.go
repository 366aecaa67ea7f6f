package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

const (
	defaultGenerationModelName = "gemini-1.5-flash"
	defaultEmbeddingModelName  = "text-embedding-004"
)

var errEmbeddingDisabled = errors.New("embedding disabled: no Gemini API key")

// CompletionRequest is one system-instructed text completion.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	JSON        bool // ask the model for an application/json response
}

// Completer returns the raw text of a completion. It fails with
// ErrConfiguration when no credential is available.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMService talks to Gemini. Without an API key it is still constructed:
// completions then fail with ErrConfiguration and embeddings are unavailable.
type LLMService struct {
	client          *genai.Client
	log             *logger.Logger
	generationModel string
	embeddingModel  string
}

func NewLLMService(ctx context.Context, apiKey, generationModel, embeddingModel string, log *logger.Logger) (*LLMService, error) {
	if generationModel == "" {
		generationModel = defaultGenerationModelName
	}
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModelName
	}
	s := &LLMService{
		log:             log.With("service", "LLMService"),
		generationModel: generationModel,
		embeddingModel:  embeddingModel,
	}
	if strings.TrimSpace(apiKey) == "" {
		s.log.Warn("GEMINI_API_KEY not set; interpretation requests will fail with a configuration error")
		return s, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Warn("error closing GenAI client", "error", err)
		} else {
			s.log.Info("GenAI client closed")
		}
	}
}

func (s *LLMService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is empty", ErrConfiguration)
	}

	model := s.client.GenerativeModel(s.generationModel)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	model.SetTemperature(req.Temperature)
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			s.log.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	return text.String(), nil
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.client == nil {
		return nil, errEmbeddingDisabled
	}
	em := s.client.EmbeddingModel(s.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}
