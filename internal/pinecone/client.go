// Package pinecone implements memory.Index over the Pinecone data-plane REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/memory"
)

type Config struct {
	APIKey          string
	APIVersion      string
	IndexHost       string // bare host or full base URL of the index
	NamespacePrefix string
	Timeout         time.Duration
}

type Index struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

var _ memory.Index = (*Index)(nil)

func New(log *logger.Logger, cfg Config) (*Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.IndexHost), "/")
	if host == "" {
		return nil, fmt.Errorf("missing Pinecone index host")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2025-10"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Index{
		log:     log.With("client", "PineconeIndex"),
		cfg:     cfg,
		baseURL: host,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

type fetchResponse struct {
	Vectors map[string]vector `json:"vectors"`
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"matches"`
}

func (p *Index) Upsert(ctx context.Context, namespace string, rec memory.Record) error {
	if len(rec.Values) == 0 {
		return fmt.Errorf("empty embedding for entry %s", rec.EntryID)
	}
	metadata := map[string]any{
		"entryId":   rec.EntryID,
		"createdAt": rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.Mood != "" {
		metadata["mood"] = rec.Mood
	}
	if len(rec.Tags) > 0 {
		metadata["tags"] = rec.Tags
	}

	_, err := doJSON[upsertResponse](ctx, p, http.MethodPost, "/vectors/upsert", upsertRequest{
		Namespace: p.qualifyNamespace(namespace),
		Vectors:   []vector{{ID: rec.EntryID, Values: rec.Values, Metadata: metadata}},
	})
	return err
}

func (p *Index) Fetch(ctx context.Context, namespace, entryID string) ([]float32, error) {
	q := url.Values{}
	q.Set("ids", entryID)
	q.Set("namespace", p.qualifyNamespace(namespace))
	out, err := doJSON[fetchResponse](ctx, p, http.MethodGet, "/vectors/fetch?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	v, ok := out.Vectors[entryID]
	if !ok {
		return nil, nil
	}
	return v.Values, nil
}

func (p *Index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]memory.Match, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 10
	}
	out, err := doJSON[queryResponse](ctx, p, http.MethodPost, "/query", queryRequest{
		Namespace: p.qualifyNamespace(namespace),
		Vector:    vec,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}
	matches := make([]memory.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		matches = append(matches, memory.Match{EntryID: m.ID, Score: float32(m.Score)})
	}
	return matches, nil
}

// qualifyNamespace keeps one namespace per user so a query never crosses users.
func (p *Index) qualifyNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	prefix := strings.TrimSpace(p.cfg.NamespacePrefix)
	switch {
	case prefix == "":
		return ns
	case ns == "":
		return prefix
	default:
		return prefix + ":" + ns
	}
}

func doJSON[T any](ctx context.Context, p *Index, method, path string, body any) (*T, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("X-Pinecone-Api-Version", p.cfg.APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinecone http %d: %s", resp.StatusCode, string(raw))
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone decode error: %w", err)
	}
	return &out, nil
}
