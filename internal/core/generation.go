package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

const interpretationSystemInstruction = `Return ONLY a single valid JSON object.
No markdown. No code fences. No commentary before or after the object.

The JSON must match this exact structure:
{
  "summary": string,
  "themes": string[],
  "emotionalTone": string,
  "reflectionPrompts": string[],
  "symbolTags": string[],
  "wordReflections": [{ "word": string, "reflection": string }]
}`

type GenerationStatus string

const (
	StatusOK          GenerationStatus = "ok"
	StatusEmpty       GenerationStatus = "empty"
	StatusNoJSON      GenerationStatus = "no_json"
	StatusInvalidJSON GenerationStatus = "invalid_json"
	StatusTimeout     GenerationStatus = "timeout"
	StatusUnavailable GenerationStatus = "unavailable"
)

// GenerationResult is the outcome of a generation call that did not fail on
// configuration. Anything but StatusOK is recoverable.
type GenerationResult struct {
	Status GenerationStatus
	JSON   json.RawMessage // the extracted object when Status is StatusOK
	Raw    string
	Err    error
}

func (r GenerationResult) OK() bool {
	return r.Status == StatusOK
}

type GenerateOptions struct {
	Temperature float32
}

// Generator produces a candidate interpretation object for a prompt. The error
// return is reserved for configuration failures; everything else is a result.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (GenerationResult, error)
}

type GenerationClient struct {
	completer Completer
	timeout   time.Duration
	log       *logger.Logger
}

func NewGenerationClient(completer Completer, timeout time.Duration, log *logger.Logger) *GenerationClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GenerationClient{
		completer: completer,
		timeout:   timeout,
		log:       log.With("component", "GenerationClient"),
	}
}

func (c *GenerationClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (GenerationResult, error) {
	if c.completer == nil {
		return GenerationResult{}, fmt.Errorf("%w: no completion backend", ErrConfiguration)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type completion struct {
		raw string
		err error
	}
	done := make(chan completion, 1)
	go func() {
		raw, err := c.completer.Complete(callCtx, CompletionRequest{
			System:      interpretationSystemInstruction,
			Prompt:      prompt,
			Temperature: opts.Temperature,
			JSON:        true,
		})
		done <- completion{raw: raw, err: err}
	}()

	var out completion
	select {
	case out = <-done:
	case <-callCtx.Done():
		c.log.Warn("completion abandoned", "error", callCtx.Err())
		return interruptedResult(callCtx.Err()), nil
	}

	if errors.Is(out.err, ErrConfiguration) {
		return GenerationResult{}, out.err
	}
	// Anything that lands after the deadline is a timeout, reply or error.
	if err := callCtx.Err(); err != nil {
		return interruptedResult(err), nil
	}
	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) {
			return GenerationResult{Status: StatusTimeout, Err: out.err}, nil
		}
		return GenerationResult{Status: StatusUnavailable, Err: out.err}, nil
	}

	return ParseGeneration(out.raw), nil
}

func interruptedResult(err error) GenerationResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return GenerationResult{Status: StatusTimeout, Err: err}
	}
	return GenerationResult{Status: StatusUnavailable, Err: err}
}

// ParseGeneration classifies a raw completion and extracts the JSON object
// spanning the first '{' to the last '}'. Text around the object is ignored.
func ParseGeneration(raw string) GenerationResult {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return GenerationResult{Status: StatusEmpty, Raw: raw}
	}

	obj, ok := ExtractJSONObject(trimmed)
	if !ok {
		return GenerationResult{Status: StatusNoJSON, Raw: raw, Err: errors.New("no JSON object in response")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return GenerationResult{Status: StatusInvalidJSON, Raw: raw, Err: err}
	}
	return GenerationResult{Status: StatusOK, JSON: json.RawMessage(obj), Raw: raw}
}

func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
