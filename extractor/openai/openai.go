// Package openai provides an entity extractor backed by the OpenAI Chat
// Completions API. It mirrors the anthropic extractor: the model is prompted
// for a JSON array of typed spans which is anchored back to the input text.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/planmesh/core"
)

const systemPrompt = `You extract entities from short planning-assistant utterances.
Return a JSON array only, no prose. Each element:
{"span": "<exact substring>", "type": "<event|task|email|person|time_expression|location>", "confidence": <0..1>}`

// Options configure the OpenAI extractor. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	MaxCompletionTokens int64
}

// Extractor wraps the OpenAI Chat Completions API behind the generic
// core.Extractor interface.
type Extractor struct {
	client *openai.Client
	opts   Options
}

var _ core.Extractor = (*Extractor)(nil)

// New creates a new OpenAI extractor using the official client.
func New(optFns ...func(o *Options)) *Extractor {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI extractor from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{client: client, opts: opts}
}

// Extract asks the model for typed entity candidates in the given text.
func (e *Extractor) Extract(ctx context.Context, text string) ([]core.Candidate, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api error: empty response")
	}

	return parseCandidates(resp.Choices[0].Message.Content, text)
}

func parseCandidates(raw, text string) ([]core.Candidate, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "["); i >= 0 {
		if j := strings.LastIndex(raw, "]"); j > i {
			raw = raw[i : j+1]
		}
	}

	var decoded []struct {
		Span       string  `json:"span"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	var out []core.Candidate
	for _, d := range decoded {
		typ := core.EntityType(d.Type)
		if !typ.Valid() || d.Span == "" {
			continue
		}
		start := strings.Index(text, d.Span)
		if start < 0 {
			continue
		}
		out = append(out, core.Candidate{
			Span:       d.Span,
			Type:       typ,
			Confidence: d.Confidence,
			Start:      start,
			End:        start + len(d.Span),
		})
	}
	return out, nil
}
