// Package anthropic provides an entity extractor backed by the Anthropic
// Messages API. The model is prompted to return typed entity candidates as a
// JSON array, which is parsed into the shared Candidate shape.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/planmesh/core"
)

const systemPrompt = `You extract entities from short planning-assistant utterances.
Return a JSON array only, no prose. Each element:
{"span": "<exact substring>", "type": "<event|task|email|person|time_expression|location>", "confidence": <0..1>}`

// Options configures the Anthropic extractor (model id, max tokens, API
// key). Extend via functional options to preserve stability.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Extractor wraps the Anthropic Messages API behind the generic
// core.Extractor interface.
type Extractor struct {
	client *anthropic.Client
	opts   Options
}

var _ core.Extractor = (*Extractor)(nil)

// New creates a new Anthropic extractor using the official client.
func New(optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Extractor{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic extractor from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{client: client, opts: opts}
}

// Extract asks the model for typed entity candidates in the given text.
func (e *Extractor) Extract(ctx context.Context, text string) ([]core.Candidate, error) {
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.opts.Model,
		MaxTokens: e.opts.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw.WriteString(block.AsText().Text)
		}
	}

	return parseCandidates(raw.String(), text)
}

// parseCandidates decodes the model's JSON array and anchors each span back
// to its byte offsets in text. Spans the model invented (not present in the
// text) and unknown entity types are dropped.
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
