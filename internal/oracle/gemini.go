package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient builds a client for the given model. The API key is read
// from the environment by the genai SDK (GEMINI_API_KEY).
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("oracle: init gemini: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// Ask renders the template, appends the structured context as JSON, and
// requests an application/json response. Empty or non-JSON replies surface as
// ErrMalformedOutput so the retry layer can take another attempt.
func (g *GeminiClient) Ask(ctx context.Context, template TemplateID, input any) (json.RawMessage, error) {
	prompt, err := Prompt(template)
	if err != nil {
		return nil, err
	}
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, template, prompt, input)
	}
	in, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, Permanent(fmt.Errorf("oracle: encode input: %w", err))
	}
	full := prompt + "\n[INPUT]\n" + string(in) + "\n"

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		if hook := HookFrom(ctx); hook != nil {
			hook.After(ctx, template, nil, err)
		}
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		err := fmt.Errorf("%w: empty response", ErrMalformedOutput)
		if hook := HookFrom(ctx); hook != nil {
			hook.After(ctx, template, nil, err)
		}
		return nil, err
	}
	raw := json.RawMessage(resp.Candidates[0].Content.Parts[0].Text)
	if !json.Valid(raw) {
		err := fmt.Errorf("%w: invalid JSON", ErrMalformedOutput)
		if hook := HookFrom(ctx); hook != nil {
			hook.After(ctx, template, nil, err)
		}
		return nil, err
	}
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, template, raw, nil)
	}
	return raw, nil
}
