package oracle

import (
	"context"
	"encoding/json"
)

// Hook observes oracle calls. Hooks ride on the context so call sites deep in
// the pipeline need no extra plumbing.
type Hook interface {
	Before(ctx context.Context, template TemplateID, prompt string, input any)
	After(ctx context.Context, template TemplateID, raw json.RawMessage, err error)
}

type ctxKeyHook struct{}

func WithHook(ctx context.Context, h Hook) context.Context {
	return context.WithValue(ctx, ctxKeyHook{}, h)
}

func HookFrom(ctx context.Context) Hook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(Hook); ok {
			return h
		}
	}
	return nil
}
