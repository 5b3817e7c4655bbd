package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Retry retries Ask up to maxAttempts with exponential backoff starting at
// baseDelay. Once the budget is spent the last error is wrapped with
// ErrBudget so callers can tell a terminal failure from a transient one.
// Permanent errors and context cancellation stop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Ask(ctx context.Context, template TemplateID, input any) (json.RawMessage, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.Ask(ctx, template, input)
		if err == nil {
			return resp, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return nil, err
		}
		last = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrBudget, r.max, last)
}
