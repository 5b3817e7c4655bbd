// Package oracle wraps the external reasoning service every pipeline stage
// consults. Oracle output is untrusted by construction: callers decode it
// through schema-validated envelopes and re-check every reference against the
// capability index before acting on it.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// TemplateID selects a versioned prompt template from the registry.
type TemplateID string

const (
	TemplateCandidates TemplateID = "candidates.v1"
	TemplateRank       TemplateID = "rank.v1"
	TemplateQuestions  TemplateID = "questions.v1"
	TemplateEnhance    TemplateID = "enhance.v1"
)

// ErrMalformedOutput marks oracle responses that failed envelope validation.
// It is retryable: a second ask may well produce valid JSON.
var ErrMalformedOutput = errors.New("oracle: malformed output")

// PermanentError wraps failures that retrying cannot fix (bad credentials,
// unknown template). The retry middleware passes these straight through.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Client is the decision oracle. Ask renders the template over the structured
// context and returns the raw JSON proposal.
type Client interface {
	Name() string
	Ask(ctx context.Context, template TemplateID, input any) (json.RawMessage, error)
	Close() error
}

// Middleware decorates a Client.
type Middleware func(Client) Client

// Chain applies middlewares outermost-first.
func Chain(c Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// BudgetExhausted reports whether err is a terminal oracle failure: the retry
// budget ran out (or the failure was permanent). The session that observed it
// stays in its prior state.
func BudgetExhausted(err error) bool {
	if err == nil {
		return false
	}
	var p *PermanentError
	return errors.As(err, &p) || errors.Is(err, ErrBudget)
}

// ErrBudget is attached by the retry middleware once all attempts fail.
var ErrBudget = fmt.Errorf("oracle: retry budget exhausted")
