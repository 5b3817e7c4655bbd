package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Fake is a scripted oracle for tests and offline runs. Responses are keyed
// by template; a Responder gets the structured input when a static payload is
// not enough.
type Fake struct {
	Responses  map[TemplateID]json.RawMessage
	Responders map[TemplateID]func(input any) (json.RawMessage, error)
	Err        error

	mu    sync.Mutex
	calls map[TemplateID]int
}

func (f *Fake) Name() string { return "FakeOracle" }
func (f *Fake) Close() error { return nil }

func (f *Fake) Ask(ctx context.Context, template TemplateID, input any) (json.RawMessage, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[TemplateID]int{}
	}
	f.calls[template]++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if fn, ok := f.Responders[template]; ok {
		return fn(input)
	}
	if raw, ok := f.Responses[template]; ok {
		return raw, nil
	}
	return nil, fmt.Errorf("%w: fake has no response for %s", ErrMalformedOutput, template)
}

// Calls reports how many times template was asked.
func (f *Fake) Calls(template TemplateID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[template]
}

// TotalCalls reports asks across all templates.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}
