package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"kubeintent/internal/capability"
)

// Fake is an in-memory Connection for tests and offline runs. Populate Kinds
// and Schemas, optionally inject per-kind errors or full unreachability.
type Fake struct {
	Kinds       []KindInfo
	Schemas     map[capability.Identity]json.RawMessage
	SchemaErrs  map[capability.Identity]error
	Unreachable bool

	mu          sync.Mutex
	fetchCalls  int
	listedKinds int
}

func (f *Fake) ListResourceKinds(ctx context.Context) ([]KindInfo, error) {
	if f.Unreachable {
		return nil, fmt.Errorf("%w: fake", ErrUnreachable)
	}
	f.mu.Lock()
	f.listedKinds++
	f.mu.Unlock()
	var out []KindInfo
	for _, k := range f.Kinds {
		if k.Origin == capability.OriginBuiltin {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *Fake) ListCustomResourceDefinitions(ctx context.Context) ([]KindInfo, error) {
	if f.Unreachable {
		return nil, fmt.Errorf("%w: fake", ErrUnreachable)
	}
	var out []KindInfo
	for _, k := range f.Kinds {
		if k.Origin == capability.OriginCustomResource {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *Fake) FetchSchema(ctx context.Context, id capability.Identity) (json.RawMessage, error) {
	if f.Unreachable {
		return nil, fmt.Errorf("%w: fake", ErrUnreachable)
	}
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if err, ok := f.SchemaErrs[id]; ok {
		return nil, err
	}
	raw, ok := f.Schemas[id]
	if !ok {
		return nil, fmt.Errorf("cluster: fake has no schema for %s", id)
	}
	return raw, nil
}

// FetchCalls reports how many schema fetches were made.
func (f *Fake) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}
