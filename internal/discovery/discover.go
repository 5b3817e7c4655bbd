// Package discovery builds CapabilityIndex snapshots from a live cluster
// connection. Schema fetches fan out in parallel; failures stay per-kind.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
)

// DefaultWorkers bounds the schema-fetch fan-out so discovery does not
// overwhelm the cluster API.
const DefaultWorkers = 8

// Options tune a discovery run. The zero value uses defaults.
type Options struct {
	Workers  int
	MaxDepth int
	Cache    *capability.SchemaCache
	Logger   *slog.Logger
	// now is overridable for tests.
	now func() time.Time
}

// Discover enumerates built-in kinds and CRDs, fetches and normalizes each
// schema, and returns an immutable index snapshot. A kind whose fetch or
// normalization fails lands in the partial-failure set; the run only fails
// outright when the cluster itself is unreachable.
func Discover(ctx context.Context, conn cluster.Connection, opts Options) (*capability.Index, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "discovery")
	now := opts.now
	if now == nil {
		now = time.Now
	}

	builtins, err := conn.ListResourceKinds(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: list builtin kinds: %w", err)
	}
	crds, err := conn.ListCustomResourceDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: list crds: %w", err)
	}
	kinds := append(append([]cluster.KindInfo{}, builtins...), crds...)

	var (
		mu          sync.Mutex
		descriptors []*capability.ResourceDescriptor
		failures    []capability.FetchFailure
	)
	record := func(id capability.Identity, reason string) {
		mu.Lock()
		failures = append(failures, capability.FetchFailure{Identity: id, Reason: reason})
		mu.Unlock()
		logger.Warn("schema fetch failed", "kind", id.String(), "reason", reason)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, k := range kinds {
		g.Go(func() error {
			raw, err := conn.FetchSchema(gctx, k.Identity)
			if err != nil {
				if errors.Is(err, cluster.ErrUnreachable) {
					return err // fatal, cancels the group
				}
				record(k.Identity, err.Error())
				return nil
			}
			schema, err := opts.Cache.Normalize(raw, capability.NormalizeOptions{MaxDepth: opts.MaxDepth})
			if err != nil {
				record(k.Identity, err.Error())
				return nil
			}
			mu.Lock()
			descriptors = append(descriptors, &capability.ResourceDescriptor{
				Identity:   k.Identity,
				Origin:     k.Origin,
				Verbs:      k.Verbs,
				Controller: k.Controller,
				Schema:     schema,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	idx := capability.NewIndex(now(), descriptors, failures)
	logger.Info("discovery complete",
		"kinds", idx.Len(),
		"failures", len(failures),
	)
	return idx, nil
}
