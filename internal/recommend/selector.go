package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"kubeintent/internal/capability"
	"kubeintent/internal/oracle"
)

// Selector narrows a capability index to the kinds plausibly relevant to an
// intent.
type Selector struct {
	Oracle oracle.Client
	Logger *slog.Logger
}

// Select validates the intent, consults the oracle with the index catalog,
// and returns the proposed kinds that actually resolve in the index, in
// proposal order. Kinds the index does not know are dropped, never trusted.
func (s *Selector) Select(ctx context.Context, intent Intent, idx *capability.Index) ([]*capability.ResourceDescriptor, error) {
	if !intent.Valid {
		// Re-gate: callers should have validated already, but a selector must
		// never put an unvetted intent in front of the oracle.
		revalidated, err := ValidateIntent(intent.Raw)
		if err != nil {
			return nil, err
		}
		intent = revalidated
	}

	input := map[string]any{
		"intent":  intent.Normalized,
		"catalog": catalogSummary(idx),
	}
	raw, err := s.Oracle.Ask(ctx, oracle.TemplateCandidates, input)
	if err != nil {
		return nil, fmt.Errorf("recommend: select candidates: %w", err)
	}
	var proposal oracle.CandidateProposal
	if err := oracle.Decode(oracle.TemplateCandidates, raw, &proposal); err != nil {
		return nil, fmt.Errorf("recommend: select candidates: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var out []*capability.ResourceDescriptor
	seen := map[capability.Identity]bool{}
	for _, c := range proposal.Candidates {
		id := capability.Identity{Group: c.Group, Version: c.Version, Kind: c.Kind}
		d, ok := idx.Lookup(id)
		if !ok {
			logger.Warn("dropping candidate not present in index", "kind", id.String())
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: intent %q matched none of %d indexed kinds", ErrNoCandidates, intent.Normalized, idx.Len())
	}
	return out, nil
}
