package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"kubeintent/internal/capability"
	"kubeintent/internal/oracle"
)

// ScoringConfig weights the ranking score. The numeric policy is
// configuration, not code: defaults are a starting point, not a formula the
// pipeline depends on.
type ScoringConfig struct {
	// ConfidenceWeight scales the oracle's own confidence.
	ConfidenceWeight float64
	// BuiltinBonus rewards solutions built from well-understood built-ins.
	BuiltinBonus float64
	// ResourcePenalty charges for every resource beyond the first.
	ResourcePenalty float64
}

// DefaultScoring is the shipped scoring policy.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		ConfidenceWeight: 0.8,
		BuiltinBonus:     0.2,
		ResourcePenalty:  0.05,
	}
}

// Ranker assembles candidates into complete, scored solutions.
type Ranker struct {
	Oracle  oracle.Client
	Scoring ScoringConfig
	Logger  *slog.Logger
}

// Rank asks the oracle to combine the candidate kinds into solutions, then
// validates every proposal: a solution referencing any kind missing from the
// index is discarded whole rather than returned with a dangling reference.
// Survivors are scored and ordered deterministically.
func (r *Ranker) Rank(ctx context.Context, intent Intent, candidates []*capability.ResourceDescriptor, idx *capability.Index) ([]Solution, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scoring := r.Scoring
	if scoring == (ScoringConfig{}) {
		scoring = DefaultScoring()
	}

	candidateRefs := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		candidateRefs[i] = map[string]any{
			"group":       c.Identity.Group,
			"version":     c.Identity.Version,
			"kind":        c.Identity.Kind,
			"origin":      string(c.Origin),
			"spec_fields": topLevelSpecFields(c.Schema),
		}
	}
	raw, err := r.Oracle.Ask(ctx, oracle.TemplateRank, map[string]any{
		"intent":     intent.Normalized,
		"candidates": candidateRefs,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: rank: %w", err)
	}
	var proposal oracle.SolutionProposal
	if err := oracle.Decode(oracle.TemplateRank, raw, &proposal); err != nil {
		return nil, fmt.Errorf("recommend: rank: %w", err)
	}

	var out []Solution
	for _, p := range proposal.Solutions {
		sol, ok := r.admit(p, idx, scoring, logger)
		if !ok {
			continue
		}
		out = append(out, sol)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %d proposals, none survived validation", ErrNoSolutions, len(proposal.Solutions))
	}
	SortSolutions(out)
	return out, nil
}

// admit validates one proposed solution against the index and scores it.
func (r *Ranker) admit(p oracle.ProposedSolution, idx *capability.Index, scoring ScoringConfig, logger *slog.Logger) (Solution, bool) {
	resources := make([]ResourceSelection, 0, len(p.Resources))
	builtins := 0
	for _, res := range p.Resources {
		id := capability.Identity{Group: res.Group, Version: res.Version, Kind: res.Kind}
		d, ok := idx.Lookup(id)
		if !ok {
			logger.Warn("discarding solution with dangling resource reference", "kind", id.String())
			return Solution{}, false
		}
		if d.Origin == capability.OriginBuiltin {
			builtins++
		}
		resources = append(resources, ResourceSelection{Ref: id, Assignments: res.Assignments})
	}
	if len(resources) == 0 {
		return Solution{}, false
	}
	conf := p.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	score := scoring.ConfidenceWeight*conf +
		scoring.BuiltinBonus*(float64(builtins)/float64(len(resources))) -
		scoring.ResourcePenalty*float64(len(resources)-1)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Solution{
		ID:            solutionID(resources),
		Version:       1,
		Resources:     resources,
		Rationale:     p.Rationale,
		Confidence:    conf,
		Score:         score,
		OpenQuestions: p.OpenQuestions,
	}, true
}
