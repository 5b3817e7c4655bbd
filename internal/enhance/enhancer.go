// Package enhance merges answers and free-form follow-up requirements into a
// new solution version. Every field path is validated against the capability
// descriptors before it is applied; invalid paths are dropped with a recorded
// warning, never propagated as failure of the whole enhancement.
package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"kubeintent/internal/capability"
	"kubeintent/internal/oracle"
	"kubeintent/internal/question"
	"kubeintent/internal/recommend"
)

// Warning records one assignment that was dropped instead of applied. The
// caller gets enough context to correct course without restarting.
type Warning struct {
	Resource int    `json:"resource"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

// Enhancer applies answered questions and oracle-translated requirements to
// a solution.
type Enhancer struct {
	Oracle oracle.Client
	Logger *slog.Logger
}

// Enhance produces the next solution version. Answers apply in question-id
// order and requirements pass through the oracle, so the result for unchanged
// inputs is identical byte for byte. When nothing effectively changes, the
// input solution is returned as-is (same version) rather than minting an
// identical successor.
func (e *Enhancer) Enhance(ctx context.Context, sol recommend.Solution, answers *question.Set, requirements string, idx *capability.Index) (recommend.Solution, []Warning, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	next := sol.Clone()
	var warnings []Warning
	warn := func(resource int, path, reason string) {
		warnings = append(warnings, Warning{Resource: resource, Path: path, Reason: reason})
		logger.Warn("dropping field assignment", "resource", resource, "path", path, "reason", reason)
	}

	if answers != nil {
		for _, q := range answers.Answers() {
			e.apply(&next, q.Resource, q.Path, q.Answer, idx, warn)
		}
	}

	if requirements != "" && e.Oracle != nil {
		proposal, err := e.translate(ctx, next, requirements)
		if err != nil {
			return recommend.Solution{}, nil, err
		}
		// Proposal order is preserved; later assignments to the same path win,
		// exactly as the oracle stated them.
		for _, a := range proposal.Assignments {
			e.apply(&next, a.Resource, a.Path, a.Value, idx, warn)
		}
	}

	next.OpenQuestions = remainingOpenQuestions(answers)
	if next.Equal(sol) {
		return sol, warnings, nil
	}
	next.Version = sol.Version + 1
	return next, warnings, nil
}

// apply sets one field value after checking the target path exists in the
// resource's schema.
func (e *Enhancer) apply(sol *recommend.Solution, resource int, path string, value any, idx *capability.Index, warn func(int, string, string)) {
	if resource < 0 || resource >= len(sol.Resources) {
		warn(resource, path, "resource index out of range")
		return
	}
	res := &sol.Resources[resource]
	d, ok := idx.Lookup(res.Ref)
	if !ok {
		warn(resource, path, fmt.Sprintf("kind %s not in index", res.Ref))
		return
	}
	if d.Schema == nil || !d.Schema.HasPath(path) {
		warn(resource, path, fmt.Sprintf("no such field path in %s", res.Ref.Kind))
		return
	}
	if res.Assignments == nil {
		res.Assignments = map[string]any{}
	}
	res.Assignments[path] = value
}

func (e *Enhancer) translate(ctx context.Context, sol recommend.Solution, requirements string) (oracle.AssignmentProposal, error) {
	resources := make([]map[string]any, len(sol.Resources))
	for i, res := range sol.Resources {
		paths := make([]string, 0, len(res.Assignments))
		for p := range res.Assignments {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		resources[i] = map[string]any{
			"index":          i,
			"group":          res.Ref.Group,
			"version":        res.Ref.Version,
			"kind":           res.Ref.Kind,
			"assigned_paths": paths,
		}
	}
	raw, err := e.Oracle.Ask(ctx, oracle.TemplateEnhance, map[string]any{
		"requirements": requirements,
		"resources":    resources,
	})
	if err != nil {
		return oracle.AssignmentProposal{}, fmt.Errorf("enhance: translate requirements: %w", err)
	}
	var proposal oracle.AssignmentProposal
	if err := oracle.Decode(oracle.TemplateEnhance, raw, &proposal); err != nil {
		return oracle.AssignmentProposal{}, fmt.Errorf("enhance: translate requirements: %w", err)
	}
	return proposal, nil
}

// remainingOpenQuestions rewrites the solution's open-question list to the
// prompts still unanswered.
func remainingOpenQuestions(answers *question.Set) []string {
	if answers == nil {
		return nil
	}
	var out []string
	for _, q := range answers.All() {
		if !q.Answered {
			out = append(out, q.Prompt)
		}
	}
	return out
}
