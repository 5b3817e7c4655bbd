package question

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"kubeintent/internal/capability"
	"kubeintent/internal/oracle"
	"kubeintent/internal/recommend"
)

// Engine computes the question set for a ranked solution. Required-but-
// unresolved fields are derived locally from the capability descriptors;
// the oracle contributes questions for the solution's free-text open points.
type Engine struct {
	Oracle oracle.Client
	Logger *slog.Logger
}

// Derive builds the question set. The local pass walks every resource's
// required leaf fields and asks about the ones the solution does not assign.
// The oracle pass turns the solution's open_questions into targeted
// questions; its output is validated field path by field path, and any
// dependency edge that would create a cycle is dropped and logged as a
// recoverable anomaly.
func (e *Engine) Derive(ctx context.Context, sol recommend.Solution, idx *capability.Index) (*Set, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	set := NewSet()

	for i, res := range sol.Resources {
		d, ok := idx.Lookup(res.Ref)
		if !ok || d.Schema == nil {
			// The ranker guarantees resolvable refs; a missing schema means
			// the kind sat in the partial-failure set. Nothing to ask about.
			continue
		}
		for _, path := range d.Schema.RequiredLeafPaths() {
			if _, assigned := res.Assignments[path]; assigned {
				continue
			}
			node, ok := d.Schema.Resolve(path)
			if !ok {
				continue
			}
			q := &Question{
				ID:         questionID(i, path),
				Resource:   i,
				Path:       path,
				Prompt:     fieldPrompt(res.Ref, path, node),
				AnswerType: answerTypeFor(node),
				Options:    node.Enum,
			}
			set.add(q)
		}
	}

	if len(sol.OpenQuestions) > 0 && e.Oracle != nil {
		if err := e.deriveFromOracle(ctx, sol, idx, set, logger); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (e *Engine) deriveFromOracle(ctx context.Context, sol recommend.Solution, idx *capability.Index, set *Set, logger *slog.Logger) error {
	resources := make([]map[string]any, len(sol.Resources))
	for i, res := range sol.Resources {
		fields := []string{}
		if d, ok := idx.Lookup(res.Ref); ok && d.Schema != nil {
			fields = d.Schema.RequiredLeafPaths()
		}
		resources[i] = map[string]any{
			"index":           i,
			"group":           res.Ref.Group,
			"version":         res.Ref.Version,
			"kind":            res.Ref.Kind,
			"assigned_paths":  assignedPaths(res),
			"required_fields": fields,
		}
	}
	raw, err := e.Oracle.Ask(ctx, oracle.TemplateQuestions, map[string]any{
		"resources":      resources,
		"open_questions": sol.OpenQuestions,
	})
	if err != nil {
		return fmt.Errorf("question: derive: %w", err)
	}
	var proposal oracle.QuestionProposal
	if err := oracle.Decode(oracle.TemplateQuestions, raw, &proposal); err != nil {
		return fmt.Errorf("question: derive: %w", err)
	}

	// Insert every accepted question before attaching dependency edges: the
	// oracle orders its proposal freely, so an edge may point at a question
	// that appears later in the list.
	var pending []*Question
	for _, p := range proposal.Questions {
		if p.Resource < 0 || p.Resource >= len(sol.Resources) {
			logger.Warn("dropping question with out-of-range resource", "id", p.ID, "resource", p.Resource)
			continue
		}
		res := sol.Resources[p.Resource]
		d, ok := idx.Lookup(res.Ref)
		if !ok || d.Schema == nil || !d.Schema.HasPath(p.Path) {
			logger.Warn("dropping question targeting unknown field path",
				"id", p.ID, "kind", res.Ref.String(), "path", p.Path)
			continue
		}
		if existing := findByTarget(set, p.Resource, p.Path); existing != nil {
			// Locally derived question for the same field: keep it, merge the
			// proposed dependencies.
			existing.DependsOn = append(existing.DependsOn, p.DependsOn...)
			pending = append(pending, existing)
			continue
		}
		q := &Question{
			ID:         p.ID,
			Resource:   p.Resource,
			Path:       p.Path,
			Prompt:     p.Prompt,
			AnswerType: AnswerType(p.AnswerType),
			DependsOn:  p.DependsOn,
		}
		if node, ok := d.Schema.Resolve(p.Path); ok && len(node.Enum) > 0 {
			q.AnswerType = AnswerEnum
			q.Options = node.Enum
		}
		if !set.insert(q) {
			logger.Warn("dropping question with duplicate id", "id", q.ID)
			continue
		}
		pending = append(pending, q)
	}
	for _, q := range pending {
		if dropped := set.attachDeps(q); len(dropped) > 0 {
			logger.Warn("dropping cyclic or unknown question dependencies", "id", q.ID, "dropped", dropped)
		}
	}
	return nil
}

func findByTarget(s *Set, resource int, path string) *Question {
	for _, q := range s.All() {
		if q.Resource == resource && q.Path == path {
			return q
		}
	}
	return nil
}

func assignedPaths(res recommend.ResourceSelection) []string {
	out := make([]string, 0, len(res.Assignments))
	for p := range res.Assignments {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func questionID(resource int, path string) string {
	slug := strings.NewReplacer(".", "-", "[]", "").Replace(path)
	return fmt.Sprintf("q%d-%s", resource, slug)
}

func fieldPrompt(ref capability.Identity, path string, node *capability.Node) string {
	desc := node.Description
	if desc == "" || desc == node.Name {
		return fmt.Sprintf("Set %s for %s", path, ref.Kind)
	}
	return fmt.Sprintf("Set %s for %s: %s", path, ref.Kind, desc)
}

func answerTypeFor(node *capability.Node) AnswerType {
	if len(node.Enum) > 0 {
		return AnswerEnum
	}
	switch node.Type {
	case capability.TypeNumber:
		return AnswerNumber
	case capability.TypeBool:
		return AnswerBool
	default:
		return AnswerString
	}
}
