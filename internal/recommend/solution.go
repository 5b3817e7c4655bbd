package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"kubeintent/internal/capability"
)

// ResourceSelection is one resource kind inside a solution with its partial
// field-value assignment. Paths are dotted routes into the kind's schema.
type ResourceSelection struct {
	Ref         capability.Identity `json:"ref"`
	Assignments map[string]any      `json:"assignments,omitempty"`
}

// Solution is a scored, concrete combination of resource kinds satisfying an
// intent. Solutions are immutable once ranked; enhancement produces a new
// version instead of editing in place.
type Solution struct {
	ID            string              `json:"id"`
	Version       int                 `json:"version"`
	Resources     []ResourceSelection `json:"resources"`
	Rationale     string              `json:"rationale,omitempty"`
	Confidence    float64             `json:"confidence"`
	Score         float64             `json:"score"`
	OpenQuestions []string            `json:"open_questions,omitempty"`
}

// PrimaryKind is the kind of the first resource, the stable secondary sort
// key for ranking ties.
func (s Solution) PrimaryKind() string {
	if len(s.Resources) == 0 {
		return ""
	}
	return s.Resources[0].Ref.Kind
}

// Clone deep-copies the solution so enhancement can produce a new version
// without touching the ranked original.
func (s Solution) Clone() Solution {
	out := s
	out.Resources = make([]ResourceSelection, len(s.Resources))
	for i, r := range s.Resources {
		cp := ResourceSelection{Ref: r.Ref}
		if r.Assignments != nil {
			cp.Assignments = make(map[string]any, len(r.Assignments))
			for k, v := range r.Assignments {
				cp.Assignments[k] = cloneValue(v)
			}
		}
		out.Resources[i] = cp
	}
	out.OpenQuestions = append([]string(nil), s.OpenQuestions...)
	return out
}

// Equal compares solutions by content, ignoring Version. Used by the
// enhancer to detect a no-op pass.
func (s Solution) Equal(other Solution) bool {
	a, b := s, other
	a.Version, b.Version = 0, 0
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// solutionID derives a stable identifier from the resource identities, so
// repeated runs over an unchanged index and intent name the same solutions.
func solutionID(resources []ResourceSelection) string {
	parts := make([]string, len(resources))
	for i, r := range resources {
		parts[i] = r.Ref.String()
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	short := hex.EncodeToString(sum[:])[:10]
	kind := "solution"
	if len(resources) > 0 {
		kind = strings.ToLower(resources[0].Ref.Kind)
	}
	return "sol-" + kind + "-" + short
}

// SortSolutions orders by score descending, then primary kind, then ID.
// The secondary keys keep repeated runs stable when scores tie.
func SortSolutions(solutions []Solution) {
	sort.SliceStable(solutions, func(i, j int) bool {
		if solutions[i].Score != solutions[j].Score {
			return solutions[i].Score > solutions[j].Score
		}
		if pk1, pk2 := solutions[i].PrimaryKind(), solutions[j].PrimaryKind(); pk1 != pk2 {
			return pk1 < pk2
		}
		return solutions[i].ID < solutions[j].ID
	})
}
