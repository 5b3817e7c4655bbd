// Package question derives the clarifying configuration a solution still
// needs and tracks answers. The dependency relation between questions is kept
// acyclic by construction: an edge that would close a cycle is dropped when
// it is proposed, never stored.
package question

import (
	"errors"
	"fmt"
	"sort"
)

// AnswerType constrains how an answer is captured.
type AnswerType string

const (
	AnswerString AnswerType = "string"
	AnswerNumber AnswerType = "number"
	AnswerBool   AnswerType = "bool"
	AnswerEnum   AnswerType = "enum"
)

// ErrUnknownQuestion is returned for answers targeting an id not in the set.
var ErrUnknownQuestion = errors.New("question: unknown question id")

// Question is one piece of missing configuration. Resource is the index into
// the owning solution's resource list; Path is a dotted route into that
// resource's schema.
type Question struct {
	ID         string     `json:"id"`
	Resource   int        `json:"resource"`
	Path       string     `json:"path"`
	Prompt     string     `json:"prompt"`
	AnswerType AnswerType `json:"answer_type"`
	Options    []string   `json:"options,omitempty"`
	DependsOn  []string   `json:"depends_on,omitempty"`
	Answer     any        `json:"answer,omitempty"`
	Answered   bool       `json:"answered,omitempty"`
}

// Set holds the questions for one solution. A Set belongs to exactly one
// session and is not safe for concurrent use; the session is the unit of
// ownership.
type Set struct {
	questions map[string]*Question
	order     []string
}

// NewSet builds an empty set.
func NewSet() *Set {
	return &Set{questions: map[string]*Question{}}
}

// add inserts q and validates its edges in one step. Callers inserting a
// batch that may contain forward references must insert every question first
// and attach edges afterwards, otherwise a dependency on a not-yet-inserted
// question is indistinguishable from an unknown one.
func (s *Set) add(q *Question) (dropped []string) {
	if !s.insert(q) {
		return nil
	}
	return s.attachDeps(q)
}

// insert stores q without touching its dependency edges. A duplicate id is
// ignored; the first question wins.
func (s *Set) insert(q *Question) bool {
	if _, ok := s.questions[q.ID]; ok {
		return false
	}
	s.questions[q.ID] = q
	s.order = append(s.order, q.ID)
	return true
}

// attachDeps validates q's dependency edges against the full set, dropping
// duplicates, self references, unknown targets, and any edge that would
// close a cycle. Dropped edges are reported so the caller can log the
// anomaly.
func (s *Set) attachDeps(q *Question) (dropped []string) {
	var deps []string
	seen := map[string]bool{}
	for _, dep := range q.DependsOn {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		if dep == q.ID {
			dropped = append(dropped, dep)
			continue
		}
		if _, ok := s.questions[dep]; !ok {
			dropped = append(dropped, dep)
			continue
		}
		if s.wouldCycle(q.ID, dep) {
			dropped = append(dropped, dep)
			continue
		}
		deps = append(deps, dep)
	}
	q.DependsOn = deps
	return dropped
}

// wouldCycle reports whether making q depend on dep closes a loop, i.e.
// whether dep (transitively) depends on q already.
func (s *Set) wouldCycle(qID, dep string) bool {
	return s.reaches(qID, dep, map[string]bool{})
}

// reaches walks dependency edges from `from` and reports whether `to` is
// reachable.
func (s *Set) reaches(to, from string, seen map[string]bool) bool {
	if from == to {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	q, ok := s.questions[from]
	if !ok {
		return false
	}
	for _, dep := range q.DependsOn {
		if s.reaches(to, dep, seen) {
			return true
		}
	}
	return false
}

// Clone deep-copies the set. Answer values are treated as immutable once
// recorded, so they stay shared.
func (s *Set) Clone() *Set {
	c := &Set{
		questions: make(map[string]*Question, len(s.questions)),
		order:     append([]string(nil), s.order...),
	}
	for id, q := range s.questions {
		cp := *q
		cp.Options = append([]string(nil), q.Options...)
		cp.DependsOn = append([]string(nil), q.DependsOn...)
		c.questions[id] = &cp
	}
	return c
}

// Get returns the question by id.
func (s *Set) Get(id string) (*Question, bool) {
	q, ok := s.questions[id]
	return q, ok
}

// All lists questions in insertion order.
func (s *Set) All() []*Question {
	out := make([]*Question, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.questions[id])
	}
	return out
}

// Len is the number of questions.
func (s *Set) Len() int { return len(s.questions) }

// Eligible lists unanswered questions whose dependencies are all answered:
// the ones a client may show right now.
func (s *Set) Eligible() []*Question {
	var out []*Question
	for _, id := range s.order {
		q := s.questions[id]
		if q.Answered {
			continue
		}
		ready := true
		for _, dep := range q.DependsOn {
			if d, ok := s.questions[dep]; !ok || !d.Answered {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, q)
		}
	}
	return out
}

// SetAnswer records an answer and re-asks every question downstream of it:
// a changed dependency can change the applicability of answers already given.
func (s *Set) SetAnswer(id string, value any) error {
	q, ok := s.questions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	q.Answer = value
	q.Answered = true
	for _, dep := range s.dependents(id) {
		d := s.questions[dep]
		d.Answer = nil
		d.Answered = false
	}
	return nil
}

// dependents returns the ids of questions that transitively depend on id,
// sorted for stable iteration.
func (s *Set) dependents(id string) []string {
	var out []string
	for _, candidate := range s.order {
		if candidate == id {
			continue
		}
		if s.reaches(id, candidate, map[string]bool{}) {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	return out
}

// Complete reports whether every question is answered.
func (s *Set) Complete() bool {
	for _, q := range s.questions {
		if !q.Answered {
			return false
		}
	}
	return true
}

// Answers returns answered questions in id order, the application order the
// enhancer uses for byte-stable output.
func (s *Set) Answers() []*Question {
	var out []*Question
	for _, q := range s.questions {
		if q.Answered {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
