package question

import (
	"encoding/json"
	"testing"

	"kubeintent/internal/tester"
)

func setWith(t *testing.T, qs ...*Question) *Set {
	t.Helper()
	s := NewSet()
	for _, q := range qs {
		s.add(q)
	}
	return s
}

func TestAddDropsCycleEdges(t *testing.T) {
	s := NewSet()
	tester.Eq(t, len(s.add(&Question{ID: "a"})), 0)
	tester.Eq(t, len(s.add(&Question{ID: "b", DependsOn: []string{"a"}})), 0)

	// c -> b -> a is fine; making a depend on c would close the loop.
	tester.Eq(t, len(s.add(&Question{ID: "c", DependsOn: []string{"b"}})), 0)
	dropped := s.add(&Question{ID: "d", DependsOn: []string{"d", "ghost", "c"}})
	tester.Eq(t, len(dropped), 2, "self edge and unknown target dropped")

	d, _ := s.Get("d")
	tester.Eq(t, d.DependsOn, []string{"c"})
}

func TestAddDropsClosingEdge(t *testing.T) {
	s := NewSet()
	s.add(&Question{ID: "a"})
	s.add(&Question{ID: "b", DependsOn: []string{"a"}})

	// a2 depends on b; then an edge b -> a2 would cycle. Model it by adding
	// a question whose dependency reaches back to itself transitively.
	s.add(&Question{ID: "c", DependsOn: []string{"b"}})
	dropped := s.add(&Question{ID: "a2", DependsOn: []string{"c"}})
	tester.Eq(t, len(dropped), 0)

	// Now rewire: a (no deps) gaining an edge to c via a new question with
	// the same id path is not possible through add; verify wouldCycle directly.
	tester.True(t, s.wouldCycle("a", "c"), "c transitively depends on a")
	tester.False(t, s.wouldCycle("c", "a"))
}

func TestEligibleRespectsDependencies(t *testing.T) {
	s := setWith(t,
		&Question{ID: "a", Prompt: "first"},
		&Question{ID: "b", Prompt: "second", DependsOn: []string{"a"}},
	)
	elig := s.Eligible()
	tester.Eq(t, len(elig), 1)
	tester.Eq(t, elig[0].ID, "a")

	tester.NoErr(t, s.SetAnswer("a", "yes"))
	elig = s.Eligible()
	tester.Eq(t, len(elig), 1)
	tester.Eq(t, elig[0].ID, "b")

	tester.NoErr(t, s.SetAnswer("b", "also yes"))
	tester.Eq(t, len(s.Eligible()), 0)
	tester.True(t, s.Complete())
}

func TestSetAnswerUnknownID(t *testing.T) {
	s := setWith(t, &Question{ID: "a"})
	err := s.SetAnswer("nope", 1)
	tester.ErrIs(t, err, ErrUnknownQuestion)
}

func TestReanswerInvalidatesDependents(t *testing.T) {
	s := setWith(t,
		&Question{ID: "a"},
		&Question{ID: "b", DependsOn: []string{"a"}},
		&Question{ID: "c", DependsOn: []string{"b"}},
		&Question{ID: "x"},
	)
	tester.NoErr(t, s.SetAnswer("a", 1))
	tester.NoErr(t, s.SetAnswer("b", 2))
	tester.NoErr(t, s.SetAnswer("c", 3))
	tester.NoErr(t, s.SetAnswer("x", 4))
	tester.True(t, s.Complete())

	// Changing a's answer re-asks b and c but leaves x alone.
	tester.NoErr(t, s.SetAnswer("a", 10))
	b, _ := s.Get("b")
	c, _ := s.Get("c")
	x, _ := s.Get("x")
	tester.False(t, b.Answered)
	tester.False(t, c.Answered)
	tester.True(t, x.Answered)
	tester.False(t, s.Complete())
}

func TestAnswersInIDOrder(t *testing.T) {
	s := setWith(t,
		&Question{ID: "z"},
		&Question{ID: "a"},
		&Question{ID: "m"},
	)
	tester.NoErr(t, s.SetAnswer("z", 1))
	tester.NoErr(t, s.SetAnswer("a", 2))
	tester.NoErr(t, s.SetAnswer("m", 3))

	var ids []string
	for _, q := range s.Answers() {
		ids = append(ids, q.ID)
	}
	tester.Eq(t, ids, []string{"a", "m", "z"})
}

func TestUnmarshalKeepsForwardDependencies(t *testing.T) {
	// "a" depends on "b" but serializes first; loading must not treat the
	// forward reference as an unknown target.
	data := []byte(`[
		{"id":"a","prompt":"first","depends_on":["b"]},
		{"id":"b","prompt":"second"}
	]`)
	var s Set
	tester.NoErr(t, json.Unmarshal(data, &s))

	a, ok := s.Get("a")
	tester.True(t, ok)
	tester.Eq(t, a.DependsOn, []string{"b"})

	elig := s.Eligible()
	tester.Eq(t, len(elig), 1)
	tester.Eq(t, elig[0].ID, "b")

	tester.NoErr(t, s.SetAnswer("b", "done"))
	elig = s.Eligible()
	tester.Eq(t, len(elig), 1)
	tester.Eq(t, elig[0].ID, "a")
}

func TestUnmarshalBreaksCycles(t *testing.T) {
	data := []byte(`[
		{"id":"a","depends_on":["b"]},
		{"id":"b","depends_on":["a"]}
	]`)
	var s Set
	tester.NoErr(t, json.Unmarshal(data, &s))

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	tester.Eq(t, len(a.DependsOn)+len(b.DependsOn), 1, "exactly one edge of the cycle survives")
	tester.Eq(t, len(s.Eligible()), 1)
}

func TestSetJSONRoundTrip(t *testing.T) {
	s := setWith(t,
		&Question{ID: "a", Resource: 0, Path: "spec.image", Prompt: "Which image?", AnswerType: AnswerString},
		&Question{ID: "b", Resource: 0, Path: "spec.replicas", Prompt: "How many?", AnswerType: AnswerNumber, DependsOn: []string{"a"}},
	)
	tester.NoErr(t, s.SetAnswer("a", "nginx"))

	data, err := json.Marshal(s)
	tester.NoErr(t, err)

	var back Set
	tester.NoErr(t, json.Unmarshal(data, &back))
	tester.Eq(t, back.Len(), 2)
	a, ok := back.Get("a")
	tester.True(t, ok)
	tester.True(t, a.Answered)
	tester.Eq(t, a.Answer.(string), "nginx")
	b, _ := back.Get("b")
	tester.Eq(t, b.DependsOn, []string{"a"})
}
