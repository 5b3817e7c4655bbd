package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateCreated, StateIntentValidated},
		{StateIntentValidated, StateCandidatesSelected},
		{StateCandidatesSelected, StateRanked},
		{StateRanked, StateAwaitingAnswers},
		{StateAwaitingAnswers, StateAwaitingAnswers},
		{StateAwaitingAnswers, StateEnhanced},
		{StateEnhanced, StateEnhanced},
		{StateEnhanced, StateAwaitingAnswers},
		{StateEnhanced, StateFinalized},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct{ from, to State }{
		{StateCreated, StateRanked},
		{StateCreated, StateFinalized},
		{StateRanked, StateEnhanced},
		{StateAwaitingAnswers, StateFinalized},
		{StateFinalized, StateEnhanced},
		{StateFailed, StateCreated},
	}
	for _, tr := range denied {
		assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestFailedReachableFromAnyNonTerminal(t *testing.T) {
	for s := range transitions {
		if s.Terminal() {
			assert.False(t, s.CanTransition(StateFailed), string(s))
			continue
		}
		assert.True(t, s.CanTransition(StateFailed), string(s))
	}
}

func TestSessionTransition(t *testing.T) {
	s := New("run a web app", nil)
	assert.Equal(t, StateCreated, s.State)
	assert.NoError(t, s.Transition(StateIntentValidated))

	err := s.Transition(StateFinalized)
	assert.Error(t, err)
	var bad *ErrBadTransition
	assert.ErrorAs(t, err, &bad)
	assert.Equal(t, StateIntentValidated, s.State, "failed transition leaves state untouched")
}

func TestSessionFailIsSticky(t *testing.T) {
	s := New("run a web app", nil)
	s.Fail("oracle gave up")
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, "oracle gave up", s.FailureReason)

	s.Fail("second reason")
	assert.Equal(t, "oracle gave up", s.FailureReason, "terminal state absorbs further failures")
}
