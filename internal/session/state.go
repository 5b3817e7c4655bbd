// Package session owns the workflow state machine driving the pipeline and
// the stores that persist it. A session is the unit of ownership for all
// mutable workflow state; the capability index it references is shared and
// read-only.
package session

import "fmt"

// State is the workflow position of a session. The state is a single tagged
// value guarded by an explicit transition table, not a pile of flags.
type State string

const (
	StateCreated            State = "created"
	StateIntentValidated    State = "intent_validated"
	StateCandidatesSelected State = "candidates_selected"
	StateRanked             State = "ranked"
	StateAwaitingAnswers    State = "awaiting_answers"
	StateEnhanced           State = "enhanced"
	StateFinalized          State = "finalized"
	StateFailed             State = "failed"
)

// transitions lists the legal successors of each state. AwaitingAnswers
// re-enters itself as questions are asked and answered; Enhanced accepts
// further enhancement rounds. Failed is reachable from any non-terminal
// state and is handled in CanTransition directly.
var transitions = map[State][]State{
	StateCreated:            {StateIntentValidated},
	StateIntentValidated:    {StateCandidatesSelected},
	StateCandidatesSelected: {StateRanked},
	StateRanked:             {StateAwaitingAnswers},
	StateAwaitingAnswers:    {StateAwaitingAnswers, StateEnhanced},
	StateEnhanced:           {StateEnhanced, StateAwaitingAnswers, StateFinalized},
	StateFinalized:          nil,
	StateFailed:             nil,
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	if next == StateFailed {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ErrBadTransition wraps an illegal state transition attempt.
type ErrBadTransition struct {
	From State
	To   State
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("session: illegal transition %s -> %s", e.From, e.To)
}
