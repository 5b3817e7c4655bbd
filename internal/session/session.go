package session

import (
	"time"

	"github.com/google/uuid"

	"kubeintent/internal/capability"
	"kubeintent/internal/enhance"
	"kubeintent/internal/question"
	"kubeintent/internal/recommend"
)

// Session carries one intent through the pipeline. Solutions is the ordered
// version history; the last entry is current. The Index pointer is the
// snapshot the session started with and is never swapped mid-session.
type Session struct {
	ID         string                `json:"id"`
	Intent     recommend.Intent      `json:"intent"`
	State      State                 `json:"state"`
	Index      *capability.Index     `json:"-"`
	Candidates []capability.Identity `json:"candidates,omitempty"`
	// Ranked holds every admitted solution from the ranking pass in score
	// order; Solutions tracks the version history of the one being refined.
	Ranked    []recommend.Solution `json:"ranked,omitempty"`
	Solutions []recommend.Solution `json:"solutions,omitempty"`
	Questions *question.Set        `json:"questions,omitempty"`
	Warnings  []enhance.Warning    `json:"warnings,omitempty"`
	// OracleFailures counts consecutive terminal oracle failures; past the
	// tolerance the session fails rather than inviting endless retries.
	OracleFailures int       `json:"oracle_failures,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	ManifestRef    string    `json:"manifest_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// New creates a session in Created holding the raw intent text and the index
// snapshot it will use for its whole life.
func New(intentText string, idx *capability.Index) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        "sess-" + uuid.NewString(),
		Intent:    recommend.Intent{Raw: intentText},
		State:     StateCreated,
		Index:     idx,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the session's mutable state. The Index snapshot is
// immutable and stays shared; answer and assignment values are treated as
// immutable once recorded.
func (s *Session) Clone() *Session {
	c := *s
	c.Candidates = append([]capability.Identity(nil), s.Candidates...)
	c.Ranked = cloneSolutions(s.Ranked)
	c.Solutions = cloneSolutions(s.Solutions)
	c.Warnings = append([]enhance.Warning(nil), s.Warnings...)
	if s.Questions != nil {
		c.Questions = s.Questions.Clone()
	}
	return &c
}

func cloneSolutions(in []recommend.Solution) []recommend.Solution {
	if in == nil {
		return nil
	}
	out := make([]recommend.Solution, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// Transition moves the session to next if the state machine allows it.
func (s *Session) Transition(next State) error {
	if !s.State.CanTransition(next) {
		return &ErrBadTransition{From: s.State, To: next}
	}
	s.State = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves the session to Failed with a reason. No-op on terminal states.
func (s *Session) Fail(reason string) {
	if s.State.Terminal() {
		return
	}
	s.State = StateFailed
	s.FailureReason = reason
	s.UpdatedAt = time.Now().UTC()
}

// Latest returns the current solution version.
func (s *Session) Latest() (recommend.Solution, bool) {
	if len(s.Solutions) == 0 {
		return recommend.Solution{}, false
	}
	return s.Solutions[len(s.Solutions)-1], true
}

// PushSolution appends a new solution version unless it is the same version
// already on top of the history.
func (s *Session) PushSolution(sol recommend.Solution) {
	if cur, ok := s.Latest(); ok && cur.ID == sol.ID && cur.Version == sol.Version {
		return
	}
	s.Solutions = append(s.Solutions, sol)
	s.UpdatedAt = time.Now().UTC()
}
