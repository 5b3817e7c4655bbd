package recommend

import "errors"

// Recoverable conditions the caller resolves by supplying different input.
var (
	// ErrIntentTooVague means the intent text is not specific enough to act
	// on. No oracle call has been made when this is returned.
	ErrIntentTooVague = errors.New("recommend: intent too vague")

	// ErrNoCandidates means the oracle proposed nothing that survived
	// validation against the capability index.
	ErrNoCandidates = errors.New("recommend: no candidates found")

	// ErrNoSolutions means every proposed solution was discarded during
	// validation.
	ErrNoSolutions = errors.New("recommend: no valid solutions")
)
