// Package recommend turns a validated intent into scored deployment
// solutions: the candidate selector narrows the capability index to relevant
// kinds, the ranker assembles them into complete solutions. Both stages treat
// oracle output as untrusted and filter it against the real index.
package recommend

import (
	"fmt"
	"strings"
	"unicode"
)

// Intent is a free-form statement of what the user wants deployed. Once
// validated, Normalized is the key used by subsequent stages.
type Intent struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Valid      bool   `json:"valid"`
}

// minIntentWords is the vagueness gate: anything shorter cannot name both a
// workload and a desired outcome.
const minIntentWords = 2

// ValidateIntent checks that raw is specific enough to act on and returns
// its normalized form. The gate runs before any oracle call: empty text,
// fewer than two words, or text without alphanumeric content fails with
// ErrIntentTooVague.
func ValidateIntent(raw string) (Intent, error) {
	norm := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if norm == "" {
		return Intent{Raw: raw}, fmt.Errorf("%w: empty intent", ErrIntentTooVague)
	}
	if !strings.ContainsFunc(norm, unicode.IsLetter) {
		return Intent{Raw: raw}, fmt.Errorf("%w: no describable content in %q", ErrIntentTooVague, raw)
	}
	if len(strings.Fields(norm)) < minIntentWords {
		return Intent{Raw: raw}, fmt.Errorf("%w: %q needs more detail (what to run, and how)", ErrIntentTooVague, raw)
	}
	return Intent{Raw: raw, Normalized: norm, Valid: true}, nil
}
