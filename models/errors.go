package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Error kinds. Domain failures wrap one of these so callers can branch with errors.Is.
var (
	ErrValidation       = eris.New("validation failed")
	ErrNotFound         = eris.New("not found")
	ErrStateConflict    = eris.New("state conflict")
	ErrAlreadySuspended = eris.New("already suspended")
	ErrOddInput         = eris.New("odd number of participants")
	ErrExternalEffect   = eris.New("external effect failed")
)

// ReasonError is a domain failure carrying a list of human-readable reasons.
type ReasonError struct {
	Kind    error
	Reasons []string
}

// Reasons builds a ReasonError of the given kind.
func Reasons(kind error, reasons ...string) *ReasonError {
	return &ReasonError{Kind: kind, Reasons: reasons}
}

// Reasonf builds a ReasonError with a single formatted reason.
func Reasonf(kind error, format string, args ...any) *ReasonError {
	return &ReasonError{Kind: kind, Reasons: []string{fmt.Sprintf(format, args...)}}
}

func (e *ReasonError) Error() string {
	if len(e.Reasons) == 0 {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *ReasonError) Unwrap() error { return e.Kind }

// ReasonsOf returns the reason list of err, or its message when it carries none.
func ReasonsOf(err error) []string {
	if err == nil {
		return nil
	}
	var re *ReasonError
	if errors.As(err, &re) && len(re.Reasons) > 0 {
		return re.Reasons
	}
	return []string{err.Error()}
}

// EffectError reports an adapter call that failed after state was committed.
type EffectError struct {
	Op          string
	Participant string
	Err         error
}

func (e *EffectError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Participant, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EffectError) Unwrap() error { return e.Err }

func (e *EffectError) Is(target error) bool { return target == ErrExternalEffect }

// Advisories is the list of non-fatal adapter failures of one operation.
type Advisories []*EffectError

// Add records a failed effect; a nil err is ignored.
func (a *Advisories) Add(op, participant string, err error) {
	if err == nil {
		return
	}
	*a = append(*a, &EffectError{Op: op, Participant: participant, Err: err})
}

// Strings renders the advisories for callers that only show text.
func (a Advisories) Strings() []string {
	out := make([]string, 0, len(a))
	for _, e := range a {
		out = append(out, e.Error())
	}
	return out
}
