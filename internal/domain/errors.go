package domain

import (
	"errors"
	"fmt"
)

// ErrAlreadyProcessed is returned when resolving an approval that is no
// longer pending.
var ErrAlreadyProcessed = errors.New("approval already processed")

// ErrReleaseNotApplied is returned when an approval was resolved but the
// dependent deployment transition to released failed. The approval stays
// resolved; callers must surface the inconsistency.
var ErrReleaseNotApplied = errors.New("approval recorded but deployment release failed")

// ValidationError flags malformed input detected before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
