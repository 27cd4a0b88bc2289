package prompt

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when an operation references an unknown id.
	ErrNotFound = errors.New("prompt not found")

	// ErrValidation is the sentinel behind every [*ValidationError].
	ErrValidation = errors.New("invalid prompt")

	// ErrInvalidMode is returned by [ParseMergeMode].
	ErrInvalidMode = errors.New("invalid merge mode")
)

// ValidationError lists every problem found in a draft or patch.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationErr(problems []string) error {
	if len(problems) == 0 {
		return nil
	}

	return &ValidationError{Problems: problems}
}
