package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("quota: invalid limit")
	// ErrLimitExceeded matches any *LimitExceededError via errors.Is.
	ErrLimitExceeded = errors.New("quota: limit exceeded")
)

// ValidationError reports a limit value that is neither null nor a non-negative integer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid limit: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// LimitExceededError is returned when an account has reached its effective limit.
type LimitExceededError struct {
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("you have reached your limit of %d proposals", e.Limit)
}

// Is lets errors.Is(err, ErrLimitExceeded) match.
func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
