package normalize

import (
	"errors"
	"fmt"
)

// ErrValidation matches every ValidationError.
var ErrValidation = errors.New("invalid message")

// ValidationError reports a message that cannot be archived.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

// Is makes errors.Is(err, ErrValidation) succeed for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
