package model

import (
	"errors"
	"fmt"
)

// ErrInvalidIncident is matched by every incident ValidationError.
var ErrInvalidIncident = errors.New("invalid incident")

// ValidationError reports a malformed input record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidIncident, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidIncident) succeed.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidIncident }
