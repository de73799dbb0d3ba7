package mqtt

import "errors"

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrDeclined is returned when the unit answers but refuses the assignment.
var ErrDeclined = errors.New("assignment declined by unit")
