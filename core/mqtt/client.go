package mqtt

import (
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// Notification is the assignment payload delivered to a unit.
type Notification struct {
	IncidentID    string              `json:"incident_id"`
	TransportType model.TransportType `json:"transport_type"`
	Pickup        *model.Location     `json:"pickup,omitempty"`
	Score         float64             `json:"score"`
}

// Client represents a notifier capable of sending assignments to units and
// waiting for their acknowledgment.
type Client interface {
	// SendAssignment notifies the given unit and returns the command
	// identifier used to track the acknowledgment.
	SendAssignment(unitID string, n Notification) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires. A declined assignment returns
	// false with ErrDeclined.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
