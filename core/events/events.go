package events

import (
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// IncidentEvent is published when an incident enters the assignment flow.
type IncidentEvent struct {
	Incident model.Incident
}

// RecommendationEvent carries the ranked candidates for an incident.
type RecommendationEvent struct {
	Incident model.Incident
	Set      assignment.RecommendationSet
}

// AckEvent is published for each unit acknowledgment or error.
type AckEvent struct {
	CommandID     string
	IncidentID    string
	UnitID        string
	TransportType model.TransportType
	Acknowledged  bool
	Err           error
	Latency       time.Duration
}

// FallbackEvent is emitted when the manager abandons a candidate.
// Reason is "declined", "timeout", "publish_error" or "rejected".
type FallbackEvent struct {
	IncidentID string
	UnitID     string
	Reason     string
	Err        error
}

// UnitEvent is emitted after telemetry updates a unit.
type UnitEvent struct {
	Unit      model.Unit
	Component string
}
