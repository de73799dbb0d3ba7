package metrics

import (
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// RecommendationMetric is one ranked candidate produced for an incident.
type RecommendationMetric struct {
	IncidentID     string
	OrganizationID string
	TransportType  model.TransportType
	UnitID         string
	Rank           int
	TotalScore     float64
	Distance       float64
	Qualification  float64
	Performance    float64
	Fatigue        float64
	DistanceMiles  float64
	Acceptable     bool
	Time           time.Time
}

// MetricsSink records recommendation results for observability purposes.
type MetricsSink interface {
	RecordRecommendations(recs []RecommendationMetric) error
}

// AssignmentEvent captures the final outcome of an assignment attempt.
// Outcome is "assigned", "no_acceptable_unit" or "no_ack".
type AssignmentEvent struct {
	IncidentID    string
	UnitID        string
	TransportType model.TransportType
	Outcome       string
	Attempts      int
	Fallback      bool
	Time          time.Time
}

// AssignmentRecorder records assignment outcomes.
type AssignmentRecorder interface {
	RecordAssignment(ev AssignmentEvent) error
}

// AckEvent captures a unit's answer to an assignment notification.
type AckEvent struct {
	CommandID     string
	IncidentID    string
	UnitID        string
	TransportType model.TransportType
	Acknowledged  bool
	Latency       time.Duration
	Error         string
	Time          time.Time
}

// AckRecorder records acknowledgment events.
type AckRecorder interface {
	RecordAck(ev AckEvent) error
}

// FallbackEvent records a move from one candidate to the next.
type FallbackEvent struct {
	IncidentID string
	FromUnitID string
	Reason     string
	Time       time.Time
}

// FallbackRecorder records fallback applications.
type FallbackRecorder interface {
	RecordFallback(ev FallbackEvent) error
}

// UnitStateEvent is a snapshot of a unit.
type UnitStateEvent struct {
	Unit      model.Unit
	Component string
	Time      time.Time
}

// UnitStateRecorder records unit state snapshots.
type UnitStateRecorder interface {
	RecordUnitState(ev UnitStateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRecommendations([]RecommendationMetric) error { return nil }
func (NopSink) RecordAssignment(AssignmentEvent) error             { return nil }
func (NopSink) RecordAck(AckEvent) error                           { return nil }
func (NopSink) RecordFallback(FallbackEvent) error                 { return nil }
func (NopSink) RecordUnitState(UnitStateEvent) error               { return nil }
