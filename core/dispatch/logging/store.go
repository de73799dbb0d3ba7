package logging

import (
	"context"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// RecommendationSummary is the persisted form of one ranked candidate.
type RecommendationSummary struct {
	UnitID        string   `json:"unit_id"`
	TotalScore    float64  `json:"total_score"`
	DistanceMiles float64  `json:"distance_miles"`
	Acceptable    bool     `json:"acceptable"`
	Warnings      []string `json:"warnings,omitempty"`
}

// LogRecord captures one assignment decision and its outcome.
type LogRecord struct {
	Timestamp       time.Time               `json:"timestamp"`
	IncidentID      string                  `json:"incident_id"`
	OrganizationID  string                  `json:"organization_id"`
	TransportType   model.TransportType     `json:"transport_type"`
	Recommendations []RecommendationSummary `json:"recommendations"`
	AssignedUnitID  string                  `json:"assigned_unit_id,omitempty"`
	Acknowledged    bool                    `json:"acknowledged"`
	Fallback        bool                    `json:"fallback"`
	Outcome         string                  `json:"outcome,omitempty"`
	// Error is set when the incident could not be ranked or assigned.
	Error string `json:"error,omitempty"`
	// Errors maps unit IDs to the notification error that disqualified them.
	Errors map[string]string `json:"errors,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero values match all.
type LogQuery struct {
	Start          time.Time
	End            time.Time
	UnitID         string
	OrganizationID string
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Matches reports whether r satisfies q. A unit matches when it was either
// ranked or assigned.
func (q LogQuery) Matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrganizationID != "" && r.OrganizationID != q.OrganizationID {
		return false
	}
	if q.UnitID == "" || r.AssignedUnitID == q.UnitID {
		return true
	}
	for _, s := range r.Recommendations {
		if s.UnitID == q.UnitID {
			return true
		}
	}
	return false
}
