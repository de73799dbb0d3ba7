package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

var (
	// ErrNoAcceptableUnit means no ranked unit passed the assignment gate.
	ErrNoAcceptableUnit = errors.New("no acceptable unit for incident")
	// ErrNoAcknowledgment means every notified unit declined or timed out.
	ErrNoAcknowledgment = errors.New("no unit acknowledged the assignment")
)

// UnitSource returns the candidate units of an organization.
type UnitSource interface {
	Candidates(ctx context.Context, organizationID string) ([]model.Unit, error)
}

// UnitSourceFunc adapts a function to UnitSource.
type UnitSourceFunc func(ctx context.Context, organizationID string) ([]model.Unit, error)

func (f UnitSourceFunc) Candidates(ctx context.Context, organizationID string) ([]model.Unit, error) {
	return f(ctx, organizationID)
}

// Attempt records one notification sent to a unit.
type Attempt struct {
	UnitID       string        `json:"unit_id"`
	CommandID    string        `json:"command_id,omitempty"`
	Acknowledged bool          `json:"acknowledged"`
	Latency      time.Duration `json:"latency"`
	Error        string        `json:"error,omitempty"`
	err          error
}

// Err returns the notification error, if any.
func (a Attempt) Err() error { return a.err }

// AssignmentResult is the outcome of Assign for one incident.
type AssignmentResult struct {
	ID              string                       `json:"id"`
	Incident        model.Incident               `json:"incident"`
	Recommendations assignment.RecommendationSet `json:"recommendations"`
	// Rejected maps unit IDs to the gate rules they failed.
	Rejected       map[string][]string `json:"rejected,omitempty"`
	Attempts       []Attempt           `json:"attempts"`
	AssignedUnitID string              `json:"assigned_unit_id,omitempty"`
	Fallback       bool                `json:"fallback"`
	Error          string              `json:"error,omitempty"`
	CompletedAt    time.Time           `json:"completed_at"`

	err error
}

// Err returns the error Assign returned with this result.
func (r AssignmentResult) Err() error { return r.err }

// Assigned reports whether a unit acknowledged the assignment.
func (r AssignmentResult) Assigned() bool { return r.AssignedUnitID != "" }

// Outcome is the metric label describing the result.
func (r AssignmentResult) Outcome() string {
	switch {
	case r.Assigned():
		return "assigned"
	case errors.Is(r.err, context.Canceled):
		return "canceled"
	case errors.Is(r.err, model.ErrInvalidIncident):
		return "invalid"
	case r.err != nil && !errors.Is(r.err, ErrNoAcceptableUnit) && !errors.Is(r.err, ErrNoAcknowledgment):
		return "error"
	case len(r.Attempts) == 0:
		return "no_acceptable_unit"
	default:
		return "no_ack"
	}
}
