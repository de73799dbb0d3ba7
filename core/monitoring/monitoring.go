package monitoring

import (
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// IncidentTags returns the tag set attached to errors raised while
// assigning an incident.
func IncidentTags(inc model.Incident, unitID string) map[string]string {
	tags := map[string]string{
		"incident_id":     inc.ID,
		"organization_id": inc.OrganizationID,
		"transport_type":  inc.TransportType.String(),
	}
	if unitID != "" {
		tags["unit_id"] = unitID
	}
	return tags
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
