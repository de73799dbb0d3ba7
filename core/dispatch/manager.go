package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch/logging"
	"github.com/ridgeline-ems/ift-dispatch/core/events"
	"github.com/ridgeline-ems/ift-dispatch/core/logger"
	"github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/core/monitoring"
	"github.com/ridgeline-ems/ift-dispatch/core/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
	"github.com/ridgeline-ems/ift-dispatch/internal/eventbus"
)

// AssignmentManager drives the engine for incoming incidents: it loads the
// candidates, ranks them, notifies the best acceptable unit and falls back to
// the next one when a unit declines or does not answer.
type AssignmentManager struct {
	engine      *assignment.Engine
	source      UnitSource
	notifier    mqtt.Client
	ackTimeout  time.Duration
	maxAttempts int
	maxRecs     int
	logger      logger.Logger
	metrics     metrics.MetricsSink
	bus         eventbus.EventBus
	store       logging.LogStore
	statusStore unitstatus.Store
	history     []AssignmentResult
	mu          sync.Mutex
}

// NewAssignmentManager creates a new manager.
// ackTimeout defines the maximum duration to wait for a unit acknowledgment.
// If ackTimeout is zero, a default of five seconds is used.
func NewAssignmentManager(engine *assignment.Engine, source UnitSource, notifier mqtt.Client, ackTimeout time.Duration, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*AssignmentManager, error) {
	if engine == nil || source == nil || notifier == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewAssignmentManager")
	}
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &AssignmentManager{
		engine:      engine,
		source:      source,
		notifier:    notifier,
		ackTimeout:  ackTimeout,
		maxAttempts: 3,
		logger:      log,
		metrics:     sink,
		bus:         bus,
	}, nil
}

// SetLogStore configures the store used to persist assignment decisions.
func (m *AssignmentManager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetStatusStore configures the store updated when a unit accepts.
func (m *AssignmentManager) SetStatusStore(store unitstatus.Store) {
	m.mu.Lock()
	m.statusStore = store
	m.mu.Unlock()
}

// SetMaxAttempts bounds the number of units notified per incident.
func (m *AssignmentManager) SetMaxAttempts(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.maxAttempts = n
	m.mu.Unlock()
}

// SetMaxRecommendations sets how many ranked units Assign considers.
func (m *AssignmentManager) SetMaxRecommendations(n int) {
	m.mu.Lock()
	m.maxRecs = n
	m.mu.Unlock()
}

// Engine returns the scoring engine used by the manager.
func (m *AssignmentManager) Engine() *assignment.Engine { return m.engine }

// Close releases resources held by the manager.
func (m *AssignmentManager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}

// Run processes incoming incidents until the context is canceled.
func (m *AssignmentManager) Run(ctx context.Context, incidents <-chan model.Incident) {
	for {
		select {
		case inc, ok := <-incidents:
			if !ok {
				return
			}
			if _, err := m.Assign(ctx, inc); err != nil {
				m.logger.Warnf("incident %s not assigned: %v", inc.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// History returns a copy of the processed assignment results.
func (m *AssignmentManager) History() []AssignmentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AssignmentResult(nil), m.history...)
}

// Recommend ranks the candidates of the incident's organization without
// notifying anyone.
func (m *AssignmentManager) Recommend(ctx context.Context, inc model.Incident, max int) (assignment.RecommendationSet, error) {
	if err := inc.Validate(); err != nil {
		return assignment.RecommendationSet{}, err
	}
	units, err := m.source.Candidates(ctx, inc.OrganizationID)
	if err != nil {
		return assignment.RecommendationSet{}, fmt.Errorf("load candidates for %s: %w", inc.OrganizationID, err)
	}
	return m.Rank(inc, units, max)
}

// Rank scores the given units and records the recommendation metrics.
func (m *AssignmentManager) Rank(inc model.Incident, units []model.Unit, max int) (assignment.RecommendationSet, error) {
	set, err := m.engine.FindBestUnits(inc, units, max)
	if err != nil {
		return set, err
	}
	m.logger.Debugw("ranked candidates", map[string]any{
		"incident_id": inc.ID,
		"candidates":  len(units),
		"returned":    len(set.Recommendations),
	})
	if top, ok := set.Top(); ok {
		topScore.WithLabelValues(inc.TransportType.String()).Set(top.TotalScore)
	}
	m.recordRecommendations(inc, set)
	if m.bus != nil {
		m.bus.Publish(events.RecommendationEvent{Incident: inc, Set: set})
	}
	return set, nil
}

// Assign ranks the candidates and notifies acceptable units in rank order
// until one acknowledges or MaxAttempts is reached. The returned result is
// populated even when an error is returned.
func (m *AssignmentManager) Assign(ctx context.Context, inc model.Incident) (AssignmentResult, error) {
	res := AssignmentResult{ID: uuid.NewString(), Incident: inc, Rejected: map[string][]string{}}
	if m.bus != nil {
		m.bus.Publish(events.IncidentEvent{Incident: inc})
	}
	m.mu.Lock()
	maxAttempts, maxRecs := m.maxAttempts, m.maxRecs
	m.mu.Unlock()

	set, err := m.Recommend(ctx, inc, maxRecs)
	if err != nil {
		m.logger.Errorf("incident %s not ranked: %v", inc.ID, err)
		return m.finish(res, err), err
	}
	res.Recommendations = set
	log := m.logger.With("incident_id", inc.ID)

	for _, rec := range set.Recommendations {
		if err := ctx.Err(); err != nil {
			return m.finish(res, err), err
		}
		unitID := rec.Unit.ID
		if reasons := m.engine.Rejections(rec); len(reasons) > 0 {
			res.Rejected[unitID] = reasons
			log.Debugf("unit %s rejected: %v", unitID, reasons)
			continue
		}
		if len(res.Attempts) >= maxAttempts {
			break
		}
		if len(res.Attempts) > 0 {
			res.Fallback = true
			fallbacksTotal.Inc()
		}
		att := m.notify(inc, rec)
		res.Attempts = append(res.Attempts, att)
		if att.Acknowledged {
			res.AssignedUnitID = unitID
			log.Infof("unit %s assigned (score %.2f)", unitID, rec.TotalScore)
			break
		}
		log.Warnf("unit %s did not accept: %v", unitID, att.err)
		m.reportFallback(inc, att)
	}

	switch {
	case res.Assigned():
		err = nil
	case len(res.Attempts) == 0:
		err = ErrNoAcceptableUnit
	default:
		err = ErrNoAcknowledgment
	}
	return m.finish(res, err), err
}

// notify sends the assignment and waits for the acknowledgment while
// measuring the latency.
func (m *AssignmentManager) notify(inc model.Incident, rec assignment.Recommendation) Attempt {
	start := time.Now()
	att := Attempt{UnitID: rec.Unit.ID}
	cmdID, err := m.notifier.SendAssignment(rec.Unit.ID, mqtt.Notification{
		IncidentID:    inc.ID,
		TransportType: inc.TransportType,
		Pickup:        inc.PickupLocation,
		Score:         rec.TotalScore,
	})
	if err != nil {
		notifyFailure.Inc()
		att.err = fmt.Errorf("publish: %w", err)
	} else {
		notifySuccess.Inc()
		att.CommandID = cmdID
		ack, werr := m.notifier.WaitForAck(cmdID, m.ackTimeout)
		att.Acknowledged = ack && werr == nil
		if werr != nil {
			att.err = werr
		} else if !ack {
			att.err = mqtt.ErrDeclined
		}
	}
	att.Latency = time.Since(start)
	if att.err != nil {
		att.Error = att.err.Error()
	}
	notifyLatency.WithLabelValues(inc.TransportType.String()).Observe(att.Latency.Seconds())

	if m.bus != nil {
		m.bus.Publish(events.AckEvent{
			CommandID:     att.CommandID,
			IncidentID:    inc.ID,
			UnitID:        att.UnitID,
			TransportType: inc.TransportType,
			Acknowledged:  att.Acknowledged,
			Err:           att.err,
			Latency:       att.Latency,
		})
	}
	if r, ok := m.metrics.(metrics.AckRecorder); ok {
		if err := r.RecordAck(metrics.AckEvent{
			CommandID:     att.CommandID,
			IncidentID:    inc.ID,
			UnitID:        att.UnitID,
			TransportType: inc.TransportType,
			Acknowledged:  att.Acknowledged,
			Latency:       att.Latency,
			Error:         att.Error,
			Time:          time.Now(),
		}); err != nil {
			m.logger.Errorf("ack metrics error: %v", err)
		}
	}
	return att
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, mqtt.ErrDeclined):
		return "declined"
	case errors.Is(err, mqtt.ErrAckTimeout):
		return "timeout"
	default:
		return "publish_error"
	}
}

func (m *AssignmentManager) reportFallback(inc model.Incident, att Attempt) {
	reason := fallbackReason(att.err)
	if reason == "publish_error" {
		monitoring.CaptureException(att.err, m.tags(inc, att.UnitID))
	}
	if m.bus != nil {
		m.bus.Publish(events.FallbackEvent{IncidentID: inc.ID, UnitID: att.UnitID, Reason: reason, Err: att.err})
	}
	if r, ok := m.metrics.(metrics.FallbackRecorder); ok {
		if err := r.RecordFallback(metrics.FallbackEvent{
			IncidentID: inc.ID,
			FromUnitID: att.UnitID,
			Reason:     reason,
			Time:       time.Now(),
		}); err != nil {
			m.logger.Errorf("fallback metrics error: %v", err)
		}
	}
}

func (m *AssignmentManager) tags(inc model.Incident, unitID string) map[string]string {
	tags := monitoring.IncidentTags(inc, unitID)
	tags["module"] = "assignment_manager"
	return tags
}

// finish records the outcome in metrics, the log store, the unit registry
// and the in-memory history.
func (m *AssignmentManager) finish(res AssignmentResult, err error) AssignmentResult {
	res.CompletedAt = time.Now()
	res.err = err
	if err != nil {
		res.Error = err.Error()
	}
	inc := res.Incident
	outcome := res.Outcome()
	assignmentsTotal.WithLabelValues(inc.TransportType.String(), outcome).Inc()
	if r, ok := m.metrics.(metrics.AssignmentRecorder); ok {
		if rerr := r.RecordAssignment(metrics.AssignmentEvent{
			IncidentID:    inc.ID,
			UnitID:        res.AssignedUnitID,
			TransportType: inc.TransportType,
			Outcome:       outcome,
			Attempts:      len(res.Attempts),
			Fallback:      res.Fallback,
			Time:          res.CompletedAt,
		}); rerr != nil {
			m.logger.Errorf("assignment metrics error: %v", rerr)
		}
	}
	if err != nil && !errors.Is(err, ErrNoAcceptableUnit) {
		monitoring.CaptureException(err, m.tags(inc, ""))
	}

	m.mu.Lock()
	m.history = append(m.history, res)
	store, statusStore := m.store, m.statusStore
	m.mu.Unlock()

	if store != nil {
		if serr := store.Append(context.Background(), m.logRecord(res)); serr != nil {
			m.logger.Errorf("log store error: %v", serr)
		}
	}
	if statusStore != nil && res.Assigned() {
		var score float64
		for _, r := range res.Recommendations.Recommendations {
			if r.Unit.ID == res.AssignedUnitID {
				score = r.TotalScore
			}
		}
		statusStore.RecordAssignment(res.AssignedUnitID, unitstatus.LastAssignment{
			IncidentID:    inc.ID,
			TransportType: inc.TransportType,
			Score:         score,
			Timestamp:     res.CompletedAt,
		})
	}
	return res
}

func (m *AssignmentManager) logRecord(res AssignmentResult) logging.LogRecord {
	rec := logging.LogRecord{
		Timestamp:      res.CompletedAt,
		IncidentID:     res.Incident.ID,
		OrganizationID: res.Incident.OrganizationID,
		TransportType:  res.Incident.TransportType,
		AssignedUnitID: res.AssignedUnitID,
		Acknowledged:   res.Assigned(),
		Fallback:       res.Fallback,
		Outcome:        res.Outcome(),
		Error:          res.Error,
	}
	for _, r := range res.Recommendations.Recommendations {
		rec.Recommendations = append(rec.Recommendations, logging.RecommendationSummary{
			UnitID:        r.Unit.ID,
			TotalScore:    r.TotalScore,
			DistanceMiles: r.DistanceMiles,
			Acceptable:    m.engine.IsAcceptable(r),
			Warnings:      r.Warnings,
		})
	}
	for _, a := range res.Attempts {
		if a.Error == "" {
			continue
		}
		if rec.Errors == nil {
			rec.Errors = map[string]string{}
		}
		rec.Errors[a.UnitID] = a.Error
	}
	return rec
}

func (m *AssignmentManager) recordRecommendations(inc model.Incident, set assignment.RecommendationSet) {
	recs := make([]metrics.RecommendationMetric, 0, len(set.Recommendations))
	for i, r := range set.Recommendations {
		recs = append(recs, metrics.RecommendationMetric{
			IncidentID:     inc.ID,
			OrganizationID: inc.OrganizationID,
			TransportType:  inc.TransportType,
			UnitID:         r.Unit.ID,
			Rank:           i + 1,
			TotalScore:     r.TotalScore,
			Distance:       r.Scores.Distance,
			Qualification:  r.Scores.Qualification,
			Performance:    r.Scores.Performance,
			Fatigue:        r.Scores.Fatigue,
			DistanceMiles:  r.DistanceMiles,
			Acceptable:     m.engine.IsAcceptable(r),
			Time:           set.GeneratedAt,
		})
	}
	if err := m.metrics.RecordRecommendations(recs); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
}
