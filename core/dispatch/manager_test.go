package dispatch

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch/logging"
	"github.com/ridgeline-ems/ift-dispatch/core/events"
	"github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
	coremqtt "github.com/ridgeline-ems/ift-dispatch/core/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
	"github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/internal/eventbus"
)

var testNow = time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)

var pickup = model.Location{Latitude: 39.95, Longitude: -75.16}

type recordingSink struct {
	mu          sync.Mutex
	recs        []metrics.RecommendationMetric
	acks        []metrics.AckEvent
	fallbacks   []metrics.FallbackEvent
	assignments []metrics.AssignmentEvent
}

func (s *recordingSink) RecordRecommendations(r []metrics.RecommendationMetric) error {
	s.mu.Lock()
	s.recs = append(s.recs, r...)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) RecordAck(e metrics.AckEvent) error {
	s.mu.Lock()
	s.acks = append(s.acks, e)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) RecordFallback(e metrics.FallbackEvent) error {
	s.mu.Lock()
	s.fallbacks = append(s.fallbacks, e)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) RecordAssignment(e metrics.AssignmentEvent) error {
	s.mu.Lock()
	s.assignments = append(s.assignments, e)
	s.mu.Unlock()
	return nil
}

// unitAt places an ALS ambulance roughly the given number of miles north of
// the pickup.
func unitAt(id string, miles float64) model.Unit {
	return model.Unit{
		ID:             id,
		OrganizationID: "org-1",
		Status:         model.StatusAvailable,
		Type:           model.UnitAmbulance,
		Location:       &model.Location{Latitude: pickup.Latitude + miles/69.09, Longitude: pickup.Longitude},
		ALSCapable:     true,
		FatigueRisk:    model.FatigueLow,
	}
}

func incident() model.Incident {
	loc := pickup
	return model.Incident{ID: "inc-7", OrganizationID: "org-1", TransportType: model.TransportALS, PickupLocation: &loc}
}

type fixture struct {
	mgr      *AssignmentManager
	notifier *mqtt.MockNotifier
	units    *unitstatus.MemoryStore
	sink     *recordingSink
}

func newFixture(t *testing.T, units ...model.Unit) *fixture {
	t.Helper()
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })

	engine, err := assignment.NewEngine(assignment.DefaultConfig(), assignment.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	store := unitstatus.NewMemoryStore()
	for _, u := range units {
		store.Upsert(u)
	}
	f := &fixture{notifier: mqtt.NewMockNotifier(), units: store, sink: &recordingSink{}}
	f.mgr, err = NewAssignmentManager(engine, store, f.notifier, time.Second, f.sink, nil, logger.NopLogger{})
	require.NoError(t, err)
	f.mgr.SetStatusStore(store)
	return f
}

func TestNewAssignmentManager_NilParams(t *testing.T) {
	engine, err := assignment.NewEngine(assignment.DefaultConfig())
	require.NoError(t, err)
	_, err = NewAssignmentManager(nil, unitstatus.NewMemoryStore(), mqtt.NewMockNotifier(), 0, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
	_, err = NewAssignmentManager(engine, nil, mqtt.NewMockNotifier(), 0, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
	_, err = NewAssignmentManager(engine, unitstatus.NewMemoryStore(), nil, 0, nil, nil, logger.NopLogger{})
	assert.Error(t, err)

	m, err := NewAssignmentManager(engine, unitstatus.NewMemoryStore(), mqtt.NewMockNotifier(), 0, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, m.ackTimeout)
	assert.Equal(t, 3, m.maxAttempts)
}

func TestAssign_BestUnitAcknowledges(t *testing.T) {
	f := newFixture(t, unitAt("far", 40), unitAt("near", 3))

	res, err := f.mgr.Assign(context.Background(), incident())
	require.NoError(t, err)
	assert.Equal(t, "near", res.AssignedUnitID)
	assert.False(t, res.Fallback)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Acknowledged)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "assigned", res.Outcome())
	assert.Equal(t, []string{"near"}, f.notifier.Notified())

	n := f.notifier.Sent["near"]
	assert.Equal(t, "inc-7", n.IncidentID)
	assert.Equal(t, model.TransportALS, n.TransportType)
	assert.Equal(t, res.Recommendations.Recommendations[0].TotalScore, n.Score)

	st, ok := f.units.Get("near")
	require.True(t, ok)
	assert.Equal(t, model.StatusEnRoute, st.Unit.Status)
	require.NotNil(t, st.LastAssignment)
	assert.Equal(t, "inc-7", st.LastAssignment.IncidentID)
	assert.Equal(t, n.Score, st.LastAssignment.Score)

	require.Len(t, f.sink.assignments, 1)
	assert.Equal(t, "assigned", f.sink.assignments[0].Outcome)
	assert.Len(t, f.sink.recs, 2)
	assert.Equal(t, 1, f.sink.recs[0].Rank)
	assert.Len(t, f.sink.acks, 1)
}

func TestAssign_DeclineFallsBackToNextUnit(t *testing.T) {
	f := newFixture(t, unitAt("a", 2), unitAt("b", 8), unitAt("c", 20))
	f.notifier.Decline["a"] = true

	res, err := f.mgr.Assign(context.Background(), incident())
	require.NoError(t, err)
	assert.Equal(t, "b", res.AssignedUnitID)
	assert.True(t, res.Fallback)
	require.Len(t, res.Attempts, 2)
	assert.True(t, errors.Is(res.Attempts[0].Err(), coremqtt.ErrDeclined))
	assert.Equal(t, []string{"a", "b"}, f.notifier.Notified())

	require.Len(t, f.sink.fallbacks, 1)
	assert.Equal(t, "a", f.sink.fallbacks[0].FromUnitID)
	assert.Equal(t, "declined", f.sink.fallbacks[0].Reason)
}

func TestAssign_NoAcknowledgment(t *testing.T) {
	f := newFixture(t, unitAt("a", 2), unitAt("b", 8))
	f.notifier.Silent["a"] = true
	f.notifier.FailIDs["b"] = true

	res, err := f.mgr.Assign(context.Background(), incident())
	require.ErrorIs(t, err, ErrNoAcknowledgment)
	assert.False(t, res.Assigned())
	assert.Equal(t, "no_ack", res.Outcome())
	require.Len(t, res.Attempts, 2)
	assert.True(t, errors.Is(res.Attempts[0].Err(), coremqtt.ErrAckTimeout))
	assert.Contains(t, res.Attempts[1].Error, "publish")

	reasons := []string{f.sink.fallbacks[0].Reason, f.sink.fallbacks[1].Reason}
	assert.Equal(t, []string{"timeout", "publish_error"}, reasons)

	st, _ := f.units.Get("a")
	assert.Equal(t, model.StatusAvailable, st.Unit.Status)
}

func TestAssign_NoAcceptableUnitNotifiesNobody(t *testing.T) {
	tired := unitAt("tired", 2)
	tired.FatigueRisk = model.FatigueCritical
	remote := unitAt("remote", 140)
	f := newFixture(t, tired, remote)

	res, err := f.mgr.Assign(context.Background(), incident())
	require.ErrorIs(t, err, ErrNoAcceptableUnit)
	assert.Empty(t, f.notifier.Notified())
	assert.Equal(t, "no_acceptable_unit", res.Outcome())
	assert.Contains(t, res.Rejected["tired"], "unit fatigue risk is CRITICAL")
	assert.NotEmpty(t, res.Rejected["remote"])
}

func TestAssign_NoCandidates(t *testing.T) {
	f := newFixture(t)
	res, err := f.mgr.Assign(context.Background(), incident())
	require.ErrorIs(t, err, ErrNoAcceptableUnit)
	assert.Empty(t, res.Recommendations.Recommendations)
}

func TestAssign_SkipsRejectedAndRespectsMaxAttempts(t *testing.T) {
	tired := unitAt("tired", 1)
	tired.FatigueRisk = model.FatigueCritical
	f := newFixture(t, tired, unitAt("a", 3), unitAt("b", 5), unitAt("c", 7))
	f.mgr.SetMaxAttempts(2)
	f.mgr.SetMaxRecommendations(5)
	for _, id := range []string{"a", "b", "c"} {
		f.notifier.Decline[id] = true
	}

	res, err := f.mgr.Assign(context.Background(), incident())
	require.ErrorIs(t, err, ErrNoAcknowledgment)
	assert.Equal(t, []string{"a", "b"}, f.notifier.Notified())
	assert.Contains(t, res.Rejected, "tired")
	assert.Len(t, res.Attempts, 2)
}

func TestAssign_InvalidIncident(t *testing.T) {
	f := newFixture(t, unitAt("a", 2))
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "assignments.jsonl"))
	require.NoError(t, err)
	f.mgr.SetLogStore(store)

	res, err := f.mgr.Assign(context.Background(), model.Incident{ID: "x", TransportType: model.TransportALS})
	require.ErrorIs(t, err, model.ErrInvalidIncident)
	assert.Empty(t, f.notifier.Notified())
	assert.Equal(t, "invalid", res.Outcome())
	assert.NotEmpty(t, res.Error)

	hist := f.mgr.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "x", hist[0].Incident.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("ALS", "invalid")))
	require.Len(t, f.sink.assignments, 1)
	assert.Equal(t, "invalid", f.sink.assignments[0].Outcome)

	recs, err := store.Query(context.Background(), logging.LogQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "invalid", recs[0].Outcome)
	assert.Contains(t, recs[0].Error, "invalid incident")
}

func TestAssign_SourceError(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	engine, err := assignment.NewEngine(assignment.DefaultConfig())
	require.NoError(t, err)
	down := UnitSourceFunc(func(context.Context, string) ([]model.Unit, error) {
		return nil, errors.New("registry unavailable")
	})
	notifier := mqtt.NewMockNotifier()
	mgr, err := NewAssignmentManager(engine, down, notifier, time.Second, nil, nil, logger.NopLogger{})
	require.NoError(t, err)

	res, err := mgr.Assign(context.Background(), incident())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry unavailable")
	assert.Equal(t, "error", res.Outcome())
	assert.Empty(t, notifier.Notified())
	require.Len(t, mgr.History(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("ALS", "error")))
}

func TestAssign_CanceledContext(t *testing.T) {
	f := newFixture(t, unitAt("a", 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.mgr.Assign(ctx, incident())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.notifier.Notified())
	assert.Equal(t, "canceled", res.Outcome())
}

func TestAssign_WritesLogRecord(t *testing.T) {
	f := newFixture(t, unitAt("a", 2), unitAt("b", 9))
	f.notifier.Decline["a"] = true
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "assignments.jsonl"))
	require.NoError(t, err)
	f.mgr.SetLogStore(store)

	_, err = f.mgr.Assign(context.Background(), incident())
	require.NoError(t, err)

	recs, err := store.Query(context.Background(), logging.LogQuery{UnitID: "b"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "inc-7", rec.IncidentID)
	assert.Equal(t, "org-1", rec.OrganizationID)
	assert.Equal(t, "b", rec.AssignedUnitID)
	assert.True(t, rec.Acknowledged)
	assert.True(t, rec.Fallback)
	require.Len(t, rec.Recommendations, 2)
	assert.True(t, rec.Recommendations[0].Acceptable)
	assert.Contains(t, rec.Errors["a"], "declined")
	require.NoError(t, f.mgr.Close())
}

func TestRecommend_DoesNotNotify(t *testing.T) {
	f := newFixture(t, unitAt("a", 12), unitAt("b", 4), unitAt("c", 30), unitAt("d", 50))

	set, err := f.mgr.Recommend(context.Background(), incident(), 2)
	require.NoError(t, err)
	require.Len(t, set.Recommendations, 2)
	assert.Equal(t, "b", set.Recommendations[0].Unit.ID)
	assert.Equal(t, testNow, set.GeneratedAt)
	assert.Empty(t, f.notifier.Notified())
	assert.Empty(t, f.mgr.History())
}

func TestRecommend_SourceError(t *testing.T) {
	engine, err := assignment.NewEngine(assignment.DefaultConfig())
	require.NoError(t, err)
	boom := errors.New("registry unavailable")
	src := UnitSourceFunc(func(context.Context, string) ([]model.Unit, error) { return nil, boom })
	m, err := NewAssignmentManager(engine, src, mqtt.NewMockNotifier(), 0, nil, nil, logger.NopLogger{})
	require.NoError(t, err)

	_, err = m.Recommend(context.Background(), incident(), 3)
	require.ErrorIs(t, err, boom)
}

func TestAssign_PublishesEvents(t *testing.T) {
	f := newFixture(t, unitAt("a", 2), unitAt("b", 6))
	f.notifier.Decline["a"] = true
	bus := eventbus.New()
	f.mgr.bus = bus
	sub := bus.Subscribe()

	_, err := f.mgr.Assign(context.Background(), incident())
	require.NoError(t, err)

	var kinds []string
	for len(kinds) < 5 {
		select {
		case e := <-sub:
			switch e.(type) {
			case events.IncidentEvent:
				kinds = append(kinds, "incident")
			case events.RecommendationEvent:
				kinds = append(kinds, "recommendation")
			case events.AckEvent:
				kinds = append(kinds, "ack")
			case events.FallbackEvent:
				kinds = append(kinds, "fallback")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", kinds)
		}
	}
	assert.Equal(t, []string{"incident", "recommendation", "ack", "fallback", "ack"}, kinds)
}

func TestRun_ProcessesIncidents(t *testing.T) {
	f := newFixture(t, unitAt("a", 2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incidents := make(chan model.Incident, 2)
	first := incident()
	second := incident()
	second.ID = "inc-8"
	second.OrganizationID = "org-2"
	incidents <- first
	incidents <- second
	close(incidents)

	done := make(chan struct{})
	go func() {
		f.mgr.Run(ctx, incidents)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}

	hist := f.mgr.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "a", hist[0].AssignedUnitID)
	assert.False(t, hist[1].Assigned())
}

func TestAssign_ScoresMatchEngine(t *testing.T) {
	f := newFixture(t, unitAt("a", 2))
	res, err := f.mgr.Assign(context.Background(), incident())
	require.NoError(t, err)
	top, ok := res.Recommendations.Top()
	require.True(t, ok)
	direct := f.mgr.Engine().Score(incident(), unitAt("a", 2))
	assert.True(t, math.Abs(direct.TotalScore-top.TotalScore) < 1e-9)
}
