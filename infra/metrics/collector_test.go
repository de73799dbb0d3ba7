package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-ems/ift-dispatch/core/events"
	coremetrics "github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/internal/eventbus"
)

type unitSink struct {
	coremetrics.NopSink
	mu     sync.Mutex
	states []coremetrics.UnitStateEvent
}

func (s *unitSink) RecordUnitState(ev coremetrics.UnitStateEvent) error {
	s.mu.Lock()
	s.states = append(s.states, ev)
	s.mu.Unlock()
	return nil
}

func (s *unitSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func TestStartEventCollector_RecordsUnitEvents(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &unitSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartEventCollector(ctx, bus, sink)
	bus.Publish(events.IncidentEvent{})
	bus.Publish(events.UnitEvent{Unit: model.Unit{ID: "u1"}, Component: "telemetry"})

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	assert.Equal(t, "u1", sink.states[0].Unit.ID)
	assert.Equal(t, "telemetry", sink.states[0].Component)
	sink.mu.Unlock()
}
