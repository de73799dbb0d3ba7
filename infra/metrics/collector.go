package metrics

import (
	"context"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/events"
	coremetrics "github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records unit
// snapshots published by telemetry. Assignment events are recorded by the
// manager directly. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.UnitStateRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.UnitEvent); ok {
					_ = rec.RecordUnitState(coremetrics.UnitStateEvent{Unit: e.Unit, Component: e.Component, Time: time.Now()})
				}
			}
		}
	}()
}
