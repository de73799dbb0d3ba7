package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// Fleet runs a set of simulated units against one broker.
type Fleet struct {
	Units []*SimulatedUnit

	wg   sync.WaitGroup
	errs chan error
}

// NewFleet wraps units with the same broker, strategy and report interval.
func NewFleet(units []model.Unit, broker, statePrefix string, interval time.Duration, strat AckStrategy) *Fleet {
	f := &Fleet{errs: make(chan error, len(units))}
	for _, u := range units {
		su := NewSimulatedUnit(u, broker, strat)
		if statePrefix != "" {
			su.StatePrefix = statePrefix
		}
		if interval > 0 {
			su.Interval = interval
		}
		f.Units = append(f.Units, su)
	}
	return f
}

// Start launches every unit and waits until all of them have signed on or
// timeout elapses.
func (f *Fleet) Start(ctx context.Context, timeout time.Duration) error {
	ready := make([]chan struct{}, len(f.Units))
	for i, su := range f.Units {
		ready[i] = make(chan struct{})
		f.wg.Add(1)
		go func(su *SimulatedUnit, ready chan struct{}) {
			defer f.wg.Done()
			if err := su.Run(ctx, ready); err != nil {
				f.errs <- fmt.Errorf("%s: %w", su.Unit().ID, err)
			}
		}(su, ready[i])
	}
	deadline := time.After(timeout)
	for i := range ready {
		select {
		case <-ready[i]:
		case err := <-f.errs:
			return err
		case <-deadline:
			return fmt.Errorf("simulator: %d units not ready after %s", len(ready)-i, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Wait blocks until every unit stopped and returns the first run error.
func (f *Fleet) Wait() error {
	f.wg.Wait()
	select {
	case err := <-f.errs:
		return err
	default:
		return nil
	}
}

// Unit returns the simulated unit with the given id.
func (f *Fleet) Unit(id string) (*SimulatedUnit, bool) {
	for _, su := range f.Units {
		if su.Unit().ID == id {
			return su, true
		}
	}
	return nil, false
}
