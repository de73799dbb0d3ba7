package metrics

// MultiSink fans events out to multiple sinks. Optional recorders are only
// invoked on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRecommendations forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRecommendations(recs []RecommendationMetric) error {
	for _, s := range m.Sinks {
		if err := s.RecordRecommendations(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignment forwards assignment outcomes.
func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	return forward(m.Sinks, func(r AssignmentRecorder) error { return r.RecordAssignment(ev) })
}

// RecordAck forwards ack events.
func (m *MultiSink) RecordAck(ev AckEvent) error {
	return forward(m.Sinks, func(r AckRecorder) error { return r.RecordAck(ev) })
}

// RecordFallback forwards fallback events.
func (m *MultiSink) RecordFallback(ev FallbackEvent) error {
	return forward(m.Sinks, func(r FallbackRecorder) error { return r.RecordFallback(ev) })
}

// RecordUnitState forwards unit snapshots.
func (m *MultiSink) RecordUnitState(ev UnitStateEvent) error {
	return forward(m.Sinks, func(r UnitStateRecorder) error { return r.RecordUnitState(ev) })
}

func forward[R any](sinks []MetricsSink, call func(R) error) error {
	for _, s := range sinks {
		if r, ok := s.(R); ok {
			if err := call(r); err != nil {
				return err
			}
		}
	}
	return nil
}
