package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/ridgeline-ems/ift-dispatch/core/metrics"
)

// PromSink records assignment events in Prometheus metrics.
type PromSink struct {
	recommendations *prometheus.CounterVec
	scores          *prometheus.HistogramVec
	acks            *prometheus.CounterVec
	ackLatency      *prometheus.HistogramVec
	outcomes        *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	hoursWorked     *prometheus.GaugeVec
}

// NewPromSink registers assignment metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already present on the registerer are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendations_scored_total",
			Help: "Total number of scored candidate units",
		}, []string{"transport_type", "acceptable"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_total_score",
			Help:    "Distribution of candidate total scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}, []string{"transport_type"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unit_acks_total",
			Help: "Assignment notifications by unit answer",
		}, []string{"unit_id", "acknowledged"}),
		ackLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unit_ack_latency_seconds",
			Help:    "Time between notification and unit answer",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport_type", "acknowledged"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_outcomes_total",
			Help: "Assignment outcomes per transport type",
		}, []string{"transport_type", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_fallback_reasons_total",
			Help: "Candidates abandoned by reason",
		}, []string{"reason"}),
		hoursWorked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unit_hours_worked_today",
			Help: "Hours worked today as last reported by the unit",
		}, []string{"unit_id"}),
	}
	var err error
	if s.recommendations, err = register(reg, s.recommendations); err != nil {
		return nil, err
	}
	if s.scores, err = register(reg, s.scores); err != nil {
		return nil, err
	}
	if s.acks, err = register(reg, s.acks); err != nil {
		return nil, err
	}
	if s.ackLatency, err = register(reg, s.ackLatency); err != nil {
		return nil, err
	}
	if s.outcomes, err = register(reg, s.outcomes); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, s.fallbacks); err != nil {
		return nil, err
	}
	if s.hoursWorked, err = register(reg, s.hoursWorked); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRecommendations counts every ranked unit and observes its score.
func (s *PromSink) RecordRecommendations(recs []coremetrics.RecommendationMetric) error {
	for _, r := range recs {
		tt := r.TransportType.String()
		s.recommendations.WithLabelValues(tt, strconv.FormatBool(r.Acceptable)).Inc()
		s.scores.WithLabelValues(tt).Observe(r.TotalScore)
	}
	return nil
}

// RecordAck counts the unit answer and observes its latency.
func (s *PromSink) RecordAck(ev coremetrics.AckEvent) error {
	ack := strconv.FormatBool(ev.Acknowledged)
	s.acks.WithLabelValues(ev.UnitID, ack).Inc()
	s.ackLatency.WithLabelValues(ev.TransportType.String(), ack).Observe(ev.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.outcomes.WithLabelValues(ev.TransportType.String(), ev.Outcome).Inc()
	return nil
}

func (s *PromSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	s.fallbacks.WithLabelValues(ev.Reason).Inc()
	return nil
}

// RecordUnitState publishes the hours worked when the unit reports them.
func (s *PromSink) RecordUnitState(ev coremetrics.UnitStateEvent) error {
	if ev.Unit.HoursWorkedToday != nil {
		s.hoursWorked.WithLabelValues(ev.Unit.ID).Set(*ev.Unit.HoursWorkedToday)
	}
	return nil
}
