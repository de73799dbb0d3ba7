package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	notifyLatency    *prometheus.HistogramVec
	assignmentsTotal *prometheus.CounterVec
	fallbacksTotal   prometheus.Counter
	topScore         *prometheus.GaugeVec
	notifySuccess    prometheus.Counter
	notifyFailure    prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, *prometheus.GaugeVec, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assignment_notify_latency_seconds",
			Help:    "Latency of assignment notifications from publish to acknowledgment",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport_type"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignments_total",
			Help: "Number of processed incidents by outcome",
		},
		[]string{"transport_type", "outcome"},
	)
	fb := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_fallbacks_total",
			Help: "Number of times the next ranked unit was tried",
		},
	)
	top := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommendation_top_score",
			Help: "Total score of the best ranked unit for the last incident",
		},
		[]string{"transport_type"},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_publish_success_total",
			Help: "Number of successful assignment publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_publish_failure_total",
			Help: "Number of failed assignment publish operations",
		},
	)
	return lat, total, fb, top, suc, fail
}

func init() {
	notifyLatency, assignmentsTotal, fallbacksTotal, topScore, notifySuccess, notifyFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers assignment metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(notifyLatency, assignmentsTotal, fallbacksTotal, topScore, notifySuccess, notifyFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	notifyLatency, assignmentsTotal, fallbacksTotal, topScore, notifySuccess, notifyFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
