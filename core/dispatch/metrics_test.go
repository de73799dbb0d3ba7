package dispatch

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerMetrics_Assigned(t *testing.T) {
	f := newFixture(t, unitAt("a", 2), unitAt("b", 6))
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	f.notifier.Decline["a"] = true

	res, err := f.mgr.Assign(context.Background(), incident())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("ALS", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fallbacksTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(notifySuccess))
	assert.Equal(t, 0.0, testutil.ToFloat64(notifyFailure))
	top, _ := res.Recommendations.Top()
	assert.Equal(t, top.TotalScore, testutil.ToFloat64(topScore.WithLabelValues("ALS")))
	assert.Equal(t, 1, testutil.CollectAndCount(notifyLatency))
}

func TestManagerMetrics_Failures(t *testing.T) {
	f := newFixture(t, unitAt("a", 2))
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	f.notifier.FailIDs["a"] = true

	_, err := f.mgr.Assign(context.Background(), incident())
	require.ErrorIs(t, err, ErrNoAcknowledgment)
	assert.Equal(t, 1.0, testutil.ToFloat64(notifyFailure))
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("ALS", "no_ack")))

	empty := incident()
	empty.OrganizationID = "org-9"
	_, err = f.mgr.Assign(context.Background(), empty)
	require.ErrorIs(t, err, ErrNoAcceptableUnit)
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("ALS", "no_acceptable_unit")))
}

func TestResetMetrics_RegistersOnRegistry(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { ResetMetrics(reg) })
	fallbacksTotal.Inc()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["assignment_fallbacks_total"])
	assert.True(t, names["assignment_publish_success_total"])
}
