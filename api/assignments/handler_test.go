package assignments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch"
	"github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
	"github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
)

var pickup = model.Location{Latitude: 39.95, Longitude: -75.16}

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

func testIncident() model.Incident {
	loc := pickup
	return model.Incident{ID: "inc-1", OrganizationID: "org-1", TransportType: model.TransportALS, PickupLocation: &loc}
}

func newTestHandler(t *testing.T, units ...model.Unit) (*Handler, *mqtt.MockNotifier) {
	t.Helper()
	dispatch.ResetMetrics(nil)
	t.Cleanup(func() { dispatch.ResetMetrics(nil) })

	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	engine, err := assignment.NewEngine(assignment.DefaultConfig(), assignment.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	store := unitstatus.NewMemoryStore()
	for _, u := range units {
		store.Upsert(u)
	}
	notifier := mqtt.NewMockNotifier()
	mgr, err := dispatch.NewAssignmentManager(engine, store, notifier, time.Second, metrics.NopSink{}, nil, logger.NopLogger{})
	require.NoError(t, err)
	mgr.SetStatusStore(store)
	return NewHandler(mgr), notifier
}

func post(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/", &buf))
	return rr
}

func TestRecommend_FromRegistry(t *testing.T) {
	h, notifier := newTestHandler(t, unitAt("far", 30), unitAt("near", 4))

	rr := post(t, h.Recommend, RecommendRequest{Incident: testIncident()})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out RecommendResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "inc-1", out.IncidentID)
	require.Len(t, out.Recommendations, 2)
	assert.Equal(t, "near", out.Recommendations[0].Unit.ID)
	assert.True(t, out.Recommendations[0].Acceptable)
	assert.Empty(t, out.Recommendations[0].Rejections)
	assert.Contains(t, out.Recommendations[0].Explanation, "near")
	assert.GreaterOrEqual(t, out.Recommendations[0].TotalScore, out.Recommendations[1].TotalScore)
	assert.Empty(t, notifier.Notified(), "recommendations never notify units")
}

func TestRecommend_InlineUnitsAndMax(t *testing.T) {
	h, _ := newTestHandler(t)

	critical := unitAt("tired", 2)
	critical.FatigueRisk = model.FatigueCritical
	rr := post(t, h.Recommend, RecommendRequest{
		Incident: testIncident(),
		Units:    []model.Unit{unitAt("a", 5), critical, unitAt("c", 40)},
		Max:      2,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out RecommendResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Recommendations, 2)
	for _, rec := range out.Recommendations {
		if rec.Unit.ID == "tired" {
			assert.False(t, rec.Acceptable)
			assert.NotEmpty(t, rec.Rejections)
		}
	}
}

func TestRecommend_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := post(t, h.Recommend, "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	inc := testIncident()
	inc.OrganizationID = ""
	rr = post(t, h.Recommend, RecommendRequest{Incident: inc})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "organization_id"))
}

func TestAssign_Acknowledged(t *testing.T) {
	h, notifier := newTestHandler(t, unitAt("u1", 3), unitAt("u2", 20))

	rr := post(t, h.Assign, testIncident())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res dispatch.AssignmentResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "u1", res.AssignedUnitID)
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{"u1"}, notifier.Notified())
}

func TestAssign_Conflict(t *testing.T) {
	t.Run("no acceptable unit", func(t *testing.T) {
		h, _ := newTestHandler(t, unitAt("remote", 140))
		rr := post(t, h.Assign, testIncident())
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), dispatch.ErrNoAcceptableUnit.Error())
	})

	t.Run("no acknowledgment", func(t *testing.T) {
		h, notifier := newTestHandler(t, unitAt("u1", 3))
		notifier.Decline["u1"] = true
		rr := post(t, h.Assign, testIncident())
		assert.Equal(t, http.StatusConflict, rr.Code)

		var body struct {
			dispatch.AssignmentResult
			Error string `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, dispatch.ErrNoAcknowledgment.Error(), body.Error)
		require.Len(t, body.Attempts, 1)
		assert.Equal(t, "u1", body.Attempts[0].UnitID)
	})
}

func TestAssign_InvalidIncident(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := post(t, h.Assign, model.Incident{ID: "x", OrganizationID: "org-1", TransportType: "TAXI"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
