package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

const milesPerDegreeLat = 69.09

var pickup = model.Location{Latitude: 39.95, Longitude: -75.16}

// alsUnit returns an available ALS ambulance miles north of pickup.
func alsUnit(id string, miles float64) model.Unit {
	return model.Unit{
		ID:             id,
		OrganizationID: "org-1",
		Status:         model.StatusAvailable,
		Type:           model.UnitAmbulance,
		Location:       &model.Location{Latitude: pickup.Latitude + miles/milesPerDegreeLat, Longitude: pickup.Longitude},
		ALSCapable:     true,
		HasParamedic:   true,
		FatigueRisk:    model.FatigueLow,
	}
}

func alsIncident(id string) model.Incident {
	loc := pickup
	return model.Incident{ID: id, OrganizationID: "org-1", TransportType: model.TransportALS, PickupLocation: &loc}
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
