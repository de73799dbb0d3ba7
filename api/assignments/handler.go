// Package assignments exposes recommendation and assignment requests over
// HTTP.
package assignments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/api"
	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// Service is the part of dispatch.AssignmentManager the handlers use.
type Service interface {
	Engine() *assignment.Engine
	Recommend(ctx context.Context, inc model.Incident, max int) (assignment.RecommendationSet, error)
	Rank(inc model.Incident, units []model.Unit, max int) (assignment.RecommendationSet, error)
	Assign(ctx context.Context, inc model.Incident) (dispatch.AssignmentResult, error)
}

// RecommendRequest is the body of POST /api/recommendations. When Units is
// empty the candidates come from the unit registry.
type RecommendRequest struct {
	Incident model.Incident `json:"incident"`
	Units    []model.Unit   `json:"units,omitempty"`
	Max      int            `json:"max,omitempty"`
}

// RecommendationView decorates a recommendation with its gate result.
type RecommendationView struct {
	assignment.Recommendation
	Acceptable  bool     `json:"acceptable"`
	Rejections  []string `json:"rejections,omitempty"`
	Explanation string   `json:"explanation"`
}

type RecommendResponse struct {
	IncidentID      string               `json:"incident_id"`
	GeneratedAt     time.Time            `json:"generated_at"`
	Recommendations []RecommendationView `json:"recommendations"`
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Recommend handles POST /api/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	var (
		set assignment.RecommendationSet
		err error
	)
	if len(req.Units) > 0 {
		set, err = h.svc.Rank(req.Incident, req.Units, req.Max)
	} else {
		set, err = h.svc.Recommend(r.Context(), req.Incident, req.Max)
	}
	if err != nil {
		api.WriteError(w, statusFor(err), err)
		return
	}
	api.WriteJSON(w, http.StatusOK, h.view(set))
}

// Assign handles POST /api/assignments. The body is the incident. A result
// without an assigned unit is returned with 409.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var inc model.Incident
	if err := json.NewDecoder(r.Body).Decode(&inc); err != nil {
		api.WriteError(w, http.StatusBadRequest, fmt.Errorf("decode incident: %w", err))
		return
	}
	res, err := h.svc.Assign(r.Context(), inc)
	switch {
	case err == nil:
		api.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, dispatch.ErrNoAcceptableUnit), errors.Is(err, dispatch.ErrNoAcknowledgment):
		api.WriteJSON(w, http.StatusConflict, struct {
			dispatch.AssignmentResult
			Error string `json:"error"`
		}{res, err.Error()})
	default:
		api.WriteError(w, statusFor(err), err)
	}
}

func (h *Handler) view(set assignment.RecommendationSet) RecommendResponse {
	eng := h.svc.Engine()
	out := RecommendResponse{
		IncidentID:      set.IncidentID,
		GeneratedAt:     set.GeneratedAt,
		Recommendations: make([]RecommendationView, 0, len(set.Recommendations)),
	}
	for _, rec := range set.Recommendations {
		out.Recommendations = append(out.Recommendations, RecommendationView{
			Recommendation: rec,
			Acceptable:     eng.IsAcceptable(rec),
			Rejections:     eng.Rejections(rec),
			Explanation:    eng.Explain(rec),
		})
	}
	return out
}

func statusFor(err error) int {
	if errors.Is(err, model.ErrInvalidIncident) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
