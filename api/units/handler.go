// Package units exposes the unit registry over HTTP.
package units

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ridgeline-ems/ift-dispatch/api"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
)

// NewStatusHandler serves GET /api/units/status with optional
// organization_id and status filters.
func NewStatusHandler(store unitstatus.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := unitstatus.Filter{OrganizationID: r.URL.Query().Get("organization_id")}
		if s := r.URL.Query().Get("status"); s != "" {
			st, err := model.ParseUnitStatus(s)
			if err != nil {
				api.WriteError(w, http.StatusBadRequest, err)
				return
			}
			f.Status = st
		}
		list := store.List(f)
		if list == nil {
			list = []unitstatus.Status{}
		}
		api.WriteJSON(w, http.StatusOK, list)
	}
}

// NewUnitHandler serves GET /api/units/{id}.
func NewUnitHandler(store unitstatus.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, ok := store.Get(id)
		if !ok {
			api.WriteError(w, http.StatusNotFound, fmt.Errorf("unit %s not found", id))
			return
		}
		api.WriteJSON(w, http.StatusOK, st)
	}
}
