package assignments

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/api"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch/logging"
)

// NewLogHandler serves GET /api/assignments/logs. Supported filters are
// start and end (RFC3339), unit_id and organization_id.
func NewLogHandler(store logging.LogStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := logging.LogQuery{
			UnitID:         r.URL.Query().Get("unit_id"),
			OrganizationID: r.URL.Query().Get("organization_id"),
		}
		var err error
		if q.Start, err = parseTime(r, "start"); err != nil {
			api.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if q.End, err = parseTime(r, "end"); err != nil {
			api.WriteError(w, http.StatusBadRequest, err)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			api.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		api.WriteJSON(w, http.StatusOK, records)
	})
}

func parseTime(r *http.Request, key string) (time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
