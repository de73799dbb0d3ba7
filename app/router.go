package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ridgeline-ems/ift-dispatch/api"
	"github.com/ridgeline-ems/ift-dispatch/api/assignments"
	"github.com/ridgeline-ems/ift-dispatch/api/units"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch/logging"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
)

// NewRouter mounts the HTTP API. Every /api route requires the bearer token
// when token is set; /healthz never does.
func NewRouter(svc assignments.Service, logs logging.LogStore, registry unitstatus.Store, token string, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h := assignments.NewHandler(svc)
	r.Route("/api", func(r chi.Router) {
		r.Use(api.RequireToken(token))
		r.Post("/recommendations", h.Recommend)
		r.Post("/assignments", h.Assign)
		if logs != nil {
			r.Method(http.MethodGet, "/assignments/logs", assignments.NewLogHandler(logs))
		}
		r.Get("/units/status", units.NewStatusHandler(registry))
		r.Get("/units/{id}", units.NewUnitHandler(registry))
	})
	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debugw("http request", map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			})
		})
	}
}
