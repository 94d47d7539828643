// Package httpapi serves the admin surface: health, metrics, stats and cache hooks.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Velocity-Developer/newads/internal/infrastructure/metrics"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// StatsFunc returns a JSON-serializable snapshot of item counts.
type StatsFunc func(ctx context.Context) (any, error)

// RouterDeps wires the handlers' collaborators. Nil members disable their routes.
type RouterDeps struct {
	Gatherer  prometheus.Gatherer
	Blacklist ports.Blacklist
	Stats     StatsFunc
	Logger    *slog.Logger
}

// NewRouter builds the admin router.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	if deps.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := deps.Stats(r.Context())
			if err != nil {
				logger.Error("load stats", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})
	}

	if deps.Blacklist != nil {
		r.Post("/blacklist/invalidate", func(w http.ResponseWriter, _ *http.Request) {
			deps.Blacklist.Invalidate()
			logger.Info("blacklist cache invalidated")
			w.WriteHeader(http.StatusNoContent)
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
