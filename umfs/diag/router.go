// Package diag serves the diagnostics endpoint: Prometheus metrics, a
// health check and a JSON view of the undo/redo history.
package diag

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HistorySource is anything that can report the journal stacks.
type HistorySource interface {
	History() journal.History
}

// NewRouter builds the handler tree.
//
// Routes:
//   - GET /health: liveness check
//   - GET /metrics: Prometheus exposition for gatherer
//   - GET /history: the three journal stacks as JSON
func NewRouter(gatherer prometheus.Gatherer, history HistorySource, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/history", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(history.History()); err != nil {
			logger.Error().Err(err).Msg("Encoding history failed")
		}
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("Diagnostics request completed")
		})
	}
}
