// Package ops serves the operational HTTP surface: health and metrics.
// The signal API proper lives outside this module.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Pinger checks backing-store connectivity for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewServer builds the ops HTTP server. pinger may be nil when no
// database is configured.
func NewServer(addr string, pinger Pinger, gatherer prometheus.Gatherer) *http.Server {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}

		code := http.StatusOK
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Warn().Err(err).Msg("failed to write health response")
		}
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
