// Package health exposes liveness and metrics endpoints over HTTP and the
// standard gRPC health service.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is a dependency whose reachability decides health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names a Pinger in error reports.
type Check struct {
	Name   string
	Pinger Pinger
}

type Handler struct {
	log     *slog.Logger
	checks  []Check
	metrics http.Handler
	timeout time.Duration
}

// NewHandler serves /health from checks and /metrics from metrics.
func NewHandler(log *slog.Logger, metrics http.Handler, checks ...Check) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		metrics: metrics,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", h.metrics)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.Ping(ctx); err != nil {
		h.log.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ping runs every check and returns the first failure.
func (h *Handler) Ping(ctx context.Context) error {
	for _, c := range h.checks {
		if err := c.Pinger.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
