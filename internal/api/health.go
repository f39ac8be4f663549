package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	storage Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(storage Pinger) *HealthHandler {
	return &HealthHandler{storage: storage}
}

// Health returns the health status of the API and its storage backend.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.storage.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		checks["storage"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
