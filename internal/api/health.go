package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHealthTimeout = 5 * time.Second

// Pinger is satisfied by every store driver.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the process's dependencies are reachable.
type HealthHandler struct {
	store   Pinger
	broker  func() bool
	timeout time.Duration
	logger  *slog.Logger
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithBroker adds a broker check backed by connected.
func WithBroker(connected func() bool) HealthOption {
	return func(h *HealthHandler) { h.broker = connected }
}

// WithHealthTimeout bounds the store ping.
func WithHealthTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHealthHandler creates a health handler for store.
func NewHealthHandler(store Pinger, logger *slog.Logger, opts ...HealthOption) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthHandler{store: store, timeout: defaultHealthTimeout, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health returns the health status of the bot and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"bot": "ok"}
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "component", "store", "error", err)
		checks["store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if h.broker != nil {
		if h.broker() {
			checks["broker"] = "ok"
		} else {
			checks["broker"] = "disconnected"
			statusCode = http.StatusServiceUnavailable
		}
	}

	status := "healthy"
	if statusCode != http.StatusOK {
		status = "degraded"
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
