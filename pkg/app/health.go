package app

import (
	"context"
	"net/http"
	"time"

	"roombook/pkg/client"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// pinger checks one backing store. Unconfigured stores are not registered.
type pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]pinger
	log    *logger.Logger
}

// NewHealthHandler checks every storage connection the service opened.
func NewHealthHandler(clients *client.Client, log *logger.Logger) *HealthHandler {
	h := &HealthHandler{checks: map[string]pinger{}, log: log}

	if clients == nil {
		return h
	}
	if clients.Mongo != nil {
		h.checks["mongo"] = func(ctx context.Context) error { return clients.Mongo.Ping(ctx, nil) }
	}
	if clients.Postgres != nil {
		h.checks["postgres"] = clients.Postgres.PingContext
	}
	if clients.Redis != nil {
		h.checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return h
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Error("Dependency health check failed",
				"dependency", name,
				"error", err,
			)
			deps[name] = "error"
			status, code = "unavailable", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	if err := httputil.WriteJSON(w, code, HealthResponse{Status: status, Dependencies: deps}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
