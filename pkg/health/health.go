package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tallybot/tally-platform/pkg/mqtt"
	"github.com/tallybot/tally-platform/pkg/postgres"
	"github.com/tallybot/tally-platform/pkg/redis"
)

// dependencyTimeout bounds the detailed check so a hung backend cannot stall
// the probe
const dependencyTimeout = 2 * time.Second

// Checker serves the agent health endpoints
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger
}

// NewChecker creates a health checker over the agent's external dependencies
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services reports per-dependency state in the detailed check
type Services struct {
	MQTT     string `json:"mqtt"`
	Redis    string `json:"redis"`
	Postgres string `json:"postgres"`
}

// HandlerFunc returns the liveness handler. It answers 200 whenever the
// process is up, without touching dependencies, keeping the probe fast for
// the orchestrator.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns the dependency-checking handler: MQTT
// connection state, a Redis ping and a Postgres health check. Any
// unreachable dependency degrades the status and the endpoint answers 503.
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), dependencyTimeout)
		defer cancel()

		services := &Services{
			MQTT:     "disconnected",
			Redis:    "disconnected",
			Postgres: "disconnected",
		}

		if h.mqtt != nil && h.mqtt.IsConnected() {
			services.MQTT = "connected"
		}

		if h.redis != nil {
			if err := h.redis.Ping(ctx); err != nil {
				h.logger.Warn("Health check: Redis unreachable", "error", err)
			} else {
				services.Redis = "connected"
			}
		}

		if h.postgres != nil {
			status, err := h.postgres.HealthCheck(ctx)
			if err != nil {
				h.logger.Warn("Health check: Postgres check failed", "error", err)
			} else if status.Connected {
				services.Postgres = "connected"
			} else {
				h.logger.Warn("Health check: Postgres unreachable", "error", status.Error)
			}
		}

		status := "healthy"
		code := http.StatusOK
		if services.MQTT == "disconnected" || services.Redis == "disconnected" || services.Postgres == "disconnected" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		h.write(w, code, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

func (h *Checker) write(w http.ResponseWriter, code int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
