// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/logging"
)

// Pinger reports whether a dependency is reachable. The store and the Redis
// bridge both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler manages the health check endpoints.
type Handler struct {
	db    Pinger
	redis Pinger
}

// NewHandler builds the handler. redis may be nil in single-instance mode.
func NewHandler(db, redis Pinger) *Handler {
	return &Handler{db: db, redis: redis}
}

// LivenessResponse is the liveness probe body.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe body.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness returns 200 whenever the process is alive. No dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness returns 200 only when every critical dependency answers, 503
// otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	checks["database"] = h.check(ctx, "database", h.db)
	if checks["database"] != "healthy" {
		allHealthy = false
	}

	checks["redis"] = h.check(ctx, "redis", h.redis)
	if checks["redis"] != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// check pings one dependency. A nil dependency (Redis in single-instance
// mode) counts as healthy.
func (h *Handler) check(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "healthy"
	}
	if err := p.Ping(ctx); err != nil {
		logging.Error(ctx, "health check failed", zap.String("dependency", name), zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
