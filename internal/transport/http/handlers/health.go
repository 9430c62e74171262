package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadinessCheck probes one downstream dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	logger  *zap.Logger
	checks  []ReadinessCheck
	timeout time.Duration
}

// HealthOption configures the health handler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck registers a named dependency probe.
func WithReadinessCheck(name string, check func(ctx context.Context) error) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, ReadinessCheck{Name: name, Check: check})
		}
	}
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(log *zap.Logger, opts ...HealthOption) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &HealthHandler{logger: log, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status handles GET /healthz.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz. It runs every registered probe and reports
// 503 if any dependency is unavailable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))

	for _, probe := range h.checks {
		if err := probe.Check(ctx); err != nil {
			h.logger.Warn("readiness check failed",
				zap.String("dependency", probe.Name),
				zap.Error(err),
			)
			results[probe.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[probe.Name] = "ok"
	}

	body := gin.H{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
