package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/types"
)

// Build information, settable at build time with ldflags.
var (
	Version   = "dev"
	GoVersion = runtime.Version()
)

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	engine chronofact.Engine
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(engine chronofact.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "chronofact",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    Version,
		"go_version": GoVersion,
	})
}

// ReadinessCheck handles GET /ready. The store is probed with a cheap query.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	overall := "ready"
	storeStatus := "ok"
	if _, err := h.engine.Query(ctx, types.QuerySpec{Limit: 1}); err != nil {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
		storeStatus = err.Error()
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    gin.H{"store": storeStatus},
	})
}
