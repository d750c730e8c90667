package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadinessProbe reports whether a dependency the server needs is reachable.
type ReadinessProbe func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	probes map[string]ReadinessProbe
}

// NewHealthHandler creates a new HealthHandler. Probes are keyed by dependency name.
func NewHealthHandler(probes map[string]ReadinessProbe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	for name, probe := range h.probes {
		if err := probe(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": name + " not reachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
