package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Harsh-BH/sentinel-judge/internal/sandbox"
)

// HealthHandler answers unsigned liveness probes.
type HealthHandler struct {
	sb sandbox.Sandbox
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(sb sandbox.Sandbox) *HealthHandler {
	return &HealthHandler{sb: sb}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"judger_version": h.sb.Version(),
	})
}
