package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-console/internal/models"
)

type snapshotSource interface {
	Snapshot() models.EnrollmentSnapshot
}

// HealthHandler reports liveness and whether an enrollment snapshot exists.
type HealthHandler struct {
	source snapshotSource
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(source snapshotSource) *HealthHandler {
	return &HealthHandler{source: source}
}

// Health godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Description Ready once the first enrollment load has published a snapshot.
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	snap := h.source.Snapshot()
	body := gin.H{"version": snap.Version, "tier": snap.Tier, "degraded": snap.Degraded}
	if snap.Version == 0 {
		body["status"] = "loading"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}
