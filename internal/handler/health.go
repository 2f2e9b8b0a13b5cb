package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Status godoc
// @Summary      Collector status
// @Description  Returns the latest run per collector, detected data gaps, and flagged anomalies
// @Tags         status
// @Produce      json
// @Success      200  {object}  service.Status
// @Router       /status [get]
func (h *Handler) Status(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.status")
	defer span.End()

	status, err := h.statusService.Status(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
