package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type featureReader interface {
	GetFeatures(ctx context.Context, symbol, interval string, limit int) ([]*domain.FeatureRow, error)
}

// TriggerCollect godoc
// @Summary      Trigger one collector
// @Description  Runs the named collector immediately. Returns 409 when the same collector is already running.
// @Tags         collect
// @Produce      json
// @Param        collector  path  string  true  "Collector name (prices, candles, indicators, onchain, news, sentiment, derivatives, features)"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/collect/{collector} [post]
func (h *Handler) TriggerCollect(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-collect")
	defer span.End()

	name := strings.ToLower(strings.TrimSpace(c.Param("collector")))
	span.SetAttributes(attribute.String("collector", name))

	if !domain.IsKnownCollector(name) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "unknown collector: " + name,
			"collectors": domain.KnownCollectors,
		})
		return
	}

	err := h.registry.Trigger(ctx, name)
	switch {
	case errors.Is(err, service.ErrCollectorBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "collector already running", "collector": name})
	case errors.Is(err, service.ErrUnknownCollector):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "collector": name})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "collector": name})
	}
}

// TriggerBackfill godoc
// @Summary      Backfill recent data
// @Description  Re-fetches candles, recomputes indicators, and rebuilds features over the last N hours (clamped to 1..168). Returns 409 when a backfill is already running.
// @Tags         collect
// @Produce      json
// @Param        hours  path  int  true  "Window in hours (1-168)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/backfill/{hours} [post]
func (h *Handler) TriggerBackfill(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-backfill")
	defer span.End()

	hours, err := strconv.Atoi(c.Param("hours"))
	if err != nil || hours < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}
	span.SetAttributes(attribute.Int("hours", hours))

	started := time.Now()
	items, err := h.backfillService.Backfill(ctx, hours)
	if errors.Is(err, service.ErrBackfillBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "backfill already in progress"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":         err.Error(),
			"items_written": items,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"hours":            hours,
		"items_written":    items,
		"duration_seconds": time.Since(started).Seconds(),
	})
}

// GetFeatures godoc
// @Summary      Get ML feature rows
// @Description  Returns the flattened per-hour feature rows for a symbol, newest first
// @Tags         features
// @Produce      json
// @Param        symbol  path   string  true   "Asset symbol (e.g., BTC, ETH)"
// @Param        limit   query  int     false  "Number of rows (default 168, max 1000)"  default(168)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/features/{symbol} [get]
func (h *Handler) GetFeatures(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-features")
	defer span.End()

	symbol, ok := symbolParam(c, span)
	if !ok {
		return
	}

	limit := limitQuery(c, 168, 1000)

	rows, err := h.featureService.GetFeatures(ctx, symbol, "1h", limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": "1h",
		"features": rows,
	})
}
