package handler

import (
	"coinharvest/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer          trace.Tracer
	priceService    *service.PriceService
	statusService   *service.StatusService
	backfillService *service.BackfillService
	featureService  featureReader
	registry        *service.Registry
}

func New(
	tracer trace.Tracer,
	priceService *service.PriceService,
	statusService *service.StatusService,
	backfillService *service.BackfillService,
	featureService featureReader,
	registry *service.Registry,
) *Handler {
	return &Handler{
		tracer:          tracer,
		priceService:    priceService,
		statusService:   statusService,
		backfillService: backfillService,
		featureService:  featureService,
		registry:        registry,
	}
}

// RegisterRoutes wires the HTTP surface. Read endpoints are open; the
// trigger endpoints require the API key when one is configured.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/api/prices", h.GetAllPrices)
	r.GET("/api/prices/:symbol", h.GetPrice)
	r.GET("/api/candles/:symbol", h.GetCandles)
	r.GET("/api/features/:symbol", h.GetFeatures)

	authed := r.Group("/", APIKeyAuth(apiKey))
	authed.POST("/api/collect/:collector", h.TriggerCollect)
	authed.POST("/api/backfill/:hours", h.TriggerBackfill)
}
