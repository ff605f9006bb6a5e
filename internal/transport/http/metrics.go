package httptransport

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes a registry in the Prometheus text format.
type MetricsHandler struct {
	handler gin.HandlerFunc
}

func NewMetricsHandler(registry *prometheus.Registry) *MetricsHandler {
	return &MetricsHandler{
		handler: gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})),
	}
}

// RegisterRoutes mounts GET /api/metrics.
// @Summary Prometheus metrics
// @Tags Observability
// @Produce plain
// @Success 200 {string} string "text exposition"
// @Router /metrics [get]
func (h *MetricsHandler) RegisterRoutes(router *Router) {
	router.API.GET("/metrics", h.handler)
}
