package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/pkg/metrics"
)

// AvailabilityProvider exposes the analysis service snapshot.
type AvailabilityProvider interface {
	Availability() model.Availability
}

// HealthHandler serves metrics, readiness and availability.
type HealthHandler struct {
	availability AvailabilityProvider
	metrics      http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(p AvailabilityProvider) *HealthHandler {
	return &HealthHandler{
		availability: p,
		metrics:      promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz with the Prometheus exposition of the custom registry.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// HandleReady handles GET /readyz. It answers 503 until the analysis service is online,
// since no batch can be accepted before that.
func (h *HealthHandler) HandleReady(c *gin.Context) {
	a := h.availability.Availability()
	status := http.StatusOK
	if !a.Online() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(c, status, formatAvailability(a))
}

// HandleAvailability handles GET /api/availability.
func (h *HealthHandler) HandleAvailability(c *gin.Context) {
	writeJSON(c, http.StatusOK, formatAvailability(h.availability.Availability()))
}
