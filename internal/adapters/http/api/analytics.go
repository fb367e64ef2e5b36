package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okian/resumerank/internal/domain/ranking"
)

// AnalyticsDependencies defines what the analytics handler needs.
type AnalyticsDependencies interface {
	Analytics(ctx context.Context, ownerID string) (ranking.Summary, error)
}

// AnalyticsHandler serves the owner's score distribution and skill summary.
type AnalyticsHandler struct {
	deps AnalyticsDependencies
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

// HandleAnalytics handles GET /api/analytics.
func (h *AnalyticsHandler) HandleAnalytics(c *gin.Context) {
	ctx, owner := ownerContext(c)
	sum, err := h.deps.Analytics(ctx, owner)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sum)
}
