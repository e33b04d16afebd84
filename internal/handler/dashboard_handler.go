package handler

import (
	"context"
	"net/http"

	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DashboardSource produces the admin dashboard payload.
type DashboardSource interface {
	GetDashboardData(ctx context.Context) (*service.DashboardData, error)
}

// DashboardHandler handles admin dashboard endpoints.
type DashboardHandler struct {
	dashboard DashboardSource
	log       zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard DashboardSource, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		log:       log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard
// Returns record counts, per-phase submission stats and recent activity.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.dashboard.GetDashboardData(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load dashboard")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, data)
}
