package handlers

import (
	"context"
	"time"

	"techno-etl-service/internal/middleware"
	"techno-etl-service/internal/service"
	"techno-etl-service/pkg/utils"

	"github.com/gofiber/fiber/v3"
)

const defaultDashboardWindow = 30 * 24 * time.Hour

type DashboardHandler struct {
	dashboardService *service.DashboardService
}

func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) RegisterRoutes(app *fiber.App, auth fiber.Handler) {
	dashboardGroup := app.Group("/protected/dashboard", auth, middleware.PermissionRequired(middleware.ReadDashboardPermission))

	dashboardGroup.Get("/", h.GetDashboard)
	dashboardGroup.Post("/invalidate", h.InvalidateDashboardCache)
}

// GetDashboard returns aggregated dashboard data for the requested
// window. Defaults to the trailing 30 days when no range is given.
// Pass refresh=true to bypass the cache.
func (h *DashboardHandler) GetDashboard(c fiber.Ctx) error {
	end := time.Now()
	start := end.Add(-defaultDashboardWindow)

	if v := c.Query("start"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid start date, expected YYYY-MM-DD")
		}
		start = parsed
	}
	if v := c.Query("end"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid end date, expected YYYY-MM-DD")
		}
		// include the whole end day
		end = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "end date precedes start date")
	}

	token := c.Query("token")
	forceRefresh := c.Query("refresh") == "true"

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	data := h.dashboardService.GetDashboardData(ctx, start, end, token, forceRefresh)
	return utils.SuccessResponse(c, fiber.StatusOK, "", data)
}

// InvalidateDashboardCache drops every cached dashboard window.
func (h *DashboardHandler) InvalidateDashboardCache(c fiber.Ctx) error {
	h.dashboardService.InvalidateCache()
	return utils.SuccessResponse(c, fiber.StatusOK, "dashboard cache invalidated", nil)
}
