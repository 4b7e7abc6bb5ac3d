package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"techno-etl-service/internal/middleware"
	"techno-etl-service/internal/service"
	"techno-etl-service/pkg/utils"

	"github.com/gofiber/fiber/v3"
)

// PriceSource serves the MDM price passthrough.
type PriceSource interface {
	GetPrices(ctx context.Context) (json.RawMessage, error)
}

type SyncHandler struct {
	syncService *service.StockSyncService
	prices      PriceSource
}

func NewSyncHandler(syncService *service.StockSyncService, prices PriceSource) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		prices:      prices,
	}
}

func (h *SyncHandler) RegisterRoutes(app *fiber.App, auth fiber.Handler) {
	syncGroup := app.Group("/protected/mdm", auth)

	syncGroup.Post("/sync", h.TriggerSync, middleware.PermissionRequired(middleware.TriggerSyncPermission))
	syncGroup.Get("/sync/progress", h.GetSyncProgress, middleware.PermissionRequired(middleware.TriggerSyncPermission))
	syncGroup.Get("/prices", h.GetPrices, middleware.PermissionRequired(middleware.ReadPricesPermission))
}

// TriggerSync runs the full stock synchronization pipeline. A second
// trigger while one is running is rejected with 409.
func (h *SyncHandler) TriggerSync(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	progress, err := h.syncService.SyncAll(ctx)
	if err != nil {
		switch service.KindOf(err) {
		case service.ErrBusy:
			return utils.ErrorResponse(c, fiber.StatusConflict, "sync already running")
		case service.ErrSourceSync:
			return c.Status(fiber.StatusBadGateway).JSON(utils.APIResponse{
				Success: false,
				Error:   err.Error(),
				Data:    progress,
			})
		default:
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "stock sync failed")
		}
	}
	return utils.SuccessResponse(c, fiber.StatusOK, progress.Message, progress)
}

// GetSyncProgress reports the state of the current or last run.
func (h *SyncHandler) GetSyncProgress(c fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "", h.syncService.Progress())
}

// GetPrices proxies the MDM price list verbatim.
func (h *SyncHandler) GetPrices(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	raw, err := h.prices.GetPrices(ctx)
	if err != nil {
		log.Printf("Error fetching MDM prices: %v", err)
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "failed to fetch prices from MDM")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}
