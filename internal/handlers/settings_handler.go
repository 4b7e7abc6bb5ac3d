package handlers

import (
	"context"
	"log"
	"time"

	"techno-etl-service/internal/middleware"
	"techno-etl-service/internal/service"
	"techno-etl-service/pkg/utils"

	"github.com/gofiber/fiber/v3"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
	effectsService  *service.EffectsService
	hostTheme       *service.HostThemeSource
	themeObserver   *service.ThemeObserver
	localeObserver  *service.LocaleObserver
	gridObserver    *service.GridObserver
}

func NewSettingsHandler(settingsService *service.SettingsService, effectsService *service.EffectsService, hostTheme *service.HostThemeSource, themeObserver *service.ThemeObserver, localeObserver *service.LocaleObserver, gridObserver *service.GridObserver) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		effectsService:  effectsService,
		hostTheme:       hostTheme,
		themeObserver:   themeObserver,
		localeObserver:  localeObserver,
		gridObserver:    gridObserver,
	}
}

func (h *SettingsHandler) RegisterRoutes(app *fiber.App, auth fiber.Handler) {
	settingsGroup := app.Group("/protected/settings", auth)

	settingsGroup.Get("/", h.GetSettings, middleware.PermissionRequired(middleware.ReadSettingsPermission))
	settingsGroup.Put("/", h.UpdateSettings, middleware.PermissionRequired(middleware.UpdateSettingsPermission))
	settingsGroup.Post("/save", h.SaveSettings, middleware.PermissionRequired(middleware.UpdateSettingsPermission))
	settingsGroup.Post("/reset", h.ResetSettings, middleware.PermissionRequired(middleware.UpdateSettingsPermission))
	settingsGroup.Get("/export", h.ExportSettings, middleware.PermissionRequired(middleware.ReadSettingsPermission))
	settingsGroup.Post("/import", h.ImportSettings, middleware.PermissionRequired(middleware.UpdateSettingsPermission))
	settingsGroup.Post("/load-remote", h.LoadRemoteSettings, middleware.PermissionRequired(middleware.ReadSettingsPermission))

	stateGroup := app.Group("/protected/state", auth)
	stateGroup.Get("/", h.GetAmbientState)
	stateGroup.Post("/host-theme", h.ReportHostTheme)
	stateGroup.Get("/theme", h.GetThemeView)
	stateGroup.Get("/locale", h.GetLocaleView)
	stateGroup.Get("/grid", h.GetGridView)
}

// GetSettings returns the current merged settings snapshot.
func (h *SettingsHandler) GetSettings(c fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "", h.settingsService.GetSnapshot())
}

type updateRequest struct {
	Section string         `json:"section"`
	Patch   map[string]any `json:"patch"`
}

// UpdateSettings applies a partial patch. When section is set the patch
// is scoped to that settings section.
func (h *SettingsHandler) UpdateSettings(c fiber.Ctx) error {
	var req updateRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Patch == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "patch is required")
	}

	snapshot := h.settingsService.Update(req.Patch, req.Section)
	return utils.SuccessResponse(c, fiber.StatusOK, "settings updated", snapshot)
}

// SaveSettings persists the current snapshot locally and, when a user
// is signed in, remotely. Pass force=true to write even when clean.
func (h *SettingsHandler) SaveSettings(c fiber.Ctx) error {
	force := c.Query("force") == "true"

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := h.settingsService.Save(ctx, force)
	if !result.Success {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, result.Message)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, result.Message, h.settingsService.GetSnapshot())
}

// ResetSettings restores factory defaults and clears the local store.
func (h *SettingsHandler) ResetSettings(c fiber.Ctx) error {
	snapshot := h.settingsService.Reset()
	return utils.SuccessResponse(c, fiber.StatusOK, "settings reset to defaults", snapshot)
}

// ExportSettings streams the snapshot as a downloadable JSON document.
func (h *SettingsHandler) ExportSettings(c fiber.Ctx) error {
	data, err := h.settingsService.Export()
	if err != nil {
		log.Printf("Error exporting settings: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to export settings")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="techno-etl-settings.json"`)
	return c.Send(data)
}

// ImportSettings replaces the snapshot with the uploaded document
// merged over defaults.
func (h *SettingsHandler) ImportSettings(c fiber.Ctx) error {
	snapshot, err := h.settingsService.Import(c.Body())
	if err != nil {
		if service.KindOf(err) == service.ErrParseFailure {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid settings document")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to import settings")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "settings imported", snapshot)
}

// LoadRemoteSettings pulls the signed-in user's remote settings and
// adopts them over the local snapshot.
func (h *SettingsHandler) LoadRemoteSettings(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snapshot, err := h.settingsService.LoadRemote(ctx)
	if err != nil {
		switch service.KindOf(err) {
		case service.ErrNotAuthenticated:
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "no user signed in")
		case service.ErrRemoteTransport:
			// local settings stay in effect; report them with the failure
			return utils.SuccessResponse(c, fiber.StatusOK, "remote unavailable, using local settings", snapshot)
		default:
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to load remote settings")
		}
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "remote settings loaded", snapshot)
}

// GetAmbientState reports the applied presentation state.
func (h *SettingsHandler) GetAmbientState(c fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "", h.effectsService.State())
}

type hostThemeRequest struct {
	Dark bool `json:"dark"`
}

// ReportHostTheme records the client host's dark-mode preference, used
// when theme mode is "system".
func (h *SettingsHandler) ReportHostTheme(c fiber.Ctx) error {
	var req hostThemeRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	h.hostTheme.SetDark(req.Dark)
	return utils.SuccessResponse(c, fiber.StatusOK, "host theme recorded", h.effectsService.State())
}

// GetThemeView returns the theme observer's current view.
func (h *SettingsHandler) GetThemeView(c fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "", h.themeObserver.Current())
}

// GetLocaleView returns the locale observer's current view.
func (h *SettingsHandler) GetLocaleView(c fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "", h.localeObserver.Current())
}

// GetGridView returns the grid observer's current view.
func (h *SettingsHandler) GetGridView(c fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "", h.gridObserver.Current())
}
