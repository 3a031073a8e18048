package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bmetallica/netcatalog/internal/scheduler"
	"github.com/bmetallica/netcatalog/internal/store"
)

// SettingsHandler exposes the validated settings batch read/write
// endpoint. Writes re-arm the scheduler so an interval change takes
// effect immediately instead of waiting out the old ticker.
type SettingsHandler struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
}

func NewSettingsHandler(st *store.Store, sched *scheduler.Scheduler) *SettingsHandler {
	return &SettingsHandler{store: st, scheduler: sched}
}

func (h *SettingsHandler) RegisterRoutes(api fiber.Router) {
	api.Get("/settings", h.GetSettings)
	api.Put("/settings", h.WriteSettings)
}

// GetSettings handles GET /api/v1/settings.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.store.GetSettings()
	if err != nil {
		return HandleError(c, 500, err, "failed to load settings")
	}
	return c.JSON(settings)
}

// WriteSettings handles PUT /api/v1/settings. The full batch is
// validated atomically by the store; an invalid batch leaves every
// existing value untouched.
func (h *SettingsHandler) WriteSettings(c *fiber.Ctx) error {
	var batch map[string]string
	if err := c.BodyParser(&batch); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := h.store.WriteSettings(batch); err != nil {
		return HandleError(c, 400, err, "invalid settings")
	}
	if h.scheduler != nil {
		h.scheduler.Reload()
	}
	return c.SendStatus(204)
}
