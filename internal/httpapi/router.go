// Package httpapi is the Fiber-based read/write façade over the store
// and scan engine: host/service listing, manual scan/discovery
// triggers, settings, credential writes, and live progress over
// WebSocket.
package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bmetallica/netcatalog/internal/scanengine"
	"github.com/bmetallica/netcatalog/internal/scheduler"
	"github.com/bmetallica/netcatalog/internal/secrets"
	"github.com/bmetallica/netcatalog/internal/store"
	"github.com/bmetallica/netcatalog/internal/wshub"
)

// New builds the Fiber app with every route group registered.
func New(st *store.Store, eng *scanengine.Engine, sched *scheduler.Scheduler, sec *secrets.Store, hub *wshub.Hub, allowedOrigins []string) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(allowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	NewWebSocketHandler(hub).RegisterRoutes(app)

	api := app.Group("/api/v1")
	NewHostsHandler(st).RegisterRoutes(api)
	NewScanHandler(eng).RegisterRoutes(api)
	NewSettingsHandler(st, sched).RegisterRoutes(api)
	NewCredentialsHandler(st, sec).RegisterRoutes(api)

	return app
}
