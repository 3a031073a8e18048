package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/bmetallica/netcatalog/internal/wshub"
)

// WebSocketHandler upgrades /ws connections and attaches them to the hub
// so scan/discovery progress broadcasts reach the dashboard live.
type WebSocketHandler struct {
	hub *wshub.Hub
}

func NewWebSocketHandler(hub *wshub.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.handleConnection))
}

func (h *WebSocketHandler) handleConnection(c *websocket.Conn) {
	client := wshub.NewClient(h.hub, c)
	client.Start()
	client.Wait()
}
