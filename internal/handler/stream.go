package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/storylinez/storylinez-go/internal/websocket"
)

// MountRunStream serves live run events at /ws/pipelines/:runId. Only the
// process executing runs has events to send, so the worker mounts it.
func MountRunStream(app *fiber.App, hub *ws.Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/pipelines/:runId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("runId"))
	}))
}
