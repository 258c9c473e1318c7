package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SnapshotFunc returns the current encoded state of a session, if it is known.
type SnapshotFunc func(sessionID string) ([]byte, bool)

// RegisterRoutes exposes a read-only websocket per session. Viewers receive the
// latest snapshot on connect, then every broadcast for that session.
func RegisterRoutes(r fiber.Router, hub *Hub, snapshot SnapshotFunc) {
	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		client := hub.Register(sessionID)

		if snapshot != nil {
			if payload, ok := snapshot(sessionID); ok {
				if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
					hub.Unregister(client)
					return
				}
			}
		}

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// Closing Send ends the writer even when no further broadcast arrives.
		hub.Unregister(client)
		<-done
	}))
}
