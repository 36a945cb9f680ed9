package httpapi

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay sits behind the app's own origin; cross-origin map
	// widgets subscribe too.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events upgrades to a WebSocket and streams the conversation's run events
// until the client disconnects.
func (h *Handler) Events(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "conversation_id is required"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ERROR websocket upgrade: %v", err)
		return err
	}

	conn := h.hub.NewConnection(ws, conversationID)
	h.hub.Register(conn)
	go conn.WritePump()

	// Drain reads to detect disconnect; subscribers never send frames.
	go func() {
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return nil
}
