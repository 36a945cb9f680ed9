// Package httpapi exposes the relay's HTTP routes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ashleydavis/wunderlust-example/internal/relay/assistant"
	"github.com/ashleydavis/wunderlust-example/internal/relay/hub"
	"github.com/ashleydavis/wunderlust-example/internal/relay/policy"
	"github.com/ashleydavis/wunderlust-example/internal/relay/store"
)

// Handler holds the relay's dependencies.
type Handler struct {
	upstream assistant.API
	store    store.Store
	policy   *policy.Engine
	hub      *hub.Hub
}

// NewHandler creates a new handler.
func NewHandler(upstream assistant.API, st store.Store, policyEngine *policy.Engine, eventHub *hub.Hub) *Handler {
	return &Handler{
		upstream: upstream,
		store:    st,
		policy:   policyEngine,
		hub:      eventHub,
	}
}

// RegisterRoutes registers all relay routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.POST("/chat/new", h.NewConversation)
	e.POST("/chat/:conversation_id/message", h.SendMessage)
	e.POST("/chat/:conversation_id/audio", h.SendAudio)
	e.GET("/chat/:conversation_id/poll", h.Poll)
	e.POST("/chat/:conversation_id/tool-outputs", h.SubmitToolOutputs)
	e.GET("/chat/:conversation_id/events", h.Events)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ensureConversation records a conversation the relay has not seen yet. A
// client may resume a persisted conversation after the relay's database
// was recreated.
func (h *Handler) ensureConversation(ctx context.Context, conversationID string) error {
	conv, err := h.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv != nil {
		return nil
	}
	return h.store.CreateConversation(ctx, &store.Conversation{
		ConversationID: conversationID,
		CreatedAt:      time.Now(),
	})
}
