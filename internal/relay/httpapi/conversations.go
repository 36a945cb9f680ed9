package httpapi

import (
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
	"github.com/ashleydavis/wunderlust-example/internal/relay/store"
)

const maxAudioBytes = 25 << 20 // upstream transcription limit

// NewConversation creates a durable conversation thread upstream.
func (h *Handler) NewConversation(c echo.Context) error {
	ctx := c.Request().Context()

	threadID, err := h.upstream.CreateThread(ctx)
	if err != nil {
		log.Printf("ERROR create thread: %v", err)
		return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{Error: "failed to create conversation"})
	}

	if err := h.store.CreateConversation(ctx, &store.Conversation{
		ConversationID: threadID,
		CreatedAt:      time.Now(),
	}); err != nil {
		log.Printf("WARN record conversation %s: %v", threadID, err)
	}

	return c.JSON(http.StatusOK, protocol.NewConversationResponse{ConversationID: threadID})
}

// SendMessage appends a user message to the conversation and starts a run.
// These are two sequential upstream calls; if the run-start fails after
// the message was accepted, the client is told so and may retry with a new
// turn rather than resend the message.
func (h *Handler) SendMessage(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	var req protocol.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "text is required"})
	}

	return h.startTurn(c, conversationID, req.Text)
}

// SendAudio accepts raw audio bytes, transcribes them upstream, then
// performs the message and run-start step with the transcript.
func (h *Handler) SendAudio(c echo.Context) error {
	conversationID := c.Param("conversation_id")

	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAudioBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "failed to read audio body"})
	}
	if len(audio) == 0 {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "audio body is empty"})
	}

	text, err := h.upstream.Transcribe(c.Request().Context(), audio)
	if err != nil {
		log.Printf("ERROR transcribe for %s: %v", conversationID, err)
		return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{Error: "failed to transcribe audio"})
	}
	if strings.TrimSpace(text) == "" {
		return c.JSON(http.StatusUnprocessableEntity, protocol.ErrorResponse{Error: "no speech recognized"})
	}

	return h.startTurn(c, conversationID, text)
}

func (h *Handler) startTurn(c echo.Context, conversationID, text string) error {
	ctx := c.Request().Context()

	if err := h.ensureConversation(ctx, conversationID); err != nil {
		log.Printf("WARN ensure conversation %s: %v", conversationID, err)
	}

	if err := h.upstream.AddUserMessage(ctx, conversationID, text); err != nil {
		log.Printf("ERROR add message to %s: %v", conversationID, err)
		return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{Error: "failed to send message"})
	}

	if err := h.store.CreateMessage(ctx, &store.Message{
		MessageID:      "msg_" + uuid.New().String()[:8],
		ConversationID: conversationID,
		Role:           "user",
		Content:        text,
		CreatedAt:      time.Now(),
	}); err != nil {
		log.Printf("WARN record message for %s: %v", conversationID, err)
	}

	runID, err := h.upstream.CreateRun(ctx, conversationID)
	if err != nil {
		// The message is already on the thread. Not silently retried;
		// the client decides what to do with the half-finished turn.
		log.Printf("ERROR start run on %s: %v", conversationID, err)
		return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{
			Error: "message sent but run could not be started",
		})
	}

	if err := h.store.CreateRun(ctx, &store.Run{
		RunID:          runID,
		ConversationID: conversationID,
		Status:         string(protocol.RunStatusQueued),
		StartedAt:      time.Now(),
	}); err != nil {
		log.Printf("WARN record run %s: %v", runID, err)
	}

	h.hub.Publish(protocol.EventTypeRunStarted, conversationID, runID, nil)

	return c.JSON(http.StatusOK, protocol.SendMessageResponse{RunID: runID})
}
