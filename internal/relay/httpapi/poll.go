package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
	"github.com/ashleydavis/wunderlust-example/internal/relay/assistant"
	"github.com/ashleydavis/wunderlust-example/internal/relay/store"
)

// Poll returns the full message snapshot and, when a run id is given, the
// run's status and any pending tool invocations after policy evaluation.
// Messages are fetched before the run status so the snapshot reflects at
// least the state as of the status check.
func (h *Handler) Poll(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	runID := c.QueryParam("run_id")
	ctx := c.Request().Context()

	upstreamMessages, err := h.upstream.ListMessages(ctx, conversationID)
	if err != nil {
		log.Printf("ERROR list messages for %s: %v", conversationID, err)
		return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{Error: "failed to fetch messages"})
	}

	resp := protocol.PollResponse{
		Messages: convertMessages(upstreamMessages),
	}

	if runID != "" {
		run, err := h.upstream.GetRun(ctx, conversationID, runID)
		if err != nil {
			log.Printf("ERROR get run %s: %v", runID, err)
			return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{Error: "failed to fetch run status"})
		}

		resp.RunID = run.ID
		resp.Status = protocol.RunStatus(run.Status)
		resp.PendingToolCalls = h.evaluatePending(ctx, conversationID, runID, run.RequiredActions)

		h.recordRunStatus(ctx, conversationID, runID, resp.Status)
	}

	return c.JSON(http.StatusOK, resp)
}

func convertMessages(upstream []assistant.ThreadMessage) []protocol.Message {
	messages := make([]protocol.Message, 0, len(upstream))
	for _, m := range upstream {
		msg := protocol.Message{ID: m.ID, Role: m.Role}
		for _, part := range m.Content {
			msg.Content = append(msg.Content, protocol.ContentPart{Type: part.Type, Text: part.Text})
		}
		messages = append(messages, msg)
	}
	return messages
}

// evaluatePending runs each requested tool call through the policy engine
// and records it in the activity log. Blocked calls are still returned;
// the client answers them with a refusal output so the batch stays
// complete.
func (h *Handler) evaluatePending(ctx context.Context, conversationID, runID string, actions []assistant.RequiredAction) []protocol.ToolInvocation {
	if len(actions) == 0 {
		return nil
	}

	pending := make([]protocol.ToolInvocation, 0, len(actions))
	for _, action := range actions {
		inv := protocol.ToolInvocation{
			ID:        action.ToolCallID,
			Function:  action.Function,
			Arguments: json.RawMessage(action.Arguments),
		}

		decision, reason, err := h.policy.Evaluate(ctx, action.Function, inv.Arguments)
		if err != nil {
			log.Printf("ERROR policy evaluation for %s: %v", action.Function, err)
			decision, reason = "block", "policy evaluation failed"
		}
		if decision == "block" {
			inv.Blocked = true
			inv.BlockedReason = reason
		}

		if err := h.store.CreateToolCall(ctx, &store.ToolCall{
			ToolCallID: action.ToolCallID,
			RunID:      runID,
			Function:   action.Function,
			Arguments:  action.Arguments,
			Blocked:    inv.Blocked,
			CreatedAt:  time.Now(),
		}); err != nil {
			log.Printf("WARN record tool call %s: %v", action.ToolCallID, err)
		}

		pending = append(pending, inv)
	}

	h.hub.Publish(protocol.EventTypeToolRequested, conversationID, runID, pending)
	return pending
}

func (h *Handler) recordRunStatus(ctx context.Context, conversationID, runID string, status protocol.RunStatus) {
	// The settle-delay poll observes the terminal status a second time;
	// don't publish the terminal event twice.
	if stored, err := h.store.GetRun(ctx, runID); err == nil && stored != nil {
		if stored.Status == string(status) && status.Terminal() {
			return
		}
	}

	var err error
	switch {
	case status == protocol.RunStatusCompleted:
		err = h.store.UpdateRunCompleted(ctx, runID, string(status), "")
		h.hub.Publish(protocol.EventTypeRunCompleted, conversationID, runID, nil)
	case status.Terminal():
		err = h.store.UpdateRunCompleted(ctx, runID, string(status), "run ended with status "+string(status))
		h.hub.Publish(protocol.EventTypeRunFailed, conversationID, runID, map[string]string{"status": string(status)})
	default:
		err = h.store.UpdateRunStatus(ctx, runID, string(status))
	}
	if err != nil {
		log.Printf("WARN record run status %s=%s: %v", runID, status, err)
	}
}
