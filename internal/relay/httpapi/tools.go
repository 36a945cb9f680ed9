package httpapi

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
	"github.com/ashleydavis/wunderlust-example/internal/relay/assistant"
)

// SubmitToolOutputs forwards the client's tool result batch to the waiting
// run. The batch must be complete; the upstream rejects partial sets.
func (h *Handler) SubmitToolOutputs(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	var req protocol.ToolOutputsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid request body"})
	}
	if req.RunID == "" {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "run_id is required"})
	}
	if len(req.Outputs) == 0 {
		return c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "outputs are required"})
	}

	ctx := c.Request().Context()

	outputs := make([]assistant.ToolOutput, 0, len(req.Outputs))
	for _, r := range req.Outputs {
		outputs = append(outputs, assistant.ToolOutput{ToolCallID: r.InvocationID, Output: r.Output})
	}

	if err := h.upstream.SubmitToolOutputs(ctx, conversationID, req.RunID, outputs); err != nil {
		log.Printf("ERROR submit tool outputs for run %s: %v", req.RunID, err)
		return c.JSON(http.StatusBadGateway, protocol.ErrorResponse{Error: "failed to submit tool outputs"})
	}

	for _, r := range req.Outputs {
		if err := h.store.UpdateToolCallOutput(ctx, r.InvocationID, r.Output); err != nil {
			log.Printf("WARN record tool output %s: %v", r.InvocationID, err)
		}
	}

	h.hub.Publish(protocol.EventTypeToolOutputs, conversationID, req.RunID, req.Outputs)

	return c.JSON(http.StatusOK, protocol.ToolOutputsResponse{Submitted: len(req.Outputs)})
}
