// Package protocol defines the wire types shared by the relay and the chat client.
package protocol

import "encoding/json"

// RunStatus represents the status of a run as reported by the upstream API.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusExpired        RunStatus = "expired"
	RunStatusCancelled      RunStatus = "cancelled"
)

// Terminal reports whether the status is final. Statuses only move forward,
// so a terminal status never reverts.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusExpired, RunStatusCancelled:
		return true
	}
	return false
}

// ContentPart is one part of a message body. Parts that are not text
// (images, files) carry an empty Text and are skipped by renderers.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is a single entry in the conversation log.
type Message struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"` // user, assistant
	Content []ContentPart `json:"content"`
}

// ToolInvocation is a remote request to execute a named function locally.
type ToolInvocation struct {
	ID            string          `json:"id"`
	Function      string          `json:"function"`
	Arguments     json.RawMessage `json:"arguments"`
	Blocked       bool            `json:"blocked,omitempty"`
	BlockedReason string          `json:"blocked_reason,omitempty"`
}

// ToolResult is the output produced for one invocation. Results are
// submitted as a complete batch, one per pending invocation.
type ToolResult struct {
	InvocationID string `json:"tool_call_id"`
	Output       string `json:"output"`
}

// NewConversationResponse is the response to POST /chat/new.
type NewConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessageRequest is the body of POST /chat/:conversation_id/message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageResponse is the response to the message and audio endpoints.
type SendMessageResponse struct {
	RunID string `json:"run_id"`
}

// PollResponse is the response to GET /chat/:conversation_id/poll.
// Messages are ordered as the upstream returns them (newest first); the
// client reverses so the most recent message renders last.
type PollResponse struct {
	Messages         []Message        `json:"messages"`
	RunID            string           `json:"run_id,omitempty"`
	Status           RunStatus        `json:"status,omitempty"`
	PendingToolCalls []ToolInvocation `json:"pending_tool_calls,omitempty"`
}

// ToolOutputsRequest is the body of POST /chat/:conversation_id/tool-outputs.
type ToolOutputsRequest struct {
	RunID   string       `json:"run_id"`
	Outputs []ToolResult `json:"outputs"`
}

// ToolOutputsResponse acknowledges a tool output submission.
type ToolOutputsResponse struct {
	Submitted int `json:"submitted"`
}

// ErrorResponse is the error body returned by every relay endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EventType identifies a run event broadcast to WebSocket subscribers.
type EventType string

const (
	EventTypeRunStarted    EventType = "run_started"
	EventTypeToolRequested EventType = "tool_requested"
	EventTypeToolOutputs   EventType = "tool_outputs"
	EventTypeRunCompleted  EventType = "run_completed"
	EventTypeRunFailed     EventType = "run_failed"
)

// Event is one frame on the conversation event feed.
type Event struct {
	Type           EventType       `json:"type"`
	Ts             int64           `json:"ts"`
	ConversationID string          `json:"conversation_id"`
	RunID          string          `json:"run_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}
