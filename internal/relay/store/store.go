// Package store persists the relay's activity log: conversations, user
// messages, run transitions and tool outcomes.
package store

import (
	"context"
	"time"
)

// Conversation is one durable thread proxied by the relay.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is one logged chat message.
type Message struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	RunID          string    `json:"run_id,omitempty"`
	Role           string    `json:"role"` // user, assistant
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Run is one logged remote computation.
type Run struct {
	RunID          string     `json:"run_id"`
	ConversationID string     `json:"conversation_id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// ToolCall is one logged tool invocation and its outcome.
type ToolCall struct {
	ToolCallID  string     `json:"tool_call_id"`
	RunID       string     `json:"run_id"`
	Function    string     `json:"function"`
	Arguments   string     `json:"arguments"`
	Output      string     `json:"output,omitempty"`
	Blocked     bool       `json:"blocked"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store defines the interface for activity persistence.
type Store interface {
	// Conversation operations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)

	// Message operations
	CreateMessage(ctx context.Context, message *Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	UpdateRunStatus(ctx context.Context, runID, status string) error
	UpdateRunCompleted(ctx context.Context, runID, status, errMsg string) error

	// Tool call operations
	CreateToolCall(ctx context.Context, toolCall *ToolCall) error
	UpdateToolCallOutput(ctx context.Context, toolCallID, output string) error
	GetToolCalls(ctx context.Context, runID string) ([]ToolCall, error)

	// Lifecycle
	Close() error
}
