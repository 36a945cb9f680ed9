// Package assistant provides the client for the upstream Assistants API.
package assistant

import "context"

// Run is the upstream view of one run.
type Run struct {
	ID              string
	Status          string
	RequiredActions []RequiredAction
}

// RequiredAction is one tool call the upstream run is waiting on.
type RequiredAction struct {
	ToolCallID string
	Function   string
	Arguments  string
}

// ThreadMessage is one message in an upstream thread, newest first as the
// API returns them.
type ThreadMessage struct {
	ID      string
	Role    string
	Content []MessageContent
}

// MessageContent is one content part of a thread message.
type MessageContent struct {
	Type string
	Text string
}

// ToolOutput is one tool result returned to the upstream run.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// API defines the upstream operations the relay forwards to.
type API interface {
	// CreateThread creates a durable conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// AddUserMessage appends a user message to a thread.
	AddUserMessage(ctx context.Context, threadID, text string) error

	// CreateRun starts a run on a thread.
	CreateRun(ctx context.Context, threadID string) (string, error)

	// GetRun fetches the current status of a run, including any required
	// tool actions.
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)

	// ListMessages fetches the full message snapshot of a thread, newest
	// first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)

	// SubmitToolOutputs returns tool results to a run waiting on them.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error

	// Transcribe converts an audio clip to text.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Ensure Client implements the API interface.
var _ API = (*Client)(nil)
