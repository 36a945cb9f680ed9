// Package coordinator drives the life cycle of one conversational turn:
// submit user input, start a remote run, poll for status, dispatch
// requested tool invocations, submit their outputs, and resolve when the
// run reaches a terminal status.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashleydavis/wunderlust-example/internal/chat/toolkit"
	"github.com/ashleydavis/wunderlust-example/internal/protocol"
)

// Transport is the remote boundary. Each call is a single request/response
// exchange with the relay backend.
type Transport interface {
	CreateConversation(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, conversationID, text string) (string, error)
	Poll(ctx context.Context, conversationID, runID string) (*protocol.PollResponse, error)
	SubmitToolOutputs(ctx context.Context, conversationID, runID string, results []protocol.ToolResult) error
	SendAudio(ctx context.Context, conversationID string, audio []byte) (string, error)
}

// SessionStore persists the conversation handle across client restarts.
// A nil store disables persistence.
type SessionStore interface {
	Load() (string, error)
	Save(conversationID string) error
	Clear() error
}

// DefaultSettleDelay is how long the coordinator holds the run slot after a
// completed status. The remote side may still be finalizing visible message
// content slightly after reporting completed.
const DefaultSettleDelay = 2 * time.Second

// Snapshot is a read-only view of the coordinator state. The presentation
// layer reads snapshots; it never mutates coordinator state directly.
type Snapshot struct {
	ConversationID string
	ActiveRunID    string
	LastStatus     protocol.RunStatus
}

// TurnUpdate is the result of one poll: the full message snapshot, the run
// status, and any pending tool invocations.
type TurnUpdate struct {
	Messages []protocol.Message
	Status   protocol.RunStatus
	Pending  []protocol.ToolInvocation
}

// Coordinator owns the state of one conversation and enforces the
// single-active-run invariant. Rejection, not locking, is the concurrency
// control: a turn submitted while a run is active gets a ConflictError.
type Coordinator struct {
	transport   Transport
	sessions    SessionStore
	settleDelay time.Duration

	mu             sync.Mutex
	conversationID string
	activeRunID    string
	lastStatus     protocol.RunStatus
	pending        []protocol.ToolInvocation
	submitting     bool
	settleTimer    *time.Timer
}

// New creates a coordinator. sessions may be nil to disable persistence.
func New(transport Transport, sessions SessionStore, settleDelay time.Duration) *Coordinator {
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Coordinator{
		transport:   transport,
		sessions:    sessions,
		settleDelay: settleDelay,
	}
}

// Snapshot returns the current coordinator state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ConversationID: c.conversationID,
		ActiveRunID:    c.activeRunID,
		LastStatus:     c.lastStatus,
	}
}

// StartConversation returns the conversation id, creating one remotely if
// neither memory nor the session store holds one. Idempotent: a held id is
// returned as-is. On transport failure the conversation remains unset so a
// later call retries.
func (c *Coordinator) StartConversation(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.conversationID != "" {
		id := c.conversationID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if c.sessions != nil {
		stored, err := c.sessions.Load()
		if err != nil {
			return "", fmt.Errorf("restore conversation: %w", err)
		}
		if stored != "" {
			c.mu.Lock()
			c.conversationID = stored
			c.mu.Unlock()
			return stored, nil
		}
	}

	id, err := c.transport.CreateConversation(ctx)
	if err != nil {
		return "", &TransportError{Op: "create conversation", Err: err}
	}
	if c.sessions != nil {
		if err := c.sessions.Save(id); err != nil {
			return "", fmt.Errorf("persist conversation: %w", err)
		}
	}

	c.mu.Lock()
	c.conversationID = id
	c.mu.Unlock()
	return id, nil
}

// SubmitTurn sends the user message and starts a remote run. Rejected with
// ConflictError while a run is active or another submit is in flight. The
// relay performs message-send and run-start as two sequential upstream
// calls; if the second fails the message is sent but no run exists, which
// surfaces here as a recoverable TransportError.
func (c *Coordinator) SubmitTurn(ctx context.Context, text string) (string, error) {
	conversationID, err := c.reserveRunSlot()
	if err != nil {
		return "", err
	}

	runID, err := c.transport.SendMessage(ctx, conversationID, text)
	if err != nil {
		c.releaseRunSlot()
		return "", &TransportError{Op: "submit turn", Err: err}
	}

	c.activateRun(runID)
	return runID, nil
}

// SubmitAudioTurn sends raw audio for server-side transcription and starts
// a run, under the same single-active-run rule as SubmitTurn.
func (c *Coordinator) SubmitAudioTurn(ctx context.Context, audio []byte) (string, error) {
	conversationID, err := c.reserveRunSlot()
	if err != nil {
		return "", err
	}

	runID, err := c.transport.SendAudio(ctx, conversationID, audio)
	if err != nil {
		c.releaseRunSlot()
		return "", &TransportError{Op: "submit audio turn", Err: err}
	}

	c.activateRun(runID)
	return runID, nil
}

func (c *Coordinator) reserveRunSlot() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID == "" {
		return "", ErrNoConversation
	}
	if c.activeRunID != "" {
		return "", &ConflictError{ActiveRunID: c.activeRunID}
	}
	if c.submitting {
		return "", &ConflictError{ActiveRunID: "pending"}
	}
	c.submitting = true
	return c.conversationID, nil
}

func (c *Coordinator) releaseRunSlot() {
	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
}

func (c *Coordinator) activateRun(runID string) {
	c.mu.Lock()
	c.submitting = false
	c.activeRunID = runID
	c.lastStatus = protocol.RunStatusQueued
	c.pending = nil
	c.mu.Unlock()
}

// Poll fetches the latest message snapshot and run status in one step. The
// message log is refreshed on every poll regardless of status. Pending
// invocations are returned but not dispatched here; dispatch is a separate
// explicit step so the caller controls execution context.
func (c *Coordinator) Poll(ctx context.Context) (*TurnUpdate, error) {
	c.mu.Lock()
	conversationID, runID := c.conversationID, c.activeRunID
	c.mu.Unlock()
	if conversationID == "" {
		return nil, ErrNoConversation
	}

	resp, err := c.transport.Poll(ctx, conversationID, runID)
	if err != nil {
		return nil, &TransportError{Op: "poll", Err: err}
	}

	c.mu.Lock()
	// A terminal status never reverts; anything else follows the remote.
	// The dispatch cycle may legitimately move requires_action back to
	// in_progress once tool outputs are submitted.
	if !c.lastStatus.Terminal() || resp.Status.Terminal() {
		c.lastStatus = resp.Status
		c.pending = resp.PendingToolCalls
	}
	status := c.lastStatus
	pending := c.pending
	c.mu.Unlock()

	return &TurnUpdate{
		Messages: resp.Messages,
		Status:   status,
		Pending:  pending,
	}, nil
}

// DispatchTools executes every pending invocation against the registry and
// returns exactly one result per invocation, matched by id. A handler
// failure or panic becomes a failed result rather than crashing the loop.
// An invocation naming an unregistered function aborts dispatch with
// UnknownFunctionError and leaves the run stalled.
func (c *Coordinator) DispatchTools(invocations []protocol.ToolInvocation, registry *toolkit.Registry) ([]protocol.ToolResult, error) {
	results := make([]protocol.ToolResult, 0, len(invocations))
	for _, inv := range invocations {
		if inv.Blocked {
			reason := inv.BlockedReason
			if reason == "" {
				reason = "blocked by policy"
			}
			results = append(results, protocol.ToolResult{
				InvocationID: inv.ID,
				Output:       "Tool call refused: " + reason,
			})
			continue
		}

		handler, ok := registry.Lookup(inv.Function)
		if !ok {
			return nil, &UnknownFunctionError{Function: inv.Function}
		}

		output, err := invokeHandler(handler, inv.Arguments)
		if err != nil {
			output = fmt.Sprintf("Tool call failed: %v", err)
		}
		results = append(results, protocol.ToolResult{InvocationID: inv.ID, Output: output})
	}
	return results, nil
}

func invokeHandler(handler toolkit.HandlerFunc, args []byte) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(args)
}

// SubmitToolResults submits the full result batch for the active run. The
// batch must cover every pending invocation; a partial set is a usage
// error, rejected before anything is sent.
func (c *Coordinator) SubmitToolResults(ctx context.Context, results []protocol.ToolResult) error {
	c.mu.Lock()
	conversationID, runID := c.conversationID, c.activeRunID
	pending := c.pending
	c.mu.Unlock()
	if runID == "" {
		return fmt.Errorf("no active run to submit tool results for")
	}

	byID := make(map[string]bool, len(results))
	for _, r := range results {
		byID[r.InvocationID] = true
	}
	var missing []string
	for _, inv := range pending {
		if !byID[inv.ID] {
			missing = append(missing, inv.ID)
		}
	}
	if len(missing) > 0 {
		return &PartialSubmissionError{Missing: missing}
	}

	if err := c.transport.SubmitToolOutputs(ctx, conversationID, runID, results); err != nil {
		return &TransportError{Op: "submit tool results", Err: err}
	}

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	return nil
}

// ClearRunIfTerminal releases the run slot once the status is terminal.
// Completed runs keep the slot for the settle delay, since the remote side
// may still be finalizing message content; failed, expired and cancelled
// runs clear immediately. Returns true if a clear happened or was
// scheduled.
func (c *Coordinator) ClearRunIfTerminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeRunID == "" || !c.lastStatus.Terminal() {
		return false
	}
	if c.lastStatus == protocol.RunStatusCompleted {
		if c.settleTimer == nil {
			c.settleTimer = time.AfterFunc(c.settleDelay, func() {
				c.mu.Lock()
				c.clearRunLocked()
				c.mu.Unlock()
			})
		}
		return true
	}
	c.clearRunLocked()
	return true
}

func (c *Coordinator) clearRunLocked() {
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
	c.activeRunID = ""
	c.pending = nil
	c.submitting = false
}

// AbandonRun discards the local run handle without telling the remote side.
// The remote run may continue invisibly; this is the only available
// approximation of cancellation.
func (c *Coordinator) AbandonRun() {
	c.mu.Lock()
	c.clearRunLocked()
	c.mu.Unlock()
}

// Reset discards the conversation handle and all run state, and clears the
// persisted id. The next StartConversation creates a fresh conversation.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	c.clearRunLocked()
	c.conversationID = ""
	c.lastStatus = ""
	c.mu.Unlock()

	if c.sessions != nil {
		return c.sessions.Clear()
	}
	return nil
}

// SettleDelay returns the configured settle delay.
func (c *Coordinator) SettleDelay() time.Duration {
	return c.settleDelay
}
