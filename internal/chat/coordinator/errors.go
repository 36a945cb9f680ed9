package coordinator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoConversation is returned when a turn is submitted before a
// conversation has been started.
var ErrNoConversation = errors.New("no active conversation")

// TransportError wraps a network or remote failure on any relay call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConflictError is returned when a turn is submitted while a run is still
// active for the conversation.
type ConflictError struct {
	ActiveRunID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a run is already active (%s)", e.ActiveRunID)
}

// UnknownFunctionError is returned when the remote side requests a function
// that is not in the tool registry. The run is left stalled; this is fatal
// for the turn but not for the conversation.
type UnknownFunctionError struct {
	Function string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("assistant requested unknown function %q", e.Function)
}

// PartialSubmissionError is returned when tool results are submitted that
// do not cover every pending invocation.
type PartialSubmissionError struct {
	Missing []string
}

func (e *PartialSubmissionError) Error() string {
	return fmt.Sprintf("tool results missing for invocations: %s", strings.Join(e.Missing, ", "))
}

// RunFailedError is returned when a run ends in a non-completed terminal
// status.
type RunFailedError struct {
	RunID  string
	Status string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
}
