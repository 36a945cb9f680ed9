// Package chatlog maintains the rendered conversation history.
//
// The log is a pure projection of the latest poll snapshot: each update
// replaces the whole view, there is no diffing against prior state. The
// upstream returns messages newest first; the view keeps them oldest first
// so the most recent message is always last.
package chatlog

import (
	"strings"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
)

// Entry is one displayable line of the log.
type Entry struct {
	Role string
	Text string
}

// Log is the message log view.
type Log struct {
	entries []Entry
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Replace swaps the entire view for the given snapshot. Messages arrive
// newest first and are reversed here. Content parts that are not text are
// skipped rather than rendered.
func (l *Log) Replace(snapshot []protocol.Message) {
	entries := make([]Entry, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		msg := snapshot[i]
		var parts []string
		for _, part := range msg.Content {
			if part.Type != "text" || part.Text == "" {
				continue
			}
			parts = append(parts, part.Text)
		}
		if len(parts) == 0 {
			continue
		}
		entries = append(entries, Entry{Role: msg.Role, Text: strings.Join(parts, "\n")})
	}
	l.entries = entries
}

// Entries returns the current view, oldest first.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the most recent entry, or false if the log is empty.
func (l *Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Clear empties the view. Used on conversation reset.
func (l *Log) Clear() {
	l.entries = nil
}

// Len returns the number of displayable entries.
func (l *Log) Len() int {
	return len(l.entries)
}
