// Package session persists the conversation handle between client runs.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps the conversation id in a single state file, the client-side
// equivalent of the browser's fixed local-storage key. Read at startup,
// written on first creation, removed on explicit reset.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conventional state file location under the user
// config directory, falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".wunderlust-conversation"
	}
	return filepath.Join(dir, "wunderlust", "conversation")
}

// Load returns the persisted conversation id, or empty if none is stored.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read conversation state: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save persists the conversation id.
func (s *Store) Save(conversationID string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(conversationID+"\n"), 0o644); err != nil {
		return fmt.Errorf("write conversation state: %w", err)
	}
	return nil
}

// Clear removes the persisted id. Clearing an already-empty store is not
// an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear conversation state: %w", err)
	}
	return nil
}
