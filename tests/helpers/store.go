// Package helpers provides shared test fixtures.
package helpers

import (
	"testing"

	"github.com/ashleydavis/wunderlust-example/internal/relay/store"
)

// NewTestSQLiteStore creates an in-memory activity store that is closed
// when the test ends.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
