package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	assert.NoError(t, err)

	t.Run("Allow Map Update", func(t *testing.T) {
		decision, _, err := engine.Evaluate(ctx, "update_map", json.RawMessage(`{"longitude":2.35,"latitude":48.85,"zoom":12}`))
		assert.NoError(t, err)
		assert.Equal(t, "allow", decision)
	})

	t.Run("Allow Marker", func(t *testing.T) {
		decision, _, err := engine.Evaluate(ctx, "add_marker", json.RawMessage(`{"lat":48.85,"lng":2.35,"label":"Paris"}`))
		assert.NoError(t, err)
		assert.Equal(t, "allow", decision)
	})

	t.Run("Block Script Execution", func(t *testing.T) {
		decision, reason, err := engine.Evaluate(ctx, "execute_script", json.RawMessage(`{}`))
		assert.NoError(t, err)
		assert.Equal(t, "block", decision)
		assert.NotEmpty(t, reason)
	})

	t.Run("Block Absurd Zoom", func(t *testing.T) {
		decision, _, err := engine.Evaluate(ctx, "update_map", json.RawMessage(`{"longitude":2.35,"latitude":48.85,"zoom":40}`))
		assert.NoError(t, err)
		assert.Equal(t, "block", decision)
	})

	t.Run("Malformed Args Still Decided", func(t *testing.T) {
		decision, _, err := engine.Evaluate(ctx, "update_map", json.RawMessage(`not json`))
		assert.NoError(t, err)
		assert.Equal(t, "allow", decision)
	})
}
