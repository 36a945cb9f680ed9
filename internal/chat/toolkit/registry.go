// Package toolkit provides the registry of local functions the assistant
// may invoke during a run.
package toolkit

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc executes one tool invocation. Handlers are synchronous, must
// not perform remote calls, and are limited to local presentation state.
// The returned string becomes the tool output sent back to the run.
type HandlerFunc func(args json.RawMessage) (string, error)

// Registry stores tool handlers keyed by function name. Lookup is exact
// match; there is no fuzzy resolution or overloading.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for a function name.
func (r *Registry) Register(name string, handler HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("function name is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for %s", name)
	}
	r.handlers[name] = handler
	return nil
}

// MustRegister adds a handler or panics. Registration is static per client
// build, so a duplicate is a programming error.
func (r *Registry) MustRegister(name string, handler HandlerFunc) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for a function name, or false if none is
// registered.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
