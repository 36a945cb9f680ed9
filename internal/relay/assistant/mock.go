package assistant

import (
	"context"
	"fmt"
	"sync"
)

// RunStep scripts one observed state of a mock run. Each GetRun call
// advances to the next step; the final step repeats. A step with a Reply
// appends an assistant message to the thread when reached.
type RunStep struct {
	Status  string
	Actions []RequiredAction
	Reply   string
}

// Mock is an in-memory API implementation for tests and offline use. Runs
// follow the configured Script.
type Mock struct {
	mu      sync.Mutex
	threads map[string][]ThreadMessage
	runs    map[string]*mockRun

	// Script is applied to each created run. Empty means a run that
	// completes on first poll with a canned reply.
	Script []RunStep

	// TranscribeText is returned by Transcribe.
	TranscribeText string

	// Err, when set, fails the named operations.
	Err         error
	FailOps     map[string]bool
	nextThread  int
	nextRun     int
	nextMessage int
}

type mockRun struct {
	threadID string
	steps    []RunStep
	pos      int
}

// NewMock creates an empty mock upstream.
func NewMock() *Mock {
	return &Mock{
		threads:        make(map[string][]ThreadMessage),
		runs:           make(map[string]*mockRun),
		TranscribeText: "transcribed audio",
		FailOps:        make(map[string]bool),
	}
}

// FailOn makes the named operation return Err.
func (m *Mock) FailOn(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err == nil {
		m.Err = fmt.Errorf("mock failure")
	}
	m.FailOps[op] = true
}

func (m *Mock) failing(op string) error {
	if m.FailOps[op] {
		return m.Err
	}
	return nil
}

func (m *Mock) CreateThread(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("CreateThread"); err != nil {
		return "", err
	}
	m.nextThread++
	id := fmt.Sprintf("thread_%d", m.nextThread)
	m.threads[id] = nil
	return id, nil
}

func (m *Mock) AddUserMessage(ctx context.Context, threadID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("AddUserMessage"); err != nil {
		return err
	}
	if _, ok := m.threads[threadID]; !ok {
		return fmt.Errorf("thread %s not found", threadID)
	}
	m.appendLocked(threadID, "user", text)
	return nil
}

func (m *Mock) CreateRun(ctx context.Context, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("CreateRun"); err != nil {
		return "", err
	}
	if _, ok := m.threads[threadID]; !ok {
		return "", fmt.Errorf("thread %s not found", threadID)
	}

	steps := m.Script
	if len(steps) == 0 {
		steps = []RunStep{{Status: "completed", Reply: "Hello from the assistant."}}
	}

	m.nextRun++
	id := fmt.Sprintf("run_%d", m.nextRun)
	m.runs[id] = &mockRun{threadID: threadID, steps: steps, pos: -1}
	return id, nil
}

func (m *Mock) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("GetRun"); err != nil {
		return nil, err
	}
	r, ok := m.runs[runID]
	if !ok || r.threadID != threadID {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	if r.pos < len(r.steps)-1 {
		r.pos++
		step := r.steps[r.pos]
		if step.Reply != "" {
			m.appendLocked(threadID, "assistant", step.Reply)
		}
	}
	step := r.steps[r.pos]
	return &Run{ID: runID, Status: step.Status, RequiredActions: step.Actions}, nil
}

func (m *Mock) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("ListMessages"); err != nil {
		return nil, err
	}
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}

	// Newest first, matching the real API.
	out := make([]ThreadMessage, len(msgs))
	for i, msg := range msgs {
		out[len(msgs)-1-i] = msg
	}
	return out, nil
}

func (m *Mock) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("SubmitToolOutputs"); err != nil {
		return err
	}
	r, ok := m.runs[runID]
	if !ok || r.threadID != threadID {
		return fmt.Errorf("run %s not found", runID)
	}
	if r.pos < 0 || r.steps[r.pos].Status != "requires_action" {
		return fmt.Errorf("run %s is not waiting on tool outputs", runID)
	}
	return nil
}

func (m *Mock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing("Transcribe"); err != nil {
		return "", err
	}
	return m.TranscribeText, nil
}

// Messages returns the raw thread contents, oldest first.
func (m *Mock) Messages(threadID string) []ThreadMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]ThreadMessage, len(m.threads[threadID]))
	copy(msgs, m.threads[threadID])
	return msgs
}

func (m *Mock) appendLocked(threadID, role, text string) {
	m.nextMessage++
	m.threads[threadID] = append(m.threads[threadID], ThreadMessage{
		ID:      fmt.Sprintf("msg_%d", m.nextMessage),
		Role:    role,
		Content: []MessageContent{{Type: "text", Text: text}},
	})
}

// Ensure Mock implements the API interface.
var _ API = (*Mock)(nil)
