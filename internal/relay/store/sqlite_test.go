package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateConversation(ctx, &Conversation{ConversationID: "thread_1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	conv, err := s.GetConversation(ctx, "thread_1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv == nil || conv.ConversationID != "thread_1" {
		t.Fatalf("unexpected conversation %+v", conv)
	}

	missing, err := s.GetConversation(ctx, "thread_2")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown conversation")
	}
}

func TestMessagesOrderedOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateConversation(ctx, &Conversation{ConversationID: "thread_1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	base := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		msg := &Message{
			MessageID:      "msg_" + content,
			ConversationID: "thread_1",
			Role:           "user",
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	messages, err := s.GetMessages(ctx, "thread_1", 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Content != "first" || messages[2].Content != "third" {
		t.Fatalf("wrong order: %+v", messages)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateConversation(ctx, &Conversation{ConversationID: "thread_1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if err := s.CreateRun(ctx, &Run{RunID: "run_1", ConversationID: "thread_1", Status: "queued", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := s.UpdateRunStatus(ctx, "run_1", "in_progress"); err != nil {
		t.Fatalf("UpdateRunStatus failed: %v", err)
	}
	run, err := s.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != "in_progress" || run.EndedAt != nil {
		t.Fatalf("unexpected run %+v", run)
	}

	if err := s.UpdateRunCompleted(ctx, "run_1", "failed", "upstream gave up"); err != nil {
		t.Fatalf("UpdateRunCompleted failed: %v", err)
	}
	run, err = s.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != "failed" || run.EndedAt == nil || run.Error != "upstream gave up" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestToolCallOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateConversation(ctx, &Conversation{ConversationID: "thread_1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if err := s.CreateRun(ctx, &Run{RunID: "run_1", ConversationID: "thread_1", Status: "queued", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	tc := &ToolCall{
		ToolCallID: "call_1",
		RunID:      "run_1",
		Function:   "update_map",
		Arguments:  `{"zoom":12}`,
		CreatedAt:  time.Now(),
	}
	if err := s.CreateToolCall(ctx, tc); err != nil {
		t.Fatalf("CreateToolCall failed: %v", err)
	}
	// The poll loop records the same pending call on every tick.
	if err := s.CreateToolCall(ctx, tc); err != nil {
		t.Fatalf("repeated CreateToolCall failed: %v", err)
	}

	if err := s.UpdateToolCallOutput(ctx, "call_1", "Map updated"); err != nil {
		t.Fatalf("UpdateToolCallOutput failed: %v", err)
	}

	calls, err := s.GetToolCalls(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetToolCalls failed: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].Output != "Map updated" || calls[0].CompletedAt == nil {
		t.Fatalf("unexpected tool call %+v", calls[0])
	}
}
