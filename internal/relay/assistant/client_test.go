package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateThreadSendsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("missing auth header, got %q", got)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Fatalf("missing beta header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "thread_abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "asst_1", 5*time.Second)
	id, err := c.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if id != "thread_abc" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestGetRunParsesRequiredActions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/thread_1/runs/run_1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": "run_1",
			"status": "requires_action",
			"required_action": {
				"submit_tool_outputs": {
					"tool_calls": [
						{"id": "call_1", "function": {"name": "update_map", "arguments": "{\"zoom\":12}"}}
					]
				}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "asst_1", 5*time.Second)
	run, err := c.GetRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != "requires_action" {
		t.Fatalf("unexpected status %q", run.Status)
	}
	if len(run.RequiredActions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(run.RequiredActions))
	}
	action := run.RequiredActions[0]
	if action.ToolCallID != "call_1" || action.Function != "update_map" || action.Arguments != `{"zoom":12}` {
		t.Fatalf("unexpected action %+v", action)
	}
}

func TestListMessagesFlattensContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": [
				{"id": "msg_2", "role": "assistant", "content": [{"type": "text", "text": {"value": "Here is Paris."}}]},
				{"id": "msg_1", "role": "user", "content": [{"type": "text", "text": {"value": "Show me Paris"}}]}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "asst_1", 5*time.Second)
	messages, err := c.ListMessages(context.Background(), "thread_1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content[0].Text != "Here is Paris." {
		t.Fatalf("unexpected content %+v", messages[0].Content)
	}
}

func TestUpstreamErrorMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "asst_1", 5*time.Second)
	_, err := c.CreateThread(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "create thread: upstream error (429): rate limit exceeded" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestTranscribeSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Fatalf("unexpected model %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "Show me Paris"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "asst_1", 5*time.Second)
	text, err := c.Transcribe(context.Background(), []byte{0x1a, 0x45})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Show me Paris" {
		t.Fatalf("unexpected transcript %q", text)
	}
}
