package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
	"github.com/ashleydavis/wunderlust-example/internal/relay/assistant"
	"github.com/ashleydavis/wunderlust-example/internal/relay/httpapi"
	"github.com/ashleydavis/wunderlust-example/internal/relay/hub"
	"github.com/ashleydavis/wunderlust-example/internal/relay/policy"
	"github.com/ashleydavis/wunderlust-example/tests/helpers"
)

func newFixture(t *testing.T) (*httpapi.Handler, *assistant.Mock, *echo.Echo) {
	t.Helper()

	mock := assistant.NewMock()
	db := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	eventHub := hub.NewHub()
	go eventHub.Run()

	return httpapi.NewHandler(mock, db, engine, eventHub), mock, echo.New()
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestNewConversation(t *testing.T) {
	h, _, e := newFixture(t)

	req := jsonRequest(http.MethodPost, "/chat/new", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.NewConversation(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp protocol.NewConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "thread_1", resp.ConversationID)
}

func startConversation(t *testing.T, h *httpapi.Handler, e *echo.Echo) string {
	t.Helper()
	req := jsonRequest(http.MethodPost, "/chat/new", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.NewConversation(e.NewContext(req, rec)))
	var resp protocol.NewConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ConversationID
}

func sendMessage(t *testing.T, h *httpapi.Handler, e *echo.Echo, conversationID, text string) *httptest.ResponseRecorder {
	t.Helper()
	req := jsonRequest(http.MethodPost, "/chat/"+conversationID+"/message", protocol.SendMessageRequest{Text: text})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/chat/:conversation_id/message")
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.SendMessage(c))
	return rec
}

func poll(t *testing.T, h *httpapi.Handler, e *echo.Echo, conversationID, runID string) protocol.PollResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/chat/"+conversationID+"/poll?run_id="+runID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/chat/:conversation_id/poll")
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.Poll(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp protocol.PollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSendMessageStartsRun(t *testing.T) {
	h, mock, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	rec := sendMessage(t, h, e, conversationID, "Show me Paris")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp protocol.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run_1", resp.RunID)

	messages := mock.Messages(conversationID)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Show me Paris", messages[0].Content[0].Text)
}

func TestSendMessageEmptyText(t *testing.T) {
	h, _, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	req := jsonRequest(http.MethodPost, "/chat/"+conversationID+"/message", protocol.SendMessageRequest{Text: "   "})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageRunStartFailure(t *testing.T) {
	h, mock, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	mock.FailOn("CreateRun")
	rec := sendMessage(t, h, e, conversationID, "Show me Paris")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "message sent but run could not be started", resp.Error)

	// The message reached the thread; the half-finished turn is the
	// client's to deal with.
	assert.Len(t, mock.Messages(conversationID), 1)
}

func TestPollEvaluatesPolicyOnPending(t *testing.T) {
	h, mock, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	mock.Script = []assistant.RunStep{
		{Status: "in_progress"},
		{
			Status: "requires_action",
			Actions: []assistant.RequiredAction{
				{ToolCallID: "call_1", Function: "update_map", Arguments: `{"longitude":2.35,"latitude":48.85,"zoom":12}`},
				{ToolCallID: "call_2", Function: "execute_script", Arguments: `{"code":"alert(1)"}`},
			},
		},
		{Status: "completed", Reply: "Done."},
	}

	rec := sendMessage(t, h, e, conversationID, "Show me Paris")
	var started protocol.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	first := poll(t, h, e, conversationID, started.RunID)
	assert.Equal(t, protocol.RunStatusInProgress, first.Status)
	assert.Empty(t, first.PendingToolCalls)

	second := poll(t, h, e, conversationID, started.RunID)
	assert.Equal(t, protocol.RunStatusRequiresAction, second.Status)
	require.Len(t, second.PendingToolCalls, 2)

	byID := map[string]protocol.ToolInvocation{}
	for _, inv := range second.PendingToolCalls {
		byID[inv.ID] = inv
	}
	assert.False(t, byID["call_1"].Blocked)
	assert.True(t, byID["call_2"].Blocked)
	assert.NotEmpty(t, byID["call_2"].BlockedReason)
}

func TestPollRefreshesMessagesRegardlessOfStatus(t *testing.T) {
	h, mock, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	mock.Script = []assistant.RunStep{
		{Status: "completed", Reply: "Hello there."},
	}
	rec := sendMessage(t, h, e, conversationID, "hi")
	var started protocol.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	resp := poll(t, h, e, conversationID, started.RunID)
	assert.Equal(t, protocol.RunStatusCompleted, resp.Status)
	// Messages are fetched before the status check, so the reply that
	// lands together with "completed" only shows up on the next poll.
	// This is the window the client's settle delay covers.
	require.Len(t, resp.Messages, 1)

	resp = poll(t, h, e, conversationID, started.RunID)
	// Newest first on the wire; the client reverses.
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "assistant", resp.Messages[0].Role)
	assert.Equal(t, "user", resp.Messages[1].Role)
}

func TestSubmitToolOutputs(t *testing.T) {
	h, mock, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	mock.Script = []assistant.RunStep{
		{
			Status: "requires_action",
			Actions: []assistant.RequiredAction{
				{ToolCallID: "call_1", Function: "update_map", Arguments: `{"zoom":12}`},
			},
		},
		{Status: "completed", Reply: "Done."},
	}
	rec := sendMessage(t, h, e, conversationID, "Show me Paris")
	var started protocol.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	poll(t, h, e, conversationID, started.RunID)

	req := jsonRequest(http.MethodPost, "/chat/"+conversationID+"/tool-outputs", protocol.ToolOutputsRequest{
		RunID:   started.RunID,
		Outputs: []protocol.ToolResult{{InvocationID: "call_1", Output: "Map updated"}},
	})
	outRec := httptest.NewRecorder()
	c := e.NewContext(req, outRec)
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.SubmitToolOutputs(c))
	assert.Equal(t, http.StatusOK, outRec.Code, outRec.Body.String())

	var resp protocol.ToolOutputsResponse
	require.NoError(t, json.Unmarshal(outRec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Submitted)
}

func TestSubmitToolOutputsValidation(t *testing.T) {
	h, _, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	req := jsonRequest(http.MethodPost, "/chat/"+conversationID+"/tool-outputs", protocol.ToolOutputsRequest{RunID: "run_1"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.SubmitToolOutputs(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendAudioTranscribesAndStartsRun(t *testing.T) {
	h, mock, e := newFixture(t)
	conversationID := startConversation(t, h, e)
	mock.TranscribeText = "Show me Paris"

	req := httptest.NewRequest(http.MethodPost, "/chat/"+conversationID+"/audio", bytes.NewReader([]byte{0x1a, 0x45, 0xdf, 0xa3}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.SendAudio(c))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp protocol.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)

	messages := mock.Messages(conversationID)
	require.Len(t, messages, 1)
	assert.Equal(t, "Show me Paris", messages[0].Content[0].Text)
}

func TestSendAudioEmptyBody(t *testing.T) {
	h, _, e := newFixture(t)
	conversationID := startConversation(t, h, e)

	req := httptest.NewRequest(http.MethodPost, "/chat/"+conversationID+"/audio", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues(conversationID)
	require.NoError(t, h.SendAudio(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
