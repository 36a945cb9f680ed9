// Package relayclient provides the HTTP client for the chat relay backend.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
)

// Client is the typed HTTP client for the relay. Every call carries a
// context and returns a decoded response or an error describing the remote
// failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a relay client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateConversation calls POST /chat/new.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	var resp protocol.NewConversationResponse
	if err := c.postJSON(ctx, "/chat/new", nil, &resp); err != nil {
		return "", err
	}
	return resp.ConversationID, nil
}

// SendMessage calls POST /chat/:id/message. The relay adds the user message
// and starts a run in one request.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	req := protocol.SendMessageRequest{Text: text}
	var resp protocol.SendMessageResponse
	path := fmt.Sprintf("/chat/%s/message", url.PathEscape(conversationID))
	if err := c.postJSON(ctx, path, req, &resp); err != nil {
		return "", err
	}
	return resp.RunID, nil
}

// Poll calls GET /chat/:id/poll, fetching the message snapshot and run
// status in one request.
func (c *Client) Poll(ctx context.Context, conversationID, runID string) (*protocol.PollResponse, error) {
	path := fmt.Sprintf("/chat/%s/poll", url.PathEscape(conversationID))
	if runID != "" {
		path += "?run_id=" + url.QueryEscape(runID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}

	var resp protocol.PollResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitToolOutputs calls POST /chat/:id/tool-outputs with the full result
// batch for the run.
func (c *Client) SubmitToolOutputs(ctx context.Context, conversationID, runID string, results []protocol.ToolResult) error {
	req := protocol.ToolOutputsRequest{RunID: runID, Outputs: results}
	path := fmt.Sprintf("/chat/%s/tool-outputs", url.PathEscape(conversationID))
	var resp protocol.ToolOutputsResponse
	return c.postJSON(ctx, path, req, &resp)
}

// SendAudio calls POST /chat/:id/audio with the raw audio bytes. The relay
// transcribes the audio and performs the message and run-start step.
func (c *Client) SendAudio(ctx context.Context, conversationID string, audio []byte) (string, error) {
	path := fmt.Sprintf("/chat/%s/audio", url.PathEscape(conversationID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create audio request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	var resp protocol.SendMessageResponse
	if err := c.do(httpReq, &resp); err != nil {
		return "", err
	}
	return resp.RunID, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp protocol.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("relay error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("relay error: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
