// Package client provides a Go client library for the Surge API server.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client communicates with the Surge API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Surge API client pointing at the given base URL
// (e.g. "http://localhost:7227").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doJSON executes a GET, checks for a 2xx status, and JSON-decodes the
// response body into target (when target is non-nil).
func (c *Client) doJSON(path string, target interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if target != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// Healthz checks whether the API server is healthy.
func (c *Client) Healthz() error {
	return c.doJSON("/healthz", nil)
}

// Status is the agent's summary view.
type Status struct {
	State         string `json:"state"`
	Network       string `json:"network"`
	Turns         int    `json:"turns"`
	TokensUsed    int64  `json:"tokens_used"`
	UptimeSeconds int    `json:"uptime_seconds"`
}

// GetStatus returns the running agent's state summary.
func (c *Client) GetStatus() (*Status, error) {
	var out Status
	if err := c.doJSON("/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToolCall is one requested tool invocation inside a turn.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	RequestID string         `json:"requestId"`
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     *ToolError     `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

// ToolError classifies a failed tool call.
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Turn is one entry in the agent's transcript.
type Turn struct {
	ID      string       `json:"id"`
	Role    string       `json:"role"`
	Text    string       `json:"text,omitempty"`
	Calls   []ToolCall   `json:"calls,omitempty"`
	Results []ToolResult `json:"results,omitempty"`
	At      time.Time    `json:"at"`
}

// Conversation is the full transcript plus the token counter.
type Conversation struct {
	Turns      []Turn `json:"turns"`
	TokensUsed int64  `json:"tokens_used"`
}

// GetConversation returns the agent's transcript.
func (c *Client) GetConversation() (*Conversation, error) {
	var out Conversation
	if err := c.doJSON("/v1/conversation", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToolDeclaration describes one registered tool.
type ToolDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Params      []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
		Required    bool   `json:"required,omitempty"`
	} `json:"params,omitempty"`
}

// ListTools returns the declarations of every registered tool.
func (c *Client) ListTools() ([]ToolDeclaration, error) {
	var out struct {
		Tools []ToolDeclaration `json:"tools"`
	}
	if err := c.doJSON("/v1/tools", &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// Decision is a recorded confirmation outcome.
type Decision struct {
	RequestID string    `json:"requestId"`
	State     string    `json:"state"`
	At        time.Time `json:"at"`
}

// Confirmations is the gate's externally visible state.
type Confirmations struct {
	Pending string    `json:"pending,omitempty"`
	Last    *Decision `json:"last,omitempty"`
}

// GetConfirmations returns the pending confirmation, if any, and the
// most recent decision.
func (c *Client) GetConfirmations() (*Confirmations, error) {
	var out Confirmations
	if err := c.doJSON("/v1/confirmations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
