package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/agent"
	"github.com/voltr/surge/internal/conversation"
	"github.com/voltr/surge/internal/gate"
	"github.com/voltr/surge/internal/model"
	"github.com/voltr/surge/internal/tool"
)

type idleModel struct{}

func (idleModel) Send(ctx context.Context, snap conversation.Snapshot, decls []tool.Declaration) (*model.Response, error) {
	return &model.Response{FinalAnswer: "ok"}, nil
}

type yesConfirmer struct{}

func (yesConfirmer) Confirm(ctx context.Context, description string) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) (*Server, *conversation.State, *tool.Registry) {
	t.Helper()
	logger := zap.NewNop()
	registry := tool.NewRegistry()
	executor := tool.NewExecutor(registry, 0, logger)
	g := gate.New(yesConfirmer{}, time.Second, logger)
	state := conversation.NewState()
	orch := agent.New(registry, executor, g, idleModel{}, state, nil, agent.Config{}, logger)
	return NewServer("127.0.0.1:0", orch, g, registry, "regtest", logger), state, registry
}

func get(t *testing.T, srv *Server, path string, out any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, rec.Code)
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: decoding body: %v", path, err)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body map[string]string
	get(t, srv, "/healthz", &body)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestStatusReflectsConversation(t *testing.T) {
	srv, state, _ := newTestServer(t)
	state.Append(conversation.HumanTurn("hello"))
	state.AddTokens(77)

	var body struct {
		State      string `json:"state"`
		Network    string `json:"network"`
		Turns      int    `json:"turns"`
		TokensUsed int64  `json:"tokens_used"`
	}
	get(t, srv, "/v1/status", &body)

	if body.Network != "regtest" {
		t.Errorf("network = %s", body.Network)
	}
	if body.Turns != 1 || body.TokensUsed != 77 {
		t.Errorf("turns = %d tokens = %d, want 1 and 77", body.Turns, body.TokensUsed)
	}
	if body.State != string(agent.StateIdle) {
		t.Errorf("state = %s, want %s", body.State, agent.StateIdle)
	}
}

func TestToolsEndpointListsDeclarations(t *testing.T) {
	srv, _, registry := newTestServer(t)
	registry.MustRegister(tool.Declaration{Name: "get_node_info", Description: "node info"}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	registry.MustRegister(tool.Declaration{Name: "open_channel", Kind: tool.StateChanging}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	var body struct {
		Tools []tool.Declaration `json:"tools"`
	}
	get(t, srv, "/v1/tools", &body)

	if len(body.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(body.Tools))
	}
	if body.Tools[0].Name != "get_node_info" || body.Tools[1].Kind != tool.StateChanging {
		t.Errorf("tools = %+v", body.Tools)
	}
}

func TestConfirmationsEmptyByDefault(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body map[string]any
	get(t, srv, "/v1/confirmations", &body)
	if _, ok := body["pending"]; ok {
		t.Errorf("unexpected pending confirmation: %v", body)
	}
	if _, ok := body["last"]; ok {
		t.Errorf("unexpected last decision: %v", body)
	}
}
