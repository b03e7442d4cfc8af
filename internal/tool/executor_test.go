package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestExecutor(t *testing.T, maxPayload int) (*Registry, *Executor) {
	t.Helper()
	r := NewRegistry()
	return r, NewExecutor(r, maxPayload, zap.NewNop())
}

func TestExecuteUnknownTool(t *testing.T) {
	_, e := newTestExecutor(t, 0)

	res := e.Execute(context.Background(), CallRequest{ID: "r1", Name: "no_such_tool"})
	if !res.Failed() {
		t.Fatal("expected failure for unknown tool")
	}
	if res.Error.Kind != ErrorUnknownTool {
		t.Errorf("Kind = %s, want %s", res.Error.Kind, ErrorUnknownTool)
	}
	if res.RequestID != "r1" {
		t.Errorf("RequestID = %s, want r1", res.RequestID)
	}
}

func TestExecuteMissingRequiredArgument(t *testing.T) {
	r, e := newTestExecutor(t, 0)
	r.MustRegister(Declaration{
		Name:   "connect_peer",
		Params: []Param{{Name: "pubkey", Type: "string", Required: true}},
	}, noopHandler)

	res := e.Execute(context.Background(), CallRequest{ID: "r1", Name: "connect_peer"})
	if !res.Failed() || res.Error.Kind != ErrorMissingArgument {
		t.Fatalf("expected MissingArgument, got %+v", res.Error)
	}
}

func TestExecuteInvalidArgumentType(t *testing.T) {
	r, e := newTestExecutor(t, 0)
	r.MustRegister(Declaration{
		Name:   "open_channel",
		Params: []Param{{Name: "amount_sat", Type: "integer", Required: true}},
	}, noopHandler)

	cases := []struct {
		name string
		args map[string]any
		want ErrorKind
	}{
		{"string for integer", map[string]any{"amount_sat": "5000000"}, ErrorInvalidArgument},
		{"fractional float", map[string]any{"amount_sat": 1.5}, ErrorInvalidArgument},
	}
	for _, tc := range cases {
		res := e.Execute(context.Background(), CallRequest{ID: "r1", Name: "open_channel", Args: tc.args})
		if !res.Failed() || res.Error.Kind != tc.want {
			t.Errorf("%s: got %+v, want kind %s", tc.name, res.Error, tc.want)
		}
	}

	// Whole float64 values pass, since JSON decodes integers that way.
	res := e.Execute(context.Background(), CallRequest{ID: "r2", Name: "open_channel", Args: map[string]any{"amount_sat": float64(5000000)}})
	if res.Failed() {
		t.Fatalf("whole float64 rejected: %+v", res.Error)
	}
}

func TestExecuteHandlerErrorBecomesResult(t *testing.T) {
	r, e := newTestExecutor(t, 0)
	r.MustRegister(Declaration{Name: "get_node_info"}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, fmt.Errorf("lnd: connection refused")
	})

	res := e.Execute(context.Background(), CallRequest{ID: "r1", Name: "get_node_info"})
	if !res.Failed() || res.Error.Kind != ErrorExecution {
		t.Fatalf("expected ExecutionError, got %+v", res.Error)
	}
	if !strings.Contains(res.Error.Message, "connection refused") {
		t.Errorf("message %q does not carry handler error", res.Error.Message)
	}
}

func TestExecuteRecoversHandlerPanic(t *testing.T) {
	r, e := newTestExecutor(t, 0)
	r.MustRegister(Declaration{Name: "get_node_state"}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		panic("nil map write")
	})

	res := e.Execute(context.Background(), CallRequest{ID: "r1", Name: "get_node_state"})
	if !res.Failed() || res.Error.Kind != ErrorExecution {
		t.Fatalf("expected ExecutionError from panic, got %+v", res.Error)
	}
	if !strings.Contains(res.Error.Message, "panicked") {
		t.Errorf("message %q does not mention panic", res.Error.Message)
	}
}

func TestExecuteCapsPayloadSize(t *testing.T) {
	r, e := newTestExecutor(t, 200)
	r.MustRegister(Declaration{Name: "list_channels"}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"blob": strings.Repeat("x", 500)}, nil
	})

	res := e.Execute(context.Background(), CallRequest{ID: "r1", Name: "list_channels"})
	if !res.Failed() || res.Error.Kind != ErrorExecution {
		t.Fatalf("expected oversized payload failure, got %+v", res.Error)
	}
	if !strings.Contains(res.Error.Message, "too large") {
		t.Errorf("message %q does not explain the size cap", res.Error.Message)
	}
}

func TestExecuteSuccess(t *testing.T) {
	r, e := newTestExecutor(t, 0)
	r.MustRegister(Declaration{
		Name: "get_wallet_balance",
		Params: []Param{
			{Name: "verbose", Type: "boolean"},
		},
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"confirmed_sat": int64(21)}, nil
	})

	res := e.Execute(context.Background(), CallRequest{ID: "r9", Name: "get_wallet_balance", Args: map[string]any{"verbose": true}})
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Error)
	}
	if res.Payload["confirmed_sat"] != int64(21) {
		t.Errorf("payload = %+v", res.Payload)
	}
	if res.At.IsZero() {
		t.Error("result timestamp not set")
	}
}

func TestIntAndStrExtraction(t *testing.T) {
	args := map[string]any{
		"limit":  float64(20),
		"pubkey": "02abc",
	}
	if got := Int(args, "limit", 5); got != 20 {
		t.Errorf("Int(limit) = %d, want 20", got)
	}
	if got := Int(args, "missing", 5); got != 5 {
		t.Errorf("Int(missing) = %d, want fallback 5", got)
	}
	if got := Str(args, "pubkey", ""); got != "02abc" {
		t.Errorf("Str(pubkey) = %q", got)
	}
	if got := Str(args, "missing", "fallback"); got != "fallback" {
		t.Errorf("Str(missing) = %q", got)
	}
}
