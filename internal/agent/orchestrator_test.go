package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/conversation"
	"github.com/voltr/surge/internal/gate"
	"github.com/voltr/surge/internal/model"
	"github.com/voltr/surge/internal/tool"
)

// scriptedModel answers Send calls from a fixed script. Running past the
// script's end fails the test.
type scriptedModel struct {
	t     *testing.T
	mu    sync.Mutex
	steps []func() (*model.Response, error)
	sends int
}

func (m *scriptedModel) Send(ctx context.Context, snap conversation.Snapshot, decls []tool.Declaration) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sends >= len(m.steps) {
		m.t.Fatalf("model consulted %d times, script has %d steps", m.sends+1, len(m.steps))
	}
	step := m.steps[m.sends]
	m.sends++
	return step()
}

func (m *scriptedModel) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

func final(text string, tokens int64) func() (*model.Response, error) {
	return func() (*model.Response, error) {
		return &model.Response{FinalAnswer: text, TokensUsed: tokens}, nil
	}
}

func callBatch(calls ...tool.CallRequest) func() (*model.Response, error) {
	return func() (*model.Response, error) {
		return &model.Response{ToolCalls: calls, TokensUsed: 10}, nil
	}
}

func modelDown() (*model.Response, error) {
	return nil, fmt.Errorf("model: 503 service unavailable")
}

// countingConfirmer answers with a fixed decision and records how often
// the gate consulted it.
type countingConfirmer struct {
	mu    sync.Mutex
	grant bool
	calls int
}

func (c *countingConfirmer) Confirm(ctx context.Context, description string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.grant, nil
}

func (c *countingConfirmer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type testAgent struct {
	orch      *Orchestrator
	state     *conversation.State
	registry  *tool.Registry
	confirmer *countingConfirmer
}

func newTestAgent(t *testing.T, m model.Collaborator, cfg Config, grant bool) *testAgent {
	t.Helper()
	logger := zap.NewNop()
	registry := tool.NewRegistry()
	executor := tool.NewExecutor(registry, 0, logger)
	confirmer := &countingConfirmer{grant: grant}
	g := gate.New(confirmer, time.Second, logger)
	state := conversation.NewState()
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return &testAgent{
		orch:      New(registry, executor, g, m, state, nil, cfg, logger),
		state:     state,
		registry:  registry,
		confirmer: confirmer,
	}
}

func TestRunEndsOnFinalAnswer(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		final("the node is healthy", 42),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, true)

	outcome, err := a.orch.Run(context.Background(), "assess the node")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateDone || outcome.FinalAnswer != "the node is healthy" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.ModelTurns != 1 {
		t.Errorf("ModelTurns = %d, want 1", outcome.ModelTurns)
	}
	if outcome.TokensUsed != 42 {
		t.Errorf("TokensUsed = %d, want 42", outcome.TokensUsed)
	}

	snap := a.state.Snapshot()
	wantRoles := []conversation.Role{conversation.RoleHuman, conversation.RoleModel}
	if len(snap.Turns) != len(wantRoles) {
		t.Fatalf("got %d turns, want %d", len(snap.Turns), len(wantRoles))
	}
	for i, want := range wantRoles {
		if snap.Turns[i].Role != want {
			t.Errorf("turn %d role = %s, want %s", i, snap.Turns[i].Role, want)
		}
	}
}

func TestToolResultsMatchRequestOrder(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		callBatch(
			tool.CallRequest{ID: "slow", Name: "slow_tool"},
			tool.CallRequest{ID: "fast", Name: "fast_tool"},
		),
		final("done", 1),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, true)

	// The slow tool finishes after the fast one; results must still land
	// in request order.
	a.registry.MustRegister(tool.Declaration{Name: "slow_tool"}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		time.Sleep(50 * time.Millisecond)
		return map[string]any{"order": "first"}, nil
	})
	a.registry.MustRegister(tool.Declaration{Name: "fast_tool"}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"order": "second"}, nil
	})

	if _, err := a.orch.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := a.state.Snapshot()
	var results []tool.Result
	for _, turn := range snap.Turns {
		if turn.Role == conversation.RoleToolResults {
			results = turn.Results
		}
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].RequestID != "slow" || results[1].RequestID != "fast" {
		t.Fatalf("results out of request order: %s, %s", results[0].RequestID, results[1].RequestID)
	}
}

func TestUnknownToolNeverReachesGate(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		callBatch(tool.CallRequest{ID: "c1", Name: "no_such_tool"}),
		final("understood", 1),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, true)

	outcome, err := a.orch.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateDone {
		t.Fatalf("outcome = %+v", outcome)
	}
	if a.confirmer.count() != 0 {
		t.Fatalf("gate consulted %d times for unknown tool", a.confirmer.count())
	}

	snap := a.state.Snapshot()
	res := snap.Turns[2].Results[0]
	if res.Error == nil || res.Error.Kind != tool.ErrorUnknownTool {
		t.Fatalf("result = %+v, want UnknownTool failure", res)
	}
}

func TestDeniedCallSkipsExecutionAndContinues(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		callBatch(tool.CallRequest{ID: "c1", Name: "open_channel", Args: map[string]any{"pubkey": "02abc"}}),
		final("acknowledged, standing down", 1),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, false)

	executed := 0
	a.registry.MustRegister(tool.Declaration{Name: "open_channel", Kind: tool.StateChanging}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		executed++
		return map[string]any{}, nil
	})

	outcome, err := a.orch.Run(context.Background(), "open a channel")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateDone {
		t.Fatalf("outcome = %+v", outcome)
	}
	if executed != 0 {
		t.Fatalf("denied tool executed %d times", executed)
	}
	if a.confirmer.count() != 1 {
		t.Fatalf("gate consulted %d times, want 1", a.confirmer.count())
	}

	snap := a.state.Snapshot()
	res := snap.Turns[2].Results[0]
	if res.Error == nil || res.Error.Kind != tool.ErrorUserDenied {
		t.Fatalf("result = %+v, want UserDenied failure", res)
	}
}

func TestTurnLimitExceededAfterExactBudget(t *testing.T) {
	loop := callBatch(tool.CallRequest{ID: "c", Name: "get_node_info"})
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){loop, loop, loop}}
	a := newTestAgent(t, m, Config{MaxTurns: 3}, true)

	a.registry.MustRegister(tool.Declaration{Name: "get_node_info"}, noop)

	outcome, err := a.orch.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateFailed || outcome.Reason != TurnLimitExceeded {
		t.Fatalf("outcome = %+v, want TurnLimitExceeded", outcome)
	}
	if m.sendCount() != 3 {
		t.Fatalf("model consulted %d times, want exactly 3", m.sendCount())
	}
	if outcome.ModelTurns != 3 {
		t.Errorf("ModelTurns = %d, want 3", outcome.ModelTurns)
	}
}

func TestModelUnavailableAfterRetries(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		modelDown, modelDown, modelDown,
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5, ModelRetries: 2}, true)

	outcome, err := a.orch.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run returned Go error for model failure: %v", err)
	}
	if outcome.State != StateFailed || outcome.Reason != ModelUnavailable {
		t.Fatalf("outcome = %+v, want ModelUnavailable", outcome)
	}
	if m.sendCount() != 3 {
		t.Fatalf("model attempted %d times, want 3 (1 + 2 retries)", m.sendCount())
	}
}

func TestModelRetryRecovers(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		modelDown,
		modelDown,
		final("recovered", 5),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5, ModelRetries: 3}, true)

	outcome, err := a.orch.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateDone || outcome.FinalAnswer != "recovered" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestReadOnlyBatchRunsConcurrently(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		callBatch(
			tool.CallRequest{ID: "a", Name: "probe_a"},
			tool.CallRequest{ID: "b", Name: "probe_b"},
			tool.CallRequest{ID: "c", Name: "probe_c"},
		),
		final("done", 1),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, true)

	// Each probe blocks until all three have started. Sequential
	// execution would deadlock until the timeout trips.
	var started sync.WaitGroup
	started.Add(3)
	barrier := func(ctx context.Context, args map[string]any) (map[string]any, error) {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return map[string]any{}, nil
		case <-time.After(2 * time.Second):
			return nil, fmt.Errorf("peers never started; batch ran sequentially")
		}
	}
	for _, name := range []string{"probe_a", "probe_b", "probe_c"} {
		a.registry.MustRegister(tool.Declaration{Name: name}, barrier)
	}

	outcome, err := a.orch.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateDone {
		t.Fatalf("outcome = %+v", outcome)
	}
	snap := a.state.Snapshot()
	for _, res := range snap.Turns[2].Results {
		if res.Failed() {
			t.Fatalf("probe failed: %+v", res.Error)
		}
	}
}

func TestStateChangingCallIsABarrier(t *testing.T) {
	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		callBatch(
			tool.CallRequest{ID: "r1", Name: "read_before"},
			tool.CallRequest{ID: "w1", Name: "set_fee_policy"},
			tool.CallRequest{ID: "r2", Name: "read_after"},
		),
		final("done", 1),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, true)

	var mu sync.Mutex
	var events []string
	record := func(name string) func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return func(ctx context.Context, args map[string]any) (map[string]any, error) {
			mu.Lock()
			events = append(events, name)
			mu.Unlock()
			return map[string]any{}, nil
		}
	}
	a.registry.MustRegister(tool.Declaration{Name: "read_before"}, record("read_before"))
	a.registry.MustRegister(tool.Declaration{Name: "set_fee_policy", Kind: tool.StateChanging}, record("set_fee_policy"))
	a.registry.MustRegister(tool.Declaration{Name: "read_after"}, record("read_after"))

	if _, err := a.orch.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"read_before", "set_fee_policy", "read_after"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if a.confirmer.count() != 1 {
		t.Fatalf("gate consulted %d times, want 1", a.confirmer.count())
	}
}

func TestCancellationSurfacesAfterBatchCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	m := &scriptedModel{t: t, steps: []func() (*model.Response, error){
		callBatch(tool.CallRequest{ID: "c1", Name: "slow_probe"}),
	}}
	a := newTestAgent(t, m, Config{MaxTurns: 5}, true)

	a.registry.MustRegister(tool.Declaration{Name: "slow_probe"}, func(hctx context.Context, args map[string]any) (map[string]any, error) {
		cancel()
		return map[string]any{"observed": true}, nil
	})

	_, err := a.orch.Run(ctx, "go")
	if err != context.Canceled {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	// The in-flight batch still produced a definite, recorded result.
	snap := a.state.Snapshot()
	last := snap.Turns[len(snap.Turns)-1]
	if last.Role != conversation.RoleToolResults {
		t.Fatalf("last turn role = %s, want %s", last.Role, conversation.RoleToolResults)
	}
	if last.Results[0].Failed() {
		t.Fatalf("result = %+v, want success recorded before cancellation", last.Results[0])
	}
}

func noop(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}
