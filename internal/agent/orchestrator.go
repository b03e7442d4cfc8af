// Package agent implements the orchestration loop that drives the model,
// routes tool calls through the confirmation gate and executor, and owns
// the conversation state.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voltr/surge/internal/conversation"
	"github.com/voltr/surge/internal/gate"
	"github.com/voltr/surge/internal/model"
	"github.com/voltr/surge/internal/tool"
)

// RunState is the orchestrator's loop state.
type RunState string

const (
	StateIdle                RunState = "Idle"
	StateAwaitingModel       RunState = "AwaitingModel"
	StateProcessingToolCalls RunState = "ProcessingToolCalls"
	StateDone                RunState = "Done"
	StateFailed              RunState = "Failed"
)

// FailureReason identifies why a run ended in StateFailed.
type FailureReason string

const (
	TurnLimitExceeded FailureReason = "TurnLimitExceeded"
	ModelUnavailable  FailureReason = "ModelUnavailable"
)

// Outcome is the terminal report of one run. The loop never terminates
// silently: either FinalAnswer or Reason is populated.
type Outcome struct {
	State       RunState      `json:"state"`
	FinalAnswer string        `json:"finalAnswer,omitempty"`
	Reason      FailureReason `json:"reason,omitempty"`
	ModelTurns  int           `json:"modelTurns"`
	TokensUsed  int64         `json:"tokensUsed"`
}

// Display receives turns for rendering. Fire-and-forget; must not block.
type Display interface {
	Display(turn conversation.Turn)
}

// Config bounds the orchestrator's loop.
type Config struct {
	// MaxTurns caps the number of model exchanges per run.
	MaxTurns int
	// ModelRetries is how many additional attempts a failed model call
	// gets before the run fails with ModelUnavailable.
	ModelRetries int
	// RetryBackoff is the initial backoff between model retries; it
	// doubles per attempt.
	RetryBackoff time.Duration
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxTurns:     16,
		ModelRetries: 3,
		RetryBackoff: 2 * time.Second,
	}
}

// Orchestrator drives the agent loop. It is the single writer of the
// conversation state; every other component either reads snapshots or
// returns values for the orchestrator to append.
type Orchestrator struct {
	registry *tool.Registry
	executor *tool.Executor
	gate     *gate.Gate
	model    model.Collaborator
	state    *conversation.State
	display  Display
	logger   *zap.Logger
	cfg      Config

	mu       sync.Mutex
	runState RunState
}

// New creates an Orchestrator over fully built collaborators.
func New(
	registry *tool.Registry,
	executor *tool.Executor,
	g *gate.Gate,
	m model.Collaborator,
	state *conversation.State,
	display Display,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	if cfg.ModelRetries < 0 {
		cfg.ModelRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Orchestrator{
		registry: registry,
		executor: executor,
		gate:     g,
		model:    m,
		state:    state,
		display:  display,
		logger:   logger,
		cfg:      cfg,
		runState: StateIdle,
	}
}

// State returns the current loop state for observers.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runState
}

// Conversation exposes the owned state for snapshot readers.
func (o *Orchestrator) Conversation() *conversation.State {
	return o.state
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.runState = s
	o.mu.Unlock()
}

// Run executes one conversation run starting from prompt and reports its
// terminal outcome. Only context cancellation surfaces as a Go error;
// every other failure mode is part of the Outcome.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (*Outcome, error) {
	o.append(conversation.HumanTurn(prompt))

	for exchange := 0; exchange < o.cfg.MaxTurns; exchange++ {
		o.setState(StateAwaitingModel)

		resp, err := o.sendWithRetry(ctx)
		if err != nil {
			if ctx.Err() != nil {
				o.setState(StateFailed)
				return nil, ctx.Err()
			}
			o.logger.Error("model unavailable after retries", zap.Error(err))
			o.setState(StateFailed)
			return o.outcome(StateFailed, "", ModelUnavailable, exchange+1), nil
		}

		o.state.AddTokens(resp.TokensUsed)

		if resp.IsFinal() {
			o.append(conversation.ModelTurn(resp.FinalAnswer))
			o.setState(StateDone)
			o.logger.Info("run complete",
				zap.Int("modelTurns", exchange+1),
				zap.Int64("tokensUsed", o.state.TokensUsed()),
			)
			return o.outcome(StateDone, resp.FinalAnswer, "", exchange+1), nil
		}

		o.append(conversation.ToolCallTurn(resp.ToolCalls))

		o.setState(StateProcessingToolCalls)
		results := o.processBatch(ctx, resp.ToolCalls)
		o.append(conversation.ToolResultTurn(results))

		// Results are definite before cancellation is honored, so a
		// state-changing dispatch is never abandoned half-applied.
		if ctx.Err() != nil {
			o.setState(StateFailed)
			return nil, ctx.Err()
		}
	}

	o.logger.Warn("turn limit exceeded", zap.Int("maxTurns", o.cfg.MaxTurns))
	o.setState(StateFailed)
	return o.outcome(StateFailed, "", TurnLimitExceeded, o.cfg.MaxTurns), nil
}

func (o *Orchestrator) outcome(state RunState, answer string, reason FailureReason, turns int) *Outcome {
	return &Outcome{
		State:       state,
		FinalAnswer: answer,
		Reason:      reason,
		ModelTurns:  turns,
		TokensUsed:  o.state.TokensUsed(),
	}
}

// append writes a turn to the conversation and mirrors it to the display.
func (o *Orchestrator) append(turn conversation.Turn) {
	if err := o.state.Append(turn); err != nil {
		// Persistence trouble must not lose the in-memory turn.
		o.logger.Error("turn log append failed", zap.Error(err))
	}
	if o.display != nil {
		o.display.Display(turn)
	}
}

// sendWithRetry sends the conversation snapshot to the model, retrying
// transport failures with exponential backoff.
func (o *Orchestrator) sendWithRetry(ctx context.Context) (*model.Response, error) {
	decls := o.registry.Declarations()
	backoff := o.cfg.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= o.cfg.ModelRetries; attempt++ {
		if attempt > 0 {
			o.logger.Warn("retrying model call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		resp, err := o.model.Send(ctx, o.state.Snapshot(), decls)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("model unavailable after %d attempts: %w", o.cfg.ModelRetries+1, lastErr)
}

// processBatch executes one batch of tool calls. Results land at the index
// of their originating request, so conversation order always matches the
// order the model emitted regardless of completion order.
//
// Consecutive read-only calls run concurrently. A state-changing call is a
// barrier: it runs alone, after the gate clears it, and never overlaps
// another call or a pending confirmation.
func (o *Orchestrator) processBatch(ctx context.Context, calls []tool.CallRequest) []tool.Result {
	results := make([]tool.Result, len(calls))

	i := 0
	for i < len(calls) {
		if o.isStateChanging(calls[i].Name) {
			results[i] = o.runGated(ctx, calls[i])
			i++
			continue
		}

		// Collect the run of read-only (or unknown) calls starting here.
		j := i + 1
		for j < len(calls) && !o.isStateChanging(calls[j].Name) {
			j++
		}

		if j-i == 1 {
			results[i] = o.executor.Execute(ctx, calls[i])
		} else {
			g, gctx := errgroup.WithContext(ctx)
			for k := i; k < j; k++ {
				g.Go(func() error {
					results[k] = o.executor.Execute(gctx, calls[k])
					return nil
				})
			}
			// Executors never return errors; Wait only synchronizes.
			_ = g.Wait()
		}
		i = j
	}
	return results
}

// isStateChanging reports whether name resolves to a state-changing tool.
// Unknown names are treated as read-only; the executor converts them to
// UnknownTool failures without touching the gate.
func (o *Orchestrator) isStateChanging(name string) bool {
	decl, err := o.registry.Lookup(name)
	return err == nil && decl.Kind == tool.StateChanging
}

// runGated routes one state-changing call through the confirmation gate
// and, only when granted, the executor.
func (o *Orchestrator) runGated(ctx context.Context, call tool.CallRequest) tool.Result {
	decl, err := o.registry.Lookup(call.Name)
	if err != nil {
		return o.executor.Execute(ctx, call)
	}
	if denied := o.gate.Clear(ctx, decl, call); denied != nil {
		return *denied
	}
	return o.executor.Execute(ctx, call)
}
