// Package gate implements the human confirmation checkpoint that guards
// state-changing tool execution.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/tool"
)

// Confirmer is the human-interaction collaborator the gate blocks on.
type Confirmer interface {
	// Confirm renders the description and blocks until the human answers
	// or ctx is done.
	Confirm(ctx context.Context, description string) (bool, error)
}

// DecisionState tracks a pending request through its two-state machine.
type DecisionState string

const (
	Pending DecisionState = "Pending"
	Granted DecisionState = "Granted"
	Denied  DecisionState = "Denied"
)

// Decision records the terminal outcome for one state-changing request.
type Decision struct {
	RequestID string        `json:"requestId"`
	State     DecisionState `json:"state"`
	At        time.Time     `json:"at"`
}

// DefaultTimeout bounds how long the gate waits for a human decision.
// Elapsing is an implicit denial; no action is ever taken silently.
const DefaultTimeout = 2 * time.Minute

// Gate intercepts state-changing tool calls and blocks until a human
// grants or denies them. At most one request is pending at a time.
type Gate struct {
	confirmer Confirmer
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending string // description of the in-flight request, if any
	last    *Decision
}

// New creates a Gate. timeout <= 0 selects DefaultTimeout.
func New(confirmer Confirmer, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{confirmer: confirmer, timeout: timeout, logger: logger}
}

// Clear passes read-only requests through untouched. For state-changing
// requests it renders the pending action and blocks for a decision; a
// denial or timeout yields a UserDenied failure result and the capability
// is never invoked. A nil return means the request may proceed.
func (g *Gate) Clear(ctx context.Context, decl tool.Declaration, req tool.CallRequest) *tool.Result {
	if decl.Kind != tool.StateChanging {
		return nil
	}

	description := Describe(req)

	// One pending state-changing request at a time.
	g.mu.Lock()
	g.pending = description
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.pending = ""
		g.mu.Unlock()
	}()

	g.logger.Info("awaiting confirmation",
		zap.String("tool", req.Name),
		zap.String("requestId", req.ID),
	)

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	granted, err := g.confirmer.Confirm(waitCtx, description)
	switch {
	case err != nil:
		reason := "timeout"
		if waitCtx.Err() == nil {
			reason = err.Error()
		}
		g.logger.Warn("confirmation not obtained",
			zap.String("tool", req.Name),
			zap.String("reason", reason),
		)
		g.record(req.ID, Denied)
		res := tool.Failure(req, tool.ErrorUserDenied, "%s", reason)
		return &res
	case !granted:
		g.logger.Info("execution denied by user", zap.String("tool", req.Name))
		g.record(req.ID, Denied)
		res := tool.Failure(req, tool.ErrorUserDenied, "user denied execution of tool %q", req.Name)
		return &res
	}

	g.logger.Info("execution granted",
		zap.String("tool", req.Name),
		zap.String("requestId", req.ID),
	)
	g.record(req.ID, Granted)
	return nil
}

// record stores the terminal decision for the most recent request.
// Terminal states are final; a request id is never decided twice.
func (g *Gate) record(requestID string, state DecisionState) {
	g.mu.Lock()
	g.last = &Decision{RequestID: requestID, State: state, At: time.Now()}
	g.mu.Unlock()
}

// LastDecision returns the most recent terminal decision, if any.
func (g *Gate) LastDecision() (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return Decision{}, false
	}
	return *g.last, true
}

// PendingDescription returns the description of the request currently
// awaiting a decision, if any.
func (g *Gate) PendingDescription() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != ""
}

// Describe renders a tool call as the text shown to the human before any
// state-changing effect.
func Describe(req tool.CallRequest) string {
	args := "{}"
	if len(req.Args) > 0 {
		if raw, err := json.MarshalIndent(req.Args, "", "  "); err == nil {
			args = string(raw)
		}
	}
	return fmt.Sprintf("Execute tool %q with arguments:\n%s", req.Name, args)
}
