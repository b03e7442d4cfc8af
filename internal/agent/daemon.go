package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/console"
)

// Daemon runs the orchestrator on a tick interval. Between ticks the
// operator can type a message, which becomes the next run's prompt, or
// "exit"/"quit" to stop.
type Daemon struct {
	orchestrator *Orchestrator
	console      *console.Console
	tickInterval time.Duration
	logger       *zap.Logger
}

// NewDaemon creates a tick daemon. tickInterval <= 0 defaults to 10
// minutes, the interval the agent was tuned for.
func NewDaemon(o *Orchestrator, c *console.Console, tickInterval time.Duration, logger *zap.Logger) *Daemon {
	if tickInterval <= 0 {
		tickInterval = 10 * time.Minute
	}
	return &Daemon{
		orchestrator: o,
		console:      c,
		tickInterval: tickInterval,
		logger:       logger,
	}
}

// Run loops until ctx is cancelled or the operator quits. Run failures
// (turn limit, model unavailable) are reported and the daemon waits for
// the next tick rather than exiting.
func (d *Daemon) Run(ctx context.Context) error {
	prompt := InitialPrompt

	for {
		d.console.System("--- tick start ---")

		outcome, err := d.orchestrator.Run(ctx, prompt)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			d.console.Error(err)
		case outcome.State == StateFailed:
			d.console.System("run failed: %s", outcome.Reason)
		}

		tokens := d.orchestrator.Conversation().TokensUsed()
		d.console.System("--- tick end ---")
		d.console.System("total tokens used so far: %d", tokens)
		d.console.System("waiting %s until next tick (type a message to interject)", d.tickInterval)

		line, ok, err := d.waitForTick(ctx)
		if err != nil {
			return err
		}
		if ok {
			if cmd := strings.ToLower(line); cmd == "exit" || cmd == "quit" {
				d.logger.Info("daemon stopped by operator")
				return nil
			}
			prompt = line
			continue
		}
		prompt = AssessmentPrompt
	}
}

// waitForTick blocks until the tick interval elapses, a line of operator
// input arrives, or ctx is done. ok is true when a line was read.
func (d *Daemon) waitForTick(ctx context.Context) (line string, ok bool, err error) {
	waitCtx, cancel := context.WithTimeout(ctx, d.tickInterval)
	defer cancel()

	line, err = d.console.ReadLine(waitCtx)
	switch {
	case err == nil:
		return line, true, nil
	case errors.Is(err, io.EOF):
		// Input closed (e.g. running under a supervisor): keep ticking.
		<-waitCtx.Done()
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return "", false, nil
	default:
		return "", false, ctx.Err()
	}
}
