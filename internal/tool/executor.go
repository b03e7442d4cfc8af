package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxPayloadBytes caps the JSON size of a tool result payload fed
// back to the model. Oversized payloads are replaced by an error result so
// the model can retry with a narrower call.
const DefaultMaxPayloadBytes = 30000

// Executor resolves call requests against the registry, validates their
// arguments and dispatches them to the bound capability handler.
//
// Execute never returns a Go error: every failure mode is normalized into
// a Result failure so the orchestration loop can keep the conversation
// alive.
type Executor struct {
	registry        *Registry
	logger          *zap.Logger
	maxPayloadBytes int
}

// NewExecutor creates an Executor over the given registry.
// maxPayloadBytes <= 0 selects DefaultMaxPayloadBytes.
func NewExecutor(registry *Registry, maxPayloadBytes int, logger *zap.Logger) *Executor {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Executor{
		registry:        registry,
		logger:          logger,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// Execute runs one tool call request to a definite Result.
func (e *Executor) Execute(ctx context.Context, req CallRequest) (res Result) {
	decl, err := e.registry.Lookup(req.Name)
	if err != nil {
		e.logger.Warn("unknown tool requested", zap.String("tool", req.Name))
		return Failure(req, ErrorUnknownTool, "no tool registered under name %q", req.Name)
	}

	if bad := validateArgs(decl, req.Args); bad != nil {
		e.logger.Warn("tool argument validation failed",
			zap.String("tool", req.Name),
			zap.String("kind", string(bad.Kind)),
			zap.String("reason", bad.Message),
		)
		return Failure(req, bad.Kind, "%s", bad.Message)
	}

	handler := e.registry.handlerFor(req.Name)

	// A handler panic must not take down the loop.
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("tool handler panicked",
				zap.String("tool", req.Name),
				zap.Any("panic", p),
			)
			res = Failure(req, ErrorExecution, "tool %q panicked: %v", req.Name, p)
		}
	}()

	payload, err := handler(ctx, req.Args)
	if err != nil {
		e.logger.Warn("tool execution failed",
			zap.String("tool", req.Name),
			zap.Error(err),
		)
		return Failure(req, ErrorExecution, "%v", err)
	}

	if raw, merr := json.Marshal(payload); merr == nil && len(raw) > e.maxPayloadBytes {
		e.logger.Warn("tool payload too large",
			zap.String("tool", req.Name),
			zap.Int("bytes", len(raw)),
			zap.Int("max", e.maxPayloadBytes),
		)
		return Failure(req, ErrorExecution,
			"tool response payload is too large (%d bytes, maximum %d); try a more specific call",
			len(raw), e.maxPayloadBytes)
	}

	e.logger.Debug("tool executed",
		zap.String("tool", req.Name),
		zap.String("requestId", req.ID),
	)
	return Success(req, payload)
}

// validateArgs checks the argument map against the declaration's parameter
// schema. Validation is purely local; no I/O happens here.
func validateArgs(decl Declaration, args map[string]any) *CallError {
	for _, p := range decl.Params {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return &CallError{
					Kind:    ErrorMissingArgument,
					Message: fmt.Sprintf("tool %q requires argument %q", decl.Name, p.Name),
				}
			}
			continue
		}
		if !typeMatches(v, p.Type) {
			return &CallError{
				Kind:    ErrorInvalidArgument,
				Message: fmt.Sprintf("argument %q of tool %q must be of type %s, got %T", p.Name, decl.Name, p.Type, v),
			}
		}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a declared type.
// Integers arriving as whole float64 values are accepted, since that is
// how encoding/json decodes untyped numbers.
func typeMatches(v any, declared string) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		case json.Number:
			_, err := n.Int64()
			return err == nil
		}
		return false
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64, json.Number:
			return true
		}
		return false
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "":
		return true
	}
	return false
}

// Int extracts an integer argument, tolerating the float64 representation
// produced by JSON decoding. Handlers use this after validation.
func Int(args map[string]any, name string, fallback int64) int64 {
	switch n := args[name].(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	return fallback
}

// Str extracts a string argument, returning fallback when absent.
func Str(args map[string]any, name, fallback string) string {
	if s, ok := args[name].(string); ok {
		return s
	}
	return fallback
}
