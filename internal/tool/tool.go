// Package tool implements the declaration registry and the executor that
// turns model-issued tool calls into validated, normalized results.
package tool

import (
	"fmt"
	"time"
)

// Kind classifies the side effect of a tool.
type Kind string

const (
	// ReadOnly tools observe external state and may run concurrently.
	ReadOnly Kind = "read-only"
	// StateChanging tools have an externally observable, hard-to-reverse
	// effect and must pass the confirmation gate before execution.
	StateChanging Kind = "state-changing"
)

// ErrorKind identifies why a tool call failed. Failures of any kind are
// values fed back to the model, never faults that abort the agent loop.
type ErrorKind string

const (
	ErrorUnknownTool     ErrorKind = "UnknownTool"
	ErrorMissingArgument ErrorKind = "MissingArgument"
	ErrorInvalidArgument ErrorKind = "InvalidArgument"
	ErrorExecution       ErrorKind = "ExecutionError"
	ErrorUserDenied      ErrorKind = "UserDenied"
)

// Param describes a single declared tool parameter.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Declaration is the immutable description of a callable capability.
// Declarations are registered once at startup and never modified.
type Declaration struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Params      []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Kind        Kind    `json:"kind" yaml:"kind"`
}

// CallRequest is a model-issued request to invoke a registered tool.
type CallRequest struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	TurnID string         `json:"turnId,omitempty"`
}

// Result is the normalized outcome of one CallRequest. Exactly one of
// Payload (success) or Error (failure) is set. Results are immutable once
// created.
type Result struct {
	RequestID string         `json:"requestId"`
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     *CallError     `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

// CallError carries the failure taxonomy entry and a human-readable message.
type CallError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool {
	return r.Error != nil
}

// Success builds a successful Result for the given request.
func Success(req CallRequest, payload map[string]any) Result {
	return Result{
		RequestID: req.ID,
		Name:      req.Name,
		Payload:   payload,
		At:        time.Now(),
	}
}

// Failure builds a failed Result for the given request.
func Failure(req CallRequest, kind ErrorKind, format string, args ...any) Result {
	return Result{
		RequestID: req.ID,
		Name:      req.Name,
		Error:     &CallError{Kind: kind, Message: fmt.Sprintf(format, args...)},
		At:        time.Now(),
	}
}
