// Package conversation holds the append-only turn history of one agent
// conversation and its cumulative token counter.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltr/surge/internal/tool"
)

// Role identifies what kind of entry a Turn is.
type Role string

const (
	RoleHuman       Role = "human"
	RoleModel       Role = "model"
	RoleToolCalls   Role = "tool-calls"
	RoleToolResults Role = "tool-results"
)

// Turn is one atomic entry in the conversation history. Turns are
// immutable once appended; exactly one of Text, Calls or Results is set,
// matching the Role.
type Turn struct {
	ID      string             `json:"id"`
	Role    Role               `json:"role"`
	Text    string             `json:"text,omitempty"`
	Calls   []tool.CallRequest `json:"calls,omitempty"`
	Results []tool.Result      `json:"results,omitempty"`
	At      time.Time          `json:"at"`
}

// HumanTurn builds a human message turn.
func HumanTurn(text string) Turn {
	return Turn{ID: uuid.New().String(), Role: RoleHuman, Text: text, At: time.Now()}
}

// ModelTurn builds a model message turn.
func ModelTurn(text string) Turn {
	return Turn{ID: uuid.New().String(), Role: RoleModel, Text: text, At: time.Now()}
}

// ToolCallTurn builds a turn holding one batch of model-issued tool calls.
func ToolCallTurn(calls []tool.CallRequest) Turn {
	return Turn{ID: uuid.New().String(), Role: RoleToolCalls, Calls: calls, At: time.Now()}
}

// ToolResultTurn builds a turn holding the results of one tool-call batch.
func ToolResultTurn(results []tool.Result) Turn {
	return Turn{ID: uuid.New().String(), Role: RoleToolResults, Results: results, At: time.Now()}
}
