// Package model defines the language-model collaborator contract the
// orchestrator drives, and its any-llm-go backed implementation.
package model

import (
	"context"

	"github.com/voltr/surge/internal/conversation"
	"github.com/voltr/surge/internal/tool"
)

// Response is the model's answer to one conversation snapshot: either a
// final text answer or an ordered batch of tool calls, never both.
type Response struct {
	FinalAnswer string
	ToolCalls   []tool.CallRequest
	TokensUsed  int64
}

// IsFinal reports whether the response ends the loop.
func (r *Response) IsFinal() bool {
	return len(r.ToolCalls) == 0
}

// Collaborator sends the full conversation to a language model. Transport
// failures (unavailable, rate limited) surface as errors; the orchestrator
// retries them with backoff.
type Collaborator interface {
	Send(ctx context.Context, snap conversation.Snapshot, decls []tool.Declaration) (*Response, error)
}
