package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	"github.com/mozilla-ai/any-llm-go/providers/openai"
	"go.uber.org/zap"

	"github.com/voltr/surge/internal/conversation"
	"github.com/voltr/surge/internal/tool"
)

// AnyLLM is a Collaborator backed by github.com/mozilla-ai/any-llm-go,
// giving access to Gemini, OpenAI, Anthropic and local Ollama models
// behind one completion interface. API keys come from the provider's
// usual environment variable when no option overrides them.
type AnyLLM struct {
	backend      anyllm.Provider
	model        string
	systemPrompt string
	logger       *zap.Logger
}

// NewAnyLLM creates a collaborator for the given provider name
// ("gemini", "openai", "anthropic" or "ollama") and model.
func NewAnyLLM(providerName, model, systemPrompt string, logger *zap.Logger, opts ...anyllm.Option) (*AnyLLM, error) {
	if model == "" {
		return nil, fmt.Errorf("model name must not be empty")
	}

	var backend anyllm.Provider
	var err error
	switch strings.ToLower(providerName) {
	case "gemini":
		backend, err = gemini.New(opts...)
	case "openai":
		backend, err = openai.New(opts...)
	case "anthropic":
		backend, err = anthropic.New(opts...)
	case "ollama":
		backend, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported model provider %q; supported: gemini, openai, anthropic, ollama", providerName)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %q backend: %w", providerName, err)
	}

	return &AnyLLM{
		backend:      backend,
		model:        model,
		systemPrompt: systemPrompt,
		logger:       logger,
	}, nil
}

// Send implements Collaborator.
func (a *AnyLLM) Send(ctx context.Context, snap conversation.Snapshot, decls []tool.Declaration) (*Response, error) {
	params := anyllm.CompletionParams{
		Model:    a.model,
		Messages: a.buildMessages(snap),
		Tools:    buildTools(decls),
	}

	resp, err := a.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	choice := resp.Choices[0]
	out := &Response{FinalAnswer: choice.Message.ContentString()}
	if resp.Usage != nil {
		out.TokensUsed = int64(resp.Usage.TotalTokens)
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				a.logger.Warn("model emitted malformed tool arguments",
					zap.String("tool", tc.Function.Name),
					zap.Error(err),
				)
			}
		}
		id := tc.ID
		if id == "" {
			id = uuid.New().String()
		}
		out.ToolCalls = append(out.ToolCalls, tool.CallRequest{
			ID:   id,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	// A response carrying tool calls is not a final answer even when the
	// model also produced text alongside them.
	if len(out.ToolCalls) > 0 {
		out.FinalAnswer = ""
	}

	a.logger.Debug("model responded",
		zap.Int("toolCalls", len(out.ToolCalls)),
		zap.Int64("tokens", out.TokensUsed),
	)
	return out, nil
}

// buildMessages converts the conversation history into chat messages.
func (a *AnyLLM) buildMessages(snap conversation.Snapshot) []anyllm.Message {
	messages := make([]anyllm.Message, 0, len(snap.Turns)+1)
	if a.systemPrompt != "" {
		messages = append(messages, anyllm.Message{
			Role:    "system",
			Content: a.systemPrompt,
		})
	}

	for _, turn := range snap.Turns {
		switch turn.Role {
		case conversation.RoleHuman:
			messages = append(messages, anyllm.Message{
				Role:    "user",
				Content: turn.Text,
			})

		case conversation.RoleModel:
			messages = append(messages, anyllm.Message{
				Role:    "assistant",
				Content: turn.Text,
			})

		case conversation.RoleToolCalls:
			msg := anyllm.Message{Role: "assistant"}
			for _, call := range turn.Calls {
				args, _ := json.Marshal(call.Args)
				msg.ToolCalls = append(msg.ToolCalls, anyllm.ToolCall{
					ID:   call.ID,
					Type: "function",
					Function: anyllm.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, msg)

		case conversation.RoleToolResults:
			for _, res := range turn.Results {
				messages = append(messages, anyllm.Message{
					Role:       "tool",
					Name:       res.Name,
					ToolCallID: res.RequestID,
					Content:    resultContent(res),
				})
			}
		}
	}
	return messages
}

// resultContent renders a tool result as the JSON the model consumes.
func resultContent(res tool.Result) string {
	var body any
	if res.Failed() {
		body = map[string]any{"error": res.Error.Message, "kind": string(res.Error.Kind)}
	} else {
		body = res.Payload
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf(`{"error":"unencodable tool result: %v"}`, err)
	}
	return string(raw)
}

// buildTools converts registry declarations into function tools, keeping
// registration order.
func buildTools(decls []tool.Declaration) []anyllm.Tool {
	tools := make([]anyllm.Tool, 0, len(decls))
	for _, d := range decls {
		properties := map[string]any{}
		var required []string
		for _, p := range d.Params {
			properties[p.Name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		schema := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		tools = append(tools, anyllm.Tool{
			Type: "function",
			Function: anyllm.Function{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schema,
			},
		})
	}
	return tools
}
