package llmadapter

import (
	"context"
	"encoding/json"
	"errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// AnthropicAdapter implements the native-tool-use family: the provider's
// message shape already carries first-class tool_use/tool_result content
// blocks, so translation is mostly a field-for-field remap.
type AnthropicAdapter struct {
	client *anthropic.Client
}

// NewAnthropicAdapter wraps an already-configured Anthropic client. Callers
// own credential/base-URL configuration; the adapter never reads secrets.
func NewAnthropicAdapter(client *anthropic.Client) *AnthropicAdapter {
	return &AnthropicAdapter{client: client}
}

func (a *AnthropicAdapter) toNative(req Request) anthropic.MessageNewParams {
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, toAnthropicMessage(m))
	}

	tools := make([]anthropic.ToolParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Schema, &schema)
		tools = append(tools, anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		})
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.F(req.Model),
		MaxTokens: anthropic.F(int64(req.MaxTokens)),
		System:    anthropic.F(req.System),
		Messages:  anthropic.F(msgs),
		Tools:     anthropic.F(tools),
	}
}

func toAnthropicMessage(m Message) anthropic.MessageParam {
	role := anthropic.MessageParamRoleUser
	if m.Role == RoleAssistant {
		role = anthropic.MessageParamRoleAssistant
	}

	var blocks []anthropic.ContentBlockParamUnion
	if m.Text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Text))
	}
	for _, tu := range m.ToolUses {
		blocks = append(blocks, anthropic.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
	}
	for _, tr := range m.ToolResults {
		blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
	}
	return anthropic.MessageParam{Role: anthropic.F(role), Content: anthropic.F(blocks)}
}

func fromAnthropicMessage(msg *anthropic.Message) Response {
	resp := Response{
		Usage: TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			resp.TextBlocks = append(resp.TextBlocks, b.Text)
		case anthropic.ToolUseBlock:
			var input map[string]any
			_ = json.Unmarshal(b.Input, &input)
			resp.ToolUseBlocks = append(resp.ToolUseBlocks, ToolUse{ID: b.ID, Name: b.Name, Input: input})
		}
	}
	return resp
}

// CreateMessage implements Adapter.
func (a *AnthropicAdapter) CreateMessage(ctx context.Context, req Request) (Response, error) {
	msg, err := a.client.Messages.New(ctx, a.toNative(req))
	if err != nil {
		return Response{}, Classify("anthropic", req.Model, statusFromErr(err), err)
	}
	return fromAnthropicMessage(msg), nil
}

// StreamMessage implements Adapter.
func (a *AnthropicAdapter) StreamMessage(ctx context.Context, req Request) (<-chan Event, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.toNative(req))
	out := make(chan Event, 8)

	go func() {
		defer close(out)
		acc := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				break
			}
			if delta, ok := event.AsUnion().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsUnion().(anthropic.TextDelta); ok && text.Text != "" {
					out <- Event{Kind: EventText, Text: text.Text}
				}
			}
		}
		resp := fromAnthropicMessage(&acc)
		out <- Event{Kind: EventResponse, Response: &resp}
	}()

	return out, nil
}

// statusFromErr best-effort extracts an HTTP status from an SDK error for
// Classify; the SDK's *anthropic.Error carries StatusCode when present.
func statusFromErr(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
