package llmadapter

import (
	"context"
	"encoding/json"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements the function-call family: tool calls and their
// results travel as distinct message roles ("assistant" with ToolCalls,
// "tool" with ToolCallID) rather than as content blocks within one message.
type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAIAdapter wraps an already-configured OpenAI client.
func NewOpenAIAdapter(client *openai.Client) *OpenAIAdapter {
	return &OpenAIAdapter{client: client}
}

func (a *OpenAIAdapter) toNative(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, toOpenAIMessages(m)...)
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Schema, &schema)
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  msgs,
		Tools:     tools,
	}
}

// toOpenAIMessages expands a canonical Message into the OpenAI family's
// multiple-role-per-turn shape: an assistant message with ToolCalls, or one
// "tool" message per tool result.
func toOpenAIMessages(m Message) []openai.ChatCompletionMessage {
	switch m.Role {
	case RoleAssistant:
		msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
		for _, tu := range m.ToolUses {
			args, _ := json.Marshal(tu.Input)
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tu.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tu.Name,
					Arguments: string(args),
				},
			})
		}
		return []openai.ChatCompletionMessage{msg}
	case RoleTool:
		out := make([]openai.ChatCompletionMessage, 0, len(m.ToolResults))
		for _, tr := range m.ToolResults {
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    tr.Content,
				ToolCallID: tr.ToolUseID,
			})
		}
		return out
	default:
		return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: m.Text}}
	}
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) Response {
	out := Response{
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		out.TextBlocks = append(out.TextBlocks, choice.Message.Content)
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		out.ToolUseBlocks = append(out.ToolUseBlocks, ToolUse{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	return out
}

// CreateMessage implements Adapter.
func (a *OpenAIAdapter) CreateMessage(ctx context.Context, req Request) (Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.toNative(req))
	if err != nil {
		return Response{}, Classify("openai", req.Model, openAIStatus(err), err)
	}
	return fromOpenAIResponse(resp), nil
}

// StreamMessage implements Adapter.
func (a *OpenAIAdapter) StreamMessage(ctx context.Context, req Request) (<-chan Event, error) {
	native := a.toNative(req)
	native.Stream = true
	stream, err := a.client.CreateChatCompletionStream(ctx, native)
	if err != nil {
		return nil, Classify("openai", req.Model, openAIStatus(err), err)
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		defer stream.Close()

		var text string
		toolCalls := map[int]openai.ToolCall{}
		var usage TokenUsage

		for {
			chunk, err := stream.Recv()
			if err != nil {
				break
			}
			if chunk.Usage != nil {
				usage = TokenUsage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				text += delta.Content
				out <- Event{Kind: EventText, Text: delta.Content}
			}
			for _, tcDelta := range delta.ToolCalls {
				idx := 0
				if tcDelta.Index != nil {
					idx = *tcDelta.Index
				}
				existing := toolCalls[idx]
				if tcDelta.ID != "" {
					existing.ID = tcDelta.ID
				}
				existing.Type = openai.ToolTypeFunction
				existing.Function.Name += tcDelta.Function.Name
				existing.Function.Arguments += tcDelta.Function.Arguments
				toolCalls[idx] = existing
			}
		}

		resp := Response{Usage: usage}
		if text != "" {
			resp.TextBlocks = append(resp.TextBlocks, text)
		}
		for i := 0; i < len(toolCalls); i++ {
			tc, ok := toolCalls[i]
			if !ok {
				continue
			}
			var input map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
			resp.ToolUseBlocks = append(resp.ToolUseBlocks, ToolUse{ID: tc.ID, Name: tc.Function.Name, Input: input})
		}
		out <- Event{Kind: EventResponse, Response: &resp}
	}()

	return out, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}
