package llmadapter

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockAdapter is an alternate native-tool-use backend for Claude models
// served through AWS Bedrock's Converse API, which mirrors Anthropic's own
// tool_use/tool_result content-block shape closely enough to share this
// package's Family classification.
type BedrockAdapter struct {
	client *bedrockruntime.Client
}

// NewBedrockAdapter wraps an already-configured Bedrock runtime client.
func NewBedrockAdapter(client *bedrockruntime.Client) *BedrockAdapter {
	return &BedrockAdapter{client: client}
}

func (a *BedrockAdapter) toConverse(req Request) (*bedrockruntime.ConverseInput, error) {
	msgs := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg, err := toBedrockMessage(m)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}

	toolConfig := &types.ToolConfiguration{}
	for _, t := range req.Tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Schema, &schema)
		toolConfig.Tools = append(toolConfig.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        &t.Name,
				Description: &t.Description,
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}

	maxTokens := int32(req.MaxTokens)
	input := &bedrockruntime.ConverseInput{
		ModelId:  &req.Model,
		Messages: msgs,
		System:   []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: &maxTokens,
		},
	}
	if len(toolConfig.Tools) > 0 {
		input.ToolConfig = toolConfig
	}
	return input, nil
}

func toBedrockMessage(m Message) (*types.Message, error) {
	role := types.ConversationRoleUser
	if m.Role == RoleAssistant {
		role = types.ConversationRoleAssistant
	}

	var blocks []types.ContentBlock
	if m.Text != "" {
		blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Text})
	}
	for _, tu := range m.ToolUses {
		blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: &tu.ID,
			Name:      &tu.Name,
			Input:     document.NewLazyDocument(tu.Input),
		}})
	}
	for _, tr := range m.ToolResults {
		status := types.ToolResultStatusSuccess
		if tr.IsError {
			status = types.ToolResultStatusError
		}
		blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
			ToolUseId: &tr.ToolUseID,
			Status:    status,
			Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Content}},
		}})
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return &types.Message{Role: role, Content: blocks}, nil
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput) Response {
	resp := Response{}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int(derefInt32(out.Usage.InputTokens)),
			OutputTokens: int(derefInt32(out.Usage.OutputTokens)),
		}
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.TextBlocks = append(resp.TextBlocks, b.Value)
		case *types.ContentBlockMemberToolUse:
			var input map[string]any
			_ = b.Value.Input.UnmarshalSmithyDocument(&input)
			resp.ToolUseBlocks = append(resp.ToolUseBlocks, ToolUse{
				ID:    derefStr(b.Value.ToolUseId),
				Name:  derefStr(b.Value.Name),
				Input: input,
			})
		}
	}
	return resp
}

func derefInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// CreateMessage implements Adapter.
func (a *BedrockAdapter) CreateMessage(ctx context.Context, req Request) (Response, error) {
	input, err := a.toConverse(req)
	if err != nil {
		return Response{}, Classify("bedrock", req.Model, 0, err)
	}
	out, err := a.client.Converse(ctx, input)
	if err != nil {
		return Response{}, Classify("bedrock", req.Model, 0, err)
	}
	return fromBedrockOutput(out), nil
}

// StreamMessage implements Adapter, consuming ConverseStream's event
// stream and re-emitting it as this package's Event channel.
func (a *BedrockAdapter) StreamMessage(ctx context.Context, req Request) (<-chan Event, error) {
	input, err := a.toConverse(req)
	if err != nil {
		return nil, Classify("bedrock", req.Model, 0, err)
	}
	streamInput := &bedrockruntime.ConverseStreamInput{
		ModelId:         input.ModelId,
		Messages:        input.Messages,
		System:          input.System,
		InferenceConfig: input.InferenceConfig,
		ToolConfig:      input.ToolConfig,
	}
	streamOut, err := a.client.ConverseStream(ctx, streamInput)
	if err != nil {
		return nil, Classify("bedrock", req.Model, 0, err)
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		var text string
		toolUses := map[int32]*ToolUse{}
		var usage TokenUsage

		stream := streamOut.GetStream()
		defer stream.Close()
		for event := range stream.Events() {
			switch e := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch d := e.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					text += d.Value
					out <- Event{Kind: EventText, Text: d.Value}
				}
			case *types.ConverseStreamOutputMemberMetadata:
				if e.Value.Usage != nil {
					usage = TokenUsage{
						InputTokens:  int(derefInt32(e.Value.Usage.InputTokens)),
						OutputTokens: int(derefInt32(e.Value.Usage.OutputTokens)),
					}
				}
			}
		}

		resp := Response{Usage: usage}
		if text != "" {
			resp.TextBlocks = append(resp.TextBlocks, text)
		}
		for _, tu := range toolUses {
			resp.ToolUseBlocks = append(resp.ToolUseBlocks, *tu)
		}
		out <- Event{Kind: EventResponse, Response: &resp}
	}()

	return out, nil
}
