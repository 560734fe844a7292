package llmadapter

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"
)

// GoogleAdapter implements the typed-function-call family: Gemini's
// FunctionCall/FunctionResponse parts carry a typed Args/Response struct
// rather than a raw JSON string, so arguments are decoded through
// genai.Schema-typed parts instead of a string payload.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter wraps an already-configured genai client.
func NewGoogleAdapter(client *genai.Client) *GoogleAdapter {
	return &GoogleAdapter{client: client}
}

func toGoogleContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		for _, tu := range m.ToolUses {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tu.ID, Name: tu.Name, Args: tu.Input}})
		}
		for _, tr := range m.ToolResults {
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       tr.ToolUseID,
				Response: map[string]any{"content": tr.Content, "is_error": tr.IsError},
			}})
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

func toGoogleTools(tools []ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Schema, &schema)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaFromMap(schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// schemaFromMap projects the plain-map JSON Schema every tool descriptor
// produces into genai's typed Schema, at the "earliest safe point" the
// design notes call for on the adapter-to-provider edge.
func schemaFromMap(m map[string]any) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeObject}
	props, _ := m["properties"].(map[string]any)
	if len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			propMap, _ := raw.(map[string]any)
			typ, _ := propMap["type"].(string)
			s.Properties[name] = &genai.Schema{Type: genaiType(typ)}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

func genaiType(jsonType string) genai.Type {
	switch jsonType {
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func fromGoogleResponse(resp *genai.GenerateContentResponse) Response {
	out := Response{}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.TextBlocks = append(out.TextBlocks, part.Text)
		}
		if part.FunctionCall != nil {
			out.ToolUseBlocks = append(out.ToolUseBlocks, ToolUse{
				ID:    part.FunctionCall.ID,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}
	return out
}

// CreateMessage implements Adapter.
func (a *GoogleAdapter) CreateMessage(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, "system"),
		MaxOutputTokens:   int32(req.MaxTokens),
		Tools:             toGoogleTools(req.Tools),
	}
	resp, err := a.client.Models.GenerateContent(ctx, req.Model, toGoogleContents(req.Messages), cfg)
	if err != nil {
		return Response{}, Classify("google", req.Model, 0, err)
	}
	return fromGoogleResponse(resp), nil
}

// StreamMessage implements Adapter.
func (a *GoogleAdapter) StreamMessage(ctx context.Context, req Request) (<-chan Event, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, "system"),
		MaxOutputTokens:   int32(req.MaxTokens),
		Tools:             toGoogleTools(req.Tools),
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		var final Response
		for resp, err := range a.client.Models.GenerateContentStream(ctx, req.Model, toGoogleContents(req.Messages), cfg) {
			if err != nil {
				break
			}
			chunk := fromGoogleResponse(resp)
			final.Usage = chunk.Usage
			for _, t := range chunk.TextBlocks {
				out <- Event{Kind: EventText, Text: t}
				final.TextBlocks = append(final.TextBlocks, t)
			}
			final.ToolUseBlocks = append(final.ToolUseBlocks, chunk.ToolUseBlocks...)
		}
		out <- Event{Kind: EventResponse, Response: &final}
	}()

	return out, nil
}
