// Package llmadapter gives every specialist agent and the coordinator a
// single request/response shape over three provider families (native
// tool-use, function-call, and typed-function-call), per spec §4.1. Callers
// never see a provider SDK type directly; translation happens entirely at
// the Adapter boundary.
package llmadapter

import "encoding/json"

// Role is the canonical message role, independent of any provider's wire
// vocabulary.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolUse is one tool invocation an assistant message requested.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is one tool's result fed back to the model, keyed by the
// ToolUse.ID it answers.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Message is one turn of the canonical conversation. A single message may
// carry text, tool uses (assistant turns), or tool results (tool turns);
// callers compose whichever fields apply to its Role.
type Message struct {
	Role        Role
	Text        string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// ToolSpec describes one callable tool in provider-neutral form, built from
// a models.ToolDescriptor at the call site.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage // JSON Schema for the input object
}

// TokenUsage accumulates across a conversation; the coordinator sums it to
// enforce its output-token budget (spec §4.7).
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates u2 into u in place.
func (u *TokenUsage) Add(u2 TokenUsage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
}

// Response is the result of a single create_message call: an ordered list
// of text blocks, an ordered list of tool-use blocks, and token usage.
type Response struct {
	TextBlocks    []string
	ToolUseBlocks []ToolUse
	Usage         TokenUsage
}

// Text concatenates the response's text blocks, the shape every agent loop
// and the coordinator's synthesis consume when no tool use is requested.
func (r Response) Text() string {
	out := ""
	for i, b := range r.TextBlocks {
		if i > 0 {
			out += "\n"
		}
		out += b
	}
	return out
}

// EventKind tags a streamed Event.
type EventKind string

const (
	EventText     EventKind = "text"
	EventResponse EventKind = "response"
)

// Event is one item of a streamed completion. A "text" event carries one
// incremental chunk; the stream's final event is always "response" and
// carries the complete, authoritative Response.
type Event struct {
	Kind     EventKind
	Text     string
	Response *Response
}

// Request bundles the parameters common to both create_message and
// stream_message.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []Message
	Tools     []ToolSpec
}
