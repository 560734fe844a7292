package llmadapter

import "context"

// Adapter is the uniform capability every specialist agent and the
// coordinator consume (spec §4.1). Implementations translate Request into
// one of three provider wire shapes and translate the response back.
type Adapter interface {
	// CreateMessage performs one non-streaming completion.
	CreateMessage(ctx context.Context, req Request) (Response, error)
	// StreamMessage performs one completion, emitting incremental text
	// events followed by exactly one terminal "response" event carrying
	// the full Response. The channel is closed after the terminal event
	// or after an error is returned.
	StreamMessage(ctx context.Context, req Request) (<-chan Event, error)
}

// Family names the three back-end translation strategies this package
// implements (spec §4.1): native tool-use (Anthropic/Bedrock Claude),
// function-call (OpenAI), and typed-function-call (Gemini).
type Family string

const (
	FamilyNativeToolUse      Family = "native_tool_use"
	FamilyFunctionCall       Family = "function_call"
	FamilyTypedFunctionCall  Family = "typed_function_call"
)
