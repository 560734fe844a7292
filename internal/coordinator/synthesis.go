package coordinator

import (
	"context"
	"strings"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
)

// synthesisSystemPrompt is deliberately lean: persona, constraints, and
// synthesis rules only. It never lists the tool inventory or any SQL
// dialect rule, those belong to the specialists that already ran.
const synthesisSystemPrompt = `You are the NetSuite ERP assistant speaking directly to the user.
Compose one final answer from the specialist results below.
Rules:
- Never show raw SQL, query plans, or internal reasoning to the user.
- If a specialist result is an access-control denial, explain the restriction plainly without repeating any restricted values.
- If a specialist was skipped or failed and could not be repaired, say so plainly rather than inventing an answer.
- Be concise and direct.`

// summarizeOutcome renders one StepOutcome into the compact form fed to the
// synthesis prompt: the agent name, then either the specialist's final text
// as returned or a terse failure/skip note. The task and CallLog are not
// included; reasoning or query text inside the final text is not stripped.
func summarizeOutcome(o StepOutcome) string {
	switch {
	case o.Skipped:
		return o.Agent + ": skipped (token budget exhausted)"
	case o.Err != nil:
		return o.Agent + ": failed (" + o.Err.Error() + ")"
	default:
		return o.Agent + ": " + o.Text
	}
}

// buildSynthesisPrompt composes the user-turn text for the synthesis call:
// the original question followed by every specialist outcome's sanitized
// summary.
func buildSynthesisPrompt(question string, outcomes []StepOutcome) string {
	var b strings.Builder
	b.WriteString("User question: ")
	b.WriteString(question)
	b.WriteString("\n\nSpecialist results:\n")
	for _, o := range outcomes {
		b.WriteString("- ")
		b.WriteString(summarizeOutcome(o))
		b.WriteString("\n")
	}
	return b.String()
}

// Synthesize produces the final assistant-facing message via the
// non-streaming path (used when a caller doesn't need incremental chunks).
func (c *Coordinator) Synthesize(ctx context.Context, model, question string, outcomes []StepOutcome) (llmadapter.Response, error) {
	return c.Adapter.CreateMessage(ctx, llmadapter.Request{
		Model:     model,
		MaxTokens: 1024,
		System:    synthesisSystemPrompt,
		Messages: []llmadapter.Message{
			{Role: llmadapter.RoleUser, Text: buildSynthesisPrompt(question, outcomes)},
		},
	})
}

// StreamSynthesize produces the final assistant-facing message via the
// streaming path, the one the end-to-end streaming contract (spec §4.7)
// relies on for incremental text chunks.
func (c *Coordinator) StreamSynthesize(ctx context.Context, model, question string, outcomes []StepOutcome) (<-chan llmadapter.Event, error) {
	return c.Adapter.StreamMessage(ctx, llmadapter.Request{
		Model:     model,
		MaxTokens: 1024,
		System:    synthesisSystemPrompt,
		Messages: []llmadapter.Message{
			{Role: llmadapter.RoleUser, Text: buildSynthesisPrompt(question, outcomes)},
		},
	})
}
