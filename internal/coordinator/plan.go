package coordinator

import (
	"context"
	"encoding/json"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
)

// maxPlanSteps is the hard cap spec §4.7 puts on an LLM-proposed plan.
const maxPlanSteps = 4

// PlanStep is one step of an LLM-proposed plan.
type PlanStep struct {
	Agent string `json:"agent"`
	Task  string `json:"task"`
}

// Plan is the JSON shape the cheap planning LLM call is asked to emit when
// no heuristic pattern matches the user's message.
type Plan struct {
	Reasoning string     `json:"reasoning"`
	Steps     []PlanStep `json:"steps"`
	Parallel  bool       `json:"parallel"`
}

const planSystemPrompt = `You route a user request to one or more specialist agents.
Known agents: suiteql (data queries), rag (documentation/knowledge base),
workspace_dev (file changes through the changeset pipeline), analysis
(aggregation over prior results).
Respond with ONLY a JSON object: {"reasoning": "...", "steps": [{"agent": "...", "task": "..."}], "parallel": false}.
At most four steps. Use "parallel": true only when the steps are independent.`

// RequestPlan asks the planning model for a JSON routing plan and
// validates/coerces the result. Any parse failure, or a step naming an
// agent outside the four known names, falls back to a single data-query
// step against suiteql, matching spec §4.7's explicit fallback.
func RequestPlan(ctx context.Context, adapter llmadapter.Adapter, model, message string) Plan {
	resp, err := adapter.CreateMessage(ctx, llmadapter.Request{
		Model:     model,
		MaxTokens: 512,
		System:    planSystemPrompt,
		Messages:  []llmadapter.Message{{Role: llmadapter.RoleUser, Text: message}},
	})
	if err != nil {
		return fallbackPlan(message)
	}
	return coercePlan(resp.Text(), message)
}

func coercePlan(raw, originalMessage string) Plan {
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return fallbackPlan(originalMessage)
	}
	if len(plan.Steps) == 0 {
		return fallbackPlan(originalMessage)
	}
	if len(plan.Steps) > maxPlanSteps {
		plan.Steps = plan.Steps[:maxPlanSteps]
	}
	for _, step := range plan.Steps {
		if _, ok := knownAgents[step.Agent]; !ok {
			return fallbackPlan(originalMessage)
		}
		if step.Task == "" {
			return fallbackPlan(originalMessage)
		}
	}
	return plan
}

// fallbackPlan is the single data-query step spec §4.7 names for any parse
// failure.
func fallbackPlan(message string) Plan {
	return Plan{
		Reasoning: "fallback: unable to obtain a valid routing plan",
		Steps:     []PlanStep{{Agent: AgentSuiteQL, Task: message}},
		Parallel:  false,
	}
}
