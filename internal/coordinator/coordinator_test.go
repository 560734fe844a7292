package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/tools"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// --- Classify / routeForIntent boundaries ---

func TestClassifyNumericShortCircuit(t *testing.T) {
	if got := Classify("12345"); got != IntentDataQuery {
		t.Errorf("want data_query for a bare record number, got %s", got)
	}
	if got := Classify("#987"); got != IntentDataQuery {
		t.Errorf("want data_query for a #-prefixed record number, got %s", got)
	}
}

func TestClassifyWorkspaceDevBeforeDocumentation(t *testing.T) {
	if got := Classify("explain how to write a script that validates customer records"); got != IntentWorkspaceDev {
		t.Errorf("want workspace_dev to win over documentation wording, got %s", got)
	}
}

func TestClassifyAnalysisBeforeDataQuery(t *testing.T) {
	if got := Classify("show me the month over month trend in sales orders"); got != IntentAnalysis {
		t.Errorf("want analysis to win over data_query wording, got %s", got)
	}
}

func TestClassifyAmbiguousFallsThrough(t *testing.T) {
	if got := Classify("asdkjashd"); got != IntentAmbiguous {
		t.Errorf("want ambiguous for unmatched text, got %s", got)
	}
}

func TestRouteForIntentAnalysisIsSequential(t *testing.T) {
	route, ok := routeForIntent(IntentAnalysis)
	if !ok {
		t.Fatal("expected analysis to have a fixed route")
	}
	if route.Parallel {
		t.Error("analysis route must be sequential: it consumes suiteql's output")
	}
	if len(route.Agents) != 2 || route.Agents[0] != AgentSuiteQL || route.Agents[1] != AgentAnalysis {
		t.Errorf("unexpected agents: %v", route.Agents)
	}
}

func TestRouteForIntentAmbiguousHasNoRoute(t *testing.T) {
	if _, ok := routeForIntent(IntentAmbiguous); ok {
		t.Error("ambiguous intent must defer to the LLM-assisted plan")
	}
}

// --- plan parsing / coercion ---

func TestCoercePlanParsesValidJSON(t *testing.T) {
	plan := coercePlan(`{"reasoning":"r","steps":[{"agent":"suiteql","task":"t"}],"parallel":false}`, "orig")
	if len(plan.Steps) != 1 || plan.Steps[0].Agent != AgentSuiteQL {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestCoercePlanFallsBackOnMalformedJSON(t *testing.T) {
	plan := coercePlan("not json", "original message")
	if len(plan.Steps) != 1 || plan.Steps[0].Agent != AgentSuiteQL || plan.Steps[0].Task != "original message" {
		t.Fatalf("unexpected fallback plan: %+v", plan)
	}
}

func TestCoercePlanFallsBackOnUnknownAgent(t *testing.T) {
	plan := coercePlan(`{"steps":[{"agent":"not_a_real_agent","task":"t"}]}`, "original message")
	if plan.Steps[0].Agent != AgentSuiteQL || plan.Steps[0].Task != "original message" {
		t.Fatalf("unexpected fallback plan: %+v", plan)
	}
}

func TestCoercePlanCapsStepCount(t *testing.T) {
	plan := coercePlan(`{"steps":[
		{"agent":"suiteql","task":"a"},
		{"agent":"rag","task":"b"},
		{"agent":"analysis","task":"c"},
		{"agent":"workspace_dev","task":"d"},
		{"agent":"suiteql","task":"e"}
	]}`, "orig")
	if len(plan.Steps) != maxPlanSteps {
		t.Fatalf("want %d steps, got %d", maxPlanSteps, len(plan.Steps))
	}
}

// --- test doubles ---

type scriptedAdapter struct {
	createResponses []llmadapter.Response
	createIdx       int
	streamText      []string
	streamUsage     llmadapter.TokenUsage
}

func (a *scriptedAdapter) CreateMessage(ctx context.Context, req llmadapter.Request) (llmadapter.Response, error) {
	r := a.createResponses[a.createIdx]
	a.createIdx++
	return r, nil
}

func (a *scriptedAdapter) StreamMessage(ctx context.Context, req llmadapter.Request) (<-chan llmadapter.Event, error) {
	ch := make(chan llmadapter.Event, len(a.streamText)+1)
	var full string
	for _, chunk := range a.streamText {
		full += chunk
		ch <- llmadapter.Event{Kind: llmadapter.EventText, Text: chunk}
	}
	ch <- llmadapter.Event{Kind: llmadapter.EventResponse, Response: &llmadapter.Response{TextBlocks: []string{full}, Usage: a.streamUsage}}
	close(ch)
	return ch, nil
}

type scriptedDispatcher struct {
	result models.ToolResult
}

func (d *scriptedDispatcher) Dispatch(ctx context.Context, name string, args map[string]any) models.ToolResult {
	return d.result
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newRepo() repository.Repository { return repository.NewInMemory() }

// --- scenario 1: fast-path data query ---

func TestHandleFastPathDataQuery(t *testing.T) {
	adapter := &scriptedAdapter{
		createResponses: []llmadapter.Response{
			// suiteql specialist: one tool call, then a final text-only answer.
			{ToolUseBlocks: []llmadapter.ToolUse{{ID: "1", Name: tools.Sanitize("netsuite.suiteql"), Input: map[string]any{
				"query": "SELECT COUNT(*) AS cnt FROM transaction WHERE type = 'SalesOrd' FETCH FIRST 10 ROWS ONLY",
			}}}},
			{TextBlocks: []string{"there are 7 open sales orders"}},
		},
		streamText: []string{"There are ", "7 open sales orders today."},
	}
	dispatcher := &scriptedDispatcher{result: models.ToolResult{Content: map[string]any{"rows": []any{map[string]any{"cnt": 7}}}}}

	c := &Coordinator{
		Adapter:         adapter,
		Dispatcher:      dispatcher,
		Repo:            newRepo(),
		Clock:           fixedClock{time.Now()},
		SpecialistModel: "claude-haiku",
		SynthesisModel:  "claude-haiku",
	}

	var finalText string
	var callLog int
	var sawToolStatus bool
	for ev := range c.Handle(context.Background(), "tenant-a", "how many sales orders are open", "", tools.Catalog()) {
		switch ev.Kind {
		case TurnEventToolStatus:
			sawToolStatus = true
			if ev.Agent != AgentSuiteQL {
				t.Errorf("want suiteql tool_status, got %s", ev.Agent)
			}
		case TurnEventMessage:
			finalText = ev.Text
			callLog = len(ev.CallLog)
		}
	}

	if !sawToolStatus {
		t.Error("expected at least one tool_status event")
	}
	if !strings.Contains(finalText, "7") {
		t.Errorf("want final answer to mention 7, got %q", finalText)
	}
	if strings.Contains(strings.ToUpper(finalText), "SELECT") {
		t.Errorf("final answer must never contain raw SQL, got %q", finalText)
	}
	if callLog != 1 {
		t.Errorf("want 1 call log entry surfaced on the terminal event, got %d", callLog)
	}
}

// --- scenario 2: policy denial ---

func TestHandlePolicyDenialDoesNotLeakRestrictedField(t *testing.T) {
	deniedResult := models.ErrorResult("Policy blocked: field 'salary' is restricted")
	adapter := &scriptedAdapter{
		createResponses: []llmadapter.Response{
			{ToolUseBlocks: []llmadapter.ToolUse{{ID: "1", Name: tools.Sanitize("netsuite.suiteql"), Input: map[string]any{
				"query": "SELECT salary FROM employee FETCH FIRST 10 ROWS ONLY",
			}}}},
			{TextBlocks: []string{"I can't access that field"}},
		},
		streamText: []string{"That field is restricted by policy and I can't show it to you."},
	}
	dispatcher := &scriptedDispatcher{result: deniedResult}

	c := &Coordinator{
		Adapter:         adapter,
		Dispatcher:      dispatcher,
		Repo:            newRepo(),
		Clock:           fixedClock{time.Now()},
		SpecialistModel: "claude-haiku",
		SynthesisModel:  "claude-haiku",
	}

	var finalText string
	for ev := range c.Handle(context.Background(), "tenant-a", "show me this employee's salary", "", tools.Catalog()) {
		if ev.Kind == TurnEventMessage {
			finalText = ev.Text
		}
	}

	if strings.Contains(finalText, "restricted by policy") == false {
		t.Errorf("want the final answer to explain the restriction, got %q", finalText)
	}
	if strings.Contains(finalText, "salary value") {
		t.Errorf("final answer must not echo a restricted value, got %q", finalText)
	}
}

// --- budget exhaustion / repair ---

func TestDispatchSkipsStepsOnceBudgetExhausted(t *testing.T) {
	adapter := &scriptedAdapter{
		createResponses: []llmadapter.Response{
			{TextBlocks: []string{"first answer"}, Usage: llmadapter.TokenUsage{OutputTokens: 1000}},
		},
	}
	c := &Coordinator{
		Adapter:         adapter,
		Dispatcher:      &scriptedDispatcher{result: models.ToolResult{Content: map[string]any{}}},
		Repo:            newRepo(),
		Clock:           fixedClock{time.Now()},
		SpecialistModel: "m",
		MaxOutputTokens: 500,
	}

	outcomes := c.Dispatch(context.Background(), "tenant-a", []PlanStep{
		{Agent: AgentRAG, Task: "a"},
		{Agent: AgentSuiteQL, Task: "b"},
	}, false, "", "m", tools.Catalog(), nil)

	if outcomes[0].Skipped {
		t.Error("first step should run before the budget is exhausted")
	}
	if !outcomes[1].Skipped {
		t.Error("second step should be skipped once the budget is exhausted")
	}
}

func TestRunStepWithRepairPassesThroughOnSuccess(t *testing.T) {
	adapter := &scriptedAdapter{
		createResponses: []llmadapter.Response{
			{TextBlocks: []string{"first-try answer"}},
		},
	}
	c := &Coordinator{
		Adapter:         adapter,
		Dispatcher:      &scriptedDispatcher{result: models.ToolResult{Content: map[string]any{}}},
		Repo:            newRepo(),
		Clock:           fixedClock{time.Now()},
		SpecialistModel: "m",
	}

	outcome := c.runStepWithRepair(context.Background(), "tenant-a", PlanStep{Agent: AgentSuiteQL, Task: "q"}, "", "m", tools.Catalog())
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Repaired {
		t.Error("a successful first attempt should not be marked repaired")
	}
	if outcome.Text != "first-try answer" {
		t.Errorf("got %q", outcome.Text)
	}
}

type erroringAdapter struct{}

func (erroringAdapter) CreateMessage(ctx context.Context, req llmadapter.Request) (llmadapter.Response, error) {
	return llmadapter.Response{}, &mockErr{"simulated provider failure"}
}

func (erroringAdapter) StreamMessage(ctx context.Context, req llmadapter.Request) (<-chan llmadapter.Event, error) {
	return nil, &mockErr{"simulated provider failure"}
}

type mockErr struct{ msg string }

func (e *mockErr) Error() string { return e.msg }

func TestRunStepWithRepairGivesUpAfterFailedRepair(t *testing.T) {
	c := &Coordinator{
		Adapter:         erroringAdapter{},
		Dispatcher:      &scriptedDispatcher{result: models.ToolResult{Content: map[string]any{}}},
		Repo:            newRepo(),
		Clock:           fixedClock{time.Now()},
		SpecialistModel: "m",
	}

	outcome := c.runStepWithRepair(context.Background(), "tenant-a", PlanStep{Agent: AgentSuiteQL, Task: "q"}, "", "m", tools.Catalog())
	if outcome.Err == nil {
		t.Fatal("expected the step to still be failing after an unsuccessful repair attempt")
	}
}
