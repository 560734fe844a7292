package coordinator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
	"github.com/netsuite-assist/coordinator/internal/specialist"
	"github.com/netsuite-assist/coordinator/internal/tools"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// StepOutcome is one dispatched step's full result: agent, task, final
// text, error, token usage, call log, and repair/skip flags. Synthesis sees
// only what summarizeOutcome renders from it.
type StepOutcome struct {
	Agent     string
	Task      string
	Text      string
	Err       error
	Usage     llmadapter.TokenUsage
	CallLog   []specialist.CallLogEntry
	Repaired  bool
	Skipped   bool // budget exhausted before this step ran
}

// specByAgent resolves a known agent name to the Spec constructor that
// builds it. workspaceVernacular is threaded into the suiteql spec only.
func specByAgent(agent, workspaceVernacular string) specialist.Spec {
	switch agent {
	case AgentSuiteQL:
		return specialist.SuiteQLSpec(workspaceVernacular)
	case AgentRAG:
		return specialist.RAGSpec()
	case AgentWorkspaceDev:
		return specialist.WorkspaceDevSpec()
	case AgentAnalysis:
		return specialist.AnalysisSpec()
	default:
		return specialist.SuiteQLSpec(workspaceVernacular)
	}
}

// buildToolSpecs converts a Spec's allowed tool subset of the full catalog
// into the provider-neutral llmadapter.ToolSpec shape, and returns the
// descriptor lookup the loop needs alongside it.
func buildToolSpecs(spec specialist.Spec, catalog []models.ToolDescriptor) ([]llmadapter.ToolSpec, map[string]models.ToolDescriptor) {
	subset := spec.ToolSubset(catalog)
	toolSpecs := make([]llmadapter.ToolSpec, 0, len(subset))
	descByName := make(map[string]models.ToolDescriptor, len(subset))
	for _, d := range subset {
		schema, err := json.Marshal(tools.ParamsSchema(d))
		if err != nil {
			schema = []byte(`{"type":"object"}`)
		}
		sanitized := tools.Sanitize(d.Name)
		toolSpecs = append(toolSpecs, llmadapter.ToolSpec{
			Name:        sanitized,
			Description: d.Description,
			Schema:      schema,
		})
		descByName[sanitized] = d
	}
	return toolSpecs, descByName
}

// Dispatch runs a resolved route's steps against the specialist loop,
// honoring an overall output-token budget and applying a bounded single
// repair retry on a hard step error (spec §4.7, §5). Sequential steps run
// in route order; RouteConfig.Parallel steps run concurrently and join.
func (c *Coordinator) Dispatch(ctx context.Context, tenantID string, steps []PlanStep, parallel bool, workspaceVernacular string, model string, catalog []models.ToolDescriptor, onStep func(StepOutcome)) []StepOutcome {
	if !parallel {
		return c.dispatchSequential(ctx, tenantID, steps, workspaceVernacular, model, catalog, onStep)
	}
	return c.dispatchParallel(ctx, tenantID, steps, workspaceVernacular, model, catalog, onStep)
}

func (c *Coordinator) dispatchSequential(ctx context.Context, tenantID string, steps []PlanStep, workspaceVernacular, model string, catalog []models.ToolDescriptor, onStep func(StepOutcome)) []StepOutcome {
	outcomes := make([]StepOutcome, 0, len(steps))
	for _, step := range steps {
		var outcome StepOutcome
		if c.budgetExhausted() {
			outcome = StepOutcome{Agent: step.Agent, Task: step.Task, Skipped: true}
		} else {
			outcome = c.runStepWithRepair(ctx, tenantID, step, workspaceVernacular, model, catalog)
		}
		if onStep != nil {
			onStep(outcome)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (c *Coordinator) dispatchParallel(ctx context.Context, tenantID string, steps []PlanStep, workspaceVernacular, model string, catalog []models.ToolDescriptor, onStep func(StepOutcome)) []StepOutcome {
	outcomes := make([]StepOutcome, len(steps))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, step := range steps {
		i, step := i, step
		if c.budgetExhausted() {
			outcome := StepOutcome{Agent: step.Agent, Task: step.Task, Skipped: true}
			outcomes[i] = outcome
			if onStep != nil {
				onStep(outcome)
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := c.runStepWithRepair(ctx, tenantID, step, workspaceVernacular, model, catalog)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			if onStep != nil {
				onStep(outcome)
			}
		}()
	}
	wg.Wait()
	return outcomes
}

// runStepWithRepair runs one step; on a hard error it inserts a single rag
// lookup as a repair step and retries the original agent once (spec §4.7).
// If the rag lookup itself errors or the budget is exhausted, no retry is
// made and the original failed outcome is returned, marked Repaired.
func (c *Coordinator) runStepWithRepair(ctx context.Context, tenantID string, step PlanStep, workspaceVernacular, model string, catalog []models.ToolDescriptor) StepOutcome {
	outcome := c.runStep(ctx, tenantID, step, workspaceVernacular, model, catalog)
	if outcome.Err == nil {
		return outcome
	}
	if c.budgetExhausted() {
		return outcome
	}
	repairTask := "Look up documentation relevant to recovering from this failure: " + step.Task
	repair := c.runStep(ctx, tenantID, PlanStep{Agent: AgentRAG, Task: repairTask}, workspaceVernacular, model, catalog)
	if repair.Err != nil || c.budgetExhausted() {
		outcome.Repaired = true
		return outcome
	}
	retry := c.runStep(ctx, tenantID, step, workspaceVernacular, model, catalog)
	retry.Repaired = true
	return retry
}

func (c *Coordinator) runStep(ctx context.Context, tenantID string, step PlanStep, workspaceVernacular, model string, catalog []models.ToolDescriptor) StepOutcome {
	spec := specByAgent(step.Agent, workspaceVernacular)
	spec.Model = model
	toolSpecs, descByName := buildToolSpecs(spec, catalog)

	loop := specialist.Loop{Adapter: c.Adapter, Dispatcher: c.Dispatcher, Repo: c.Repo, Clock: c.Clock}
	result, err := loop.Run(ctx, spec, tenantID, step.Task, toolSpecs, descByName)

	c.addUsage(result.Usage)

	return StepOutcome{
		Agent:   step.Agent,
		Task:    step.Task,
		Text:    result.Text,
		Err:     err,
		Usage:   result.Usage,
		CallLog: result.CallLog,
	}
}
