package coordinator

import (
	"context"
	"sync"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/specialist"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// TurnEventKind tags one event of the end-to-end streaming contract (spec
// §4.7): tool_status events while specialists run, text chunks during
// synthesis, then exactly one terminal message event.
type TurnEventKind string

const (
	TurnEventToolStatus TurnEventKind = "tool_status"
	TurnEventText       TurnEventKind = "text"
	TurnEventMessage    TurnEventKind = "message"
)

// TurnEvent is one item streamed back to the caller over the lifetime of a
// single coordinator turn.
type TurnEvent struct {
	Kind TurnEventKind

	// Populated for TurnEventToolStatus.
	Agent   string
	Skipped bool
	Failed  bool

	// Populated for TurnEventText (incremental) and TurnEventMessage
	// (complete).
	Text string

	// Populated only on the terminal TurnEventMessage.
	CallLog []specialist.CallLogEntry
	Usage   llmadapter.TokenUsage
}

// Coordinator wires the routing, specialist dispatch, and synthesis
// stages into one streaming entry point (spec §4.7).
type Coordinator struct {
	Adapter    llmadapter.Adapter
	Dispatcher specialist.Dispatcher
	Repo       repository.Repository
	Clock      repository.RateClock
	Random     repository.RandomSource

	PlannerModel    string
	SpecialistModel string
	SynthesisModel  string

	// MaxOutputTokens bounds total accumulated output tokens across every
	// specialist call in one turn (spec §5); zero means unbounded.
	MaxOutputTokens int

	mu    sync.Mutex
	usage llmadapter.TokenUsage
}

func (c *Coordinator) addUsage(u llmadapter.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.Add(u)
}

func (c *Coordinator) budgetExhausted() bool {
	if c.MaxOutputTokens <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage.OutputTokens >= c.MaxOutputTokens
}

func (c *Coordinator) totalUsage() llmadapter.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Resolve maps a message to a RouteConfig, falling back to the LLM-assisted
// Plan for an ambiguous classification (spec §4.7).
func (c *Coordinator) Resolve(ctx context.Context, message string) (steps []PlanStep, parallel bool) {
	intent := Classify(message)
	if route, ok := routeForIntent(intent); ok {
		steps = make([]PlanStep, len(route.Agents))
		for i, agent := range route.Agents {
			steps[i] = PlanStep{Agent: agent, Task: message}
		}
		return steps, route.Parallel
	}
	plan := RequestPlan(ctx, c.Adapter, c.PlannerModel, message)
	return plan.Steps, plan.Parallel
}

// Handle runs one full coordinator turn: classify/route (or plan), dispatch
// to specialists, then stream the synthesized answer. The returned channel
// carries tool_status events as each specialist finishes, then text chunks
// as synthesis streams, then exactly one terminal message event carrying
// the full answer, call log, and accumulated token usage.
func (c *Coordinator) Handle(ctx context.Context, tenantID, message, workspaceVernacular string, catalog []models.ToolDescriptor) <-chan TurnEvent {
	out := make(chan TurnEvent)
	go func() {
		defer close(out)

		c.mu.Lock()
		c.usage = llmadapter.TokenUsage{}
		c.mu.Unlock()

		steps, parallel := c.Resolve(ctx, message)

		outcomes := c.Dispatch(ctx, tenantID, steps, parallel, workspaceVernacular, c.SpecialistModel, catalog, func(o StepOutcome) {
			out <- TurnEvent{Kind: TurnEventToolStatus, Agent: o.Agent, Skipped: o.Skipped, Failed: o.Err != nil}
		})

		var callLog []specialist.CallLogEntry
		for _, o := range outcomes {
			callLog = append(callLog, o.CallLog...)
		}

		events, err := c.StreamSynthesize(ctx, c.SynthesisModel, message, outcomes)
		if err != nil {
			out <- TurnEvent{Kind: TurnEventMessage, Text: "I couldn't complete that request.", CallLog: callLog, Usage: c.totalUsage()}
			return
		}

		var full string
		for ev := range events {
			switch ev.Kind {
			case llmadapter.EventText:
				full += ev.Text
				out <- TurnEvent{Kind: TurnEventText, Text: ev.Text}
			case llmadapter.EventResponse:
				if ev.Response != nil {
					c.addUsage(ev.Response.Usage)
					if full == "" {
						full = ev.Response.Text()
					}
				}
			}
		}

		out <- TurnEvent{Kind: TurnEventMessage, Text: full, CallLog: callLog, Usage: c.totalUsage()}
	}()
	return out
}
