package specialist

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/netsuite-assist/coordinator/internal/llmadapter"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/tools"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// Dispatcher is the subset of tools.Dispatcher the loop needs, narrowed so
// tests can substitute a fake.
type Dispatcher interface {
	Dispatch(ctx context.Context, sanitizedName string, args map[string]any) models.ToolResult
}

// CallLogEntry records one governed tool call made during a run, matching
// the {step, agent, tool, params, summary, duration} shape spec §4.6 names.
type CallLogEntry struct {
	Step      int
	Agent     string
	Tool      string
	Params    map[string]any
	Summary   string
	DurationMS int64
}

// Result is what Run returns: the final user-facing text, the accumulated
// token usage, and the call log for synthesis and observability.
type Result struct {
	Text     string
	Usage    llmadapter.TokenUsage
	CallLog  []CallLogEntry
	Steps    int
	Exhausted bool
}

// Loop runs one specialist agent's bounded iteration per spec §4.6.
type Loop struct {
	Adapter    llmadapter.Adapter
	Dispatcher Dispatcher
	Repo       repository.Repository
	Clock      repository.RateClock
}

// workspaceIDArgKey names the argument key, across the tool catalog, that
// carries a workspace id a caller may omit or supply malformed.
const workspaceIDArgKey = "workspace_id"

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func isUUID(s string) bool { return uuidPattern.MatchString(s) }

// Run executes the bounded (LLM call -> tool execute -> feed result) loop
// for one specialist, given the tools it may call (already sanitized into
// llmadapter.ToolSpec by the caller) and the task text as the sole initial
// user message.
func (l *Loop) Run(ctx context.Context, spec Spec, tenantID string, task string, toolSpecs []llmadapter.ToolSpec, descByName map[string]models.ToolDescriptor) (Result, error) {
	messages := []llmadapter.Message{{Role: llmadapter.RoleUser, Text: task}}
	var result Result

	for step := 1; step <= spec.MaxSteps; step++ {
		resp, err := l.Adapter.CreateMessage(ctx, llmadapter.Request{
			Model:     spec.Model,
			MaxTokens: spec.MaxTokens,
			System:    spec.SystemPrompt,
			Messages:  messages,
			Tools:     toolSpecs,
		})
		if err != nil {
			if llmadapter.IsRetryable(err) {
				resp, err = l.Adapter.CreateMessage(ctx, llmadapter.Request{
					Model: spec.Model, MaxTokens: spec.MaxTokens, System: spec.SystemPrompt,
					Messages: messages, Tools: toolSpecs,
				})
			}
			if err != nil {
				return result, err
			}
		}
		result.Usage.Add(resp.Usage)
		result.Steps = step

		if len(resp.ToolUseBlocks) == 0 {
			result.Text = resp.Text()
			return result, nil
		}

		messages = append(messages, llmadapter.Message{
			Role:     llmadapter.RoleAssistant,
			Text:     resp.Text(),
			ToolUses: resp.ToolUseBlocks,
		})

		toolResults := make([]llmadapter.ToolResult, 0, len(resp.ToolUseBlocks))
		for _, tu := range resp.ToolUseBlocks {
			args := tu.Input
			if _, needs := descByName[tu.Name].Params[workspaceIDArgKey]; needs {
				args = injectWorkspaceID(ctx, l.Repo, tenantID, tu.Input)
			}

			start := l.now()
			res := l.Dispatcher.Dispatch(ctx, tu.Name, args)
			duration := l.now().Sub(start)

			result.CallLog = append(result.CallLog, CallLogEntry{
				Step:       step,
				Agent:      spec.AgentName,
				Tool:       tools.Desanitize(tu.Name),
				Params:     args,
				Summary:    summarize(res),
				DurationMS: duration.Milliseconds(),
			})

			toolResults = append(toolResults, llmadapter.ToolResult{
				ToolUseID: tu.ID,
				Content:   string(res.AsJSON()),
				IsError:   res.IsError,
			})
		}
		messages = append(messages, llmadapter.Message{Role: llmadapter.RoleTool, ToolResults: toolResults})
	}

	// Loop exhausted without a text-only response: one final tools-less
	// call to obtain a user-facing answer (spec §4.6, §8 boundary case).
	result.Exhausted = true
	final, err := l.Adapter.CreateMessage(ctx, llmadapter.Request{
		Model: spec.Model, MaxTokens: spec.MaxTokens, System: spec.SystemPrompt,
		Messages: messages, Tools: nil,
	})
	if err != nil {
		return result, err
	}
	result.Usage.Add(final.Usage)
	result.Text = final.Text()
	return result, nil
}

// injectWorkspaceID fills in the tenant's most recent active workspace id
// when the call needs one but the supplied value is absent or not a UUID.
// Best-effort: a repository error leaves the arguments untouched.
func injectWorkspaceID(ctx context.Context, repo repository.Repository, tenantID string, args map[string]any) map[string]any {
	raw, present := args[workspaceIDArgKey]
	if present {
		if s, ok := raw.(string); ok && isUUID(s) {
			return args
		}
	}
	if repo == nil {
		return args
	}
	wsID, ok, err := repo.MostRecentActiveWorkspace(ctx, tenantID)
	if err != nil || !ok {
		return args
	}
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out[workspaceIDArgKey] = wsID
	return out
}

func summarize(res models.ToolResult) string {
	b := res.AsJSON()
	if len(b) > 200 {
		return string(b[:200]) + "...[truncated]"
	}
	return string(b)
}

func (l *Loop) now() time.Time {
	if l.Clock != nil {
		return l.Clock.Now()
	}
	return time.Now()
}

// NewCorrelationID generates a fresh correlation id for one user
// interaction, threaded through every audit event it causes.
func NewCorrelationID() string { return uuid.NewString() }
