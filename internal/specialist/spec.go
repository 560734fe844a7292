// Package specialist implements the bounded agent loop of spec §4.6: each
// specialist is a small state machine parameterized by name, system
// prompt, tool subset, and step budget, iterating (LLM call -> tool
// execute -> feed result) until a text-only response or step exhaustion.
package specialist

import "github.com/netsuite-assist/coordinator/pkg/models"

// Spec parameterizes one specialist agent type. The two concrete
// specialists the coordinator names directly (spec §4.6) are built with
// these constructors; additional specialists can be added the same way.
type Spec struct {
	AgentName    string
	SystemPrompt string
	ToolNames    []string // subset of the registry this specialist may call
	MaxSteps     int
	Model        string
	MaxTokens    int
}

// SuiteQLSpec is the data-query specialist: strict SQL dialect rules (no
// CTEs, explicit row-limit clauses, null-coalesce built-ins), metadata
// discovery and query-execution tools, and the tenant's custom-field
// catalogue plus entity mappings injected into its prompt by the caller.
func SuiteQLSpec(vernacular string) Spec {
	prompt := suiteQLSystemPrompt
	if vernacular != "" {
		prompt += "\n\nTenant vernacular:\n" + vernacular
	}
	return Spec{
		AgentName:    "suiteql",
		SystemPrompt: prompt,
		ToolNames: []string{
			"netsuite.suiteql",
			"netsuite.suiteql_stub",
			"netsuite.connectivity",
			"data.sample_table_read",
		},
		MaxSteps:  8,
		MaxTokens: 4096,
	}
}

// RAGSpec is the documentation specialist: no modification rules,
// workspace search and file-read tools only. It has no web-search tool.
func RAGSpec() Spec {
	return Spec{
		AgentName:    "rag",
		SystemPrompt: ragSystemPrompt,
		ToolNames:    []string{"workspace.search", "workspace.read_file"},
		MaxSteps:     6,
		MaxTokens:    4096,
	}
}

// WorkspaceDevSpec is the specialist that proposes and reviews file
// changes through the changeset pipeline.
func WorkspaceDevSpec() Spec {
	return Spec{
		AgentName:    "workspace_dev",
		SystemPrompt: workspaceDevSystemPrompt,
		ToolNames: []string{
			"workspace.list_files",
			"workspace.read_file",
			"workspace.search",
			"workspace.propose_patch",
			"workspace.apply_patch",
			"workspace.run_validate",
			"workspace.run_unit_tests",
		},
		MaxSteps:  10,
		MaxTokens: 4096,
	}
}

// AnalysisSpec is the aggregation/trend specialist, dispatched after
// suiteql in the composite "analysis" route (spec §4.7).
func AnalysisSpec() Spec {
	return Spec{
		AgentName:    "analysis",
		SystemPrompt: analysisSystemPrompt,
		ToolNames:    []string{"report.export"},
		MaxSteps:     6,
		MaxTokens:    4096,
	}
}

const suiteQLSystemPrompt = `You are the SuiteQL data-query specialist for a NetSuite ERP assistant.
Rules:
- Never use CTEs (WITH clauses); NetSuite's SuiteQL dialect does not support them.
- Every query must carry an explicit row-limit clause (ROWNUM, FETCH FIRST, or a limit parameter).
- Use NVL/COALESCE-style null-coalesce built-ins rather than CASE WHEN IS NULL.
- Prefer the tenant's custom-field catalogue and entity mappings below over guessing script IDs.
- Never write to any record; you have read-only tools only.`

const ragSystemPrompt = `You are the documentation specialist for a NetSuite ERP assistant.
You answer questions from the knowledge base and the public web. You never
modify any file or record; you have search tools only.`

const workspaceDevSystemPrompt = `You are the workspace development specialist for a NetSuite ERP assistant.
You read and modify SuiteScript source files through the governed changeset
pipeline: propose a patch, then request validation and unit tests before
suggesting the user approve it. You never bypass the review state machine.`

const analysisSystemPrompt = `You are the analysis specialist for a NetSuite ERP assistant.
You consume the prior specialist's data results and produce aggregations,
trends, and comparisons. You do not query NetSuite directly.`

// ToolSubset filters a full descriptor catalog down to the names this
// Spec is allowed to call.
func (s Spec) ToolSubset(all []models.ToolDescriptor) []models.ToolDescriptor {
	allowed := make(map[string]struct{}, len(s.ToolNames))
	for _, n := range s.ToolNames {
		allowed[n] = struct{}{}
	}
	out := make([]models.ToolDescriptor, 0, len(s.ToolNames))
	for _, d := range all {
		if _, ok := allowed[d.Name]; ok {
			out = append(out, d)
		}
	}
	return out
}
