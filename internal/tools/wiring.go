package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netsuite-assist/coordinator/internal/assertgate"
	"github.com/netsuite-assist/coordinator/internal/audit"
	"github.com/netsuite-assist/coordinator/internal/changeset"
	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/sandboxrun"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// Runtime bundles the capabilities BuildRegistry wires into tool handlers.
// Executor/AllowedTables may be nil/empty in a deployment that has not
// configured a SuiteQL connection yet; the suiteql-assertion and
// netsuite.suiteql handlers report a capability error rather than panic.
type Runtime struct {
	Repo          repository.Repository
	Clock         repository.RateClock
	Random        repository.RandomSource
	Subprocess    repository.Subprocess
	AuditLogger   *audit.Logger
	ScratchDir    string
	QueryExecutor assertgate.QueryExecutor
	AllowedTables map[string]struct{}
}

// BuildRegistry registers every local tool in Catalog against its handler.
// workspace.* handlers are fully wired to the changeset, sandboxrun, and
// assertgate packages; the netsuite.*/recon.run/report.export/schedule.*
// handlers are a real capability boundary this core does not implement
// (no NetSuite SuiteTalk/REST SDK lives in this module — that integration
// belongs to the surrounding service, per spec §6's "consumed capabilities"
// framing), so they report a capability-not-configured error rather than
// faking a response.
func BuildRegistry(rt Runtime) *Registry {
	reg := NewRegistry()
	for _, desc := range Catalog() {
		desc := desc
		switch desc.Name {
		case "workspace.list_files":
			reg.Register(desc, rt.handleListFiles)
		case "workspace.read_file":
			reg.Register(desc, rt.handleReadFile)
		case "workspace.search":
			reg.Register(desc, rt.handleSearch)
		case "workspace.propose_patch":
			reg.Register(desc, rt.handleProposePatch)
		case "workspace.apply_patch":
			reg.Register(desc, rt.handleApplyPatch)
		case "workspace.run_validate":
			reg.Register(desc, rt.handleRunValidate)
		case "workspace.run_unit_tests":
			reg.Register(desc, rt.handleRunUnitTests)
		case "workspace.run_suiteql_assertions":
			reg.Register(desc, rt.handleRunSuiteQLAssertions)
		case "workspace.deploy_sandbox":
			reg.Register(desc, rt.handleDeploySandbox)
		default:
			reg.Register(desc, rt.handleUnconfiguredCapability(desc.Name))
		}
	}
	return reg
}

func (rt Runtime) handleUnconfiguredCapability(name string) governanceHandler {
	return func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
		return models.ErrorResult(fmt.Sprintf("%s is not configured in this deployment", name)), nil
	}
}

// governanceHandler matches governance.Handler's shape without importing
// the package name directly into every call site below, keeping the
// switch above readable.
type governanceHandler = func(ctx context.Context, args map[string]any) (models.ToolResult, error)

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func (rt Runtime) handleListFiles(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	workspaceID := stringArg(args, "workspace_id")
	directory := stringArg(args, "directory")
	files, err := rt.Repo.ListWorkspaceFiles(ctx, tenantID, workspaceID)
	if err != nil {
		return models.ToolResult{}, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if directory != "" && !hasPrefixFold(f.Path, directory) {
			continue
		}
		names = append(names, f.Path)
	}
	return models.ToolResult{Content: map[string]any{"files": names}}, nil
}

func (rt Runtime) handleReadFile(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	workspaceID := stringArg(args, "workspace_id")
	filePath := stringArg(args, "file_id")
	file, ok, err := rt.Repo.GetWorkspaceFile(ctx, tenantID, workspaceID, filePath)
	if err != nil {
		return models.ToolResult{}, err
	}
	if !ok {
		return models.ErrorResult(fmt.Sprintf("file %q not found", filePath)), nil
	}
	return models.ToolResult{Content: map[string]any{"path": file.Path, "content": file.Content}}, nil
}

func (rt Runtime) handleSearch(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	workspaceID := stringArg(args, "workspace_id")
	query := stringArg(args, "query")
	files, err := rt.Repo.ListWorkspaceFiles(ctx, tenantID, workspaceID)
	if err != nil {
		return models.ToolResult{}, err
	}
	var matches []string
	for _, f := range files {
		if query == "" || containsFold(f.Content, query) || containsFold(f.Path, query) {
			matches = append(matches, f.Path)
		}
	}
	return models.ToolResult{Content: map[string]any{"matches": matches}}, nil
}

func (rt Runtime) handleProposePatch(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	actorID := reqctx.ActorID(ctx)
	cs, err := changeset.Propose(ctx, rt.Repo, rt.Clock, rt.Random, tenantID,
		stringArg(args, "workspace_id"), actorID, stringArg(args, "file_path"),
		stringArg(args, "unified_diff"), stringArg(args, "title"), stringArg(args, "rationale"))
	if err != nil {
		return models.ErrorResult(err.Error()), nil
	}
	return models.ToolResult{Content: map[string]any{"changeset_id": cs.ID, "state": cs.State}}, nil
}

func (rt Runtime) handleApplyPatch(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	actorID := reqctx.ActorID(ctx)
	cs, err := changeset.Apply(ctx, rt.Repo, rt.Clock, tenantID, stringArg(args, "changeset_id"), actorID)
	if err != nil {
		return models.ErrorResult(err.Error()), nil
	}
	return models.ToolResult{Content: map[string]any{"changeset_id": cs.ID, "state": cs.State}}, nil
}

func (rt Runtime) runSandbox(ctx context.Context, args map[string]any, runType models.RunType) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	actorID := reqctx.ActorID(ctx)
	runner := sandboxrun.Runner{
		Repo: rt.Repo, Clock: rt.Clock, Random: rt.Random, Subprocess: rt.Subprocess,
		Logger: rt.AuditLogger, ScratchDir: rt.ScratchDir,
	}
	run, artifacts, err := runner.Execute(ctx, tenantID, stringArg(args, "workspace_id"),
		stringArg(args, "changeset_id"), runType, actorID)
	if err != nil {
		return models.ErrorResult(err.Error()), nil
	}
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, string(a.Type))
	}
	return models.ToolResult{Content: map[string]any{"run_id": run.ID, "state": run.State, "artifacts": names}}, nil
}

func (rt Runtime) handleRunValidate(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	return rt.runSandbox(ctx, args, models.RunSDFValidate)
}

func (rt Runtime) handleRunUnitTests(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	return rt.runSandbox(ctx, args, models.RunJestUnitTest)
}

func (rt Runtime) handleRunSuiteQLAssertions(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	if rt.QueryExecutor == nil {
		return models.ErrorResult("suiteql assertion execution is not configured in this deployment"), nil
	}
	tenantID := reqctx.TenantID(ctx)
	raw, _ := json.Marshal(args["assertions"])
	var assertions []models.Assertion
	if err := json.Unmarshal(raw, &assertions); err != nil {
		return models.ErrorResult("assertions must be a JSON array of assertion objects"), nil
	}
	batch := assertgate.Batch{Repo: rt.Repo, Clock: rt.Clock, Random: rt.Random, Executor: rt.QueryExecutor, AllowedTables: rt.AllowedTables}
	report, err := batch.Run(ctx, tenantID, assertions)
	if err != nil {
		return models.ErrorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(report)
	var content map[string]any
	_ = json.Unmarshal(payload, &content)
	return models.ToolResult{Content: content}, nil
}

func (rt Runtime) handleDeploySandbox(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tenantID := reqctx.TenantID(ctx)
	changesetID := stringArg(args, "changeset_id")
	overrideReason := stringArg(args, "override_reason")
	requireAssertions := true
	if _, ok := args["require_assertions"]; ok {
		requireAssertions = boolArg(args, "require_assertions")
	}
	gate, err := assertgate.EvaluateDeployGate(ctx, rt.Repo, rt.Clock, rt.Random, tenantID, changesetID, requireAssertions, overrideReason)
	if err != nil {
		return models.ErrorResult(err.Error()), nil
	}
	if !gate.Allowed {
		return models.ErrorResult(fmt.Sprintf("Policy blocked: %s", gate.BlockedReason)), nil
	}
	return rt.runSandbox(ctx, args, models.RunDeploySandbox)
}

func containsFold(haystack, needle string) bool {
	return len(needle) == 0 || indexFold(haystack, needle) >= 0
}

func indexFold(haystack, needle string) int {
	hl, nl := []rune(haystack), []rune(needle)
	if len(nl) == 0 {
		return 0
	}
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j := range nl {
			if foldRune(hl[i+j]) != foldRune(nl[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	sr, pr := []rune(s), []rune(prefix)
	if len(pr) > len(sr) {
		return false
	}
	for i := range pr {
		if foldRune(sr[i]) != foldRune(pr[i]) {
			return false
		}
	}
	return true
}

func foldRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
