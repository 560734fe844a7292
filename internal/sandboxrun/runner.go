package sandboxrun

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/netsuite-assist/coordinator/internal/audit"
	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// Runner executes sandbox runs end to end: materialize, write, exec,
// capture, clean up (spec §4.9).
type Runner struct {
	Repo       repository.Repository
	Clock      repository.RateClock
	Random     repository.RandomSource
	Subprocess repository.Subprocess
	Logger     *audit.Logger
	// ScratchDir is the parent directory new scratch directories are
	// created under. Empty uses the OS default temp directory.
	ScratchDir string
}

// Execute runs one allowlisted command against a materialized workspace
// snapshot and returns the terminal Run plus every Artifact it produced.
// A CommandNotAllowed error is returned before any I/O, matching spec
// §4.9's "raises CommandNotAllowed before any I/O" for an unknown run_type.
func (r *Runner) Execute(ctx context.Context, tenantID, workspaceID, changesetID string, runType models.RunType, actorID string) (*models.Run, []models.Artifact, error) {
	spec, err := lookupCommand(runType)
	if err != nil {
		return nil, nil, err
	}

	rc, _ := reqctx.FromContext(ctx)
	run := &models.Run{
		ID:          r.Random.UUID(),
		TenantID:    tenantID,
		WorkspaceID: workspaceID,
		ChangesetID: changesetID,
		Type:        runType,
		State:       models.RunQueued,
		QueuedAt:    r.Clock.Now(),
	}
	if err := r.Repo.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	run.State = models.RunRunning
	run.StartedAt = r.Clock.Now()
	if err := r.Repo.UpdateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("persist running state: %w", err)
	}
	r.audit(ctx, rc, run, "run.started", models.AuditPending, "")

	files, err := materializeWorkspace(ctx, r.Repo, tenantID, workspaceID, changesetID)
	if err != nil {
		return r.failBeforeExec(ctx, rc, run, err), nil, nil
	}
	run.MaterializedFileCount = len(files)

	scratchDir, err := os.MkdirTemp(r.ScratchDir, "sandboxrun-*")
	if err != nil {
		return r.failBeforeExec(ctx, rc, run, err), nil, nil
	}
	defer os.RemoveAll(scratchDir)

	if err := writeScratchFiles(scratchDir, files); err != nil {
		return r.failBeforeExec(ctx, rc, run, err), nil, nil
	}

	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + scratchDir,
		"TMPDIR=" + scratchDir,
	}

	result, err := r.Subprocess.Run(ctx, spec.argv, scratchDir, env, spec.timeout)
	if err != nil {
		return r.failBeforeExec(ctx, rc, run, err), nil, nil
	}

	if result.TimedOut {
		return r.finishTimeout(ctx, rc, run, spec, result)
	}
	return r.finishTerminal(ctx, rc, run, runType, scratchDir, result)
}

func (r *Runner) finishTimeout(ctx context.Context, rc models.RequestContext, run *models.Run, spec commandSpec, result repository.SubprocessResult) (*models.Run, []models.Artifact, error) {
	message := fmt.Sprintf("run timed out after %s", spec.timeout)
	stderr := append(append([]byte{}, result.Stderr...), []byte("\n"+message)...)

	artifacts := []models.Artifact{
		r.newArtifact(run.ID, models.ArtifactStdout, result.Stdout),
		r.newArtifact(run.ID, models.ArtifactStderr, stderr),
		r.resultArtifact(run.ID, map[string]any{
			"error_category": models.ErrorCategoryTimeout,
			"message":        message,
		}),
	}

	run.State = models.RunError
	run.ErrorCategory = models.ErrorCategoryTimeout
	run.ErrorMessage = message
	run.ExitCode = result.ExitCode
	run.FinishedAt = r.Clock.Now()
	if err := r.Repo.UpdateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("persist timed-out run: %w", err)
	}
	r.persistArtifacts(ctx, artifacts)
	r.audit(ctx, rc, run, "run.error", models.AuditError, message)
	return run, artifacts, nil
}

func (r *Runner) finishTerminal(ctx context.Context, rc models.RequestContext, run *models.Run, runType models.RunType, scratchDir string, result repository.SubprocessResult) (*models.Run, []models.Artifact, error) {
	stdoutArtifact := r.newArtifact(run.ID, models.ArtifactStdout, result.Stdout)
	artifacts := []models.Artifact{
		stdoutArtifact,
		r.newArtifact(run.ID, models.ArtifactStderr, result.Stderr),
	}

	run.ExitCode = result.ExitCode
	if result.ExitCode == 0 {
		run.State = models.RunPassed
	} else {
		run.State = models.RunFailed
	}

	if runType == models.RunJestUnitTest {
		// Parse the already-redacted stdout so a leaked secret inside a
		// test report never reaches report_json either.
		var report any
		if err := json.Unmarshal(stdoutArtifact.Content, &report); err == nil {
			if encoded, err := json.Marshal(report); err == nil {
				artifacts = append(artifacts, r.newArtifact(run.ID, models.ArtifactReportJSON, encoded))
			}
		}
		coveragePath := filepath.Join(scratchDir, "coverage", "coverage-summary.json")
		if data, err := os.ReadFile(coveragePath); err == nil {
			artifacts = append(artifacts, r.newArtifact(run.ID, models.ArtifactCoverageJSON, data))
		}
	}

	run.FinishedAt = r.Clock.Now()
	artifacts = append(artifacts, r.resultArtifact(run.ID, map[string]any{
		"exit_code":   run.ExitCode,
		"state":       run.State,
		"duration_ms": run.DurationMS(),
	}))

	if err := r.Repo.UpdateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("persist terminal run: %w", err)
	}
	r.persistArtifacts(ctx, artifacts)

	action, status := "run.passed", models.AuditSuccess
	if run.State == models.RunFailed {
		action, status = "run.failed", models.AuditError
	}
	r.audit(ctx, rc, run, action, status, "")

	return run, artifacts, nil
}

// failBeforeExec handles materialization, scratch-dir, and subprocess-launch
// errors that occur before a terminal pass/fail/timeout outcome is possible.
// These are modeled as state=error/INTERNAL_ERROR, matching the teacher's
// convention of never leaving a Run stuck in "running".
func (r *Runner) failBeforeExec(ctx context.Context, rc models.RequestContext, run *models.Run, cause error) *models.Run {
	run.State = models.RunError
	run.ErrorCategory = models.ErrorCategoryInternal
	run.ErrorMessage = cause.Error()
	run.FinishedAt = r.Clock.Now()
	r.Repo.UpdateRun(ctx, run)
	r.audit(ctx, rc, run, "run.error", models.AuditError, cause.Error())
	return run
}

func (r *Runner) newArtifact(runID string, artifactType models.ArtifactType, raw []byte) models.Artifact {
	content := redactArtifact(raw)
	sum := sha256Hex(string(content))
	return models.Artifact{
		ID:        r.Random.UUID(),
		RunID:     runID,
		Type:      artifactType,
		Content:   content,
		SHA256:    sum,
		CreatedAt: r.Clock.Now(),
	}
}

func (r *Runner) resultArtifact(runID string, summary map[string]any) models.Artifact {
	encoded, _ := json.Marshal(summary)
	return r.newArtifact(runID, models.ArtifactResultJSON, encoded)
}

func (r *Runner) persistArtifacts(ctx context.Context, artifacts []models.Artifact) {
	for _, a := range artifacts {
		artifact := a
		r.Repo.CreateArtifact(ctx, &artifact)
	}
}

func (r *Runner) audit(ctx context.Context, rc models.RequestContext, run *models.Run, action string, status models.AuditStatus, errMsg string) {
	r.Repo.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:            r.Random.UUID(),
		TenantID:      run.TenantID,
		ActorID:       rc.ActorID,
		Category:      "run",
		Action:        action,
		ResourceType:  "run",
		ResourceID:    run.ID,
		CorrelationID: rc.CorrelationID,
		Payload:       map[string]any{"run_type": run.Type, "changeset_id": run.ChangesetID},
		Status:        status,
		ErrorMessage:  errMsg,
		CreatedAt:     r.Clock.Now(),
	})
}
