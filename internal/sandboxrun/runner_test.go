package sandboxrun

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqRandom struct{}

func (seqRandom) UUID() string     { return uuid.NewString() }
func (seqRandom) Hex(n int) string { return "deadbeef" }

// fakeSubprocess plays back a canned result and, when writeCoverage is set,
// drops a coverage-summary.json into <cwd>/coverage before returning, the
// way a real jest invocation would.
type fakeSubprocess struct {
	result        repository.SubprocessResult
	writeCoverage bool
	gotCwd        string
	gotEnv        []string
	gotArgv       []string
}

func (f *fakeSubprocess) Run(_ context.Context, argv []string, cwd string, env []string, _ time.Duration) (repository.SubprocessResult, error) {
	f.gotArgv = argv
	f.gotCwd = cwd
	f.gotEnv = env
	if f.writeCoverage {
		dir := filepath.Join(cwd, "coverage")
		_ = os.MkdirAll(dir, 0o755)
		_ = os.WriteFile(filepath.Join(dir, "coverage-summary.json"), []byte(`{"total":{"lines":{"pct":91.2}}}`), 0o644)
	}
	return f.result, nil
}

func newTestRunner(t *testing.T, sub *fakeSubprocess) (*Runner, *repository.InMemory) {
	t.Helper()
	repo := repository.NewInMemory()
	return &Runner{
		Repo:       repo,
		Clock:      fixedClock{time.Now()},
		Random:     seqRandom{},
		Subprocess: sub,
		ScratchDir: t.TempDir(),
	}, repo
}

func TestExecuteRejectsUnknownRunType(t *testing.T) {
	r, _ := newTestRunner(t, &fakeSubprocess{})
	_, _, err := r.Execute(context.Background(), "tenant-a", "ws-1", "", "bogus_run_type", "user-a")
	if err != ErrCommandNotAllowed {
		t.Fatalf("want ErrCommandNotAllowed, got %v", err)
	}
}

func TestExecutePassesOnZeroExit(t *testing.T) {
	sub := &fakeSubprocess{result: repository.SubprocessResult{ExitCode: 0, Stdout: []byte("ok"), Stderr: nil}}
	r, repo := newTestRunner(t, sub)
	repo.SeedWorkspace(models.Workspace{ID: "ws-1", TenantID: "tenant-a"}, []models.WorkspaceFile{
		{WorkspaceID: "ws-1", Path: "src/app.ts", Content: "x", SHA256: sha256Hex("x"), Size: 1},
	})

	run, artifacts, err := r.Execute(context.Background(), "tenant-a", "ws-1", "", models.RunSDFValidate, "user-a")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != models.RunPassed {
		t.Errorf("want passed, got %s", run.State)
	}
	if run.MaterializedFileCount != 1 {
		t.Errorf("want 1 materialized file, got %d", run.MaterializedFileCount)
	}
	if _, err := os.Stat(sub.gotCwd); err == nil {
		t.Error("scratch dir must be removed after Execute returns")
	}

	var hasResult bool
	for _, a := range artifacts {
		if a.Type == models.ArtifactResultJSON {
			hasResult = true
		}
	}
	if !hasResult {
		t.Error("expected a result_json artifact")
	}
}

func TestExecuteFailsOnNonZeroExit(t *testing.T) {
	sub := &fakeSubprocess{result: repository.SubprocessResult{ExitCode: 1, Stdout: []byte("boom")}}
	r, repo := newTestRunner(t, sub)
	repo.SeedWorkspace(models.Workspace{ID: "ws-1", TenantID: "tenant-a"}, nil)

	run, _, err := r.Execute(context.Background(), "tenant-a", "ws-1", "", models.RunSDFValidate, "user-a")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != models.RunFailed {
		t.Errorf("want failed, got %s", run.State)
	}
}

func TestExecuteTimeout(t *testing.T) {
	sub := &fakeSubprocess{result: repository.SubprocessResult{TimedOut: true, Stderr: []byte("partial output")}}
	r, repo := newTestRunner(t, sub)
	repo.SeedWorkspace(models.Workspace{ID: "ws-1", TenantID: "tenant-a"}, nil)

	run, artifacts, err := r.Execute(context.Background(), "tenant-a", "ws-1", "", models.RunJestUnitTest, "user-a")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != models.RunError {
		t.Errorf("want error, got %s", run.State)
	}
	if run.ErrorCategory != models.ErrorCategoryTimeout {
		t.Errorf("want TIMEOUT category, got %s", run.ErrorCategory)
	}

	var sawTimeoutStderr, sawResultJSON bool
	for _, a := range artifacts {
		if a.Type == models.ArtifactStderr && strings.Contains(string(a.Content), "timed out") {
			sawTimeoutStderr = true
		}
		if a.Type == models.ArtifactResultJSON {
			sawResultJSON = true
			var decoded map[string]any
			if err := json.Unmarshal(a.Content, &decoded); err != nil {
				t.Fatalf("result_json must be valid JSON: %v", err)
			}
			if decoded["error_category"] != string(models.ErrorCategoryTimeout) {
				t.Errorf("result_json error_category = %v, want TIMEOUT", decoded["error_category"])
			}
		}
	}
	if !sawTimeoutStderr {
		t.Error("expected stderr artifact to mention the timeout")
	}
	if !sawResultJSON {
		t.Error("expected a result_json artifact")
	}
	if _, err := os.Stat(sub.gotCwd); err == nil {
		t.Error("scratch dir must not exist after a timeout")
	}
}

func TestExecuteJestCapturesReportAndCoverage(t *testing.T) {
	sub := &fakeSubprocess{
		result:        repository.SubprocessResult{ExitCode: 0, Stdout: []byte(`{"numPassedTests":3}`)},
		writeCoverage: true,
	}
	r, repo := newTestRunner(t, sub)
	repo.SeedWorkspace(models.Workspace{ID: "ws-1", TenantID: "tenant-a"}, nil)

	_, artifacts, err := r.Execute(context.Background(), "tenant-a", "ws-1", "", models.RunJestUnitTest, "user-a")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var sawReport, sawCoverage bool
	for _, a := range artifacts {
		if a.Type == models.ArtifactReportJSON {
			sawReport = true
		}
		if a.Type == models.ArtifactCoverageJSON {
			sawCoverage = true
		}
	}
	if !sawReport {
		t.Error("expected a report_json artifact for jest_unit_test")
	}
	if !sawCoverage {
		t.Error("expected a coverage_json artifact when coverage-summary.json is present")
	}
}

func TestExecuteRedactsSecretsInArtifacts(t *testing.T) {
	sub := &fakeSubprocess{result: repository.SubprocessResult{
		ExitCode: 0,
		Stdout:   []byte("Authorization: Bearer sk-live-abc123\ndone"),
		Stderr:   []byte("api_key=topsecret value"),
	}}
	r, repo := newTestRunner(t, sub)
	repo.SeedWorkspace(models.Workspace{ID: "ws-1", TenantID: "tenant-a"}, nil)

	_, artifacts, err := r.Execute(context.Background(), "tenant-a", "ws-1", "", models.RunSDFValidate, "user-a")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, a := range artifacts {
		if strings.Contains(string(a.Content), "sk-live-abc123") || strings.Contains(string(a.Content), "topsecret") {
			t.Errorf("artifact %s leaked a secret: %q", a.Type, a.Content)
		}
	}
}

func TestExecuteChangesetOverlayRequiresApproved(t *testing.T) {
	sub := &fakeSubprocess{result: repository.SubprocessResult{ExitCode: 0}}
	r, repo := newTestRunner(t, sub)
	repo.SeedWorkspace(models.Workspace{ID: "ws-1", TenantID: "tenant-a"}, nil)
	cs := &models.Changeset{ID: "cs-1", TenantID: "tenant-a", WorkspaceID: "ws-1", State: models.ChangesetDraft}
	if err := repo.CreateChangeset(context.Background(), cs); err != nil {
		t.Fatal(err)
	}

	run, _, err := r.Execute(context.Background(), "tenant-a", "ws-1", "cs-1", models.RunSDFValidate, "user-a")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != models.RunError {
		t.Errorf("want error when changeset is not approved, got %s", run.State)
	}
}
