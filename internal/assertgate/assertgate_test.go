package assertgate

import (
	"context"
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

func allowedTables(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func TestValidateAssertionRejectsNonSelect(t *testing.T) {
	a := models.Assertion{Name: "x", Query: "DELETE FROM transaction", Expected: models.Expected{Type: models.ExpectNoRows, Operator: models.OpEq}}
	if err := ValidateAssertion(a, allowedTables("transaction")); err == nil {
		t.Fatal("expected rejection of a non-SELECT query")
	}
}

func TestValidateAssertionRejectsDMLKeywordAnywhere(t *testing.T) {
	a := models.Assertion{
		Name:     "x",
		Query:    "SELECT id FROM transaction; DROP TABLE transaction",
		Expected: models.Expected{Type: models.ExpectRowCount, Operator: models.OpEq, Value: 0},
	}
	if err := ValidateAssertion(a, allowedTables("transaction")); err == nil {
		t.Fatal("expected rejection of a stacked DDL statement")
	}
}

func TestValidateAssertionRejectsUnlistedTable(t *testing.T) {
	a := models.Assertion{
		Name:     "x",
		Query:    "SELECT id FROM employee",
		Expected: models.Expected{Type: models.ExpectRowCount, Operator: models.OpEq, Value: 0},
	}
	if err := ValidateAssertion(a, allowedTables("transaction")); err == nil {
		t.Fatal("expected rejection of a table outside the allowlist")
	}
}

func TestValidateAssertionBetweenRequiresValue2(t *testing.T) {
	a := models.Assertion{
		Name:     "x",
		Query:    "SELECT id FROM transaction",
		Expected: models.Expected{Type: models.ExpectRowCount, Operator: models.OpBetween, Value: 1},
	}
	if err := ValidateAssertion(a, allowedTables("transaction")); err == nil {
		t.Fatal("expected rejection of a between operator missing value2")
	}
}

func TestValidateAssertionAcceptsWellFormedQuery(t *testing.T) {
	a := models.Assertion{
		Name:     "no orphan lines",
		Query:    "SELECT COUNT(*) FROM transactionline tl JOIN transaction t ON tl.transaction = t.id WHERE t.id IS NULL",
		Expected: models.Expected{Type: models.ExpectNoRows, Operator: models.OpEq},
	}
	if err := ValidateAssertion(a, allowedTables("transactionline", "transaction")); err != nil {
		t.Fatalf("expected a well-formed query to validate, got %v", err)
	}
}

type fakeExecutor struct {
	rows []map[string]any
	err  error
}

func (f *fakeExecutor) Query(_ context.Context, _ string, _ string, _ int, _ time.Duration) ([]map[string]any, error) {
	return f.rows, f.err
}

func newTestBatch(exec QueryExecutor) (*Batch, *repository.InMemory) {
	repo := repository.NewInMemory()
	return &Batch{
		Repo:          repo,
		Clock:         fixedClock{time.Now()},
		Random:        seqRandom{},
		Executor:      exec,
		AllowedTables: allowedTables("transaction"),
	}, repo
}

func TestBatchRunRowCountPass(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": 1}, {"id": 2}}}
	b, _ := newTestBatch(exec)
	report, err := b.Run(context.Background(), "tenant-a", []models.Assertion{
		{Name: "two rows", Query: "SELECT id FROM transaction", Expected: models.Expected{Type: models.ExpectRowCount, Operator: models.OpEq, Value: 2}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.OverallStatus != models.AssertionPassed {
		t.Errorf("want passed, got %s", report.OverallStatus)
	}
	if report.Summary.Passed != 1 || report.Summary.Total != 1 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
}

func TestBatchRunNoRowsFail(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": 1}}}
	b, _ := newTestBatch(exec)
	report, err := b.Run(context.Background(), "tenant-a", []models.Assertion{
		{Name: "no orphans", Query: "SELECT id FROM transaction", Expected: models.Expected{Type: models.ExpectNoRows, Operator: models.OpEq}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.OverallStatus != models.AssertionFailed {
		t.Errorf("want failed, got %s", report.OverallStatus)
	}
	if report.Assertions[0].Outcome != models.AssertionFailed {
		t.Errorf("want assertion failed, got %s", report.Assertions[0].Outcome)
	}
}

func TestBatchRunInvalidAssertionIsError(t *testing.T) {
	exec := &fakeExecutor{}
	b, _ := newTestBatch(exec)
	report, err := b.Run(context.Background(), "tenant-a", []models.Assertion{
		{Name: "bad table", Query: "SELECT id FROM employee", Expected: models.Expected{Type: models.ExpectNoRows, Operator: models.OpEq}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary.Errors != 1 {
		t.Errorf("want 1 error, got %+v", report.Summary)
	}
}

func TestBatchRunRejectsOversizedBatch(t *testing.T) {
	exec := &fakeExecutor{}
	b, _ := newTestBatch(exec)
	assertions := make([]models.Assertion, MaxAssertionsPerBatch+1)
	for i := range assertions {
		assertions[i] = models.Assertion{Name: "x", Query: "SELECT 1 FROM transaction", Expected: models.Expected{Type: models.ExpectNoRows, Operator: models.OpEq}}
	}
	if _, err := b.Run(context.Background(), "tenant-a", assertions); err == nil {
		t.Fatal("expected a batch over the limit to be rejected")
	}
}

func seedRun(t *testing.T, repo *repository.InMemory, tenantID, changesetID string, runType models.RunType, state models.RunState) {
	t.Helper()
	err := repo.CreateRun(context.Background(), &models.Run{
		ID: uuid.NewString(), TenantID: tenantID, ChangesetID: changesetID, Type: runType, State: state,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeployGateBlocksWithoutValidateRun(t *testing.T) {
	repo := repository.NewInMemory()
	clock := fixedClock{time.Now()}
	result, err := EvaluateDeployGate(context.Background(), repo, clock, seqRandom{}, "tenant-a", "cs-1", false, "")
	if err != nil {
		t.Fatalf("EvaluateDeployGate: %v", err)
	}
	if result.Allowed {
		t.Error("expected gate to block with no runs at all")
	}
}

func TestDeployGateOverrideAppliesAndAudits(t *testing.T) {
	repo := repository.NewInMemory()
	clock := fixedClock{time.Now()}
	seedRun(t, repo, "tenant-a", "cs-1", models.RunSDFValidate, models.RunPassed)
	seedRun(t, repo, "tenant-a", "cs-1", models.RunJestUnitTest, models.RunPassed)

	result, err := EvaluateDeployGate(context.Background(), repo, clock, seqRandom{}, "tenant-a", "cs-1", true, "")
	if err != nil {
		t.Fatalf("EvaluateDeployGate: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected the gate to block without an assertions run and no override")
	}

	result, err = EvaluateDeployGate(context.Background(), repo, clock, seqRandom{}, "tenant-a", "cs-1", true, "Emergency hotfix")
	if err != nil {
		t.Fatalf("EvaluateDeployGate: %v", err)
	}
	if !result.Allowed || !result.OverrideApplied || result.OverrideReason != "Emergency hotfix" {
		t.Fatalf("expected an applied override, got %+v", result)
	}

	var sawOverrideAudit bool
	for _, e := range repo.AuditEvents() {
		if e.Action == "deploy.gate_override" && e.Payload["reason"] == "Emergency hotfix" {
			sawOverrideAudit = true
		}
	}
	if !sawOverrideAudit {
		t.Error("expected a deploy.gate_override audit event carrying the reason")
	}
}

func TestDeployGatePassesWithAllRunsGreen(t *testing.T) {
	repo := repository.NewInMemory()
	clock := fixedClock{time.Now()}
	seedRun(t, repo, "tenant-a", "cs-1", models.RunSDFValidate, models.RunPassed)
	seedRun(t, repo, "tenant-a", "cs-1", models.RunJestUnitTest, models.RunPassed)
	seedRun(t, repo, "tenant-a", "cs-1", models.RunSuiteQLAssertions, models.RunPassed)

	result, err := EvaluateDeployGate(context.Background(), repo, clock, seqRandom{}, "tenant-a", "cs-1", true, "")
	if err != nil {
		t.Fatalf("EvaluateDeployGate: %v", err)
	}
	if !result.Allowed || result.OverrideApplied {
		t.Fatalf("expected an unconditional pass, got %+v", result)
	}
}
