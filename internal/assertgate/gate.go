package assertgate

import (
	"context"
	"strings"

	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// GateResult is the deploy-gate decision returned to the caller (spec
// §4.10 "Return {allowed, blocked_reason?, override: {applied, reason?}}").
type GateResult struct {
	Allowed         bool
	BlockedReason   string
	OverrideApplied bool
	OverrideReason  string
}

// EvaluateDeployGate checks a changeset's run history against the three
// deploy prerequisites, applying an audited override for the assertions
// gate only when requireAssertions is true, that gate has not passed, and
// a non-empty overrideReason is supplied. The validate and unit-test gates
// are never waivable.
func EvaluateDeployGate(ctx context.Context, repo repository.Repository, clock repository.RateClock, random repository.RandomSource, tenantID, changesetID string, requireAssertions bool, overrideReason string) (GateResult, error) {
	validateRuns, err := repo.ListRunsByChangeset(ctx, tenantID, changesetID, models.RunSDFValidate)
	if err != nil {
		return GateResult{}, err
	}
	if !anyPassed(validateRuns) {
		return GateResult{Allowed: false, BlockedReason: "sdf_validate has not passed for this changeset"}, nil
	}

	jestRuns, err := repo.ListRunsByChangeset(ctx, tenantID, changesetID, models.RunJestUnitTest)
	if err != nil {
		return GateResult{}, err
	}
	if !anyPassed(jestRuns) {
		return GateResult{Allowed: false, BlockedReason: "jest_unit_test has not passed for this changeset"}, nil
	}

	if !requireAssertions {
		return GateResult{Allowed: true}, nil
	}

	assertionRuns, err := repo.ListRunsByChangeset(ctx, tenantID, changesetID, models.RunSuiteQLAssertions)
	if err != nil {
		return GateResult{}, err
	}
	if anyPassed(assertionRuns) {
		return GateResult{Allowed: true}, nil
	}

	reason := strings.TrimSpace(overrideReason)
	if reason == "" {
		return GateResult{Allowed: false, BlockedReason: "suiteql_assertions has not passed and no override_reason was supplied"}, nil
	}

	rc, _ := reqctx.FromContext(ctx)
	if err := repo.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:            random.UUID(),
		TenantID:      tenantID,
		ActorID:       rc.ActorID,
		Category:      "deploy",
		Action:        "deploy.gate_override",
		ResourceType:  "changeset",
		ResourceID:    changesetID,
		CorrelationID: rc.CorrelationID,
		Payload:       map[string]any{"reason": reason},
		Status:        models.AuditSuccess,
		CreatedAt:     clock.Now(),
	}); err != nil {
		return GateResult{}, err
	}

	return GateResult{Allowed: true, OverrideApplied: true, OverrideReason: reason}, nil
}

func anyPassed(runs []models.Run) bool {
	for _, r := range runs {
		if r.State == models.RunPassed {
			return true
		}
	}
	return false
}
