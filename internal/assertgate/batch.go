package assertgate

import (
	"context"
	"fmt"
	"time"

	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// QueryExecutor runs one capped, read-only SuiteQL query and returns its
// rows as a list of column-name-to-value maps. Implementations own the
// actual dialect connection; assertgate only ever hands it a validated,
// row/timeout-capped query.
type QueryExecutor interface {
	Query(ctx context.Context, tenantID, query string, rowLimit int, timeout time.Duration) ([]map[string]any, error)
}

// Batch runs an assertion batch serially against Executor (spec §4.10
// "Execution"), producing a per-assertion audit trail and a grouped Report.
type Batch struct {
	Repo          repository.Repository
	Clock         repository.RateClock
	Random        repository.RandomSource
	Executor      QueryExecutor
	AllowedTables map[string]struct{}
}

// Run validates and executes every assertion in order, recording one audit
// event per result, and returns the grouped Report.
func (b *Batch) Run(ctx context.Context, tenantID string, assertions []models.Assertion) (*models.Report, error) {
	if len(assertions) > MaxAssertionsPerBatch {
		return nil, fmt.Errorf("assertgate: batch of %d assertions exceeds the %d limit", len(assertions), MaxAssertionsPerBatch)
	}

	rc, _ := reqctx.FromContext(ctx)
	results := make([]models.AssertionResult, 0, len(assertions))
	var summary models.ReportSummary

	for _, a := range assertions {
		result := b.runOne(ctx, rc, tenantID, a)
		results = append(results, result)
		summary.Total++
		switch result.Outcome {
		case models.AssertionPassed:
			summary.Passed++
		case models.AssertionFailed:
			summary.Failed++
		case models.AssertionError:
			summary.Errors++
		}
	}

	overall := models.AssertionPassed
	if summary.Failed > 0 || summary.Errors > 0 {
		overall = models.AssertionFailed
	}

	return &models.Report{
		Summary:       summary,
		OverallStatus: overall,
		Assertions:    results,
		GeneratedAt:   b.Clock.Now(),
	}, nil
}

func (b *Batch) runOne(ctx context.Context, rc models.RequestContext, tenantID string, a models.Assertion) models.AssertionResult {
	start := b.Clock.Now()
	result := models.AssertionResult{Name: a.Name, Query: a.Query, Expected: a.Expected}

	if err := ValidateAssertion(a, b.AllowedTables); err != nil {
		result.Outcome = models.AssertionError
		result.Error = err.Error()
		b.audit(ctx, rc, tenantID, result)
		return result
	}

	rows, err := b.Executor.Query(ctx, tenantID, a.Query, MaxRowLimit, MaxQueryTimeout)
	result.DurationMS = b.Clock.Now().Sub(start).Milliseconds()
	if err != nil {
		result.Outcome = models.AssertionError
		result.Error = err.Error()
		b.audit(ctx, rc, tenantID, result)
		return result
	}

	observed := deriveObserved(a.Expected.Type, rows)
	result.Observed = observed

	matched, err := evaluateExpected(observed, a.Expected)
	switch {
	case err != nil:
		result.Outcome = models.AssertionError
		result.Error = err.Error()
	case matched:
		result.Outcome = models.AssertionPassed
	default:
		result.Outcome = models.AssertionFailed
	}

	b.audit(ctx, rc, tenantID, result)
	return result
}

func (b *Batch) audit(ctx context.Context, rc models.RequestContext, tenantID string, result models.AssertionResult) {
	status := models.AuditSuccess
	if result.Outcome != models.AssertionPassed {
		status = models.AuditError
	}
	b.Repo.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:            b.Random.UUID(),
		TenantID:      tenantID,
		ActorID:       rc.ActorID,
		Category:      "assertion",
		Action:        "assertion.result",
		ResourceType:  "assertion",
		ResourceID:    result.Name,
		CorrelationID: rc.CorrelationID,
		Payload:       map[string]any{"outcome": result.Outcome, "observed": result.Observed},
		Status:        status,
		ErrorMessage:  result.Error,
		CreatedAt:     b.Clock.Now(),
	})
}
