// Package governance implements the tool-call governor: the ordered
// rate-check -> validate -> pre-audit -> execute -> redact -> post-audit
// pipeline every tool call passes through before its result reaches an
// agent. Sliding-window rate limiting is enforced before parameter
// validation, and exactly one terminal audit event (executed, denied, or
// failed) follows the single pre-exec "requested" audit for every call.
package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/netsuite-assist/coordinator/internal/audit"
	"github.com/netsuite-assist/coordinator/internal/policy"
	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// Handler executes a tool's business logic given validated, allowlisted
// arguments. Handlers never raise for ordinary failures; they return a
// models.ToolResult with IsError set. An error return is reserved for
// unexpected/catastrophic failures, which the engine converts into a
// tool.failed audit.
type Handler func(ctx context.Context, args map[string]any) (models.ToolResult, error)

// Engine governs every tool call for a process: rate limiting, parameter
// allowlisting, audit logging (both the ambient audit.Logger and the
// persisted models.AuditEvent trail), and policy-driven allow/deny and
// output redaction.
type Engine struct {
	repo    repository.Repository
	clock   repository.RateClock
	random  repository.RandomSource
	logger  *audit.Logger
	limiter *SlidingWindowLimiter
	metrics *Metrics

	windowLength time.Duration
}

// NewEngine constructs a governance Engine. windowLength is typically 60s.
func NewEngine(repo repository.Repository, clock repository.RateClock, random repository.RandomSource, logger *audit.Logger, windowLength time.Duration) *Engine {
	return &Engine{
		repo:         repo,
		clock:        clock,
		random:       random,
		logger:       logger,
		limiter:      NewSlidingWindowLimiter(windowLength),
		metrics:      NewMetrics(),
		windowLength: windowLength,
	}
}

// Execute runs the full governed pipeline for a single tool call and
// returns the (possibly redacted) result surfaced to the caller.
func (e *Engine) Execute(ctx context.Context, desc models.ToolDescriptor, rawArgs map[string]any, handler Handler) (models.ToolResult, error) {
	rc, _ := reqctx.FromContext(ctx)
	now := e.clock.Now()
	callID := e.random.UUID()

	rateKey := rc.TenantID + ":" + desc.Name
	if !e.limiter.Allow(rateKey, desc.RateLimitPerMinute, now) {
		e.metrics.RateLimited.WithLabelValues(desc.Name).Inc()
		e.metrics.CallsTotal.WithLabelValues(desc.Name, "rate_limited").Inc()
		e.auditDenied(ctx, rc, desc.Name, callID, "tool.rate_limited", "rate limit exceeded")
		return models.ErrorResult("rate limit exceeded for " + desc.Name), nil
	}

	args := ValidateParams(desc, rawArgs)

	profile, _, err := e.repo.GetActivePolicy(ctx, rc.TenantID)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("load policy profile: %w", err)
	}

	if decision := policy.Evaluate(profile, desc, args); !decision.Allowed {
		e.metrics.PolicyDenied.WithLabelValues(desc.Name).Inc()
		e.metrics.CallsTotal.WithLabelValues(desc.Name, "policy_denied").Inc()
		e.auditDenied(ctx, rc, desc.Name, callID, "policy.denied", decision.Reason)
		return models.ErrorResult("Policy blocked: " + decision.Reason), nil
	}

	e.logger.ToolRequested(ctx, rc.TenantID, rc.ActorID, rc.CorrelationID, desc.Name, callID)
	e.insertAudit(ctx, rc, desc.Name, callID, "tool.requested", models.AuditPending, "")

	start := now
	result, err := handler(ctx, args)
	duration := e.clock.Now().Sub(start)

	if err != nil {
		e.metrics.CallsTotal.WithLabelValues(desc.Name, "failed").Inc()
		e.logger.ToolFailed(ctx, rc.TenantID, rc.ActorID, rc.CorrelationID, desc.Name, callID, truncate(err.Error(), 500))
		e.insertAudit(ctx, rc, desc.Name, callID, "tool.failed", models.AuditError, err.Error())
		return models.ToolResult{}, err
	}

	result.Content = Redact(result.Content).(map[string]any)
	result.Content = policy.RedactOutput(profile, result.Content).(map[string]any)

	outcome := "success"
	if result.IsError {
		outcome = "tool_error"
	}
	e.metrics.CallsTotal.WithLabelValues(desc.Name, outcome).Inc()
	e.metrics.CallDuration.WithLabelValues(desc.Name).Observe(duration.Seconds())

	e.logger.ToolExecuted(ctx, rc.TenantID, rc.ActorID, rc.CorrelationID, desc.Name, callID, duration)
	e.insertAudit(ctx, rc, desc.Name, callID, "tool.executed", models.AuditSuccess, "")

	return result, nil
}

func (e *Engine) auditDenied(ctx context.Context, rc models.RequestContext, toolName, callID, action, reason string) {
	e.logger.ToolRequested(ctx, rc.TenantID, rc.ActorID, rc.CorrelationID, toolName, callID)
	e.insertAudit(ctx, rc, toolName, callID, "tool.requested", models.AuditPending, "")
	e.logger.ToolDenied(ctx, rc.TenantID, rc.ActorID, rc.CorrelationID, toolName, callID, reason)
	e.repo.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:            e.random.UUID(),
		TenantID:      rc.TenantID,
		ActorID:       rc.ActorID,
		Category:      "tool",
		Action:        action,
		ResourceType:  "tool_call",
		ResourceID:    callID,
		CorrelationID: rc.CorrelationID,
		Payload:       map[string]any{"tool_name": toolName, "reason": reason},
		Status:        models.AuditDenied,
		CreatedAt:     e.clock.Now(),
	})
}

func (e *Engine) insertAudit(ctx context.Context, rc models.RequestContext, toolName, callID, action string, status models.AuditStatus, errMsg string) {
	e.repo.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:            e.random.UUID(),
		TenantID:      rc.TenantID,
		ActorID:       rc.ActorID,
		Category:      "tool",
		Action:        action,
		ResourceType:  "tool_call",
		ResourceID:    callID,
		CorrelationID: rc.CorrelationID,
		Payload:       map[string]any{"tool_name": toolName},
		Status:        status,
		ErrorMessage:  errMsg,
		CreatedAt:     e.clock.Now(),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
