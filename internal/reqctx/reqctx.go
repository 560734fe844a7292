// Package reqctx threads the explicit request-scoped capability bundle
// (tenant, actor, correlation ID) through call sites via context.Context,
// following the same With<Thing>/<Thing>FromContext pairing the agent
// runtime uses for session, policy, and elevation state.
package reqctx

import (
	"context"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

type contextKey string

const requestContextKey contextKey = "request_context"

// With attaches a RequestContext to ctx.
func With(ctx context.Context, rc models.RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext retrieves the RequestContext previously attached with With.
// The second return value is false if none was attached.
func FromContext(ctx context.Context) (models.RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(models.RequestContext)
	return rc, ok
}

// TenantID is a convenience accessor returning the empty string when no
// RequestContext is present.
func TenantID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.TenantID
}

// ActorID is a convenience accessor returning the empty string when no
// RequestContext is present.
func ActorID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.ActorID
}

// CorrelationID is a convenience accessor returning the empty string when
// no RequestContext is present.
func CorrelationID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.CorrelationID
}
