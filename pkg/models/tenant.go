package models

// Tenant is the isolation unit for every persisted entity in the system.
// Every query that touches the repository carries a tenant context; the
// data layer is responsible for enforcing that a request bearing one
// tenant's context never observes or mutates another tenant's rows.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RequestContext is the explicit, threaded-through-every-call-site bundle
// described in the design notes as a replacement for ambient
// "current user/tenant" captures: {tenant_id, actor_id, correlation_id}.
// Repository, rate clock, and random source are injected as function
// arguments at each capability boundary rather than carried here, so that
// fakes can be swapped per test without mutating context.
type RequestContext struct {
	TenantID      string
	ActorID       string
	CorrelationID string
}

