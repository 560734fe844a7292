package models

import "time"

// AuditStatus is the outcome recorded on an AuditEvent.
type AuditStatus string

const (
	AuditPending AuditStatus = "pending"
	AuditSuccess AuditStatus = "success"
	AuditDenied  AuditStatus = "denied"
	AuditError   AuditStatus = "error"
)

// AuditEvent is an append-only record. Never updated or deleted.
type AuditEvent struct {
	ID            string
	TenantID      string
	ActorID       string
	Category      string // e.g. "tool", "deploy", "policy"
	Action        string // e.g. "tool.requested", "tool.executed", "deploy.gate_override"
	ResourceType  string
	ResourceID    string
	CorrelationID string
	Payload       map[string]any // sensitive keys scrubbed before storage
	Status        AuditStatus
	ErrorMessage  string
	CreatedAt     time.Time
}
