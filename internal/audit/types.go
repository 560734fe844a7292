// Package audit provides structured operational logging for governed tool
// calls, policy decisions, changeset transitions, and sandbox runs.
//
// This is distinct from the persisted, queryable models.AuditEvent trail
// written through the Repository (internal/governance writes both kinds):
// this package is the ambient, slog-based log an operator tails in
// production, adapted from the original chat-agent audit logger's
// async-buffered-writer shape.
package audit

import (
	"encoding/json"
	"time"
)

// EventType categorizes an operational log event.
type EventType string

const (
	EventToolRequested EventType = "tool.requested"
	EventToolExecuted  EventType = "tool.executed"
	EventToolDenied    EventType = "tool.denied"
	EventToolFailed    EventType = "tool.failed"

	EventPolicyDenied EventType = "policy.denied"

	EventChangesetTransition EventType = "changeset.transition"
	EventChangesetApplied    EventType = "changeset.applied"
	EventChangesetConflict   EventType = "changeset.conflict"

	EventRunStarted  EventType = "run.started"
	EventRunFinished EventType = "run.finished"

	EventAssertionResult EventType = "assertion.result"
	EventDeployGateCheck EventType = "deploy.gate_check"
	EventDeployOverride  EventType = "deploy.gate_override"
)

// Level is the severity of a logged event.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a single structured log entry.
type Event struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	Level         Level           `json:"level"`
	Timestamp     time.Time       `json:"timestamp"`
	TenantID      string          `json:"tenant_id,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	ToolName      string          `json:"tool_name,omitempty"`
	ToolCallID    string          `json:"tool_call_id,omitempty"`
	Action        string          `json:"action"`
	Details       map[string]any  `json:"details,omitempty"`
	Duration      time.Duration   `json:"duration,omitempty"`
	Error         string          `json:"error,omitempty"`
	TraceID       string          `json:"trace_id,omitempty"`
	SpanID        string          `json:"span_id,omitempty"`
}

// ToolInvocationDetails is the Details shape for EventToolRequested.
type ToolInvocationDetails struct {
	ToolName  string          `json:"tool_name"`
	Input     json.RawMessage `json:"input,omitempty"`
	InputHash string          `json:"input_hash,omitempty"`
}

// Format selects the slog handler used for output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures a Logger.
type Config struct {
	Enabled       bool    `yaml:"enabled"`
	Level         Level   `yaml:"level"`
	Format        Format  `yaml:"format"`
	Output        string  `yaml:"output"` // "stdout", "stderr", or "file:<path>"
	IncludeInput  bool    `yaml:"include_tool_input"`
	IncludeOutput bool    `yaml:"include_tool_output"`
	MaxFieldSize  int     `yaml:"max_field_size"`
	SampleRate    float64 `yaml:"sample_rate"`
	BufferSize    int     `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultConfig returns sane production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Level:         LevelInfo,
		Format:        FormatJSON,
		Output:        "stdout",
		MaxFieldSize:  1024,
		SampleRate:    1.0,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}
