package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger provides structured, async-buffered operational logging for the
// governance, changeset, and sandbox subsystems.
type Logger struct {
	config Config
	output io.WriteCloser
	slog   *slog.Logger
	buffer chan *Event
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewLogger creates a new audit logger with the given configuration.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxFieldSize == 0 {
		config.MaxFieldSize = 1024
	}

	var output io.WriteCloser
	switch {
	case config.Output == "stdout" || config.Output == "":
		output = os.Stdout
	case config.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", config.Output)
	}

	l := &Logger{
		config: config,
		output: output,
		buffer: make(chan *Event, config.BufferSize),
		done:   make(chan struct{}),
	}

	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: l.slogLevel()})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: l.slogLevel()})
	}
	l.slog = slog.New(handler).With("component", "audit")

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Close flushes remaining events and closes the logger.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// Log writes an event to the log, applying sampling and level filters.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.config.Enabled {
		return
	}
	if l.config.SampleRate < 1.0 && rand.Float64() > l.config.SampleRate {
		return
	}
	if !l.shouldLog(event.Level) {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case l.buffer <- event:
	default:
		l.writeEvent(event)
	}
}

// ToolRequested logs the pre-execution audit point for a governed tool call.
func (l *Logger) ToolRequested(ctx context.Context, tenantID, actorID, correlationID, toolName, toolCallID string) {
	l.Log(ctx, &Event{
		Type:          EventToolRequested,
		Level:         LevelInfo,
		TenantID:      tenantID,
		ActorID:       actorID,
		CorrelationID: correlationID,
		ToolName:      toolName,
		ToolCallID:    toolCallID,
		Action:        "tool_requested",
	})
}

// ToolExecuted logs the terminal success path for a governed tool call.
func (l *Logger) ToolExecuted(ctx context.Context, tenantID, actorID, correlationID, toolName, toolCallID string, duration time.Duration) {
	l.Log(ctx, &Event{
		Type:          EventToolExecuted,
		Level:         LevelInfo,
		TenantID:      tenantID,
		ActorID:       actorID,
		CorrelationID: correlationID,
		ToolName:      toolName,
		ToolCallID:    toolCallID,
		Action:        "tool_executed",
		Duration:      duration,
	})
}

// ToolDenied logs a governance or policy denial.
func (l *Logger) ToolDenied(ctx context.Context, tenantID, actorID, correlationID, toolName, toolCallID, reason string) {
	l.Log(ctx, &Event{
		Type:          EventToolDenied,
		Level:         LevelWarn,
		TenantID:      tenantID,
		ActorID:       actorID,
		CorrelationID: correlationID,
		ToolName:      toolName,
		ToolCallID:    toolCallID,
		Action:        "tool_denied",
		Details:       map[string]any{"reason": reason},
	})
}

// ToolFailed logs an unexpected tool handler error.
func (l *Logger) ToolFailed(ctx context.Context, tenantID, actorID, correlationID, toolName, toolCallID, errMsg string) {
	l.Log(ctx, &Event{
		Type:          EventToolFailed,
		Level:         LevelError,
		TenantID:      tenantID,
		ActorID:       actorID,
		CorrelationID: correlationID,
		ToolName:      toolName,
		ToolCallID:    toolCallID,
		Action:        "tool_failed",
		Error:         errMsg,
	})
}

// writeLoop processes buffered events until Close is called.
func (l *Logger) writeLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		case <-ticker.C:
			l.flushBuffer()
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

func (l *Logger) flushBuffer() {
	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		default:
			return
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	attrs := []any{
		"audit_id", event.ID,
		"audit_type", event.Type,
		"action", event.Action,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	}
	if event.TenantID != "" {
		attrs = append(attrs, "tenant_id", event.TenantID)
	}
	if event.ActorID != "" {
		attrs = append(attrs, "actor_id", event.ActorID)
	}
	if event.CorrelationID != "" {
		attrs = append(attrs, "correlation_id", event.CorrelationID)
	}
	if event.ToolName != "" {
		attrs = append(attrs, "tool_name", event.ToolName)
	}
	if event.ToolCallID != "" {
		attrs = append(attrs, "tool_call_id", event.ToolCallID)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	for k, v := range event.Details {
		attrs = append(attrs, k, v)
	}

	switch event.Level {
	case LevelDebug:
		l.slog.Debug("audit", attrs...)
	case LevelWarn:
		l.slog.Warn("audit", attrs...)
	case LevelError:
		l.slog.Error("audit", attrs...)
	default:
		l.slog.Info("audit", attrs...)
	}
}

func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{LevelDebug: 0, LevelInfo: 1, LevelWarn: 2, LevelError: 3}
	return levels[level] >= levels[l.config.Level]
}

func (l *Logger) slogLevel() slog.Level {
	switch l.config.Level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
