package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewLogger_Disabled(t *testing.T) {
	logger, err := NewLogger(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Log(context.Background(), &Event{Type: EventToolRequested})
	if err := logger.Close(); err != nil {
		t.Errorf("unexpected error closing: %v", err)
	}
}

func TestNewLogger_OutputDestinations(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{"stdout", "stdout", false},
		{"empty defaults to stdout", "", false},
		{"stderr", "stderr", false},
		{"unsupported scheme", "ftp://invalid", true},
		{"file with missing dir", "file:/nonexistent/path/that/should/not/exist/audit.log", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(Config{Enabled: true, Output: tt.output})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer logger.Close()
		})
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	logger, err := NewLogger(Config{
		Enabled: true,
		Output:  "file:" + logPath,
		Format:  FormatJSON,
		Level:   LevelInfo,
	})
	if err != nil {
		t.Fatalf("failed to create logger with file output: %v", err)
	}

	logger.ToolRequested(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1")

	time.Sleep(100 * time.Millisecond)
	if err := logger.Close(); err != nil {
		t.Errorf("error closing logger: %v", err)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		configLevel Level
		eventLevel  Level
		shouldLog   bool
	}{
		{LevelDebug, LevelDebug, true},
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelWarn, true},
		{LevelWarn, LevelInfo, false},
		{LevelError, LevelWarn, false},
		{LevelError, LevelError, true},
	}

	for _, tt := range tests {
		logger := &Logger{config: Config{Enabled: true, Level: tt.configLevel}}
		if got := logger.shouldLog(tt.eventLevel); got != tt.shouldLog {
			t.Errorf("shouldLog(%s) with config level %s = %v, want %v",
				tt.eventLevel, tt.configLevel, got, tt.shouldLog)
		}
	}
}

func TestLogger_ToolRequestedAndExecuted(t *testing.T) {
	logger := &Logger{
		config: Config{Enabled: true, Level: LevelInfo, SampleRate: 1.0},
		buffer: make(chan *Event, 10),
		done:   make(chan struct{}),
	}

	logger.ToolRequested(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1")
	select {
	case event := <-logger.buffer:
		if event.Type != EventToolRequested {
			t.Errorf("expected EventToolRequested, got %s", event.Type)
		}
		if event.TenantID != "tenant-1" {
			t.Errorf("expected TenantID tenant-1, got %s", event.TenantID)
		}
		if event.ToolName != "netsuite.suiteql" {
			t.Errorf("expected ToolName netsuite.suiteql, got %s", event.ToolName)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event in buffer")
	}

	logger.ToolExecuted(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1", 250*time.Millisecond)
	select {
	case event := <-logger.buffer:
		if event.Type != EventToolExecuted {
			t.Errorf("expected EventToolExecuted, got %s", event.Type)
		}
		if event.Duration != 250*time.Millisecond {
			t.Errorf("expected duration 250ms, got %v", event.Duration)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event in buffer")
	}
}

func TestLogger_ToolDenied(t *testing.T) {
	logger := &Logger{
		config: Config{Enabled: true, Level: LevelInfo, SampleRate: 1.0},
		buffer: make(chan *Event, 10),
		done:   make(chan struct{}),
	}

	logger.ToolDenied(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1", "rate_limited")
	select {
	case event := <-logger.buffer:
		if event.Type != EventToolDenied {
			t.Errorf("expected EventToolDenied, got %s", event.Type)
		}
		if event.Level != LevelWarn {
			t.Errorf("expected LevelWarn, got %s", event.Level)
		}
		if event.Details["reason"] != "rate_limited" {
			t.Error("expected reason in details")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event in buffer")
	}
}

func TestLogger_ToolFailed(t *testing.T) {
	logger := &Logger{
		config: Config{Enabled: true, Level: LevelInfo, SampleRate: 1.0},
		buffer: make(chan *Event, 10),
		done:   make(chan struct{}),
	}

	logger.ToolFailed(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1", "boom")
	select {
	case event := <-logger.buffer:
		if event.Type != EventToolFailed {
			t.Errorf("expected EventToolFailed, got %s", event.Type)
		}
		if event.Level != LevelError {
			t.Errorf("expected LevelError, got %s", event.Level)
		}
		if event.Error != "boom" {
			t.Errorf("expected error 'boom', got %s", event.Error)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event in buffer")
	}
}

func TestLogger_AsyncBufferedWrite(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "async_test.log")

	logger, err := NewLogger(Config{
		Enabled:       true,
		Output:        "file:" + logPath,
		Format:        FormatJSON,
		Level:         LevelInfo,
		BufferSize:    100,
		FlushInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for i := 0; i < 10; i++ {
		logger.ToolRequested(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1")
	}

	time.Sleep(100 * time.Millisecond)
	if err := logger.Close(); err != nil {
		t.Errorf("error closing logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log file to have content")
	}
}

func TestLogger_ConcurrentWriteSafety(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "concurrent_test.log")

	logger, err := NewLogger(Config{
		Enabled:       true,
		Output:        "file:" + logPath,
		Format:        FormatJSON,
		Level:         LevelInfo,
		BufferSize:    1000,
		FlushInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.ToolRequested(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1")
			}
		}(i)
	}
	wg.Wait()

	if err := logger.Close(); err != nil {
		t.Errorf("error closing logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 400 {
		t.Errorf("expected at least 400 log entries, got %d", len(lines))
	}
}

func TestLogger_BufferFullDoesNotBlock(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "buffer_full_test.log")

	logger, err := NewLogger(Config{
		Enabled:       true,
		Output:        "file:" + logPath,
		Level:         LevelInfo,
		BufferSize:    1,
		FlushInterval: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			logger.ToolRequested(context.Background(), "tenant-1", "actor-1", "corr-1", "netsuite.suiteql", "call-1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Log() blocked when buffer was full")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled to be true")
	}
	if cfg.Level != LevelInfo {
		t.Errorf("expected Level LevelInfo, got %v", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("expected Format FormatJSON, got %v", cfg.Format)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %v", cfg.SampleRate)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected Output stdout, got %v", cfg.Output)
	}
	if cfg.MaxFieldSize != 1024 {
		t.Errorf("expected MaxFieldSize 1024, got %d", cfg.MaxFieldSize)
	}
	if cfg.BufferSize != 1000 {
		t.Errorf("expected BufferSize 1000, got %d", cfg.BufferSize)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("expected FlushInterval 5s, got %v", cfg.FlushInterval)
	}
}

func TestLogger_SlogLevel(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tt := range tests {
		logger := &Logger{config: Config{Level: tt.level}}
		if got := logger.slogLevel().String(); got != tt.expected {
			t.Errorf("expected slog level %s, got %s", tt.expected, got)
		}
	}
}
