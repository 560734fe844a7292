package tools

import (
	"context"
	"testing"
	"time"

	"github.com/netsuite-assist/coordinator/internal/audit"
	"github.com/netsuite-assist/coordinator/internal/governance"
	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqRandom struct{ n int }

func (r *seqRandom) UUID() string   { r.n++; return "id" }
func (r *seqRandom) Hex(n int) string { return "ab" }

func newDispatcherForTest(t *testing.T) (*Dispatcher, *Registry) {
	t.Helper()
	repo := repository.NewInMemory()
	logger, err := audit.NewLogger(audit.Config{Enabled: false})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	engine := governance.NewEngine(repo, fixedClock{now: time.Unix(1_700_000_000, 0)}, &seqRandom{}, logger, 60*time.Second)
	registry := NewRegistry()
	return NewDispatcher(registry, nil, nil, engine), registry
}

func ctxForTenant(tenantID string) context.Context {
	return reqctx.With(context.Background(), models.RequestContext{TenantID: tenantID, ActorID: "actor", CorrelationID: "corr"})
}

func TestDispatchLocalUnknownToolReturnsChatError(t *testing.T) {
	d, _ := newDispatcherForTest(t)
	result := d.Dispatch(ctxForTenant("tenant-a"), "not_registered", nil)
	if !result.IsError {
		t.Fatal("expected error result for unregistered tool")
	}
}

func TestDispatchLocalRoutesThroughGovernance(t *testing.T) {
	d, registry := newDispatcherForTest(t)
	registry.Register(models.ToolDescriptor{
		Name:               "health",
		Params:             map[string]models.ParamSpec{},
		RateLimitPerMinute: 60,
	}, func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
		return models.ToolResult{Content: map[string]any{"status": "ok"}}, nil
	})

	result := d.Dispatch(ctxForTenant("tenant-a"), Sanitize("health"), nil)
	if result.IsError {
		t.Fatalf("expected success, got error: %v", result.Content)
	}
	if result.Content["status"] != "ok" {
		t.Errorf("expected status ok, got %v", result.Content)
	}
}

func TestDispatchExternalWithoutConnectorsReturnsChatError(t *testing.T) {
	d, _ := newDispatcherForTest(t)
	result := d.Dispatch(ctxForTenant("tenant-a"), ExternalToolName("ab", "list_items"), nil)
	if !result.IsError {
		t.Fatal("expected error result when no connector resolver is configured")
	}
}

type fakeConnectorResolver struct {
	connector models.Connector
	found     bool
}

func (f fakeConnectorResolver) ConnectorByIDHex(ctx context.Context, idHex string) (models.Connector, bool) {
	if idHex != f.connector.IDHex {
		return models.Connector{}, false
	}
	return f.connector, f.found
}

type fakeRemoteCaller struct{ calledTool string }

func (f *fakeRemoteCaller) CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	f.calledTool = toolName
	return &ToolCallResult{Text: "remote ok"}, nil
}

func TestDispatchExternalForwardsToRemoteCaller(t *testing.T) {
	repo := repository.NewInMemory()
	logger, err := audit.NewLogger(audit.Config{Enabled: false})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	engine := governance.NewEngine(repo, fixedClock{now: time.Unix(1_700_000_000, 0)}, &seqRandom{}, logger, 60*time.Second)
	registry := NewRegistry()
	remote := &fakeRemoteCaller{}
	resolver := fakeConnectorResolver{connector: models.Connector{ID: "conn-1", IDHex: "ab", Name: "shopify", Enabled: true}, found: true}
	d := NewDispatcher(registry, resolver, remote, engine)

	result := d.Dispatch(ctxForTenant("tenant-a"), ExternalToolName("ab", "list_orders"), map[string]any{"status": "open"})
	if result.IsError {
		t.Fatalf("expected success, got error: %v", result.Content)
	}
	if remote.calledTool != "list_orders" {
		t.Errorf("expected remote call for list_orders, got %s", remote.calledTool)
	}
	if result.Content["text"] != "remote ok" {
		t.Errorf("expected forwarded text, got %v", result.Content)
	}
}

func TestDispatchExternalDisabledConnectorDenied(t *testing.T) {
	repo := repository.NewInMemory()
	logger, err := audit.NewLogger(audit.Config{Enabled: false})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	engine := governance.NewEngine(repo, fixedClock{now: time.Unix(1_700_000_000, 0)}, &seqRandom{}, logger, 60*time.Second)
	registry := NewRegistry()
	remote := &fakeRemoteCaller{}
	resolver := fakeConnectorResolver{connector: models.Connector{ID: "conn-1", IDHex: "ab", Name: "shopify", Enabled: false}, found: true}
	d := NewDispatcher(registry, resolver, remote, engine)

	result := d.Dispatch(ctxForTenant("tenant-a"), ExternalToolName("ab", "list_orders"), nil)
	if !result.IsError {
		t.Fatal("expected denial for disabled connector")
	}
}
