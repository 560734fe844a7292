package tools

import (
	"context"
	"fmt"

	"github.com/netsuite-assist/coordinator/internal/governance"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// defaultExternalTimeoutSeconds and defaultExternalRateLimit bound any
// connector tool the dispatcher has not seen a descriptor for; the actual
// connector protocols (NetSuite/Shopify/Stripe) are out of scope, so these
// are the governance defaults applied uniformly to forwarded calls.
const (
	defaultExternalTimeoutSeconds  = 30
	defaultExternalRateLimitPerMin = 20
)

// RemoteCaller forwards a tool call to a connected MCP server, matching
// internal/mcp.Manager.CallTool's signature so the production Manager can
// be passed directly.
type RemoteCaller interface {
	CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*ToolCallResult, error)
}

// ToolCallResult mirrors the subset of internal/mcp.ToolCallResult the
// dispatcher needs, avoiding a hard dependency on the MCP wire types.
type ToolCallResult struct {
	Text    string
	IsError bool
}

// ConnectorResolver looks a connector up by the hex id embedded in an
// external tool's sanitized name.
type ConnectorResolver interface {
	ConnectorByIDHex(ctx context.Context, idHex string) (models.Connector, bool)
}

// Dispatcher routes a sanitized tool name to either a locally registered
// handler or a remote connector, always through the governance Engine so
// rate limiting, policy evaluation, and audit logging apply uniformly.
type Dispatcher struct {
	registry   *Registry
	connectors ConnectorResolver
	remote     RemoteCaller
	engine     *governance.Engine
}

// NewDispatcher builds a Dispatcher. connectors/remote may be nil if the
// deployment has no remote connectors configured; external tool names then
// always fail to resolve.
func NewDispatcher(registry *Registry, connectors ConnectorResolver, remote RemoteCaller, engine *governance.Engine) *Dispatcher {
	return &Dispatcher{registry: registry, connectors: connectors, remote: remote, engine: engine}
}

// Dispatch resolves a sanitized tool name and argument object and routes
// the call through governance. It never returns an error to the caller;
// every failure becomes a structured {"error": "..."} result so an agent
// loop can continue deterministically.
func (d *Dispatcher) Dispatch(ctx context.Context, sanitizedName string, args map[string]any) models.ToolResult {
	if ref, ok := ParseExternal(sanitizedName); ok {
		return d.dispatchExternal(ctx, ref, args)
	}
	return d.dispatchLocal(ctx, sanitizedName, args)
}

func (d *Dispatcher) dispatchLocal(ctx context.Context, sanitizedName string, args map[string]any) models.ToolResult {
	canonical := Desanitize(sanitizedName)
	desc, handler, ok := d.registry.Lookup(canonical)
	if !ok {
		return models.ErrorResult(fmt.Sprintf("Tool '%s' is not allowed in chat.", canonical))
	}
	result, err := d.engine.Execute(ctx, desc, args, handler)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	return result
}

func (d *Dispatcher) dispatchExternal(ctx context.Context, ref ExternalRef, args map[string]any) models.ToolResult {
	if d.connectors == nil || d.remote == nil {
		return models.ErrorResult(fmt.Sprintf("Tool 'ext__%s__%s' is not allowed in chat.", ref.ConnectorIDHex, ref.ToolName))
	}
	connector, ok := d.connectors.ConnectorByIDHex(ctx, ref.ConnectorIDHex)
	if !ok || !connector.Enabled {
		return models.ErrorResult(fmt.Sprintf("Tool 'ext__%s__%s' is not allowed in chat.", ref.ConnectorIDHex, ref.ToolName))
	}

	canonicalToolName := Desanitize(ref.ToolName)
	desc := models.ToolDescriptor{
		Name:               "external." + connector.Name + "." + canonicalToolName,
		TimeoutSeconds:     defaultExternalTimeoutSeconds,
		RateLimitPerMinute: defaultExternalRateLimitPerMin,
	}
	handler := func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
		res, err := d.remote.CallTool(ctx, connector.ID, canonicalToolName, args)
		if err != nil {
			return models.ToolResult{}, err
		}
		return models.ToolResult{
			Content: map[string]any{"text": res.Text},
			IsError: res.IsError,
		}, nil
	}

	result, err := d.engine.Execute(ctx, desc, args, handler)
	if err != nil {
		return models.ErrorResult(err.Error())
	}
	return result
}
