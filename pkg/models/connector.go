package models

// Connector describes a remote MCP-backed integration (NetSuite, Shopify,
// Stripe, or similar) whose tools are resolved at dispatch time rather than
// registered into the local tool registry eagerly. The coordinator only
// consumes connector results; it never implements connector protocols
// itself.
type Connector struct {
	ID      string
	IDHex   string
	Name    string
	Enabled bool
}
