package tools

import (
	"sync"

	"github.com/netsuite-assist/coordinator/internal/governance"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// entry pairs a local tool's static metadata with the handler that
// implements it.
type entry struct {
	desc    models.ToolDescriptor
	handler governance.Handler
}

// Registry holds the static catalog of local tool descriptors and their
// handlers, keyed by canonical dotted name. External (connector) tools are
// never registered here; they are resolved at dispatch time.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces a tool's descriptor and handler.
func (r *Registry) Register(desc models.ToolDescriptor, handler governance.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[desc.Name] = entry{desc: desc, handler: handler}
}

// Lookup returns the descriptor and handler registered for a canonical
// dotted name.
func (r *Registry) Lookup(canonicalName string) (models.ToolDescriptor, governance.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[canonicalName]
	return e.desc, e.handler, ok
}

// Descriptors returns every registered descriptor, for building the LLM
// tool schema and for operator-facing catalog listings.
func (r *Registry) Descriptors() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	return out
}
