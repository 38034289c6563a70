package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

// registration pairs a backend's builder with its advertised capabilities.
type registration struct {
	build Builder
	caps  Capabilities
}

// Registry maps pub/sub system names to their registered backends. Backend
// packages register themselves in init, so a blank import is enough to make
// a backend selectable through configuration.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// DefaultRegistry is the registry the backend packages register into.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a backend under the name matching the PubSubSystem config
// value, e.g. "kafka". Registering the same name again replaces the earlier
// entry.
func (r *Registry) Register(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registration{build: builder, caps: caps}
}

// CapabilitiesFor returns the advertised capabilities of a registered
// backend, or a zero Capabilities carrying only the name when unknown.
func (r *Registry) CapabilitiesFor(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.entries[name]; ok {
		return reg.caps
	}
	return Capabilities{Name: name}
}

// Build constructs the transport selected by the config's PubSubSystem.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, errors.New("config is required")
	}

	name := cfg.GetPubSubSystem()

	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return Transport{}, fmt.Errorf("unknown transport: %q (registered: %v)", name, r.Names())
	}

	return reg.build(ctx, cfg, logger)
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a backend is registered under the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Register adds a backend to the default registry.
func Register(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.Register(name, builder, caps)
}

// CapabilitiesFor queries the default registry.
func CapabilitiesFor(name string) Capabilities {
	return DefaultRegistry.CapabilitiesFor(name)
}

// Build constructs a transport from the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
