package bot

import (
	"slices"
	"sync"
)

// Registry collects the modules a bot instance loads at startup.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends m to the registry. Modules are initialized in
// registration order.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = append(r.modules, m)
}

// Modules returns a copy of the registered modules.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// globalRegistry receives modules that self-register from init().
// Blank-importing a module package is what wires it into the binary.
var globalRegistry = NewRegistry()

// Register adds a module to the global registry. Called from module
// init() functions.
func Register(m Module) {
	globalRegistry.Register(m)
}

// Modules returns the modules in the global registry.
func Modules() []Module {
	return globalRegistry.Modules()
}
