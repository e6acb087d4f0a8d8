package core

import (
	"fmt"
	"sync"
)

// Registry holds the discovered resource bindings and lifecycle extensions.
//
// Implementations self-register at process start (typically from init
// functions triggered by a blank import of the backend package), decoupling
// the orchestrator from any concrete backend. The registry freezes on first
// use by a scenario: the discovered lists are fixed from then on, making
// binding resolution deterministic for the life of the process.
type Registry struct {
	mu         sync.Mutex
	frozen     bool
	bindings   []ResourceBinding
	extensions []LifecycleExtension
}

// defaultRegistry is the process-wide registry that init-time registration
// targets. Tests that need isolation construct their own via NewRegistry.
var defaultRegistry = NewRegistry()

// NewRegistry creates an empty, unfrozen Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// RegisterBinding appends a resource binding in registration order.
// Panics if b is nil or the registry is already frozen: registration is an
// initialization-time concern, and a late registration is a programmer error.
func (r *Registry) RegisterBinding(b ResourceBinding) {
	if b == nil {
		panic("jester: RegisterBinding called with nil binding")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("jester: RegisterBinding(%s) after registry freeze", b.Name()))
	}
	r.bindings = append(r.bindings, b)
}

// RegisterExtension appends a lifecycle extension in registration order.
// Panics if e is nil or the registry is already frozen.
func (r *Registry) RegisterExtension(e LifecycleExtension) {
	if e == nil {
		panic("jester: RegisterExtension called with nil extension")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("jester: RegisterExtension after registry freeze")
	}
	r.extensions = append(r.extensions, e)
}

// freeze fixes the discovered lists. Called by the orchestrator when a
// scenario first uses the registry; idempotent.
func (r *Registry) freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Bindings returns the registered bindings in registration order.
func (r *Registry) Bindings() []ResourceBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResourceBinding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// ResolveBinding selects the binding serving the declared service: the first
// registered binding whose predicate matches wins. Returns an error wrapping
// ErrUnsupportedBackend when no predicate matches.
func (r *Registry) ResolveBinding(svc *ServiceContext) (ResourceBinding, error) {
	for _, b := range r.Bindings() {
		if b.AppliesFor(svc) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("service %s: %w", svc.Name(), ErrUnsupportedBackend)
}

// ExtensionsFor filters the registered extensions through their AppliesFor
// predicate for the given scenario. The returned list is fixed for the
// scenario's duration and receives every subsequent phase callback in
// registration order.
func (r *Registry) ExtensionsFor(scenario *ScenarioContext) []LifecycleExtension {
	r.mu.Lock()
	all := make([]LifecycleExtension, len(r.extensions))
	copy(all, r.extensions)
	r.mu.Unlock()

	var applicable []LifecycleExtension
	for _, e := range all {
		if e.AppliesFor(scenario) {
			applicable = append(applicable, e)
		}
	}
	return applicable
}
