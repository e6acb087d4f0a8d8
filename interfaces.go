package jester

import "github.com/Sgitario/jester/internal/core"

// ServiceDescriptor declares what backs a service: a container image or a
// local command, the ports it listens on, and the log line that marks it
// ready. Declared properties seed the service's configuration cascade.
type ServiceDescriptor = core.ServiceDescriptor

// ManagedResource is one provisioned backing resource: a Kubernetes workload,
// a local process, or any custom backend. Implementations are driven through
// their owning service and must tolerate Stop after a failed Start.
type ManagedResource = core.ManagedResource

// ResourceBinding resolves declared services to managed resources. The first
// registered binding whose AppliesFor predicate matches a declaration wins.
// Bindings self-register via RegisterBinding, typically from an init function
// triggered by a blank import of the backend package.
type ResourceBinding = core.ResourceBinding

// ReadinessWaiter is optionally implemented by managed resources that can
// wait for readiness more efficiently than generic polling. Service.
// WaitUntilReady prefers it when the backing resource provides one.
type ReadinessWaiter = core.ReadinessWaiter

// LifecycleExtension observes and mutates scenario execution through phase
// callbacks. Embed NoopExtension to implement only the phases of interest.
type LifecycleExtension = core.LifecycleExtension

// NoopExtension is an embeddable LifecycleExtension whose every callback is a
// no-op and whose AppliesFor always matches.
type NoopExtension = core.NoopExtension

// ServiceContext is the runtime record backing a declared service. Bindings
// and extensions receive it to read declarations and share state; test code
// uses the Service facade instead.
type ServiceContext = core.ServiceContext

// ScenarioContext is the shared per-run context handed to bindings and
// extensions: identity, failure state, artifact locations, and configuration.
type ScenarioContext = core.ScenarioContext

// Registry holds registered bindings and extensions. The process-wide
// default registry serves most uses; tests needing isolation construct their
// own with NewRegistry and pass it via WithRegistry.
type Registry = core.Registry

// PropertyLookup resolves one configuration key through the cascading
// resolution order. Backends use it for their tunables.
type PropertyLookup = core.PropertyLookup

// State is the lifecycle state of a service.
type State = core.State

// Lifecycle states of a service. Transitions run
// Declared → Resolved → Running ⇄ Stopped → Closed; Closed is terminal.
const (
	StateDeclared = core.StateDeclared
	StateResolved = core.StateResolved
	StateRunning  = core.StateRunning
	StateStopped  = core.StateStopped
	StateClosed   = core.StateClosed
)

// NewRegistry creates an empty registry, independent of the process-wide
// default. Intended for tests that must not observe globally registered
// bindings or extensions.
func NewRegistry() *Registry {
	return core.NewRegistry()
}

// NewPropertyLookup creates a lookup for key with an empty default.
func NewPropertyLookup(key string) PropertyLookup {
	return core.NewPropertyLookup(key)
}

// RegisterBinding adds a resource binding to the process-wide registry.
// Call it from an init function; registration panics once any scenario has
// used the registry.
func RegisterBinding(b ResourceBinding) {
	core.DefaultRegistry().RegisterBinding(b)
}

// RegisterExtension adds a lifecycle extension to the process-wide registry.
// Call it from an init function; registration panics once any scenario has
// used the registry.
func RegisterExtension(e LifecycleExtension) {
	core.DefaultRegistry().RegisterExtension(e)
}
