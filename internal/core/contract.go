package core

import (
	"context"
	"time"
)

// ServiceDescriptor enumerates the immutable backend parameters of a declared
// service. It replaces annotation-driven metadata with an explicit value
// handed to the registry at declaration time; binding predicates inspect it
// to decide whether they apply.
type ServiceDescriptor struct {
	// Image is the container image to run. Backends that host containers or
	// deployments require it; the local-process backend requires it empty.
	Image string

	// Command is the command (and arguments) the backend runs. For image
	// based backends it overrides the image's entrypoint when non-empty.
	Command []string

	// Ports are the ports the service listens on, as declared. The
	// externally reachable port for each is backend-assigned and may differ;
	// resolve it through MappedPort.
	Ports []int

	// ExpectedLog is the readiness gate: the resource only reports running
	// once this substring has been observed in its output. Empty disables
	// the gate for backends that have another notion of liveness.
	ExpectedLog string

	// Properties are the service-declared static properties, the third step
	// of the cascading property resolution.
	Properties map[string]string
}

// ManagedResource is the contract every backend implementation satisfies: a
// controllable backing instance (process, container, deployment) behind a
// uniform start/stop/observe surface.
//
// Start transitions the resource into an initialized-or-updated state: the
// first call per construction initializes the backend, later calls after a
// Stop update it in place rather than re-initializing. Start is idempotent
// while the resource is already running. Stop releases external resources
// but preserves enough state for a later Start to resume as an update.
//
// Start and Stop may block on network calls to the backend; callers must not
// assume sub-millisecond completion. IsRunning must never block beyond a
// non-blocking read of buffered observation state: it reports true only once
// the backend-specific readiness signal has fired, not merely once Start
// returned.
type ManagedResource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// DisplayName identifies the resource in logs and errors.
	DisplayName() string

	// Host returns the address at which the resource's ports are reachable.
	Host() string

	// MappedPort resolves a declared port to its externally reachable port.
	// Returns an error wrapping ErrUnsupportedEnvironment when no running
	// instance backs the lookup.
	MappedPort(port int) (int, error)

	// IsRunning reports whether the readiness gate has fired.
	IsRunning() bool

	// Logs returns a finite snapshot of the accumulated output. Re-reading
	// returns the current buffer, not a continuation.
	Logs() []string
}

// ReadinessWaiter is optionally implemented by managed resources that can
// wait for their readiness gate more efficiently than generic polling, for
// example by failing fast when the backing process exits. The facade's
// WaitUntilReady prefers it over polling IsRunning.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context, interval, timeout time.Duration) error
}

// ResourceBinding is a predicate-gated factory that produces a
// ManagedResource for a declared service. Bindings self-register into a
// Registry at process start; the registry tries them in registration order
// and uses the first whose predicate matches.
type ResourceBinding interface {
	// Name identifies the binding in logs and errors.
	Name() string

	// AppliesFor reports whether this binding can serve the declared
	// service. Predicates of co-registered bindings should be mutually
	// exclusive; ties resolve to first-registered.
	AppliesFor(svc *ServiceContext) bool

	// Init constructs the managed resource for the service. Failures are
	// wrapped in ErrBackendInitialization by the orchestrator.
	Init(svc *ServiceContext) (ManagedResource, error)
}

// LifecycleExtension is a pluggable observer/mutator invoked at fixed points
// of scenario setup and teardown. Extensions are filtered once per scenario
// via AppliesFor; the filtered list then receives every phase callback, in
// registration order, for the scenario's duration.
//
// Phase hooks returning a non-nil error propagate to the orchestrator's
// caller like any other failure; they are not isolated from each other.
// Embed NoopExtension to implement only the hooks of interest.
type LifecycleExtension interface {
	AppliesFor(scenario *ScenarioContext) bool

	BeforeAll(scenario *ScenarioContext) error
	AfterAll(scenario *ScenarioContext) error
	BeforeEach(scenario *ScenarioContext) error
	AfterEach(scenario *ScenarioContext) error

	// UpdateServiceContext runs before a service's resource is constructed,
	// allowing the extension to mutate shared state (e.g. inject
	// configuration) prior to start.
	UpdateServiceContext(svc *ServiceContext) error

	// OnServiceLaunch runs immediately before a service's Start.
	OnServiceLaunch(scenario *ScenarioContext, svc *ServiceContext) error

	// Failure/outcome notifications. These do not return errors: they run
	// on paths that already carry an outcome.
	OnError(scenario *ScenarioContext, cause error)
	OnSuccess(scenario *ScenarioContext)
	OnDisabled(scenario *ScenarioContext, reason string)

	// Parameter exposes a named value for explicit dependency passing to
	// calling code, replacing reflective injection. ok is false when the
	// extension does not provide the name.
	Parameter(name string) (value any, ok bool)
}

// NoopExtension is an embeddable LifecycleExtension that applies to every
// scenario and does nothing. Embedders override only the hooks they need.
type NoopExtension struct{}

// AppliesFor implements LifecycleExtension.
func (NoopExtension) AppliesFor(*ScenarioContext) bool { return true }

// BeforeAll implements LifecycleExtension.
func (NoopExtension) BeforeAll(*ScenarioContext) error { return nil }

// AfterAll implements LifecycleExtension.
func (NoopExtension) AfterAll(*ScenarioContext) error { return nil }

// BeforeEach implements LifecycleExtension.
func (NoopExtension) BeforeEach(*ScenarioContext) error { return nil }

// AfterEach implements LifecycleExtension.
func (NoopExtension) AfterEach(*ScenarioContext) error { return nil }

// UpdateServiceContext implements LifecycleExtension.
func (NoopExtension) UpdateServiceContext(*ServiceContext) error { return nil }

// OnServiceLaunch implements LifecycleExtension.
func (NoopExtension) OnServiceLaunch(*ScenarioContext, *ServiceContext) error { return nil }

// OnError implements LifecycleExtension.
func (NoopExtension) OnError(*ScenarioContext, error) {}

// OnSuccess implements LifecycleExtension.
func (NoopExtension) OnSuccess(*ScenarioContext) {}

// OnDisabled implements LifecycleExtension.
func (NoopExtension) OnDisabled(*ScenarioContext, string) {}

// Parameter implements LifecycleExtension.
func (NoopExtension) Parameter(string) (any, bool) { return nil, false }
