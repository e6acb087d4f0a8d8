package core

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of a ServiceContext.
//
// Transitions: Declared → Resolved → Running ⇄ Stopped → Closed. Declared is
// the initial state (the service is known, no resource exists yet). Resolved
// means a ManagedResource instance exists but has not started. Running and
// Stopped toggle via Start and Stop; a Start from Stopped after a prior
// Running updates the backend in place rather than re-initializing it.
// Closed is terminal and irreversible, reached only at scenario teardown.
type State string

const (
	StateDeclared State = "Declared"
	StateResolved State = "Resolved"
	StateRunning  State = "Running"
	StateStopped  State = "Stopped"
	StateClosed   State = "Closed"
)

// ServiceHook runs around a service start. Hooks registered via OnPreStart
// and OnPostStart fire on every start, including restarts.
type ServiceHook func(svc *ServiceContext)

// ServiceContext is the runtime record binding one declared service to its
// resolved ManagedResource and configuration. It owns exactly one resource,
// holds the per-service mutable store seeded from declared properties, and
// keeps a non-owning back-reference to its scenario.
//
// Lifecycle transitions are driven by the single controlling goroutine of
// the orchestrator; the store uses its own lock because extensions and test
// code may read and write properties concurrently with readiness polling.
type ServiceContext struct {
	name      string
	owner     *ScenarioContext
	desc      ServiceDescriptor
	autoStart bool
	order     int

	storeMu sync.Mutex
	store   map[string]string

	mu        sync.Mutex
	state     State
	resource  ManagedResource
	preStart  []ServiceHook
	postStart []ServiceHook
}

// newServiceContext creates a ServiceContext in the Declared state.
// The store is seeded empty; declared properties stay in the descriptor and
// are consulted by the cascading lookup at their own resolution step.
func newServiceContext(name string, owner *ScenarioContext, desc ServiceDescriptor, autoStart bool, order int) *ServiceContext {
	return &ServiceContext{
		name:      name,
		owner:     owner,
		desc:      desc,
		autoStart: autoStart,
		order:     order,
		store:     map[string]string{},
		state:     StateDeclared,
	}
}

// Name returns the declared service name.
func (s *ServiceContext) Name() string {
	return s.name
}

// Owner returns the scenario this service belongs to.
func (s *ServiceContext) Owner() *ScenarioContext {
	return s.owner
}

// Descriptor returns the immutable declared descriptor.
func (s *ServiceContext) Descriptor() ServiceDescriptor {
	return s.desc
}

// AutoStart reports whether the orchestrator starts this service during
// scenario setup. A non-auto-start service is still resolved (constructed)
// but remains in the Resolved state, skipped by the startup fan-out.
func (s *ServiceContext) AutoStart() bool {
	return s.autoStart
}

// Order returns the service's declaration position within its scenario.
func (s *ServiceContext) Order() int {
	return s.order
}

// Folder returns (and creates) this service's folder under the scenario's
// artifact directory.
func (s *ServiceContext) Folder() (string, error) {
	return s.owner.ServiceFolder(s.name)
}

// State returns the current lifecycle state.
func (s *ServiceContext) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Resource returns the owned managed resource, or nil before resolution.
func (s *ServiceContext) Resource() ManagedResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resource
}

// Set writes a value into the per-service store, the highest-priority step
// of the cascading property resolution.
func (s *ServiceContext) Set(key, value string) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.store[key] = value
}

// StoreValue reads a value from the per-service store.
func (s *ServiceContext) StoreValue(key string) (string, bool) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	v, ok := s.store[key]
	return v, ok
}

// DeclaredProperty reads a service-declared static property.
func (s *ServiceContext) DeclaredProperty(key string) (string, bool) {
	v, ok := s.desc.Properties[key]
	return v, ok
}

// OnPreStart registers a hook invoked immediately before every resource
// start, including restarts.
func (s *ServiceContext) OnPreStart(hook ServiceHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preStart = append(s.preStart, hook)
}

// OnPostStart registers a hook invoked immediately after every successful
// resource start, including restarts.
func (s *ServiceContext) OnPostStart(hook ServiceHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postStart = append(s.postStart, hook)
}

// IsRunning reports whether the resource's readiness gate has fired. It is
// false before resolution and after Close, and never blocks beyond the
// resource's buffered-state read.
func (s *ServiceContext) IsRunning() bool {
	s.mu.Lock()
	res := s.resource
	state := s.state
	s.mu.Unlock()
	if res == nil || state == StateClosed {
		return false
	}
	return res.IsRunning()
}

// resolve installs the constructed resource, transitioning Declared→Resolved.
func (s *ServiceContext) resolve(res ManagedResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDeclared {
		return fmt.Errorf("resolve service %s: illegal transition from %s", s.name, s.state)
	}
	s.resource = res
	s.state = StateResolved
	return nil
}

// Start starts the owned resource, transitioning to Running. Idempotent
// while already Running. A Start from Stopped routes through the resource's
// update path; the resource itself distinguishes first start from restart.
func (s *ServiceContext) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return nil
	case StateResolved, StateStopped:
		// Legal start states.
	case StateClosed:
		s.mu.Unlock()
		return fmt.Errorf("start service %s: %w", s.name, ErrServiceClosed)
	default:
		s.mu.Unlock()
		return fmt.Errorf("start service %s: illegal transition from %s", s.name, s.state)
	}
	res := s.resource
	pre := append([]ServiceHook(nil), s.preStart...)
	post := append([]ServiceHook(nil), s.postStart...)
	s.mu.Unlock()

	for _, hook := range pre {
		hook(s)
	}
	if err := res.Start(ctx); err != nil {
		return fmt.Errorf("start service %s: %w", s.name, err)
	}
	for _, hook := range post {
		hook(s)
	}

	s.mu.Lock()
	if s.state != StateClosed {
		s.state = StateRunning
	}
	s.mu.Unlock()
	return nil
}

// Stop stops the owned resource, transitioning to Stopped. The resource
// preserves enough state for a later Start to resume as an update. No-op
// unless currently Running.
func (s *ServiceContext) Stop(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	res := s.resource
	s.mu.Unlock()
	if state == StateClosed {
		return fmt.Errorf("stop service %s: %w", s.name, ErrServiceClosed)
	}
	if state != StateRunning {
		return nil
	}

	if err := res.Stop(ctx); err != nil {
		return fmt.Errorf("stop service %s: %w", s.name, err)
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopped
	}
	s.mu.Unlock()
	return nil
}

// Restart stops then starts the resource. On an already-initialized resource
// the start half routes through the backend's update path.
func (s *ServiceContext) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Close releases the service's external resources and transitions to the
// terminal Closed state. Idempotent: closing a Closed service returns nil.
func (s *ServiceContext) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	res := s.resource
	wasRunning := s.state == StateRunning
	s.state = StateClosed
	s.mu.Unlock()

	if res != nil && wasRunning {
		if err := res.Stop(ctx); err != nil {
			return fmt.Errorf("close service %s: %w", s.name, err)
		}
	}
	return nil
}
