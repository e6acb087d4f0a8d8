package core

import (
	"context"
	"errors"
	"fmt"
)

// Orchestrator drives one scenario's services through their lifecycle. It
// exclusively owns the ordered list of service contexts: services start in
// declaration order and tear down in the exact reverse order, with lifecycle
// extensions notified before and after each action in a fixed relative order.
//
// A single controlling goroutine must drive the orchestrator's transitions
// (Declare, Setup, BeforeEach/AfterEach, Teardown); the service list is
// mutated only during setup and iterated, never mutated, during teardown and
// notification fan-out, so the orchestrator carries no lock of its own.
type Orchestrator struct {
	scenario   *ScenarioContext
	registry   *Registry
	extensions []LifecycleExtension
	services   []*ServiceContext
	closed     bool
}

// NewOrchestrator creates an orchestrator for the scenario, freezing the
// registry and filtering the applicable extensions once. The filtered
// extension list is fixed for the scenario's duration.
func NewOrchestrator(scenario *ScenarioContext, registry *Registry) *Orchestrator {
	registry.freeze()
	return &Orchestrator{
		scenario:   scenario,
		registry:   registry,
		extensions: registry.ExtensionsFor(scenario),
	}
}

// Scenario returns the scenario context this orchestrator drives.
func (o *Orchestrator) Scenario() *ScenarioContext {
	return o.scenario
}

// Services returns the service contexts in declaration order.
func (o *Orchestrator) Services() []*ServiceContext {
	out := make([]*ServiceContext, len(o.services))
	copy(out, o.services)
	return out
}

// Declare registers a service in declaration order. The returned context is
// in the Declared state; no resource exists until Setup resolves it.
func (o *Orchestrator) Declare(name string, desc ServiceDescriptor, autoStart bool) (*ServiceContext, error) {
	if o.closed {
		return nil, fmt.Errorf("declare service %s: %w", name, ErrScenarioClosed)
	}
	if name == "" {
		return nil, errors.New("declare service: name must not be empty")
	}
	for _, existing := range o.services {
		if existing.Name() == name {
			return nil, fmt.Errorf("declare service %s: %w", name, ErrDuplicateService)
		}
	}

	svc := newServiceContext(name, o.scenario, desc, autoStart, len(o.services))
	o.services = append(o.services, svc)
	return svc, nil
}

// Setup runs the scenario startup sequence:
//
//  1. BeforeAll extension fan-out.
//  2. Every declared service is resolved to a binding and its resource is
//     constructed, in declaration order, with the UpdateServiceContext hook
//     fired before each construction. A service with no matching binding or
//     a failing construction aborts setup before any service has started.
//  3. Each auto-start service starts in declaration order, preceded by the
//     OnServiceLaunch fan-out. Non-auto-start services stay Resolved.
//
// Any failure marks the scenario as failed, notifies OnError, and is
// returned; the orchestrator never retries a start on its own.
func (o *Orchestrator) Setup(ctx context.Context) error {
	if o.closed {
		return fmt.Errorf("scenario setup: %w", ErrScenarioClosed)
	}

	log := o.scenario.Logger()
	log.Info("scenario starting", "services", len(o.services))

	for _, ext := range o.extensions {
		if err := ext.BeforeAll(o.scenario); err != nil {
			return o.fail(fmt.Errorf("extension beforeAll: %w", err))
		}
	}

	// Resolve everything before starting anything, so an unsupported or
	// broken declaration never leaves earlier services running.
	for _, svc := range o.services {
		if err := o.resolveService(svc); err != nil {
			return o.fail(err)
		}
	}

	for _, svc := range o.services {
		if !svc.AutoStart() {
			log.Debug("service auto start is off", "service", svc.Name())
			continue
		}
		if err := o.launchService(ctx, svc); err != nil {
			return o.fail(err)
		}
	}
	return nil
}

// resolveService fires UpdateServiceContext, selects the binding, constructs
// the resource, and transitions the service Declared→Resolved.
func (o *Orchestrator) resolveService(svc *ServiceContext) error {
	if svc.State() != StateDeclared {
		return nil
	}
	for _, ext := range o.extensions {
		if err := ext.UpdateServiceContext(svc); err != nil {
			return fmt.Errorf("extension updateServiceContext for %s: %w", svc.Name(), err)
		}
	}

	binding, err := o.registry.ResolveBinding(svc)
	if err != nil {
		return err
	}

	resource, err := binding.Init(svc)
	if err != nil {
		return fmt.Errorf("binding %s for service %s: %w: %w",
			binding.Name(), svc.Name(), ErrBackendInitialization, err)
	}
	if resource == nil {
		return fmt.Errorf("binding %s for service %s: %w: binding returned nil resource",
			binding.Name(), svc.Name(), ErrBackendInitialization)
	}

	o.scenario.Logger().Debug("service resolved",
		"service", svc.Name(), "binding", binding.Name(), "resource", resource.DisplayName())
	return svc.resolve(resource)
}

// launchService fires OnServiceLaunch and starts the service.
func (o *Orchestrator) launchService(ctx context.Context, svc *ServiceContext) error {
	o.scenario.Logger().Info("service starting",
		"service", svc.Name(), "resource", svc.Resource().DisplayName())

	for _, ext := range o.extensions {
		if err := ext.OnServiceLaunch(o.scenario, svc); err != nil {
			return fmt.Errorf("extension onServiceLaunch for %s: %w", svc.Name(), err)
		}
	}
	return svc.Start(ctx)
}

// BeforeEach notifies extensions that a test is starting and restarts any
// auto-start service found not running, mirroring the setup launch path.
func (o *Orchestrator) BeforeEach(ctx context.Context) error {
	if o.closed {
		return fmt.Errorf("scenario beforeEach: %w", ErrScenarioClosed)
	}
	for _, ext := range o.extensions {
		if err := ext.BeforeEach(o.scenario); err != nil {
			return o.fail(fmt.Errorf("extension beforeEach: %w", err))
		}
	}
	for _, svc := range o.services {
		if svc.AutoStart() && !svc.IsRunning() && svc.State() != StateClosed {
			if err := svc.Start(ctx); err != nil {
				return o.fail(err)
			}
		}
	}
	return nil
}

// AfterEach notifies extensions that a test has finished.
func (o *Orchestrator) AfterEach(ctx context.Context) error {
	_ = ctx
	if o.closed {
		return fmt.Errorf("scenario afterEach: %w", ErrScenarioClosed)
	}
	for _, ext := range o.extensions {
		if err := ext.AfterEach(o.scenario); err != nil {
			return o.fail(fmt.Errorf("extension afterEach: %w", err))
		}
	}
	return nil
}

// OnError marks the scenario as failed and then notifies extensions. The
// flag is set before any OnError hook runs, so tooling observing the hook
// can always correlate a failed scenario with a retained log.
func (o *Orchestrator) OnError(cause error) {
	o.scenario.MarkFailed()
	o.scenario.Logger().Error("scenario failed", "error", cause)
	for _, ext := range o.extensions {
		ext.OnError(o.scenario, cause)
	}
}

// OnSuccess notifies extensions of a successful test.
func (o *Orchestrator) OnSuccess() {
	for _, ext := range o.extensions {
		ext.OnSuccess(o.scenario)
	}
}

// OnDisabled notifies extensions of a skipped test.
func (o *Orchestrator) OnDisabled(reason string) {
	for _, ext := range o.extensions {
		ext.OnDisabled(o.scenario, reason)
	}
}

// Parameter resolves a named injected value from the scenario's extensions,
// first registered hit wins.
func (o *Orchestrator) Parameter(name string) (any, bool) {
	for _, ext := range o.extensions {
		if v, ok := ext.Parameter(name); ok {
			return v, true
		}
	}
	return nil, false
}

// fail records the failure on the scenario, fans out OnError, and returns
// cause so callers re-raise it.
func (o *Orchestrator) fail(cause error) error {
	o.OnError(cause)
	return cause
}

// Teardown closes every service in the exact reverse of declaration order.
// A failure in one service's teardown never prevents the remaining ones from
// being attempted; all collected errors surface as a single aggregate after
// every teardown has run. The scenario's log artifact is then finalized
// (deleted on success, retained on failure) and the AfterAll fan-out runs
// last. Idempotent: subsequent calls return nil.
func (o *Orchestrator) Teardown(ctx context.Context) error {
	if o.closed {
		return nil
	}
	o.closed = true

	log := o.scenario.Logger()
	log.Info("scenario tearing down")

	var errs []error
	for i := len(o.services) - 1; i >= 0; i-- {
		svc := o.services[i]
		if err := svc.Close(ctx); err != nil {
			log.Error("service teardown failed", "service", svc.Name(), "error", err)
			errs = append(errs, err)
		}
	}

	// A broken teardown is not a successful completion: retain the log.
	if len(errs) > 0 {
		o.scenario.MarkFailed()
	}

	if err := o.scenario.FinalizeArtifacts(); err != nil {
		errs = append(errs, err)
	}

	for _, ext := range o.extensions {
		if err := ext.AfterAll(o.scenario); err != nil {
			errs = append(errs, fmt.Errorf("extension afterAll: %w", err))
		}
	}

	return errors.Join(errs...)
}
