package jester

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/Sgitario/jester/internal/config"
	"github.com/Sgitario/jester/internal/core"
)

// Scenario is the public facade over one test run: a set of declared
// services, their shared context, and the lifecycle that starts them in
// declaration order and tears them down in reverse.
//
// A single controlling goroutine must drive Declare, Start, BeforeEach,
// AfterEach, and Close; the per-service accessors on Service are safe to use
// from test goroutines while the scenario is up.
type Scenario struct {
	orc      *core.Orchestrator
	services map[string]*Service
}

// NewScenario creates a scenario named name: its artifact directory and log
// file are created, the artifact lock acquired, and the configuration
// cascade assembled from the properties file and the process environment.
// The caller must call Close to release the resources, typically deferred.
func NewScenario(ctx context.Context, name string, opts ...ScenarioOption) (*Scenario, error) {
	cfg := scenarioConfig{
		logDir:         filepath.Join(os.TempDir(), DefaultLogDirName),
		propertiesFile: DefaultPropertiesFileName,
		envPrefix:      DefaultEnvPrefix,
		registry:       core.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	props, err := config.LoadFile(cfg.propertiesFile)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: load properties: %w", name, err)
	}
	for k, v := range cfg.properties {
		props[k] = v
	}

	scn, err := core.NewScenarioContext(ctx, core.ScenarioContextParams{
		Name:       name,
		LogDir:     cfg.logDir,
		Properties: props,
		Global:     config.NewEnvSource(cfg.envPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	return &Scenario{
		orc:      core.NewOrchestrator(scn, cfg.registry),
		services: map[string]*Service{},
	}, nil
}

// Declare adds a service to the scenario. Services start in declaration
// order; nothing is provisioned until Start. The name must be unique within
// the scenario.
func (s *Scenario) Declare(name string, desc ServiceDescriptor, opts ...ServiceOption) (*Service, error) {
	cfg := serviceConfig{autoStart: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.properties) > 0 {
		merged := make(map[string]string, len(desc.Properties)+len(cfg.properties))
		for k, v := range desc.Properties {
			merged[k] = v
		}
		for k, v := range cfg.properties {
			merged[k] = v
		}
		desc.Properties = merged
	}

	sctx, err := s.orc.Declare(name, desc, cfg.autoStart)
	if err != nil {
		return nil, err
	}
	svc := &Service{ctx: sctx}
	s.services[name] = svc
	return svc, nil
}

// Start resolves every declared service to a backend and starts the
// auto-start ones in declaration order. All services resolve before any
// starts, so a declaration without a matching binding fails the scenario
// with nothing provisioned. On any failure the scenario is marked as failed
// and the error returned; Close still must be called.
func (s *Scenario) Start(ctx context.Context) error {
	return s.orc.Setup(ctx)
}

// Close tears the scenario down: every service closes in the exact reverse
// of declaration order, each teardown attempted regardless of earlier
// failures, and all errors surface as one aggregate. The scenario log is
// then deleted if the scenario passed and retained if it failed. Idempotent.
func (s *Scenario) Close(ctx context.Context) error {
	return s.orc.Teardown(ctx)
}

// BeforeEach marks the start of one test against the scenario: extensions
// are notified and any auto-start service found stopped is started again.
func (s *Scenario) BeforeEach(ctx context.Context) error {
	return s.orc.BeforeEach(ctx)
}

// AfterEach marks the end of one test against the scenario.
func (s *Scenario) AfterEach(ctx context.Context) error {
	return s.orc.AfterEach(ctx)
}

// Fail marks the scenario as failed and notifies extensions. The failure
// flag is one-way and makes the scenario log artifact survive Close.
func (s *Scenario) Fail(cause error) {
	s.orc.OnError(cause)
}

// Succeed notifies extensions of a successful test.
func (s *Scenario) Succeed() {
	s.orc.OnSuccess()
}

// Disable notifies extensions that the scenario's test was skipped.
func (s *Scenario) Disable(reason string) {
	s.orc.OnDisabled(reason)
}

// Failed reports whether the scenario has been marked as failed.
func (s *Scenario) Failed() bool {
	return s.orc.Scenario().Failed()
}

// ID returns the scenario's unique identifier.
func (s *Scenario) ID() string {
	return s.orc.Scenario().ID()
}

// Name returns the scenario's name.
func (s *Scenario) Name() string {
	return s.orc.Scenario().Name()
}

// LogFile returns the path of the scenario's log artifact. The file exists
// while the scenario is up; after Close it remains only for failed runs.
func (s *Scenario) LogFile() string {
	return s.orc.Scenario().LogFile()
}

// Logger returns a logger writing into the scenario's log artifact.
func (s *Scenario) Logger() *slog.Logger {
	return s.orc.Scenario().Logger()
}

// Service returns the declared service by name.
func (s *Scenario) Service(name string) (*Service, bool) {
	svc, ok := s.services[name]
	return svc, ok
}

// Parameter resolves a named value injected by the scenario's extensions,
// first registered extension wins.
func (s *Scenario) Parameter(name string) (any, bool) {
	return s.orc.Parameter(name)
}

// Context returns the underlying scenario context handed to bindings and
// extensions.
func (s *Scenario) Context() *ScenarioContext {
	return s.orc.Scenario()
}

// Service is the public facade over one declared service: lifecycle control,
// endpoint discovery, log inspection, and the configuration cascade.
type Service struct {
	ctx *core.ServiceContext
}

// Name returns the declared service name.
func (s *Service) Name() string {
	return s.ctx.Name()
}

// State returns the service's lifecycle state.
func (s *Service) State() State {
	return s.ctx.State()
}

// Start starts the service. A first start provisions the backing resource;
// a start after Stop routes through the backend's update path, reusing what
// the first start provisioned. No-op while already running.
func (s *Service) Start(ctx context.Context) error {
	return s.ctx.Start(ctx)
}

// Stop stops the backing resource while keeping enough state for a later
// Start to resume. No-op unless the service is running.
func (s *Service) Stop(ctx context.Context) error {
	return s.ctx.Stop(ctx)
}

// Restart stops then starts the service.
func (s *Service) Restart(ctx context.Context) error {
	return s.ctx.Restart(ctx)
}

// IsRunning reports whether the service's readiness gate has fired: for
// log-gated backends, whether the expected log line has been observed. It
// never blocks on the backend.
func (s *Service) IsRunning() bool {
	return s.ctx.IsRunning()
}

// WaitUntilReady polls the readiness gate until it fires or the startup
// timeout elapses. The timeout is DefaultStartupTimeout unless the service
// property "startup.timeout" resolves to a parsable duration.
func (s *Service) WaitUntilReady(ctx context.Context) error {
	timeout := DefaultStartupTimeout
	if raw := s.Property(StartupTimeoutProperty); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("service %s: property %s=%q: %w",
				s.Name(), StartupTimeoutProperty, raw, ErrInvalidConfigValue)
		}
		timeout = d
	}

	// Backends that can fail fast (e.g. on process exit) wait themselves.
	if waiter, ok := s.ctx.Resource().(ReadinessWaiter); ok {
		return waiter.WaitReady(ctx, DefaultReadinessInterval, timeout)
	}

	err := wait.PollUntilContextTimeout(ctx, DefaultReadinessInterval, timeout, true,
		func(context.Context) (bool, error) {
			return s.ctx.IsRunning(), nil
		})
	if err != nil {
		return fmt.Errorf("service %s: not ready after %s: %w", s.Name(), timeout, err)
	}
	return nil
}

// Host returns the address clients use to reach the service. Unavailable
// before the scenario has started.
func (s *Service) Host() (string, error) {
	res := s.ctx.Resource()
	if res == nil {
		return "", fmt.Errorf("service %s: not resolved: %w", s.Name(), ErrUnsupportedEnvironment)
	}
	return res.Host(), nil
}

// MappedPort translates a declared port into the externally reachable one.
// Unavailable before the scenario has started.
func (s *Service) MappedPort(port int) (int, error) {
	res := s.ctx.Resource()
	if res == nil {
		return 0, fmt.Errorf("service %s: not resolved: %w", s.Name(), ErrUnsupportedEnvironment)
	}
	return res.MappedPort(port)
}

// Logs returns a snapshot of the log lines captured from the backing
// resource so far.
func (s *Service) Logs() []string {
	res := s.ctx.Resource()
	if res == nil {
		return nil
	}
	return res.Logs()
}

// LogsContain reports whether any captured log line contains substr.
func (s *Service) LogsContain(substr string) bool {
	for _, line := range s.Logs() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// Property resolves key through the cascading configuration order: the
// service's runtime overrides, the scenario properties, the declared
// properties, then the process environment. Empty when nothing resolves.
func (s *Service) Property(key string) string {
	return core.NewPropertyLookup(key).Get(s.ctx)
}

// PropertyOr resolves key through the cascade with a default.
func (s *Service) PropertyOr(key, def string) string {
	return core.NewPropertyLookup(key).WithDefault(def).Get(s.ctx)
}

// SetProperty writes a runtime override into the service's store, the
// highest-priority step of the cascade. Returns s for chaining.
func (s *Service) SetProperty(key, value string) *Service {
	s.ctx.Set(key, value)
	return s
}

// OnPreStart registers a hook invoked before every start of this service,
// including restarts. Returns s for chaining.
func (s *Service) OnPreStart(hook func(*Service)) *Service {
	s.ctx.OnPreStart(func(*core.ServiceContext) { hook(s) })
	return s
}

// OnPostStart registers a hook invoked after every successful start of this
// service, including restarts. Returns s for chaining.
func (s *Service) OnPostStart(hook func(*Service)) *Service {
	s.ctx.OnPostStart(func(*core.ServiceContext) { hook(s) })
	return s
}

// Context returns the underlying service context handed to bindings and
// extensions.
func (s *Service) Context() *ServiceContext {
	return s.ctx
}
