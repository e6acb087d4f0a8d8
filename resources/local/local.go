package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sgitario/jester/internal/core"
	"github.com/Sgitario/jester/internal/logwatch"
	"github.com/Sgitario/jester/internal/netutil"
	"github.com/Sgitario/jester/internal/process"
)

// Host is the address every local service is reachable on.
const Host = "127.0.0.1"

// portEnvPrefix names the environment variables carrying the port mapping:
// a service declaring port 8080 finds its host port in JESTER_PORT_8080.
const portEnvPrefix = "JESTER_PORT_"

// Option configures a Resource during construction.
type Option func(*Resource)

// WithPortRegistry replaces the process-wide port registry. Intended for
// tests exercising allocation in isolation.
func WithPortRegistry(reg *netutil.PortRegistry) Option {
	return func(r *Resource) {
		r.ports = reg
	}
}

// Resource manages one service as a spawned host process. The first Start
// allocates the port mapping and the working directory; restarts spawn a
// fresh process under the same mapping, so endpoints handed to the test stay
// valid across restarts.
type Resource struct {
	svc   *core.ServiceContext
	ports *netutil.PortRegistry

	mu      sync.Mutex
	init    bool
	running bool
	workDir string
	mapping map[int]int
	proc    *process.Process
	stdout  *logwatch.Watcher
	stderr  *logwatch.Watcher
}

var (
	_ core.ManagedResource = (*Resource)(nil)
	_ core.ReadinessWaiter = (*Resource)(nil)
)

// NewResource creates the managed resource for svc.
func NewResource(svc *core.ServiceContext, opts ...Option) *Resource {
	r := &Resource{
		svc:   svc,
		ports: hostPorts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DisplayName identifies the resource in logs.
func (r *Resource) DisplayName() string {
	return "local/" + r.svc.Name()
}

// Start spawns the declared command. The first start allocates free host
// ports for every declared port; later starts reuse the allocation. The
// process's stdout and stderr land in files under the service folder and
// are tailed for readiness.
func (r *Resource) Start(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	name := r.svc.Name()
	if !r.init {
		folder, err := r.svc.Folder()
		if err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		mapping, err := r.ports.AllocateMap(r.svc.Descriptor().Ports)
		if err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		r.workDir = folder
		r.mapping = mapping
		r.init = true
	}

	logger := r.svc.Owner().Logger()
	proc, err := process.Start(name, r.workDir, r.svc.Descriptor().Command, r.portEnv(), logger)
	if err != nil {
		return fmt.Errorf("service %s: %w", name, err)
	}
	r.proc = proc
	r.stdout = logwatch.StartFile(name+"-stdout", proc.StdoutPath(), logwatch.DefaultFilePollInterval, logger)
	r.stderr = logwatch.StartFile(name+"-stderr", proc.StderrPath(), logwatch.DefaultFilePollInterval, logger)

	r.running = true
	return nil
}

// Stop terminates the process, escalating from SIGTERM to SIGKILL after the
// configured grace period. The port mapping and working directory survive
// for the next start.
func (r *Resource) Stop(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}

	r.stdout.Stop()
	r.stderr.Stop()
	err := r.proc.Stop(r.stopTimeout())
	r.proc = nil
	r.running = false
	if err != nil {
		return fmt.Errorf("service %s: %w", r.svc.Name(), err)
	}
	return nil
}

// IsRunning reports whether the process is alive and, when an expected log
// line is declared, whether that line has appeared on stdout or stderr.
func (r *Resource) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.proc == nil {
		return false
	}
	select {
	case <-r.proc.Exited():
		return false
	default:
	}
	expected := r.svc.Descriptor().ExpectedLog
	if expected == "" {
		return true
	}
	return r.stdout.Contains(expected) || r.stderr.Contains(expected)
}

// WaitReady polls the readiness gate, aborting as soon as the process exits
// instead of running out the timeout.
func (r *Resource) WaitReady(ctx context.Context, interval, timeout time.Duration) error {
	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("service %s: not started: %w", r.svc.Name(), core.ErrUnsupportedEnvironment)
	}

	return process.WaitReady(ctx, process.WaitReadyConfig{
		Interval: interval,
		Timeout:  timeout,
		Name:     r.svc.Name(),
		Logger:   r.svc.Owner().Logger(),
		Exited:   proc.Exited(),
	}, func(context.Context) (bool, error) {
		return r.IsRunning(), nil
	})
}

// Host returns the loopback address.
func (r *Resource) Host() string {
	return Host
}

// MappedPort translates a declared port into the allocated host port.
func (r *Resource) MappedPort(port int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mapped, ok := r.mapping[port]; ok {
		return mapped, nil
	}
	return 0, fmt.Errorf("service %s: port %d not allocated: %w",
		r.svc.Name(), port, core.ErrUnsupportedEnvironment)
}

// Logs returns the captured stdout lines followed by the stderr lines.
// The buffers survive Stop.
func (r *Resource) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stdout == nil {
		return nil
	}
	lines := r.stdout.Lines()
	return append(lines, r.stderr.Lines()...)
}

// portEnv renders the port mapping as JESTER_PORT_<declared> variables.
func (r *Resource) portEnv() []string {
	env := make([]string, 0, len(r.mapping))
	for declared, mapped := range r.mapping {
		env = append(env, fmt.Sprintf("%s%d=%d", portEnvPrefix, declared, mapped))
	}
	return env
}

// stopTimeout resolves the termination grace period.
func (r *Resource) stopTimeout() time.Duration {
	raw := core.NewPropertyLookup(StopTimeoutProperty).Get(r.svc)
	if raw == "" {
		return process.DefaultStopTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.svc.Owner().Logger().Warn("invalid stop timeout, using default",
			"service", r.svc.Name(), "value", raw)
		return process.DefaultStopTimeout
	}
	return d
}
