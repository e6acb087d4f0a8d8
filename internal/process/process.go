package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// DefaultStopTimeout is the fallback timeout for stopping a process when the
// caller does not configure one.
const DefaultStopTimeout = 10 * time.Second

// termGracePeriod is the maximum time to wait for a process to exit after
// SIGTERM before escalating to SIGKILL. The actual grace period is capped at
// the overall stop timeout.
const termGracePeriod = 5 * time.Second

// killDrainTimeout is the hard upper bound for waiting on the wait channel
// after SIGKILL has been sent (or after the process has already exited).
// SIGKILL cannot be caught, so this should never fire; it exists to prevent
// indefinite blocking if cmd.Wait hangs on stuck I/O.
const killDrainTimeout = 10 * time.Second

// Process is a started child process whose stdout and stderr are captured in
// files under its working directory. The wait goroutine delivering the
// cmd.Wait result is started by Start; Stop consumes it.
type Process struct {
	name string
	dir  string
	cmd  *exec.Cmd
	done chan error
	// exited is closed by the wait goroutine when the process terminates,
	// letting readiness polls abort early instead of running out the clock.
	exited chan struct{}

	stdout *os.File
	stderr *os.File

	log *slog.Logger
}

// Start launches command inside dir with the given extra environment
// (appended to the parent's), writing stdout and stderr to
// "<name>-stdout.log" / "<name>-stderr.log" in dir. The command slice must
// have at least one element. If logger is nil, slog.Default() is used.
func Start(name, dir string, command, extraEnv []string, logger *slog.Logger) (*Process, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("start %s: command must not be empty", name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Process{
		name:   name,
		dir:    dir,
		done:   make(chan error, 1),
		exited: make(chan struct{}),
		log:    logger.With("process", name),
	}

	stdout, err := os.Create(p.StdoutPath())
	if err != nil {
		return nil, fmt.Errorf("create %s stdout log: %w", name, err)
	}
	stderr, err := os.Create(p.StderrPath())
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("create %s stderr log: %w", name, err)
	}
	p.stdout = stdout
	p.stderr = stderr

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		p.closeLogs()
		return nil, fmt.Errorf("start %s process: %w", name, err)
	}
	p.cmd = cmd

	go func() {
		err := cmd.Wait()
		close(p.exited)
		p.done <- err
	}()

	p.log.Debug("process started", "pid", cmd.Process.Pid)
	return p, nil
}

// StdoutPath returns the absolute path to the stdout log file.
func (p *Process) StdoutPath() string {
	return filepath.Join(p.dir, p.name+"-stdout.log")
}

// StderrPath returns the absolute path to the stderr log file.
func (p *Process) StderrPath() string {
	return filepath.Join(p.dir, p.name+"-stderr.log")
}

// Exited returns a channel that is closed once the process has terminated,
// for any reason. Readiness polls select on it to fail fast when the process
// dies before becoming ready.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Stop shuts the process down: SIGTERM first, SIGKILL after a grace period,
// bounded overall by timeout. Exit statuses caused by either signal count as
// a successful stop. Log files are closed on every path. Safe to call on a
// process that has already exited.
func (p *Process) Stop(timeout time.Duration) error {
	defer p.closeLogs()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone; drain the wait goroutine with a hard upper bound.
		ok, waitErr := drainDone(p.done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out draining process after signal failure", p.name)
		}
		return expectSignalExit(waitErr, p.name)
	}

	// Escalate after the grace period unless the process exits first.
	// grace is clamped to timeout so SIGKILL always fires while the total
	// timer is still running, giving the drain a window to collect the
	// exit status.
	grace := min(termGracePeriod, timeout)
	killTimer := time.AfterFunc(grace, func() {
		// Kill after exit is a harmless no-op error from the os package.
		_ = p.cmd.Process.Kill()
	})
	defer killTimer.Stop()

	totalTimer := time.NewTimer(timeout)
	defer totalTimer.Stop()

	select {
	case err := <-p.done:
		return expectSignalExit(err, p.name)
	case <-totalTimer.C:
		ok, waitErr := drainDone(p.done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out waiting for process to exit after SIGKILL", p.name)
		}
		if err := expectSignalExit(waitErr, p.name); err != nil {
			return fmt.Errorf("%s stop timeout: %w", p.name, err)
		}
		return nil
	}
}

// closeLogs closes both log file handles and nils them to prevent double-close.
func (p *Process) closeLogs() {
	if p.stdout != nil {
		_ = p.stdout.Close()
		p.stdout = nil
	}
	if p.stderr != nil {
		_ = p.stderr.Close()
		p.stderr = nil
	}
}

// drainDone reads from the done channel with timeout as a hard upper bound.
// Returns true and the cmd.Wait error if the channel delivered in time, or
// false and nil if the timeout elapsed.
func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// expectSignalExit interprets a cmd.Wait error after a termination signal.
// Exits caused by SIGTERM or SIGKILL are expected and treated as success.
func expectSignalExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			sig := status.Signal()
			if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
