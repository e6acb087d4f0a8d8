package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Sgitario/jester/internal/config"
	"github.com/Sgitario/jester/internal/fileutil"
)

// artifactLockRetryInterval is the interval between attempts to acquire the
// scenario artifact lock. Concurrent test binaries sharing a base directory
// contend on it only when they run a scenario under the same name.
const artifactLockRetryInterval = 50 * time.Millisecond

// artifactLockTimeout bounds how long scenario construction waits for the
// artifact lock before giving up.
const artifactLockTimeout = 30 * time.Second

// ScenarioContextParams holds the parameters for creating a ScenarioContext.
// Name and LogDir are required; Properties and Global may be nil.
type ScenarioContextParams struct {
	Name string
	// LogDir is the base directory for scenario artifacts. The scenario's
	// log file and per-service folders are created beneath it.
	LogDir string
	// Properties is the scenario-level persisted configuration, typically
	// loaded from the scenario's properties file.
	Properties config.Source
	// Global is the process-wide fallback source, typically the environment.
	Global config.Source
}

// ScenarioContext is the per-test-run shared context: identity, failure
// state, and the log artifact. One ScenarioContext is shared by every
// ServiceContext and every extension invocation of a run; the orchestrator
// closes all services before the scenario's artifacts are finalized.
type ScenarioContext struct {
	id      string
	name    string
	dir     string
	logFile string

	// failed is write-once-to-true: the main flow and error handlers may
	// both set it, and a boolean monotonic transition is race-free under
	// last-writer-wins.
	failed atomic.Bool

	properties config.Source
	global     config.Source

	// artifactLock guards the log artifact against a concurrent test
	// process running a scenario of the same name in the same base dir.
	artifactLock *flock.Flock
	logOut       *os.File
	log          *slog.Logger
}

// NewScenarioContext creates the scenario's artifact directory and log file,
// acquires the artifact lock, and assigns the scenario a unique identifier.
// The caller must eventually call FinalizeArtifacts to release the lock and
// apply the retention policy.
func NewScenarioContext(ctx context.Context, params ScenarioContextParams) (*ScenarioContext, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("scenario name must not be empty")
	}
	if params.LogDir == "" {
		return nil, fmt.Errorf("scenario log dir must not be empty")
	}

	dir := filepath.Join(params.LogDir, params.Name)
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create scenario dir: %w", err)
	}

	s := &ScenarioContext{
		id:         uuid.NewString(),
		name:       params.Name,
		dir:        dir,
		logFile:    filepath.Join(dir, params.Name+".log"),
		properties: params.Properties,
		global:     params.Global,
	}
	if s.properties == nil {
		s.properties = config.MapSource(nil)
	}
	if s.global == nil {
		s.global = config.MapSource(nil)
	}

	lockCtx, cancel := context.WithTimeout(ctx, artifactLockTimeout)
	defer cancel()
	fl := flock.New(s.logFile + ".lock")
	locked, err := fl.TryLockContext(lockCtx, artifactLockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire scenario artifact lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire scenario artifact lock %s: lock not acquired", fl.Path())
	}
	s.artifactLock = fl

	out, err := os.Create(s.logFile)
	if err != nil {
		releaseArtifactLock(Logger(), fl)
		return nil, fmt.Errorf("create scenario log file: %w", err)
	}
	s.logOut = out
	s.log = slog.New(slog.NewTextHandler(out, nil)).With("scenario", s.name, "id", s.id)

	return s, nil
}

// ID returns the scenario's unique identifier.
func (s *ScenarioContext) ID() string {
	return s.id
}

// Name returns the scenario's declared name.
func (s *ScenarioContext) Name() string {
	return s.name
}

// LogFile returns the path of the scenario's log artifact.
func (s *ScenarioContext) LogFile() string {
	return s.logFile
}

// Dir returns the scenario's artifact directory.
func (s *ScenarioContext) Dir() string {
	return s.dir
}

// ServiceFolder returns (and creates) the per-service folder under the
// scenario's artifact directory. Backends use it for rendered manifests and
// process log files.
func (s *ScenarioContext) ServiceFolder(service string) (string, error) {
	dir := filepath.Join(s.dir, service)
	if err := fileutil.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create service folder: %w", err)
	}
	return dir, nil
}

// Logger returns a logger that writes to the scenario's log artifact.
// Before the log file exists (or after finalization) it falls back to the
// package logger.
func (s *ScenarioContext) Logger() *slog.Logger {
	if s.log == nil {
		return Logger()
	}
	return s.log
}

// MarkFailed flags the scenario as failed. The transition is one-way: once
// failed, a scenario never becomes unfailed, and its log artifact is
// retained at teardown.
func (s *ScenarioContext) MarkFailed() {
	s.failed.Store(true)
}

// Failed reports whether the scenario has been marked as failed.
func (s *ScenarioContext) Failed() bool {
	return s.failed.Load()
}

// Property resolves key against the scenario-level persisted configuration.
func (s *ScenarioContext) Property(key string) (string, bool) {
	return s.properties.Lookup(key)
}

// GlobalProperty resolves key against the process-wide fallback source.
func (s *ScenarioContext) GlobalProperty(key string) (string, bool) {
	return s.global.Lookup(key)
}

// FinalizeArtifacts applies the retention policy and releases the artifact
// lock: a failed scenario keeps its log file for inspection, a passed one
// has it deleted. Safe to call once per scenario, after all services closed.
func (s *ScenarioContext) FinalizeArtifacts() error {
	if s.logOut != nil {
		_ = s.logOut.Close()
		s.logOut = nil
		s.log = nil
	}

	var err error
	if !s.Failed() {
		if rmErr := os.Remove(s.logFile); rmErr != nil && !os.IsNotExist(rmErr) {
			err = fmt.Errorf("delete scenario log: %w", rmErr)
		}
	}

	releaseArtifactLock(Logger(), s.artifactLock)
	s.artifactLock = nil
	return err
}

// releaseArtifactLock releases the flock and closes its descriptor. The lock
// file is left on disk: removing it could invalidate a lock concurrently
// acquired by another process. Best-effort; errors are only logged.
func releaseArtifactLock(logger *slog.Logger, fl *flock.Flock) {
	if fl != nil {
		if err := fl.Close(); err != nil {
			logger.Debug("release scenario artifact lock", "path", fl.Path(), "error", err)
		}
	}
}
