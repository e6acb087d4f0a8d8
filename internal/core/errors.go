package core

import "github.com/Sgitario/jester/internal/sentinel"

// Sentinel errors for error inspection with errors.Is. These are immutable
// constants safe for comparison through wrapped error chains.
const (
	// ErrUnsupportedBackend is returned when no registered resource binding's
	// predicate matches a declared service. The scenario aborts before any
	// service starts.
	ErrUnsupportedBackend = sentinel.Error("no resource binding applies to the declared service")

	// ErrBackendInitialization wraps any failure raised while a binding
	// constructs its managed resource.
	ErrBackendInitialization = sentinel.Error("resource binding initialization failed")

	// ErrInvalidConfigValue is returned by the typed property accessors when
	// the resolved string cannot be parsed into the requested type.
	ErrInvalidConfigValue = sentinel.Error("invalid configuration value")

	// ErrUnsupportedEnvironment is returned when a backend determines it
	// cannot satisfy the declared resource in the current environment, for
	// example when no running instance backs a port lookup.
	ErrUnsupportedEnvironment = sentinel.Error("backend cannot satisfy the declared resource in this environment")

	// ErrServiceClosed is returned by lifecycle operations on a service
	// context that has reached its terminal Closed state.
	ErrServiceClosed = sentinel.Error("service context is closed")

	// ErrScenarioClosed is returned when services are declared or started on
	// a scenario whose teardown has already run.
	ErrScenarioClosed = sentinel.Error("scenario has been closed")

	// ErrDuplicateService is returned when two services are declared under
	// the same name within one scenario.
	ErrDuplicateService = sentinel.Error("service name already declared in this scenario")
)
