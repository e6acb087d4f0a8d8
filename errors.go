package jester

import "github.com/Sgitario/jester/internal/core"

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrUnsupportedBackend is returned by Scenario.Start when no registered
	// resource binding's predicate matches a declared service. The scenario
	// aborts before any service starts.
	ErrUnsupportedBackend = core.ErrUnsupportedBackend

	// ErrBackendInitialization wraps any failure raised while a binding
	// constructs the managed resource for a declared service.
	ErrBackendInitialization = core.ErrBackendInitialization

	// ErrInvalidConfigValue is returned by typed property accessors when the
	// resolved string cannot be parsed into the requested type.
	ErrInvalidConfigValue = core.ErrInvalidConfigValue

	// ErrUnsupportedEnvironment is returned when a backend cannot satisfy a
	// request in the current environment, for example a MappedPort lookup
	// against a service whose backend never exposed that port.
	ErrUnsupportedEnvironment = core.ErrUnsupportedEnvironment

	// ErrServiceClosed is returned by lifecycle operations on a service
	// whose scenario teardown has already closed it.
	ErrServiceClosed = core.ErrServiceClosed

	// ErrScenarioClosed is returned when services are declared or started on
	// a scenario that has been closed.
	ErrScenarioClosed = core.ErrScenarioClosed

	// ErrDuplicateService is returned by Declare when the service name is
	// already taken within the scenario.
	ErrDuplicateService = core.ErrDuplicateService
)
