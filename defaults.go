package jester

import "time"

// Default configuration values for NewScenario. These constants are exported
// so callers can reference the defaults when building custom configurations
// relative to them.
const (
	// DefaultLogDirName is the directory name under the system temp
	// directory where scenario artifacts are stored. The full path is
	// computed as filepath.Join(os.TempDir(), DefaultLogDirName).
	DefaultLogDirName = "jester"

	// DefaultPropertiesFileName is the scenario properties file looked up in
	// the working directory when no explicit path is configured. A missing
	// file is not an error; the scenario simply has no persisted properties.
	DefaultPropertiesFileName = "jester.yaml"

	// DefaultEnvPrefix is the environment variable prefix used by the
	// process-wide configuration fallback: property "db.image" resolves
	// from JESTER_DB_IMAGE.
	DefaultEnvPrefix = "JESTER"

	// DefaultStartupTimeout bounds how long WaitUntilReady polls a service's
	// readiness gate before giving up. Container image pulls dominate the
	// worst case.
	DefaultStartupTimeout = 5 * time.Minute

	// DefaultReadinessInterval is the poll interval of WaitUntilReady.
	DefaultReadinessInterval = 2 * time.Second
)

// StartupTimeoutProperty, resolved through the service property cascade,
// overrides DefaultStartupTimeout per service. The value is parsed with
// time.ParseDuration ("90s", "3m").
const StartupTimeoutProperty = "startup.timeout"
