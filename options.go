package jester

import (
	"fmt"

	"github.com/Sgitario/jester/internal/core"
)

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("jester: %s must not be empty", name))
	}
}

// scenarioConfig holds the configuration assembled from ScenarioOptions.
type scenarioConfig struct {
	logDir         string
	propertiesFile string
	envPrefix      string
	registry       *core.Registry
	properties     map[string]string
}

// ScenarioOption configures a Scenario during construction via NewScenario.
//
// Several With* functions panic on invalid input (empty paths or names).
// These panics are intentional: option values are typically compile-time
// constants, so an invalid value indicates a programmer error rather than a
// runtime condition. The pattern mirrors [regexp.MustCompile].
type ScenarioOption func(*scenarioConfig)

// WithLogDir sets the base directory for scenario artifacts: the scenario
// log file and the per-service folders live beneath it.
//
// Default: filepath.Join(os.TempDir(), DefaultLogDirName).
//
// Panics if dir is empty.
func WithLogDir(dir string) ScenarioOption {
	requireNonEmpty("log dir", dir)
	return func(c *scenarioConfig) {
		c.logDir = dir
	}
}

// WithPropertiesFile sets the path of the scenario properties file, a flat
// YAML mapping of property keys to values. A missing file is not an error.
//
// Default: DefaultPropertiesFileName in the working directory.
//
// Panics if path is empty.
func WithPropertiesFile(path string) ScenarioOption {
	requireNonEmpty("properties file", path)
	return func(c *scenarioConfig) {
		c.propertiesFile = path
	}
}

// WithEnvPrefix sets the environment variable prefix of the process-wide
// configuration fallback.
//
// Default: DefaultEnvPrefix.
//
// Panics if prefix is empty.
func WithEnvPrefix(prefix string) ScenarioOption {
	requireNonEmpty("env prefix", prefix)
	return func(c *scenarioConfig) {
		c.envPrefix = prefix
	}
}

// WithRegistry makes the scenario resolve bindings and extensions from reg
// instead of the process-wide default registry. Intended for tests that need
// isolation from globally registered backends.
//
// Panics if reg is nil.
func WithRegistry(reg *Registry) ScenarioOption {
	if reg == nil {
		panic("jester: WithRegistry called with nil registry")
	}
	return func(c *scenarioConfig) {
		c.registry = reg
	}
}

// WithProperty sets one scenario-level property, taking the same cascade
// position as the properties file but overriding values loaded from it.
//
// Panics if key is empty.
func WithProperty(key, value string) ScenarioOption {
	requireNonEmpty("property key", key)
	return func(c *scenarioConfig) {
		if c.properties == nil {
			c.properties = map[string]string{}
		}
		c.properties[key] = value
	}
}

// serviceConfig holds the configuration assembled from ServiceOptions.
type serviceConfig struct {
	autoStart  bool
	properties map[string]string
}

// ServiceOption configures a service at declaration time.
type ServiceOption func(*serviceConfig)

// WithServiceProperty sets one service-declared property, merged over the
// descriptor's Properties map.
//
// Panics if key is empty.
func WithServiceProperty(key, value string) ServiceOption {
	requireNonEmpty("property key", key)
	return func(c *serviceConfig) {
		if c.properties == nil {
			c.properties = map[string]string{}
		}
		c.properties[key] = value
	}
}

// WithManualStart excludes the service from the scenario startup fan-out.
// The service is still resolved to a backend during Scenario.Start but stays
// stopped until its own Start is called.
func WithManualStart() ServiceOption {
	return func(c *serviceConfig) {
		c.autoStart = false
	}
}
