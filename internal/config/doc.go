// Package config provides the configuration source collaborators used by the
// cascading property lookup: a YAML file-backed source, a process-environment
// source, and a plain map source. A Source answers a single question
// (is this key set, and to what) and carries no resolution policy of its own.
package config
