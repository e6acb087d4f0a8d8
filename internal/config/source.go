package config

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"
)

// Source is a read-only provider of string configuration values.
//
// Implementations must be safe for concurrent use. Lookup reports whether the
// key is present; an empty value with ok=true is a valid, deliberate setting
// (the cascading lookup treats blank values as absent, but that policy
// belongs to the caller, not the source).
type Source interface {
	Lookup(key string) (value string, ok bool)
}

// Compile-time interface satisfaction checks.
var (
	_ Source = MapSource(nil)
	_ Source = (*EnvSource)(nil)
)

// MapSource is a Source backed by a plain map. The zero value (nil map)
// is usable and reports every key as absent.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvSource resolves keys against the process environment. A key is first
// tried verbatim, then mangled to environment-variable form: upper-cased,
// dots and dashes replaced with underscores, and prefixed. For example, with
// prefix "JESTER", the key "kubernetes.template" resolves against
// KUBERNETES.TEMPLATE (verbatim, rarely set) and JESTER_KUBERNETES_TEMPLATE.
type EnvSource struct {
	prefix string
}

// NewEnvSource creates an EnvSource with the given variable prefix.
// An empty prefix disables the mangled form; only verbatim keys are tried.
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{prefix: prefix}
}

// Lookup implements Source.
func (e *EnvSource) Lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	if e.prefix == "" {
		return "", false
	}
	return os.LookupEnv(e.mangle(key))
}

// mangle converts a dotted property key to environment-variable form.
func (e *EnvSource) mangle(key string) string {
	upper := strings.ToUpper(key)
	upper = strings.NewReplacer(".", "_", "-", "_").Replace(upper)
	return e.prefix + "_" + upper
}

// LoadFile reads a YAML file containing a flat string-to-string mapping and
// returns it as a MapSource. A missing file is not an error: it yields an
// empty source, matching the optional nature of per-scenario configuration
// files. Any other read or parse failure is returned.
func LoadFile(path string) (MapSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MapSource{}, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return MapSource(values), nil
}
