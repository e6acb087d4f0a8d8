package core

import (
	"fmt"
	"strconv"
	"strings"
)

// PropertyLookup resolves one configuration key through the cascading
// resolution order, first non-blank value wins:
//
//  1. the service context's own store
//  2. the scenario-level persisted configuration
//  3. the service-declared static properties
//  4. the process-environment / global configuration
//  5. the supplied default
//
// A lookup is a pure function of the state at call time; it performs no
// caching, so callers must re-resolve after mutating any source.
type PropertyLookup struct {
	Key     string
	Default string
}

// NewPropertyLookup creates a lookup for key with an empty default.
func NewPropertyLookup(key string) PropertyLookup {
	return PropertyLookup{Key: key}
}

// WithDefault returns a copy of the lookup carrying the given default.
func (p PropertyLookup) WithDefault(def string) PropertyLookup {
	p.Default = def
	return p
}

// Get resolves the key for the given service context.
func (p PropertyLookup) Get(svc *ServiceContext) string {
	if v, ok := svc.StoreValue(p.Key); ok && notBlank(v) {
		return v
	}
	if v, ok := svc.Owner().Property(p.Key); ok && notBlank(v) {
		return v
	}
	if v, ok := svc.DeclaredProperty(p.Key); ok && notBlank(v) {
		return v
	}
	if v, ok := svc.Owner().GlobalProperty(p.Key); ok && notBlank(v) {
		return v
	}
	return p.Default
}

// GetAsBool resolves the key and reports whether the value is the literal
// "true", compared case-insensitively. Any other value, including absence,
// is false.
func (p PropertyLookup) GetAsBool(svc *ServiceContext) bool {
	return strings.EqualFold(p.Get(svc), "true")
}

// GetAsInt resolves the key and parses it as a base-10 integer. A value that
// does not parse returns an error wrapping ErrInvalidConfigValue.
func (p PropertyLookup) GetAsInt(svc *ServiceContext) (int, error) {
	value := p.Get(svc)
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("property %s=%q: %w", p.Key, value, ErrInvalidConfigValue)
	}
	return n, nil
}

// GetAsList resolves the key and splits it on commas. An empty resolved
// value yields an empty slice, not a one-element slice holding "".
func (p PropertyLookup) GetAsList(svc *ServiceContext) []string {
	value := p.Get(svc)
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}

// notBlank reports whether v contains any non-whitespace character.
func notBlank(v string) bool {
	return strings.TrimSpace(v) != ""
}
