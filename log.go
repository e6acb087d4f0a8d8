package jester

import (
	"log/slog"

	"github.com/Sgitario/jester/internal/core"
)

// SetLogger replaces the package-level logger used by jester. This allows
// applications to integrate jester logging with their own logging
// infrastructure. The provided logger should already carry any desired
// attributes; jester will not add additional ones.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Safe to call concurrently with other jester operations; the logger is
// stored atomically. Scenario-scoped logging to the scenario's artifact file
// is unaffected.
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
