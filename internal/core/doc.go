// Package core implements the managed-resource lifecycle engine: the
// ScenarioContext and ServiceContext state records, the binding/extension
// Registry with deterministic first-match resolution, the cascading
// PropertyLookup, and the Orchestrator that drives services from declaration
// through reverse-order teardown.
package core
