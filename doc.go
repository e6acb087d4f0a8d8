// Package jester provisions, observes, and tears down the backing resources
// an automated test scenario depends on: container workloads on a Kubernetes
// cluster and locally spawned processes, behind one uniform service facade.
//
// A test declares its services against a scenario; jester resolves each
// declaration to a registered resource binding, starts the services in
// declaration order, gates readiness on expected log output, and tears
// everything down in reverse order when the scenario closes. Scenario logs
// are captured to a per-scenario artifact that is deleted when the scenario
// passes and retained when it fails.
//
// # Basic Usage
//
//	import (
//	    "github.com/Sgitario/jester"
//
//	    _ "github.com/Sgitario/jester/resources/kubernetes"
//	)
//
//	ctx := context.Background()
//
//	scenario, err := jester.NewScenario(ctx, "greeting-app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scenario.Close(ctx) // Aggregates teardown errors; inspect when it matters
//
//	db, err := scenario.Declare("db", jester.ServiceDescriptor{
//	    Image:       "postgres:16",
//	    Ports:       []int{5432},
//	    ExpectedLog: "database system is ready to accept connections",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := scenario.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	port, err := db.MappedPort(5432)
//	// Connect to db.Host():port ...
//
// # Backends
//
// Resource bindings self-register from their package's init function, so a
// blank import selects the backends a test binary supports:
//
//	_ "github.com/Sgitario/jester/resources/kubernetes" // container workloads
//	_ "github.com/Sgitario/jester/resources/local"      // local processes
//
// The first registered binding whose predicate matches a declared service
// wins. A declaration no binding matches fails scenario startup before any
// service starts.
//
// # Configuration
//
// Service configuration resolves through a fixed cascade, first non-blank
// value wins: programmatic per-service overrides, the scenario's properties
// file, service-declared properties, then process environment variables
// (JESTER_ prefixed). See Service.Property.
package jester
