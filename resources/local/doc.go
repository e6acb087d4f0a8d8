// Package local backs command-declared services with processes spawned on
// the host. A blank import registers the binding:
//
//	import _ "github.com/Sgitario/jester/resources/local"
//
// The binding serves every service declaring a command and no container
// image. Declared ports map to free host ports allocated once per service;
// the spawned process learns its assignments through JESTER_PORT_<declared>
// environment variables and keeps the same mapping across restarts. Stdout
// and stderr are captured to files in the service's folder and tailed for
// the readiness gate.
//
// Tunables resolve through the service property cascade:
//
//	local.stop-timeout  grace period before the process is killed (default 10s)
package local
