// Package netutil provides free-port allocation for locally hosted backends.
package netutil
