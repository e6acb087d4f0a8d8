// Package logwatch tails backend output on a supervised background goroutine
// and accumulates it in an append-only in-memory buffer. Readers take
// snapshots of the buffer without ever blocking on the underlying I/O, which
// keeps readiness polling cheap while a start call is still in flight.
package logwatch
