// Package process runs and supervises local child processes for backends
// hosted on the controlling machine: log-file plumbing, graceful
// SIGTERM-then-SIGKILL shutdown, and readiness polling.
package process
