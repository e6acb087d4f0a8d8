package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Sentinel errors returned by WaitReady for invalid configuration and
// process lifecycle conditions, matchable with errors.Is through wrapping.
var (
	// ErrIntervalNotPositive indicates a non-positive poll interval.
	ErrIntervalNotPositive = errors.New("interval must be positive")

	// ErrTimeoutNotPositive indicates a non-positive timeout.
	ErrTimeoutNotPositive = errors.New("timeout must be positive")

	// ErrProcessExited indicates the process exited before becoming ready.
	ErrProcessExited = errors.New("process exited before becoming ready")
)

// ReadinessCheck reports whether a backend is ready. The context is canceled
// when the polling loop times out or the caller cancels, so checks that do
// I/O can exit promptly. A non-nil error aborts polling as fatal.
type ReadinessCheck func(ctx context.Context) (ready bool, err error)

// WaitReadyConfig configures the readiness polling loop.
type WaitReadyConfig struct {
	Interval time.Duration // Poll interval
	Timeout  time.Duration // Overall timeout
	Name     string        // For logging and error context
	Logger   *slog.Logger  // Optional logger (defaults to slog.Default())
	// Exited, if non-nil, aborts polling immediately when closed. Local
	// backends pass Process.Exited so a dead process fails fast instead of
	// running out the configured timeout.
	Exited <-chan struct{}
}

// WaitReady polls check until it returns true, returns a fatal error, or the
// timeout elapses. The caller owns the timeout policy; WaitReady imposes none
// beyond what the config carries.
func WaitReady(ctx context.Context, cfg WaitReadyConfig, check ReadinessCheck) error {
	if cfg.Name == "" {
		return errors.New("wait ready: name must not be empty")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrIntervalNotPositive)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrTimeoutNotPositive)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	attempt := 0
	if err := wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, true,
		func(pollCtx context.Context) (bool, error) {
			if cfg.Exited != nil {
				select {
				case <-cfg.Exited:
					return false, fmt.Errorf("%s: %w", cfg.Name, ErrProcessExited)
				default:
				}
			}

			attempt++
			ready, err := check(pollCtx)
			if err != nil {
				return false, err
			}
			if ready {
				log.Debug("readiness wait succeeded", "name", cfg.Name, "attempt", attempt)
			}
			return ready, nil
		}); err != nil {
		return fmt.Errorf("wait for %s readiness: %w", cfg.Name, err)
	}
	return nil
}
