package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LaunchError reports that a browser process could not be started or did not
// answer within the launch timeout. It is fatal for the whole run.
type LaunchError struct {
	Headless bool
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed (headless=%t): %v", e.Headless, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationTimeout reports that a page load or element wait exceeded its budget.
type NavigationTimeout struct {
	Op      string
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *NavigationTimeout) Error() string {
	return fmt.Sprintf("%s %q timed out after %s", e.Op, e.Target, e.Timeout)
}

func (e *NavigationTimeout) Unwrap() error { return e.Err }

// classify turns a deadline error into a *NavigationTimeout and wraps
// anything else with the operation name.
func classify(op, target string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NavigationTimeout{Op: op, Target: target, Timeout: timeout, Err: err}
	}
	return fmt.Errorf("%s %q: %w", op, target, err)
}
