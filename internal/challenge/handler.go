// Package challenge waits out interstitial bot verification overlays.
package challenge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/browser"
)

// State is whether the verification overlay is currently shown.
type State int

const (
	Absent State = iota
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Handler detects the overlay by a marker selector and blocks until it clears.
type Handler struct {
	selector string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHandler creates a Handler for the given marker selector. timeout is used
// when AwaitClear is called with a non-positive timeout.
func NewHandler(selector string, timeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{selector: selector, timeout: timeout, logger: logger.Named("challenge")}
}

// Detect reports the overlay state. Lookup failures count as absent.
func (h *Handler) Detect(ctx context.Context, page browser.Page) State {
	visible, err := page.IsVisible(ctx, h.selector)
	if err != nil {
		h.logger.Debug("Challenge marker lookup failed; assuming absent.", zap.Error(err))
		return Absent
	}
	if visible {
		return Present
	}
	return Absent
}

// AwaitClear returns immediately when no overlay is shown. Otherwise it blocks
// until the marker is hidden or the timeout elapses. A timeout is logged and
// swallowed: the following step will fail on its own if the page is unusable.
func (h *Handler) AwaitClear(ctx context.Context, page browser.Page, timeout time.Duration) {
	if h.Detect(ctx, page) == Absent {
		return
	}
	if timeout <= 0 {
		timeout = h.timeout
	}

	h.logger.Info("Verification challenge detected; waiting for it to clear.", zap.Duration("timeout", timeout))
	start := time.Now()
	if err := page.WaitHidden(ctx, h.selector, timeout); err != nil {
		h.logger.Warn("Verification challenge did not clear in time; continuing.",
			zap.Duration("waited", time.Since(start)), zap.Error(err))
		return
	}
	h.logger.Info("Verification challenge cleared.", zap.Duration("waited", time.Since(start)))
}
