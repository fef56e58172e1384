// Package pages holds one client per page of the target application.
package pages

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/browser"
)

// ChallengeWaiter blocks while a verification overlay is shown.
type ChallengeWaiter interface {
	AwaitClear(ctx context.Context, page browser.Page, timeout time.Duration)
}

// field pairs a form input selector with the value to type into it.
type field struct {
	name     string
	selector string
	value    string
}

// helper carries the behaviour every page client shares.
type helper struct {
	page             browser.Page
	challenge        ChallengeWaiter
	elementTimeout   time.Duration
	challengeTimeout time.Duration
	logger           *zap.Logger
}

// load navigates to url, waits out any challenge and then waits for ready.
func (h *helper) load(ctx context.Context, url, ready string) error {
	if err := h.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	h.challenge.AwaitClear(ctx, h.page, h.challengeTimeout)
	if err := h.page.WaitVisible(ctx, ready, h.elementTimeout); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	h.logger.Debug("Page ready.", zap.String("url", url), zap.String("ready", ready))
	return nil
}

// fill types every field in order and stops at the first failure.
func (h *helper) fill(ctx context.Context, fields []field) error {
	for _, f := range fields {
		if err := h.page.Fill(ctx, f.selector, f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.name, err)
		}
	}
	return nil
}

// submit clicks selector and waits out a challenge the submission may trigger.
func (h *helper) submit(ctx context.Context, selector string) error {
	if err := h.page.Click(ctx, selector); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	h.challenge.AwaitClear(ctx, h.page, h.challengeTimeout)
	return nil
}
