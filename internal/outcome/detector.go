// Package outcome decides whether a submitted registration succeeded by
// inspecting the resulting page.
package outcome

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/config"
)

// rule is one step of the evaluation. The first rule whose match returns true
// decides the verdict.
type rule struct {
	signal  Signal
	verdict bool
	match   func(ctx context.Context, page browser.Page) (bool, error)
}

// Detector classifies the page state after a form submission.
type Detector struct {
	selectors config.SelectorsConfig
	cfg       config.DetectorConfig
	rules     []rule
	logger    *zap.Logger
	// sleep waits out the settle delay; it returns early when ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDetector builds a Detector with the fixed rule order.
func NewDetector(selectors config.SelectorsConfig, cfg config.DetectorConfig, logger *zap.Logger) *Detector {
	d := &Detector{
		selectors: selectors,
		cfg:       cfg,
		logger:    logger.Named("outcome"),
		sleep:     sleepContext,
	}
	d.rules = []rule{
		{SignalRejected, false, d.rejectedOnSubmissionPage},
		{SignalSuccessBanner, true, d.visible(selectors.SuccessBanner)},
		{SignalAccountCreated, true, d.visible(selectors.AccountCreated)},
		{SignalWelcomeTitle, true, d.welcomeTitle},
		{SignalAccountSummary, true, d.visible(selectors.AccountSummary)},
		{SignalLeftSubmissionPage, true, d.leftSubmissionPage},
		{SignalPageText, true, d.pageTextMentionsSuccess},
	}
	return d
}

// IsSuccessful reports whether the submission succeeded. It never fails:
// anything it cannot determine counts against success.
func (d *Detector) IsSuccessful(ctx context.Context, page browser.Page) bool {
	return d.Evaluate(ctx, page).Success
}

// Evaluate waits for the settle delay and runs the rules in order.
func (d *Detector) Evaluate(ctx context.Context, page browser.Page) Result {
	if err := d.sleep(ctx, d.cfg.SettleDelay); err != nil {
		d.logger.Warn("Settle delay interrupted; treating outcome as unsuccessful.", zap.Error(err))
		return Result{Success: false, Signal: SignalNone}
	}

	for _, r := range d.rules {
		matched, err := d.run(ctx, page, r)
		if err != nil {
			d.logger.Debug("Outcome rule failed; treating as no match.",
				zap.Stringer("signal", r.signal), zap.Error(err))
			continue
		}
		if matched {
			d.logger.Info("Outcome determined.", zap.Stringer("signal", r.signal), zap.Bool("success", r.verdict))
			return Result{Success: r.verdict, Signal: r.signal}
		}
	}

	d.logger.Info("No outcome signal matched; treating as unsuccessful.")
	return Result{Success: false, Signal: SignalNone}
}

// run isolates a single rule so a panic in one lookup cannot escape.
func (d *Detector) run(ctx context.Context, page browser.Page, r rule) (matched bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			matched, err = false, fmt.Errorf("rule %s panicked: %v", r.signal, rec)
		}
	}()
	return r.match(ctx, page)
}

// CollectErrorMessages returns the trimmed, non-empty text of every error
// element on the page. It never returns nil and never fails.
func (d *Detector) CollectErrorMessages(ctx context.Context, page browser.Page) []string {
	messages := []string{}
	texts, err := page.TextContents(ctx, d.selectors.ErrorMessages)
	if err != nil {
		d.logger.Debug("Could not read error messages.", zap.Error(err))
		return messages
	}
	for _, text := range texts {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			messages = append(messages, trimmed)
		}
	}
	return messages
}

func (d *Detector) rejectedOnSubmissionPage(ctx context.Context, page browser.Page) (bool, error) {
	onSubmission, err := d.onSubmissionPage(ctx, page)
	if err != nil || !onSubmission {
		return false, err
	}
	n, err := page.Count(ctx, d.selectors.ErrorMessages)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Detector) visible(selector string) func(context.Context, browser.Page) (bool, error) {
	return func(ctx context.Context, page browser.Page) (bool, error) {
		if selector == "" {
			return false, nil
		}
		return page.IsVisible(ctx, selector)
	}
}

func (d *Detector) welcomeTitle(ctx context.Context, page browser.Page) (bool, error) {
	visible, err := page.IsVisible(ctx, d.selectors.WelcomeTitle)
	if err != nil || !visible {
		return false, err
	}
	text, err := page.TextContent(ctx, d.selectors.WelcomeTitle)
	if err != nil {
		return false, err
	}
	return strings.Contains(text, d.cfg.WelcomeLiteral), nil
}

func (d *Detector) leftSubmissionPage(ctx context.Context, page browser.Page) (bool, error) {
	url, err := page.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(url)
	if !strings.Contains(lower, strings.ToLower(d.cfg.SubmissionMarker)) {
		return true, nil
	}
	for _, marker := range d.cfg.AccountMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true, nil
		}
	}
	return false, nil
}

func (d *Detector) pageTextMentionsSuccess(ctx context.Context, page browser.Page) (bool, error) {
	text, err := page.PageText(ctx)
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(text)
	for _, phrase := range d.cfg.SuccessPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true, nil
		}
	}
	return false, nil
}

func (d *Detector) onSubmissionPage(ctx context.Context, page browser.Page) (bool, error) {
	url, err := page.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(d.cfg.SubmissionMarker)), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
