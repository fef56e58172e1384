package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/config"
)

// chromedp encodes PNG at quality 100 and JPEG below it.
const screenshotQuality = 100

// Launcher opens isolated browser sessions with a fixed persona.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewLauncher creates a Launcher for the given browser settings.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger.Named("browser")}
}

// Session is a single Chromium process with one tab. It implements Page.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

var _ ClosablePage = (*Session)(nil)

// Open starts a browser process and verifies it by loading about:blank within
// the launch timeout. Callers must Close the returned session.
func (l *Launcher) Open(ctx context.Context, headless bool) (*Session, error) {
	id := uuid.New().String()
	logger := l.logger.With(zap.String("session_id", id), zap.Bool("headless", headless))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(l.cfg, headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Sugar().Debugf))

	s := &Session{
		id:  id,
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		cfg:    l.cfg,
		logger: logger,
	}

	persona := PersonaFromConfig(l.cfg)
	// The first Run allocates the browser and binds it to the context it is
	// given, so it must not carry a deadline. The launch timeout is enforced
	// from the outside instead.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx,
			emulation.SetDeviceMetricsOverride(int64(persona.Width), int64(persona.Height), 1, false),
			emulation.SetUserAgentOverride(persona.UserAgent).WithAcceptLanguage(persona.Locale),
			chromedp.Navigate("about:blank"),
		)
	}()

	timer := time.NewTimer(l.cfg.LaunchTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("no response within %s: %w", l.cfg.LaunchTimeout, context.DeadlineExceeded)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.cancel()
		logger.Error("Browser failed to start.", zap.Error(err))
		return nil, &LaunchError{Headless: headless, Err: err}
	}

	logger.Info("Browser session opened.", zap.Int("width", persona.Width), zap.Int("height", persona.Height))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Close terminates the tab and the browser process. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil
	}
	s.isClosed = true

	// Ask Chromium to shut down cleanly before tearing down the allocator.
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Browser did not shut down cleanly.", zap.Error(err))
	}
	s.logger.Info("Browser session closed.")
	return nil
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

// runActions executes chromedp actions against the tab, bounded by both the
// caller's context and timeout.
func (s *Session) runActions(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed() {
		return errors.New("browser session is closed")
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, timeout)
		defer timeoutCancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.runActions(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url))
	return classify("navigate", url, s.cfg.NavigationTimeout, err)
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.poll(ctx, "wait visible", selector, timeout, true)
}

func (s *Session) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return s.poll(ctx, "wait hidden", selector, timeout, false)
}

// poll re-evaluates visibility until it equals want or the timeout elapses.
// Evaluation errors count as "not visible".
func (s *Session) poll(ctx context.Context, op, selector string, timeout time.Duration, want bool) error {
	if timeout <= 0 {
		timeout = s.cfg.ElementTimeout
	}
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		visible, err := s.IsVisible(waitCtx, selector)
		if err == nil && visible == want {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return classify(op, selector, timeout, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	sel := ParseSelector(selector)
	if sel.Filtered() {
		return fmt.Errorf("fill %q: text filtered selectors cannot be typed into", selector)
	}
	err := s.runActions(ctx, s.cfg.ElementTimeout,
		chromedp.WaitVisible(sel.CSS, chromedp.ByQuery),
		chromedp.Clear(sel.CSS, chromedp.ByQuery),
		chromedp.SendKeys(sel.CSS, value, chromedp.ByQuery),
	)
	return classify("fill", selector, s.cfg.ElementTimeout, err)
}

func (s *Session) Click(ctx context.Context, selector string) error {
	sel := ParseSelector(selector)
	if sel.Filtered() {
		return fmt.Errorf("click %q: text filtered selectors cannot be clicked", selector)
	}
	err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Click(sel.CSS, chromedp.ByQuery, chromedp.NodeVisible))
	return classify("click", selector, s.cfg.ElementTimeout, err)
}

// TextContent returns the text of the first match, waiting up to the
// element timeout for one to appear.
func (s *Session) TextContent(ctx context.Context, selector string) (string, error) {
	sel := ParseSelector(selector)
	if err := s.poll(ctx, "read text", selector, s.cfg.ElementTimeout, true); err != nil {
		return "", err
	}
	var text *string
	if err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(firstTextScript(sel), &text)); err != nil {
		return "", classify("read text", selector, s.cfg.ElementTimeout, err)
	}
	if text == nil {
		return "", fmt.Errorf("read text %q: no matching element", selector)
	}
	return *text, nil
}

func (s *Session) TextContents(ctx context.Context, selector string) ([]string, error) {
	texts := []string{}
	err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(textsScript(ParseSelector(selector)), &texts))
	if err != nil {
		return nil, classify("read texts", selector, s.cfg.ElementTimeout, err)
	}
	return texts, nil
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(countScript(ParseSelector(selector)), &n))
	if err != nil {
		return 0, classify("count", selector, s.cfg.ElementTimeout, err)
	}
	return n, nil
}

func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(visibleScript(ParseSelector(selector)), &visible))
	if err != nil {
		return false, classify("visibility", selector, s.cfg.ElementTimeout, err)
	}
	return visible, nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Location(&url)); err != nil {
		return "", classify("location", "", s.cfg.ElementTimeout, err)
	}
	return url, nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Title(&title)); err != nil {
		return "", classify("title", "", s.cfg.ElementTimeout, err)
	}
	return title, nil
}

func (s *Session) PageText(ctx context.Context) (string, error) {
	var text string
	if err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(pageText, &text)); err != nil {
		return "", classify("page text", "", s.cfg.ElementTimeout, err)
	}
	return text, nil
}

// Screenshot captures the full page as a PNG and writes it to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.runActions(ctx, s.cfg.ElementTimeout, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return classify("screenshot", path, s.cfg.ElementTimeout, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	s.logger.Debug("Screenshot saved.", zap.String("path", path), zap.Int("bytes", len(buf)))
	return nil
}
