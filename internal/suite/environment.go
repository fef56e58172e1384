// Package suite runs the registration workflow cases and persists their results.
package suite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/challenge"
	"github.com/xkilldash9x/regprobe/internal/config"
	"github.com/xkilldash9x/regprobe/internal/recorder"
	"github.com/xkilldash9x/regprobe/internal/reporting"
)

// Opener acquires a fresh browser page for one case.
type Opener func(ctx context.Context, headless bool) (browser.ClosablePage, error)

// HistoryStore persists finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, run recorder.RunRecord) error
}

// Environment is built once per run and shared by every case.
type Environment struct {
	Config    *config.Config
	Logger    *zap.Logger
	Headless  bool
	Sink      *reporting.Sink
	Recorder  *recorder.Recorder
	Challenge *challenge.Handler
	Open      Opener
	// Store is optional; nil disables history.
	Store HistoryStore

	version string
}

// Option customizes an Environment.
type Option func(*Environment)

// WithOpener replaces the chromedp launcher, mainly for tests.
func WithOpener(open Opener) Option {
	return func(e *Environment) { e.Open = open }
}

// WithStore enables run history persistence.
func WithStore(store HistoryStore) Option {
	return func(e *Environment) { e.Store = store }
}

// WithVersion stamps the run metadata with the build version.
func WithVersion(version string) Option {
	return func(e *Environment) { e.version = version }
}

// NewEnvironment resolves the artifact sink and starts a run record.
func NewEnvironment(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Environment, error) {
	sink, err := reporting.NewSink(cfg.Artifacts.Dir, logger)
	if err != nil {
		return nil, err
	}
	env := &Environment{
		Config:    cfg,
		Logger:    logger.Named("suite"),
		Headless:  cfg.Browser.Headless,
		Sink:      sink,
		Challenge: challenge.NewHandler(cfg.Challenge.Selector, cfg.Challenge.Timeout, logger),
	}
	launcher := browser.NewLauncher(cfg.Browser, logger)
	env.Open = func(ctx context.Context, headless bool) (browser.ClosablePage, error) {
		session, err := launcher.Open(ctx, headless)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	for _, opt := range opts {
		opt(env)
	}
	env.Recorder = recorder.New(recorder.Metadata{
		Headless: env.Headless,
		CI:       cfg.CI,
		BaseURL:  cfg.Target.BaseURL,
		Version:  env.version,
	}, logger)
	return env, nil
}

// resolveCases maps configured case names to their implementations.
func resolveCases(names []string) ([]Case, error) {
	cases := make([]Case, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		c, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown case %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		cases = append(cases, c)
	}
	return cases, nil
}
