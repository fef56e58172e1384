package suite

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/recorder"
)

// Run executes every configured case and persists the reports. The returned
// record is complete even when err is non-nil. Only a browser launch failure
// or a persistence failure is returned as an error; case failures are counted
// in the record.
func Run(ctx context.Context, env *Environment) (recorder.RunRecord, error) {
	cases, err := resolveCases(env.Config.Suite.Cases)
	if err != nil {
		return env.Recorder.Finalize(), err
	}
	if err := env.Sink.Prepare(); err != nil {
		return env.Recorder.Finalize(), err
	}

	concurrency := max(env.Config.Suite.Concurrency, 1)
	env.Logger.Info("Starting run.",
		zap.String("run_id", env.Recorder.RunID()),
		zap.Int("cases", len(cases)),
		zap.Int("concurrency", concurrency),
		zap.Bool("headless", env.Headless),
	)

	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cases {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				env.recordSkipped(c.Name, err)
				return nil
			}
			defer sem.Release(1)
			return runCase(gctx, env, c)
		})
	}
	runErr := g.Wait()

	run := env.Recorder.Finalize()
	if err := env.Sink.Persist(run); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("persist reports: %w", err))
	}
	if env.Store != nil {
		// History is best effort; the reports on disk are authoritative.
		if err := env.Store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			env.Logger.Warn("Could not save run history.", zap.Error(err))
		}
	}

	env.Logger.Info("Run finished.",
		zap.Int("total", run.Totals.Total),
		zap.Int("passed", run.Totals.Passed),
		zap.Int("failed", run.Totals.Failed),
		zap.String("artifacts", env.Sink.Dir()),
	)
	return run, runErr
}

// recordSkipped marks a case that never started because the run was aborted.
func (env *Environment) recordSkipped(name string, cause error) {
	_, _ = env.Recorder.RecordCase(context.Background(), name, func(context.Context, *recorder.CaseScope) error {
		return fmt.Errorf("not run: %w", cause)
	})
}

// runCase records one case. It returns an error only for a launch failure,
// which cancels the remaining cases.
func runCase(ctx context.Context, env *Environment, c Case) error {
	_, err := env.Recorder.RecordCase(ctx, c.Name, func(ctx context.Context, scope *recorder.CaseScope) error {
		var page browser.ClosablePage
		if _, err := scope.RecordStep("launch browser", func() (string, error) {
			var err error
			page, err = env.Open(ctx, env.Headless)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("headless=%t", env.Headless), nil
		}); err != nil {
			return err
		}
		scope.Cleanup(page.Close)
		scope.OnFailure(func(ctx context.Context) (string, error) {
			path := env.Sink.ScreenshotPath(c.Name)
			if err := page.Screenshot(ctx, path); err != nil {
				return "", err
			}
			return path, nil
		})
		return c.Run(ctx, env, page, scope)
	})

	var launchErr *browser.LaunchError
	if errors.As(err, &launchErr) {
		return err
	}
	return nil
}
