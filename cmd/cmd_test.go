package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/browser/browsertest"
	"github.com/xkilldash9x/regprobe/internal/config"
	"github.com/xkilldash9x/regprobe/internal/observability"
	"github.com/xkilldash9x/regprobe/internal/recorder"
	"github.com/xkilldash9x/regprobe/internal/reporting"
	"github.com/xkilldash9x/regprobe/internal/store"
	"github.com/xkilldash9x/regprobe/internal/suite"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"}, zapcore.AddSync(io.Discard))
	suiteOptions = nil
	stores = defaultStoreProvider{}
	t.Setenv("CI", "")
	t.Setenv("REGPROBE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGPROBE_ARTIFACTS_DIR", filepath.Join(t.TempDir(), "artifacts"))
	t.Setenv("REGPROBE_DETECTOR_SETTLE_DELAY", "0s")
	t.Setenv("REGPROBE_BROWSER_ELEMENT_TIMEOUT", "100ms")
	t.Cleanup(func() {
		suiteOptions = nil
		stores = defaultStoreProvider{}
		observability.ResetForTest()
	})
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// homeOpener serves a landing page that passes the home case unless broken is set.
type homeOpener struct {
	broken bool

	mu       sync.Mutex
	headless []bool
}

func (o *homeOpener) open(ctx context.Context, headless bool) (browser.ClosablePage, error) {
	o.mu.Lock()
	o.headless = append(o.headless, headless)
	o.mu.Unlock()
	page := browsertest.NewPage().OnNavigate(func(p *browsertest.Page, url string) {
		p.SetTitle("ParaBank | Welcome | Online Banking")
		if !o.broken {
			p.SetElement("#loginPanel", true)
		}
	})
	return page, nil
}

func TestVersion(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "regprobe "+Version+"\n", out)

	out, err = executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing explicit config file", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "version", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to initialize configuration")
	})

	t.Run("invalid value", func(t *testing.T) {
		resetForTest(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 0\n"), 0o644))

		_, err := executeCommand(t, "version", "--config", path)
		assert.ErrorContains(t, err, "retry.max_attempts")
	})
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.EqualError(t, err, "configuration not initialized")

	cfg := config.NewDefaultConfig()
	got, err := getConfigFromContext(context.WithValue(context.Background(), configKey, cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestRunCommand(t *testing.T) {
	t.Run("passing run", func(t *testing.T) {
		resetForTest(t)
		opener := &homeOpener{}
		suiteOptions = []suite.Option{suite.WithOpener(opener.open)}
		artifacts := filepath.Join(t.TempDir(), "out")

		out, err := executeCommand(t, "run", "--cases", "home", "--artifacts", artifacts)
		require.NoError(t, err)
		assert.Contains(t, out, "regprobe results")
		assert.Contains(t, out, "passed 1")
		assert.Equal(t, []bool{true}, opener.headless, "headless by default")

		run, err := reporting.LoadRun(filepath.Join(artifacts, reporting.RunFile))
		require.NoError(t, err)
		assert.Equal(t, Version, run.Metadata.Version)
	})

	t.Run("headless flag", func(t *testing.T) {
		resetForTest(t)
		opener := &homeOpener{}
		suiteOptions = []suite.Option{suite.WithOpener(opener.open)}

		_, err := executeCommand(t, "run", "--cases", "home", "--headless=false")
		require.NoError(t, err)
		assert.Equal(t, []bool{false}, opener.headless)
	})

	t.Run("failed case", func(t *testing.T) {
		resetForTest(t)
		suiteOptions = []suite.Option{suite.WithOpener((&homeOpener{broken: true}).open)}

		out, err := executeCommand(t, "run", "--cases", "home")
		require.ErrorIs(t, err, ErrCasesFailed)
		assert.EqualError(t, err, "one or more cases failed: 1 of 1")
		assert.Contains(t, out, "failed 1")
	})

	t.Run("launch failure", func(t *testing.T) {
		resetForTest(t)
		suiteOptions = []suite.Option{suite.WithOpener(func(ctx context.Context, headless bool) (browser.ClosablePage, error) {
			return nil, &browser.LaunchError{Headless: headless, Err: errors.New("no chromium")}
		})}

		_, err := executeCommand(t, "run", "--cases", "home")
		var launchErr *browser.LaunchError
		assert.ErrorAs(t, err, &launchErr)
	})

	t.Run("invalid flags", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "run", "--concurrency", "0")
		assert.ErrorContains(t, err, "suite.concurrency")
	})

	t.Run("history is saved when configured", func(t *testing.T) {
		resetForTest(t)
		t.Setenv("REGPROBE_DATABASE_URL", "postgres://regprobe@localhost/regprobe")
		fake := &fakeStore{}
		stores = fake
		suiteOptions = []suite.Option{suite.WithOpener((&homeOpener{}).open)}

		_, err := executeCommand(t, "run", "--cases", "home")
		require.NoError(t, err)
		assert.Len(t, fake.saved, 1)
		assert.True(t, fake.closed)
	})

	t.Run("store failure does not fail the run", func(t *testing.T) {
		resetForTest(t)
		t.Setenv("REGPROBE_DATABASE_URL", "postgres://regprobe@localhost/regprobe")
		stores = &fakeStore{createErr: errors.New("connection refused")}
		suiteOptions = []suite.Option{suite.WithOpener((&homeOpener{}).open)}

		_, err := executeCommand(t, "run", "--cases", "home")
		assert.NoError(t, err)
	})
}

func writeRunRecord(t *testing.T) string {
	t.Helper()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := reporting.MarshalRun(recorder.RunRecord{
		ID: "run-1", Start: start, End: start.Add(time.Minute),
		Totals: recorder.Totals{Total: 1, Passed: 1},
		Cases: []recorder.CaseResult{{
			ID: "case-1", Name: "home", Status: recorder.StatusPassed, Start: start, End: start.Add(time.Second),
			Steps: []recorder.StepResult{{Name: "open home page", Status: recorder.StatusPassed, Start: start, End: start.Add(time.Second)}},
		}},
		Metadata: recorder.Metadata{BaseURL: "https://parabank.example"},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), reporting.RunFile)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRenderCommand(t *testing.T) {
	t.Run("to stdout", func(t *testing.T) {
		resetForTest(t)
		out, err := executeCommand(t, "render", writeRunRecord(t), "--format", "junit")
		require.NoError(t, err)
		assert.Contains(t, out, "<testsuites")
		assert.Contains(t, out, `name="home"`)
	})

	t.Run("to file", func(t *testing.T) {
		resetForTest(t)
		target := filepath.Join(t.TempDir(), "html", "report.html")
		_, err := executeCommand(t, "render", writeRunRecord(t), "-f", "html", "--output", target)
		require.NoError(t, err)
		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<!DOCTYPE html>")
	})

	t.Run("unknown format", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "render", writeRunRecord(t), "--format", "sarif")
		assert.EqualError(t, err, "unsupported output format: sarif")
	})

	t.Run("invalid record", func(t *testing.T) {
		resetForTest(t)
		path := filepath.Join(t.TempDir(), "run.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"id": "x"}`), 0o644))
		_, err := executeCommand(t, "render", path)
		assert.ErrorContains(t, err, "run record validation failed")
	})
}

type fakeStore struct {
	createErr error
	runs      []store.RunSummary
	saved     []recorder.RunRecord
	closed    bool
}

func (f *fakeStore) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runStore, func(), error) {
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	return f, func() { f.closed = true }, nil
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeStore) SaveRun(ctx context.Context, run recorder.RunRecord) error {
	f.saved = append(f.saved, run)
	return nil
}

func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func TestHistoryCommand(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "history")
		assert.EqualError(t, err, "database URL is not configured (REGPROBE_DATABASE_URL)")
	})

	t.Run("lists runs", func(t *testing.T) {
		resetForTest(t)
		start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		fake := &fakeStore{runs: []store.RunSummary{
			{ID: "run-2", Start: start, End: start.Add(90 * time.Second), Totals: recorder.Totals{Total: 2, Passed: 1, Failed: 1},
				Metadata: recorder.Metadata{BaseURL: "https://parabank.example"}},
			{ID: "run-1", Start: start.Add(-time.Hour), End: start.Add(-time.Hour + time.Minute), Totals: recorder.Totals{Total: 2, Passed: 2}},
		}}
		stores = fake

		out, err := executeCommand(t, "history", "-n", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "RUN")
		assert.Contains(t, out, "run-2")
		assert.Contains(t, out, "1m30s")
		assert.NotContains(t, out, "run-1")
		assert.True(t, fake.closed)
	})

	t.Run("empty history", func(t *testing.T) {
		resetForTest(t)
		stores = &fakeStore{}
		out, err := executeCommand(t, "history")
		require.NoError(t, err)
		assert.Equal(t, "No runs recorded.\n", out)
	})
}
