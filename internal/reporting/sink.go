package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

// Artifact file names inside the sink directory.
const (
	RunFile        = "run.json"
	HTMLFile       = "report.html"
	SummaryFile    = "summary.txt"
	JUnitFile      = "junit.xml"
	ScreenshotsDir = "screenshots"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Sink owns the artifact directory of a run.
type Sink struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewSink expands a leading ~ in dir.
func NewSink(dir string, logger *zap.Logger) (*Sink, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expand artifact dir %q: %w", dir, err)
	}
	return &Sink{dir: filepath.Clean(expanded), logger: logger.Named("sink"), now: time.Now}, nil
}

// Dir returns the resolved artifact directory.
func (s *Sink) Dir() string { return s.dir }

// Prepare creates the directory tree.
func (s *Sink) Prepare() error {
	if err := os.MkdirAll(filepath.Join(s.dir, ScreenshotsDir), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	return nil
}

// ScreenshotPath returns a unique path for a case screenshot.
func (s *Sink) ScreenshotPath(caseName string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(caseName, "-"), "-")
	if name == "" {
		name = "case"
	}
	return filepath.Join(s.dir, ScreenshotsDir, fmt.Sprintf("%s-%s.png", name, s.now().UTC().Format("20060102T150405.000")))
}

// Persist writes every report for run. It stops at the first failure.
func (s *Sink) Persist(run recorder.RunRecord) error {
	if err := s.Prepare(); err != nil {
		return err
	}
	for _, out := range []struct {
		file   string
		render RendererFunc
	}{
		{RunFile, EncodeRun},
		{HTMLFile, RenderHTML},
		{SummaryFile, RenderText},
		{JUnitFile, RenderJUnit},
	} {
		path := filepath.Join(s.dir, out.file)
		if err := writeReport(path, out.render, run); err != nil {
			return err
		}
		s.logger.Debug("Report written.", zap.String("path", path))
	}
	s.logger.Info("Artifacts persisted.", zap.String("dir", s.dir))
	return nil
}

func writeReport(path string, render RendererFunc, run recorder.RunRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	if err := render(f, run); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
