// Package reporting renders run records and owns the artifact directory.
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

// Supported report formats.
const (
	FormatJSON  = "json"
	FormatHTML  = "html"
	FormatText  = "text"
	FormatJUnit = "junit"
)

// Renderer writes a run record in one format. Renderers never mutate the record.
type Renderer interface {
	Render(w io.Writer, run recorder.RunRecord) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w io.Writer, run recorder.RunRecord) error

func (f RendererFunc) Render(w io.Writer, run recorder.RunRecord) error { return f(w, run) }

// NewRenderer returns the renderer for format.
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case FormatJSON:
		return RendererFunc(EncodeRun), nil
	case FormatHTML:
		return RendererFunc(RenderHTML), nil
	case FormatText:
		return RendererFunc(RenderText), nil
	case FormatJUnit:
		return RendererFunc(RenderJUnit), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// OpenOutput returns stdout for an empty path or "stdout", and creates the
// file (and its directory) otherwise.
func OpenOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "stdout" {
		return &nopWriteCloser{stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}
