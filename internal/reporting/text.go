package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

// RenderText writes a plain summary suitable for CI logs.
func RenderText(w io.Writer, run recorder.RunRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s against %s\n", run.ID, run.Metadata.BaseURL)
	fmt.Fprintf(&b, "Total: %d  Passed: %d  Failed: %d  Duration: %s\n",
		run.Totals.Total, run.Totals.Passed, run.Totals.Failed, run.Duration().Round(time.Millisecond))
	for _, c := range run.Cases {
		fmt.Fprintf(&b, "\n[%s] %s (%s)\n", strings.ToUpper(string(c.Status)), c.Name, c.Duration().Round(time.Millisecond))
		for _, s := range c.Steps {
			detail := s.Result
			if s.Error != "" {
				detail = s.Error
			}
			fmt.Fprintf(&b, "  - %-6s %s", s.Status, s.Name)
			if detail != "" {
				fmt.Fprintf(&b, ": %s", detail)
			}
			b.WriteByte('\n')
		}
		if c.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", c.Error)
		}
		if c.Screenshot != "" {
			fmt.Fprintf(&b, "  screenshot: %s\n", c.Screenshot)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
