package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimmedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func statusStyle(s recorder.Status) lipgloss.Style {
	switch s {
	case recorder.StatusPassed:
		return passedStyle
	case recorder.StatusFailed:
		return failedStyle
	default:
		return runningStyle
	}
}

// ConsoleSummary renders a boxed, colored summary for terminals.
func ConsoleSummary(run recorder.RunRecord) string {
	nameWidth := len("case")
	for _, c := range run.Cases {
		nameWidth = max(nameWidth, lipgloss.Width(c.Name))
	}

	lines := []string{titleStyle.Render("regprobe results")}
	for _, c := range run.Cases {
		status := statusStyle(c.Status).Render(fmt.Sprintf("%-7s", c.Status))
		line := fmt.Sprintf("%-*s  %s  %s", nameWidth, c.Name, status,
			dimmedStyle.Render(c.Duration().Round(time.Millisecond).String()))
		lines = append(lines, line)
		if c.Error != "" {
			lines = append(lines, dimmedStyle.Render("  "+c.Error))
		}
	}
	lines = append(lines, "", fmt.Sprintf("%s  %s  %s",
		fmt.Sprintf("total %d", run.Totals.Total),
		passedStyle.Render(fmt.Sprintf("passed %d", run.Totals.Passed)),
		failedStyle.Render(fmt.Sprintf("failed %d", run.Totals.Failed)),
	))
	return boxStyle.Render(strings.Join(lines, "\n"))
}
