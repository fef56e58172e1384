package browser

import (
	"regexp"
	"strings"
)

var hasTextPattern = regexp.MustCompile(`^(.*?)\s*:has-text\(\s*(["'])(.*)["']\s*\)\s*$`)

// Selector is a parsed selector string: a CSS query plus an optional
// substring every match must contain.
type Selector struct {
	CSS  string
	Text string
}

// ParseSelector splits a trailing :has-text("...") filter off a CSS selector.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	m := hasTextPattern.FindStringSubmatch(raw)
	if m == nil {
		return Selector{CSS: raw}
	}
	css := strings.TrimSpace(m[1])
	if css == "" {
		css = "*"
	}
	return Selector{CSS: css, Text: m[3]}
}

// Filtered reports whether the selector carries a text filter.
func (s Selector) Filtered() bool { return s.Text != "" }

func (s Selector) String() string {
	if !s.Filtered() {
		return s.CSS
	}
	return s.CSS + `:has-text("` + s.Text + `")`
}
