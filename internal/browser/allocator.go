package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/regprobe/internal/config"
)

// Persona is the fixed identity every session presents to the target.
type Persona struct {
	UserAgent string
	Width     int
	Height    int
	Locale    string
}

// PersonaFromConfig derives the session persona from browser settings.
func PersonaFromConfig(cfg config.BrowserConfig) Persona {
	return Persona{
		UserAgent: cfg.UserAgent,
		Width:     cfg.ViewportWidth,
		Height:    cfg.ViewportHeight,
		Locale:    cfg.Locale,
	}
}

// LaunchFlags returns the Chromium command line flags for a session. The
// stability flags are always present; user supplied args are layered on top
// and may override them.
func LaunchFlags(cfg config.BrowserConfig, headless bool) map[string]interface{} {
	persona := PersonaFromConfig(cfg)
	flags := map[string]interface{}{
		"headless":                 headless,
		"enable-automation":        false,
		"no-sandbox":               true,
		"disable-gpu":              true,
		"disable-dev-shm-usage":    true,
		"disable-blink-features":   "AutomationControlled",
		"no-first-run":             true,
		"no-default-browser-check": true,
		"window-size":              fmt.Sprintf("%d,%d", persona.Width, persona.Height),
	}
	if persona.Locale != "" {
		flags["lang"] = persona.Locale
	}

	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(arg, "=")
		name = strings.TrimLeft(name, "-")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

// AllocatorOptions assembles the exec allocator options for a session on top
// of chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig, headless bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := LaunchFlags(cfg, headless)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
