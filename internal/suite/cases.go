package suite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/outcome"
	"github.com/xkilldash9x/regprobe/internal/pages"
	"github.com/xkilldash9x/regprobe/internal/recorder"
	"github.com/xkilldash9x/regprobe/internal/registrant"
	"github.com/xkilldash9x/regprobe/internal/retry"
)

// Case is one end to end check run against its own page.
type Case struct {
	Name string
	Run  func(ctx context.Context, env *Environment, page browser.Page, scope *recorder.CaseScope) error
}

var registry = map[string]Case{
	"home":         {Name: "home", Run: runHomeCase},
	"registration": {Name: "registration", Run: runRegistrationCase},
}

// CaseNames lists the available cases.
func CaseNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runHomeCase(ctx context.Context, env *Environment, page browser.Page, scope *recorder.CaseScope) error {
	home := pages.NewHomePageClient(page, env.Challenge, env.Config, env.Logger)

	if _, err := scope.RecordStep("open home page", func() (string, error) {
		if err := home.Open(ctx); err != nil {
			return "", err
		}
		return env.Config.Target.HomeURL(), nil
	}); err != nil {
		return err
	}

	if _, err := scope.RecordStep("verify title", func() (string, error) {
		title, err := home.Title(ctx)
		if err != nil {
			return "", err
		}
		marker := env.Config.Target.TitleMarker
		if !strings.Contains(title, marker) {
			return "", fmt.Errorf("title %q does not mention %s", title, marker)
		}
		return title, nil
	}); err != nil {
		return err
	}

	_, err := scope.RecordStep("verify login panel", func() (string, error) {
		visible, err := home.LoginPanelVisible(ctx)
		if err != nil {
			return "", err
		}
		if !visible {
			return "", fmt.Errorf("login panel is not visible")
		}
		return "login panel visible", nil
	})
	return err
}

func runRegistrationCase(ctx context.Context, env *Environment, page browser.Page, scope *recorder.CaseScope) error {
	cfg := env.Config
	form := pages.NewRegistrationClient(page, env.Challenge, cfg, env.Logger)
	detector := outcome.NewDetector(cfg.Selectors, cfg.Detector, env.Logger)
	generator := registrant.NewGenerator(cfg.Registrant)
	orchestrator := retry.NewOrchestrator(form, detector, generator, env.Logger,
		retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
		retry.WithPacing(cfg.Retry.Pacing),
	)

	if _, err := scope.RecordStep("open registration page", func() (string, error) {
		if err := form.Open(ctx); err != nil {
			return "", err
		}
		return cfg.Target.RegisterURL(), nil
	}); err != nil {
		return err
	}

	var result retry.Outcome
	if _, err := scope.RecordStep("register", func() (string, error) {
		var err error
		result, err = orchestrator.Run(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("registered %s after %d attempt(s), signal %s",
			result.Registrant.Username, result.Attempts, result.Signal), nil
	}); err != nil {
		return err
	}

	_, err := scope.RecordStep("verify welcome", func() (string, error) {
		return verifyWelcome(ctx, form, result)
	})
	return err
}

// verifyWelcome checks that the welcome heading names the new user. The
// heading is only authoritative when it produced the verdict; success pages
// that matched on other evidence may not render it at all.
func verifyWelcome(ctx context.Context, form *pages.RegistrationClient, result retry.Outcome) (string, error) {
	username := result.Registrant.Username
	heading, err := form.WelcomeHeading(ctx)
	if result.Signal != outcome.SignalWelcomeTitle {
		if err != nil || !strings.Contains(heading, username) {
			return fmt.Sprintf("welcome heading not shown, success from %s", result.Signal), nil
		}
		return heading, nil
	}
	if err != nil {
		return "", err
	}
	if !strings.Contains(heading, username) {
		return "", fmt.Errorf("welcome heading %q does not name %s", heading, username)
	}
	return heading, nil
}
