package pages

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/config"
)

// HomePageClient drives the landing page.
type HomePageClient struct {
	helper
	url        string
	loginPanel string
}

// NewHomePageClient creates a client for the landing page on page.
func NewHomePageClient(page browser.Page, challenge ChallengeWaiter, cfg *config.Config, logger *zap.Logger) *HomePageClient {
	return &HomePageClient{
		helper: helper{
			page:             page,
			challenge:        challenge,
			elementTimeout:   cfg.Browser.ElementTimeout,
			challengeTimeout: cfg.Challenge.Timeout,
			logger:           logger.Named("home_page"),
		},
		url:        cfg.Target.HomeURL(),
		loginPanel: cfg.Selectors.LoginPanel,
	}
}

// Open loads the landing page and waits for the login panel.
func (c *HomePageClient) Open(ctx context.Context) error {
	return c.load(ctx, c.url, c.loginPanel)
}

// Title returns the document title.
func (c *HomePageClient) Title(ctx context.Context) (string, error) {
	return c.page.Title(ctx)
}

// LoginPanelVisible reports whether the login panel is shown.
func (c *HomePageClient) LoginPanelVisible(ctx context.Context) (bool, error) {
	return c.page.IsVisible(ctx, c.loginPanel)
}
