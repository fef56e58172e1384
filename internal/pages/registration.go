package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/config"
	"github.com/xkilldash9x/regprobe/internal/registrant"
)

// RegistrationClient drives the customer registration form.
type RegistrationClient struct {
	helper
	url          string
	form         string
	submitButton string
	welcomeTitle string
}

// NewRegistrationClient creates a client for the registration page on page.
func NewRegistrationClient(page browser.Page, challenge ChallengeWaiter, cfg *config.Config, logger *zap.Logger) *RegistrationClient {
	return &RegistrationClient{
		helper: helper{
			page:             page,
			challenge:        challenge,
			elementTimeout:   cfg.Browser.ElementTimeout,
			challengeTimeout: cfg.Challenge.Timeout,
			logger:           logger.Named("registration_page"),
		},
		url:          cfg.Target.RegisterURL(),
		form:         cfg.Selectors.RegisterForm,
		submitButton: cfg.Selectors.RegisterSubmit,
		welcomeTitle: cfg.Selectors.WelcomeTitle,
	}
}

// InputSelector addresses a form input by its name attribute.
func InputSelector(name string) string {
	return fmt.Sprintf(`input[name="%s"]`, name)
}

// Page exposes the underlying page for outcome detection.
func (c *RegistrationClient) Page() browser.Page { return c.page }

// Open loads (or reloads) the registration page and waits for the form.
func (c *RegistrationClient) Open(ctx context.Context) error {
	return c.load(ctx, c.url, c.form)
}

// Fill types every registrant value into its form field.
func (c *RegistrationClient) Fill(ctx context.Context, r registrant.Registrant) error {
	c.logger.Debug("Filling registration form.", zap.String("username", r.Username))
	return c.fill(ctx, []field{
		{"first name", InputSelector("customer.firstName"), r.FirstName},
		{"last name", InputSelector("customer.lastName"), r.LastName},
		{"street", InputSelector("customer.address.street"), r.Street},
		{"city", InputSelector("customer.address.city"), r.City},
		{"state", InputSelector("customer.address.state"), r.State},
		{"zip code", InputSelector("customer.address.zipCode"), r.ZipCode},
		{"phone", InputSelector("customer.phoneNumber"), r.Phone},
		{"ssn", InputSelector("customer.ssn"), r.SSN},
		{"username", InputSelector("customer.username"), r.Username},
		{"password", InputSelector("customer.password"), r.Password},
		{"password confirmation", InputSelector("repeatedPassword"), r.Password},
	})
}

// Submit clicks the register button and waits out any challenge.
func (c *RegistrationClient) Submit(ctx context.Context) error {
	return c.submit(ctx, c.submitButton)
}

// WelcomeHeading returns the text of the page title heading.
func (c *RegistrationClient) WelcomeHeading(ctx context.Context) (string, error) {
	return c.page.TextContent(ctx, c.welcomeTitle)
}
