package browser

import (
	"context"
	"time"
)

// Page is the browser capability the page clients, the challenge handler and
// the outcome detector are written against. Selectors are CSS, optionally
// suffixed with :has-text("...").
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	TextContent(ctx context.Context, selector string) (string, error)
	TextContents(ctx context.Context, selector string) ([]string, error)
	Count(ctx context.Context, selector string) (int, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
}

// ClosablePage is a Page whose resources are released by Close.
type ClosablePage interface {
	Page
	Close() error
}
