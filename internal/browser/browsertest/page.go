// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xkilldash9x/regprobe/internal/browser"
)

// Element is the fake state behind one selector. Texts holds one entry per
// matching element.
type Element struct {
	Visible bool
	Texts   []string
}

// Page is a scriptable browser.Page. Selectors are matched verbatim.
type Page struct {
	mu       sync.Mutex
	url      string
	title    string
	text     string
	elements map[string]Element
	failures map[string]error
	urlErr   error
	textErr  error

	onNavigate func(p *Page, url string)
	onClick    map[string]func(p *Page)

	filled      map[string]string
	calls       []string
	screenshots []string
	closed      bool

	// PollInterval is how often waits re-check state.
	PollInterval time.Duration
}

var _ browser.ClosablePage = (*Page)(nil)

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		url:          "about:blank",
		elements:     map[string]Element{},
		failures:     map[string]error{},
		onClick:      map[string]func(p *Page){},
		filled:       map[string]string{},
		PollInterval: 2 * time.Millisecond,
	}
}

// SetURL sets the current location.
func (p *Page) SetURL(url string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return p
}

// SetTitle sets the document title.
func (p *Page) SetTitle(title string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
	return p
}

// SetPageText sets the full body text.
func (p *Page) SetPageText(text string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
	return p
}

// SetElement registers the elements matched by selector.
func (p *Page) SetElement(selector string, visible bool, texts ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = Element{Visible: visible, Texts: texts}
	return p
}

// RemoveElement drops a selector so it matches nothing.
func (p *Page) RemoveElement(selector string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
	return p
}

// FailOn makes every lookup of selector return err.
func (p *Page) FailOn(selector string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[selector] = err
	return p
}

// FailURL makes CurrentURL return err.
func (p *Page) FailURL(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urlErr = err
	return p
}

// FailPageText makes PageText return err.
func (p *Page) FailPageText(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textErr = err
	return p
}

// OnNavigate installs a hook run after every navigation.
func (p *Page) OnNavigate(fn func(p *Page, url string)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
	return p
}

// OnClick installs a hook run after selector is clicked.
func (p *Page) OnClick(selector string, fn func(p *Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[selector] = fn
	return p
}

// Filled returns the last value typed into selector.
func (p *Page) Filled(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled[selector]
}

// Calls returns the recorded operations in order, e.g. "click #submit".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CountCalls returns how many recorded operations equal call.
func (p *Page) CountCalls(call string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Screenshots returns the paths passed to Screenshot.
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.record("navigate " + url)
	p.url = url
	hook := p.onNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.wait(ctx, "wait visible", selector, timeout, true)
}

func (p *Page) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return p.wait(ctx, "wait hidden", selector, timeout, false)
}

func (p *Page) wait(ctx context.Context, op, selector string, timeout time.Duration, want bool) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if visible, err := p.IsVisible(waitCtx, selector); err == nil && visible == want {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return &browser.NavigationTimeout{Op: op, Target: selector, Timeout: timeout, Err: waitCtx.Err()}
		case <-time.After(p.PollInterval):
		}
	}
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("fill " + selector)
	if err := p.failures[selector]; err != nil {
		return err
	}
	if el, ok := p.elements[selector]; !ok || !el.Visible {
		return fmt.Errorf("fill %q: element not visible", selector)
	}
	p.filled[selector] = value
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.record("click " + selector)
	if err := p.failures[selector]; err != nil {
		p.mu.Unlock()
		return err
	}
	if el, ok := p.elements[selector]; !ok || !el.Visible {
		p.mu.Unlock()
		return fmt.Errorf("click %q: element not visible", selector)
	}
	hook := p.onClick[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	texts, err := p.TextContents(ctx, selector)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", fmt.Errorf("read text %q: no matching element", selector)
	}
	return texts[0], nil
}

func (p *Page) TextContents(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[selector]; err != nil {
		return nil, err
	}
	return append([]string{}, p.elements[selector].Texts...), nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[selector]; err != nil {
		return 0, err
	}
	el, ok := p.elements[selector]
	if !ok {
		return 0, nil
	}
	if len(el.Texts) == 0 {
		return 1, nil
	}
	return len(el.Texts), nil
}

func (p *Page) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[selector]; err != nil {
		return false, err
	}
	return p.elements[selector].Visible, nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.urlErr != nil {
		return "", p.urlErr
	}
	return p.url, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) PageText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.textErr != nil {
		return "", p.textErr
	}
	return p.text, nil
}

// Screenshot writes a placeholder file so callers can assert on the path.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	p.record("screenshot")
	p.screenshots = append(p.screenshots, path)
	p.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake-png"), 0o644)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
