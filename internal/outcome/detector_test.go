package outcome

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/regprobe/internal/browser/browsertest"
	"github.com/xkilldash9x/regprobe/internal/config"
)

const (
	registerURL = "https://parabank.test/parabank/register.htm"
	overviewURL = "https://parabank.test/parabank/overview.htm"
)

// newTestDetector returns a detector with the default selectors and no settle delay.
func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Detector.SettleDelay = 0
	return NewDetector(cfg.Selectors, cfg.Detector, zaptest.NewLogger(t))
}

func selectors() config.SelectorsConfig {
	return config.NewDefaultConfig().Selectors
}

func TestEvaluate_RuleOrder(t *testing.T) {
	sel := selectors()

	tests := []struct {
		name        string
		page        func() *browsertest.Page
		wantSuccess bool
		wantSignal  Signal
	}{
		{
			name: "rejection wins over a visible success banner",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).
					SetElement(sel.ErrorMessages, true, "First name is required.").
					SetElement(sel.SuccessBanner, true)
			},
			wantSuccess: false,
			wantSignal:  SignalRejected,
		},
		{
			name: "success banner",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetElement(sel.SuccessBanner, true)
			},
			wantSuccess: true,
			wantSignal:  SignalSuccessBanner,
		},
		{
			name: "account created paragraph",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetElement(sel.AccountCreated, true)
			},
			wantSuccess: true,
			wantSignal:  SignalAccountCreated,
		},
		{
			name: "welcome title",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetElement(sel.WelcomeTitle, true, "Welcome u1a2b3c")
			},
			wantSuccess: true,
			wantSignal:  SignalWelcomeTitle,
		},
		{
			name: "account summary section",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetElement(sel.AccountSummary, true)
			},
			wantSuccess: true,
			wantSignal:  SignalAccountSummary,
		},
		{
			name: "redirect to overview",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(overviewURL)
			},
			wantSuccess: true,
			wantSignal:  SignalLeftSubmissionPage,
		},
		{
			name: "overview marker even on the register path",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL + "?next=/account/overview")
			},
			wantSuccess: true,
			wantSignal:  SignalLeftSubmissionPage,
		},
		{
			name: "page text fallback is case insensitive",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetPageText("Your Account Was Created.")
			},
			wantSuccess: true,
			wantSignal:  SignalPageText,
		},
		{
			name: "nothing matches",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetPageText("Signing up is easy!")
			},
			wantSuccess: false,
			wantSignal:  SignalNone,
		},
		{
			name: "title without the welcome literal does not count",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetElement(sel.WelcomeTitle, true, "Signing up is easy!")
			},
			wantSuccess: false,
			wantSignal:  SignalNone,
		},
		{
			name: "hidden success banner does not count",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(registerURL).SetElement(sel.SuccessBanner, false)
			},
			wantSuccess: false,
			wantSignal:  SignalNone,
		},
		{
			name: "errors off the submission page do not reject",
			page: func() *browsertest.Page {
				return browsertest.NewPage().SetURL(overviewURL).SetElement(sel.ErrorMessages, true, "stale")
			},
			wantSuccess: true,
			wantSignal:  SignalLeftSubmissionPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t)
			got := d.Evaluate(context.Background(), tt.page())
			assert.Equal(t, tt.wantSuccess, got.Success)
			assert.Equal(t, tt.wantSignal, got.Signal, "got %s", got.Signal)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	sel := selectors()
	d := newTestDetector(t)
	page := browsertest.NewPage().SetURL(registerURL).
		SetElement(sel.WelcomeTitle, true, "Welcome back").
		SetPageText("welcome")

	first := d.Evaluate(context.Background(), page)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, d.Evaluate(context.Background(), page))
	}
}

func TestEvaluate_LookupFailuresAreNotVisible(t *testing.T) {
	sel := selectors()
	boom := errors.New("execution context was destroyed")
	page := browsertest.NewPage().SetURL(registerURL).
		FailOn(sel.ErrorMessages, boom).
		FailOn(sel.SuccessBanner, boom).
		FailOn(sel.AccountCreated, boom).
		FailOn(sel.WelcomeTitle, boom).
		FailOn(sel.AccountSummary, boom).
		SetPageText("Registration successful")

	got := newTestDetector(t).Evaluate(context.Background(), page)

	assert.True(t, got.Success)
	assert.Equal(t, SignalPageText, got.Signal)
}

func TestEvaluate_AllLookupsFail(t *testing.T) {
	sel := selectors()
	boom := errors.New("target closed")
	page := browsertest.NewPage().
		FailURL(boom).
		FailPageText(boom).
		FailOn(sel.SuccessBanner, boom)

	assert.False(t, newTestDetector(t).IsSuccessful(context.Background(), page))
}

// panickingPage blows up on any visibility check.
type panickingPage struct {
	*browsertest.Page
}

func (p panickingPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	panic("nil node")
}

func TestEvaluate_RecoversFromPanickingRule(t *testing.T) {
	page := panickingPage{browsertest.NewPage().SetURL(overviewURL)}

	got := newTestDetector(t).Evaluate(context.Background(), page)

	assert.True(t, got.Success)
	assert.Equal(t, SignalLeftSubmissionPage, got.Signal)
}

func TestEvaluate_SettleDelay(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Detector.SettleDelay = time.Hour
	d := NewDetector(cfg.Selectors, cfg.Detector, zaptest.NewLogger(t))

	var slept time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		slept = dur
		return nil
	}
	assert.True(t, d.IsSuccessful(context.Background(), browsertest.NewPage().SetURL(overviewURL)))
	assert.Equal(t, time.Hour, slept)

	t.Run("cancelled context fails closed", func(t *testing.T) {
		d := NewDetector(cfg.Selectors, cfg.Detector, zaptest.NewLogger(t))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		got := d.Evaluate(ctx, browsertest.NewPage().SetURL(overviewURL))
		assert.Equal(t, Result{Success: false, Signal: SignalNone}, got)
	})
}

func TestCollectErrorMessages(t *testing.T) {
	sel := selectors()
	d := newTestDetector(t)

	t.Run("no errors yields an empty non-nil list", func(t *testing.T) {
		msgs := d.CollectErrorMessages(context.Background(), browsertest.NewPage())
		require.NotNil(t, msgs)
		assert.Empty(t, msgs)
	})

	t.Run("texts are trimmed and empties dropped", func(t *testing.T) {
		page := browsertest.NewPage().SetElement(sel.ErrorMessages, true,
			"  This username already exists.\n", "", "   ", "Passwords did not match.")
		assert.Equal(t, []string{"This username already exists.", "Passwords did not match."},
			d.CollectErrorMessages(context.Background(), page))
	})

	t.Run("lookup failure yields an empty non-nil list", func(t *testing.T) {
		page := browsertest.NewPage().FailOn(sel.ErrorMessages, errors.New("detached"))
		msgs := d.CollectErrorMessages(context.Background(), page)
		require.NotNil(t, msgs)
		assert.Empty(t, msgs)
	})
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "rejected", SignalRejected.String())
	assert.Equal(t, "page_text", SignalPageText.String())
	assert.Equal(t, "unknown", Signal(99).String())
}
