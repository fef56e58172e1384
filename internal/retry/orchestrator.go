// Package retry drives the bounded fill, submit and evaluate loop.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/regprobe/internal/browser"
	"github.com/xkilldash9x/regprobe/internal/outcome"
	"github.com/xkilldash9x/regprobe/internal/registrant"
)

// DefaultMaxAttempts bounds the loop when no limit is configured.
const DefaultMaxAttempts = 3

// State is the orchestrator's position in the attempt lifecycle.
type State string

const (
	StateFilling         State = "filling"
	StateSubmitted       State = "submitted"
	StateSuccess         State = "success"
	StateConflict        State = "conflict"
	StateTerminalFailure State = "terminal_failure"
)

// Form is the submission page the orchestrator drives.
type Form interface {
	Open(ctx context.Context) error
	Fill(ctx context.Context, r registrant.Registrant) error
	Submit(ctx context.Context) error
	Page() browser.Page
}

// Judge classifies the page after a submission.
type Judge interface {
	Evaluate(ctx context.Context, page browser.Page) outcome.Result
	CollectErrorMessages(ctx context.Context, page browser.Page) []string
}

// Source supplies a fresh registrant per attempt.
type Source interface {
	Generate() (registrant.Registrant, error)
}

// Attempt records one pass through the loop.
type Attempt struct {
	Number   int            `json:"number"`
	Username string         `json:"username"`
	State    State          `json:"state"`
	Signal   outcome.Signal `json:"-"`
	Messages []string       `json:"messages,omitempty"`
}

// Outcome summarizes a completed run of the loop.
type Outcome struct {
	State      State
	Attempts   int
	Registrant registrant.Registrant
	Signal     outcome.Signal
	History    []Attempt
}

// Orchestrator retries registration on username conflicts only.
type Orchestrator struct {
	form        Form
	judge       Judge
	source      Source
	maxAttempts int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMaxAttempts overrides the attempt limit.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithPacing enforces a minimum interval between attempts.
func WithPacing(interval time.Duration) Option {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// NewOrchestrator wires the loop's collaborators.
func NewOrchestrator(form Form, judge Judge, source Source, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		form:        form,
		judge:       judge,
		source:      source,
		maxAttempts: DefaultMaxAttempts,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      logger.Named("retry"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run fills and submits the form, already loaded by the caller, until it
// succeeds, fails terminally, or conflicts on every allowed attempt.
// Navigation and fill errors are returned unchanged.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	result := Outcome{}
	var lastConflict *ConflictError

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("pacing before attempt %d: %w", attempt, err)
		}
		if attempt > 1 {
			o.logger.Info("Reloading registration page for a new attempt.", zap.Int("attempt", attempt))
			if err := o.form.Open(ctx); err != nil {
				return result, err
			}
		}

		reg, err := o.source.Generate()
		if err != nil {
			return result, fmt.Errorf("generate registrant: %w", err)
		}
		result.Attempts = attempt
		result.Registrant = reg
		logger := o.logger.With(zap.Int("attempt", attempt), zap.String("username", reg.Username))

		result.State = StateFilling
		if err := o.form.Fill(ctx, reg); err != nil {
			return result, err
		}
		if err := o.form.Submit(ctx); err != nil {
			return result, err
		}
		result.State = StateSubmitted

		page := o.form.Page()
		verdict := o.judge.Evaluate(ctx, page)
		result.Signal = verdict.Signal
		if verdict.Success {
			result.State = StateSuccess
			result.History = append(result.History, Attempt{Number: attempt, Username: reg.Username, State: StateSuccess, Signal: verdict.Signal})
			logger.Info("Registration succeeded.", zap.Stringer("signal", verdict.Signal))
			return result, nil
		}

		messages := o.judge.CollectErrorMessages(ctx, page)
		if IsConflict(messages) {
			lastConflict = &ConflictError{Username: reg.Username, Messages: messages}
			result.State = StateConflict
			result.History = append(result.History, Attempt{Number: attempt, Username: reg.Username, State: StateConflict, Signal: verdict.Signal, Messages: messages})
			logger.Warn("Username conflict; retrying with a new registrant.", zap.Strings("messages", messages))
			continue
		}

		result.State = StateTerminalFailure
		result.History = append(result.History, Attempt{Number: attempt, Username: reg.Username, State: StateTerminalFailure, Signal: verdict.Signal, Messages: messages})
		if len(messages) > 0 {
			logger.Error("Registration rejected.", zap.Strings("messages", messages))
			return result, &ValidationRejection{Messages: messages}
		}
		logger.Error("Registration outcome ambiguous; failing closed.")
		return result, ErrDetectionAmbiguity
	}

	result.State = StateTerminalFailure
	o.logger.Error("Registration attempts exhausted.", zap.Int("attempts", result.Attempts))
	return result, &ExhaustedError{Attempts: result.Attempts, Last: lastConflict}
}

// MaxAttempts returns the configured attempt limit.
func (o *Orchestrator) MaxAttempts() int { return o.maxAttempts }
