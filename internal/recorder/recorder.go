// Package recorder accumulates step and case results into a RunRecord.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder is safe for concurrent cases. Each CaseScope is used by one goroutine.
type Recorder struct {
	mu     sync.Mutex
	record RunRecord
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New starts a run record stamped with the current time.
func New(meta Metadata, logger *zap.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		logger: logger.Named("recorder"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.record = RunRecord{
		ID:       uuid.NewString(),
		Start:    r.now(),
		Cases:    []CaseResult{},
		Metadata: meta,
	}
	return r
}

// RunID returns the identifier of the run being recorded.
func (r *Recorder) RunID() string { return r.record.ID }

// FailureHook captures evidence for a failed case and returns the artifact path.
type FailureHook func(ctx context.Context) (string, error)

// CaseScope records the steps of a single case.
type CaseScope struct {
	result   *CaseResult
	now      func() time.Time
	logger   *zap.Logger
	onFail   FailureHook
	cleanups []func() error
}

// OnFailure sets the hook run when the case fails. The hook runs before any
// cleanup, so it can still use resources the case registered.
func (s *CaseScope) OnFailure(hook FailureHook) { s.onFail = hook }

// Cleanup registers fn to run when the case ends, in LIFO order.
func (s *CaseScope) Cleanup(fn func() error) { s.cleanups = append(s.cleanups, fn) }

// Name returns the case name.
func (s *CaseScope) Name() string { return s.result.Name }

// ID returns the case identifier.
func (s *CaseScope) ID() string { return s.result.ID }

// RecordStep runs fn as a named step. The step is finalized before the
// error from fn is returned unchanged.
func (s *CaseScope) RecordStep(name string, fn func() (string, error)) (StepResult, error) {
	step := StepResult{Name: name, Status: StatusRunning, Start: s.now()}
	s.logger.Debug("Step started.", zap.String("step", name))

	text, err := runStep(fn)
	step.End = s.now()
	if err != nil {
		step.Status = StatusFailed
		step.Error = err.Error()
		s.logger.Warn("Step failed.", zap.String("step", name), zap.Error(err))
	} else {
		step.Status = StatusPassed
		step.Result = text
		s.logger.Debug("Step passed.", zap.String("step", name), zap.Duration("duration", step.Duration()))
	}
	s.result.Steps = append(s.result.Steps, step)
	return step, err
}

func runStep(fn func() (string, error)) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step panicked: %v", p)
		}
	}()
	return fn()
}

// RecordCase runs fn inside a new case and appends the finished case to the
// run. The case fails when fn returns an error or panics.
func (r *Recorder) RecordCase(ctx context.Context, name string, fn func(ctx context.Context, scope *CaseScope) error) (CaseResult, error) {
	result := &CaseResult{
		ID:     uuid.NewString(),
		Name:   name,
		Status: StatusRunning,
		Steps:  []StepResult{},
		Start:  r.now(),
	}
	scope := &CaseScope{
		result: result,
		now:    r.now,
		logger: r.logger.With(zap.String("case", name)),
	}

	err := runCase(ctx, scope, fn)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		scope.logger.Error("Case failed.", zap.Error(err))
		scope.captureFailure(ctx)
	} else {
		result.Status = StatusPassed
	}
	scope.runCleanups()
	result.End = r.now()
	if err == nil {
		scope.logger.Info("Case passed.", zap.Duration("duration", result.Duration()))
	}

	r.mu.Lock()
	r.record.Cases = append(r.record.Cases, *result)
	r.mu.Unlock()
	return *result, err
}

// captureFailure is best effort; its own failures are only logged.
func (s *CaseScope) captureFailure(ctx context.Context) {
	if s.onFail == nil {
		return
	}
	path, err := func() (path string, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("failure hook panicked: %v", p)
			}
		}()
		return s.onFail(context.WithoutCancel(ctx))
	}()
	if err != nil {
		s.logger.Warn("Could not capture failure evidence.", zap.Error(err))
		return
	}
	if path != "" {
		s.result.Screenshot = path
	}
}

func (s *CaseScope) runCleanups() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		if err := s.cleanups[i](); err != nil {
			s.logger.Warn("Case cleanup failed.", zap.Error(err))
		}
	}
	s.cleanups = nil
}

func runCase(ctx context.Context, scope *CaseScope, fn func(context.Context, *CaseScope) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("case panicked: %v", p)
		}
	}()
	return fn(ctx, scope)
}

// Snapshot returns a deep copy of the record with totals computed so far.
func (r *Recorder) Snapshot() RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.record.Clone()
	out.Totals = tally(out.Cases)
	return out
}

// Finalize stamps the end time and returns a deep copy. Later calls keep the
// first end time.
func (r *Recorder) Finalize() RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.End.IsZero() {
		r.record.End = r.now()
	}
	r.record.Totals = tally(r.record.Cases)
	return r.record.Clone()
}

func tally(cases []CaseResult) Totals {
	t := Totals{Total: len(cases)}
	for _, c := range cases {
		switch c.Status {
		case StatusPassed:
			t.Passed++
		case StatusFailed:
			t.Failed++
		}
	}
	return t
}
