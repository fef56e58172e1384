package recorder

import "time"

// Status is the lifecycle state shared by steps and cases.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// StepResult is one named unit of work inside a case.
type StepResult struct {
	Name   string    `json:"name"`
	Status Status    `json:"status"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Result string    `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Duration is zero until the step has ended.
func (s StepResult) Duration() time.Duration {
	if s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// CaseResult collects the steps of one test case.
type CaseResult struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Status     Status       `json:"status"`
	Steps      []StepResult `json:"steps"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Error      string       `json:"error,omitempty"`
	Screenshot string       `json:"screenshot,omitempty"`
}

func (c CaseResult) Duration() time.Duration {
	if c.End.IsZero() {
		return 0
	}
	return c.End.Sub(c.Start)
}

// Metadata describes the environment a run executed in.
type Metadata struct {
	Headless bool   `json:"headless"`
	CI       bool   `json:"ci"`
	BaseURL  string `json:"base_url"`
	Version  string `json:"version,omitempty"`
}

// Totals counts cases by outcome.
type Totals struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// RunRecord is the complete result of one suite run.
type RunRecord struct {
	ID       string       `json:"id"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Totals   Totals       `json:"totals"`
	Cases    []CaseResult `json:"cases"`
	Metadata Metadata     `json:"metadata"`
}

func (r RunRecord) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Clone returns a deep copy.
func (r RunRecord) Clone() RunRecord {
	out := r
	out.Cases = make([]CaseResult, len(r.Cases))
	for i, c := range r.Cases {
		c.Steps = append([]StepResult(nil), c.Steps...)
		if c.Steps == nil {
			c.Steps = []StepResult{}
		}
		out.Cases[i] = c
	}
	return out
}
