package results

import (
	"sync"
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

// CaseSource records where a target's cases came from
type CaseSource string

const (
	// SourceOutput cases were classified from live tool output
	SourceOutput CaseSource = "output"
	// SourceBundle cases were extracted from the unit's result bundle
	SourceBundle CaseSource = "bundle"
)

// TargetResult is the outcome of one run unit
type TargetResult struct {
	Key     string     `json:"key"`
	Success bool       `json:"success"`
	Source  CaseSource `json:"source,omitempty"`
	Cases   []TestCase `json:"cases,omitempty"`
}

// Report is everything known about one run
type Report struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitempty"`
	Finished   bool           `json:"finished"`
	Success    bool           `json:"success"`
	Targets    []TargetResult `json:"targets"`
	Errors     []string       `json:"errors,omitempty"`
}

// Cases flattens the cases of every target in schedule order
func (r *Report) Cases() []TestCase {
	var out []TestCase
	for _, t := range r.Targets {
		out = append(out, t.Cases...)
	}
	return out
}

// Summary summarizes Cases
func (r *Report) Summary() Summary {
	return Summarize(r.Cases())
}

// Duration is the wall-clock time of the run, zero until it finishes
func (r *Report) Duration() time.Duration {
	if !r.Finished {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Passed reports whether the run finished and every target succeeded
func (r *Report) Passed() bool {
	return r.Finished && r.Success && len(r.Errors) == 0
}

// Collector is an events.Sink that assembles a Report.
// TestCompleted events are attributed to the target whose TargetCompleted
// follows them, since units run one at a time.
type Collector struct {
	mu      sync.Mutex
	now     func() time.Time
	report  Report
	pending []TestCase
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// Emit implements events.Sink
func (c *Collector) Emit(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case events.RunStarted:
		c.report = Report{RunID: e.RunID, StartedAt: c.now()}
		c.pending = nil
	case events.TestCompleted:
		c.pending = append(c.pending, FromEvent(e))
	case events.TargetCompleted:
		t := TargetResult{Key: e.Key, Success: e.Success}
		if len(c.pending) > 0 {
			t.Source = SourceOutput
			t.Cases = c.pending
			c.pending = nil
		}
		c.report.Targets = append(c.report.Targets, t)
	case events.RunFinished:
		c.report.Finished = true
		c.report.Success = e.Success
		c.report.FinishedAt = c.now()
	case events.Error:
		c.report.Errors = append(c.report.Errors, e.Message)
	}
}

// SetBundleCases replaces the cases of target key with those extracted from
// its result bundle. It reports false when no such target has completed.
func (c *Collector) SetBundleCases(key string, cases []TestCase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.report.Targets {
		if c.report.Targets[i].Key == key {
			c.report.Targets[i].Source = SourceBundle
			c.report.Targets[i].Cases = append([]TestCase(nil), cases...)
			return true
		}
	}
	return false
}

// Report returns a snapshot of the collected report
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.report
	r.Targets = make([]TargetResult, len(c.report.Targets))
	for i, t := range c.report.Targets {
		t.Cases = append([]TestCase(nil), t.Cases...)
		r.Targets[i] = t
	}
	r.Errors = append([]string(nil), c.report.Errors...)
	return r
}
