package results

import (
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

// Status is the outcome of a single test case
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StatusFromString maps "passed" and "failed"; anything else is skipped
func StatusFromString(s string) Status {
	switch Status(s) {
	case StatusPassed:
		return StatusPassed
	case StatusFailed:
		return StatusFailed
	default:
		return StatusSkipped
	}
}

// Location is a source position reported for a failure
type Location struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

// TestCase is one executed (or skipped) test
type TestCase struct {
	Suite          string    `json:"suite"`
	Name           string    `json:"name"`
	Status         Status    `json:"status"`
	DurationMS     *int64    `json:"durationMs,omitempty"`
	FailureMessage string    `json:"failureMessage,omitempty"`
	Location       *Location `json:"location,omitempty"`
}

// Duration returns the recorded duration, if any
func (tc TestCase) Duration() (time.Duration, bool) {
	if tc.DurationMS == nil {
		return 0, false
	}
	return time.Duration(*tc.DurationMS) * time.Millisecond, true
}

// FullName is "Suite.Name", or Name alone when there is no suite
func (tc TestCase) FullName() string {
	if tc.Suite == "" {
		return tc.Name
	}
	return tc.Suite + "." + tc.Name
}

// Millis returns a pointer to ms, for building TestCase literals
func Millis(ms int64) *int64 {
	return &ms
}

// FromEvent converts a classified output line into a TestCase
func FromEvent(ev events.TestCompleted) TestCase {
	return TestCase{
		Suite:      ev.Suite,
		Name:       ev.Name,
		Status:     StatusFromString(ev.Status),
		DurationMS: Millis(ev.DurationMS),
	}
}
