// Package notify sends run completion notifications to chat webhooks.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and when a run recovers from failure
	NotifyRecovery NotifyOn = "recovery"
)

// MaxFailedTests bounds the failures listed in a single message
const MaxFailedTests = 10

// ParseNotifyOn validates a policy name
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(s); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return n, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (want always, failure, success or recovery)", s)
	}
}

// RunSummary is what a notification reports about one run
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Scope        string          `json:"scope,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	Success      bool            `json:"success"`
	Cancelled    bool            `json:"cancelled,omitempty"`
	Duration     time.Duration   `json:"duration"`
	TotalTests   int             `json:"total_tests"`
	PassedTests  int             `json:"passed_tests"`
	FailedTests  int             `json:"failed_tests"`
	SkippedTests int             `json:"skipped_tests"`
	Targets      []TargetSummary `json:"targets,omitempty"`
	Failures     []FailedTest    `json:"failures,omitempty"`
	IsRecovery   bool            `json:"is_recovery,omitempty"`
}

// TargetSummary is the outcome of one run unit
type TargetSummary struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
}

// FailedTest represents a failed test for notifications
type FailedTest struct {
	Name     string `json:"name"`
	Target   string `json:"target,omitempty"`
	Message  string `json:"message,omitempty"`
	Location string `json:"location,omitempty"`
}

// FromReport summarizes a collected run report
func FromReport(r results.Report, scope, destination string, cancelled bool) *RunSummary {
	s := r.Summary()
	summary := &RunSummary{
		RunID:        r.RunID,
		Scope:        scope,
		Destination:  destination,
		Success:      r.Passed() && !cancelled,
		Cancelled:    cancelled,
		Duration:     r.Duration(),
		TotalTests:   s.Total,
		PassedTests:  s.Passed,
		FailedTests:  s.Failed,
		SkippedTests: s.Skipped,
	}

	for _, t := range r.Targets {
		summary.Targets = append(summary.Targets, TargetSummary{Key: t.Key, Success: t.Success})
		for _, tc := range t.Cases {
			if tc.Status != results.StatusFailed {
				continue
			}
			ft := FailedTest{Name: tc.FullName(), Target: t.Key, Message: tc.FailureMessage}
			if tc.Location != nil {
				ft.Location = fmt.Sprintf("%s:%d", tc.Location.File, tc.Location.Line)
			}
			summary.Failures = append(summary.Failures, ft)
		}
	}
	return summary
}

func (s *RunSummary) failedTargets() []string {
	var keys []string
	for _, t := range s.Targets {
		if !t.Success {
			keys = append(keys, t.Key)
		}
	}
	return keys
}

func (s *RunSummary) headline() string {
	switch {
	case s.Cancelled:
		return "Run cancelled"
	case s.FailedTests > 0:
		return fmt.Sprintf("%d test(s) failed", s.FailedTests)
	case !s.Success:
		return fmt.Sprintf("%d target(s) failed", len(s.failedTargets()))
	case s.IsRecovery:
		return "Tests recovered!"
	default:
		return "All tests passed!"
	}
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a finished run
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len is the number of configured notifiers
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends notifications based on the configured policy.
// Every notifier is tried; the last error is returned.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := summary.Success

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}

	return lastErr
}
