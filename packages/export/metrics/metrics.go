// Package metrics exports run results as metrics: a Prometheus text file
// for node_exporter's textfile collector, or series posted to DataDog.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
)

// TargetMetrics are the per-unit figures of a run
type TargetMetrics struct {
	Key        string  `json:"key"`
	Success    bool    `json:"success"`
	Tests      int     `json:"tests"`
	Failed     int     `json:"failed"`
	DurationMs float64 `json:"duration_ms"`
}

// RunMetrics are the figures exported for one run
type RunMetrics struct {
	RunID           string          `json:"run_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Success         bool            `json:"success"`
	Cancelled       bool            `json:"cancelled"`
	DurationSeconds float64         `json:"duration_seconds"`
	Total           int             `json:"total"`
	Passed          int             `json:"passed"`
	Failed          int             `json:"failed"`
	Skipped         int             `json:"skipped"`
	P50DurationMs   float64         `json:"p50_duration_ms"`
	P95DurationMs   float64         `json:"p95_duration_ms"`
	P99DurationMs   float64         `json:"p99_duration_ms"`
	MaxDurationMs   float64         `json:"max_duration_ms"`
	MeanDurationMs  float64         `json:"mean_duration_ms"`
	Targets         []TargetMetrics `json:"targets"`
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// FromReport computes the metrics of a finished (or interrupted) run
func FromReport(r results.Report, cancelled bool) *RunMetrics {
	summary := r.Summary()
	m := &RunMetrics{
		RunID:           r.RunID,
		Timestamp:       r.StartedAt,
		Success:         r.Passed() && !cancelled,
		Cancelled:       cancelled,
		DurationSeconds: r.Duration().Seconds(),
		Total:           summary.Total,
		Passed:          summary.Passed,
		Failed:          summary.Failed,
		Skipped:         summary.Skipped,
	}
	if summary.Timed > 0 {
		m.P50DurationMs = millis(summary.P50)
		m.P95DurationMs = millis(summary.P95)
		m.P99DurationMs = millis(summary.P99)
		m.MaxDurationMs = millis(summary.Max)
		m.MeanDurationMs = millis(summary.Mean)
	}

	for _, t := range r.Targets {
		tm := TargetMetrics{Key: t.Key, Success: t.Success, Tests: len(t.Cases)}
		for _, tc := range t.Cases {
			if tc.Status == results.StatusFailed {
				tm.Failed++
			}
			if d, ok := tc.Duration(); ok {
				tm.DurationMs += millis(d)
			}
		}
		m.Targets = append(m.Targets, tm)
	}
	return m
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export sends or writes the metrics of one run
	Export(ctx context.Context, m *RunMetrics) error

	// Name returns the exporter name for error messages
	Name() string
}

// ExportAll runs every exporter, even after one fails, and joins the errors
func ExportAll(ctx context.Context, m *RunMetrics, exporters ...Exporter) error {
	var errs []error
	for _, exp := range exporters {
		if err := exp.Export(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", exp.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
