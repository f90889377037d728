package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string       `json:"runId"`
	Success  bool         `json:"success"`
	Finished bool         `json:"finished"`
	Summary  JSONSummary  `json:"summary"`
	Targets  []JSONTarget `json:"targets"`
	Errors   []string     `json:"errors,omitempty"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int     `json:"total"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Skipped int     `json:"skipped"`
	P50     float64 `json:"p50,omitempty"`
	P95     float64 `json:"p95,omitempty"`
	P99     float64 `json:"p99,omitempty"`
	Max     float64 `json:"max,omitempty"`
}

// JSONTarget represents the outcome of one run unit
type JSONTarget struct {
	Key     string     `json:"key"`
	Success bool       `json:"success"`
	Source  string     `json:"source,omitempty"`
	Tests   []JSONTest `json:"tests"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Suite    string   `json:"suite"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Duration *float64 `json:"duration,omitempty"`
	Failure  string   `json:"failure,omitempty"`
	Location string   `json:"location,omitempty"`
}

// JSONFormatter formats a run report as JSON
type JSONFormatter struct {
	writer io.Writer
	report *results.Report
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

// Emit ignores live events; the report carries everything
func (f *JSONFormatter) Emit(events.Event) {}

func (f *JSONFormatter) FormatReport(report results.Report) {
	f.report = &report
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in the report
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	if f.report == nil {
		return nil
	}
	r := f.report
	s := r.Summary()

	output := JSONOutput{
		RunID:    r.RunID,
		Success:  r.Passed(),
		Finished: r.Finished,
		Summary: JSONSummary{
			Total:   s.Total,
			Passed:  s.Passed,
			Failed:  s.Failed,
			Skipped: s.Skipped,
			P50:     millis(s.P50),
			P95:     millis(s.P95),
			P99:     millis(s.P99),
			Max:     millis(s.Max),
		},
		Targets:  make([]JSONTarget, 0, len(r.Targets)),
		Errors:   r.Errors,
		Duration: float64(r.Duration().Milliseconds()),
		Time:     r.StartedAt.Format(time.RFC3339),
	}

	for _, t := range r.Targets {
		target := JSONTarget{
			Key:     t.Key,
			Success: t.Success,
			Source:  string(t.Source),
			Tests:   make([]JSONTest, 0, len(t.Cases)),
		}
		for _, tc := range t.Cases {
			test := JSONTest{
				Suite:    tc.Suite,
				Name:     tc.Name,
				Status:   string(tc.Status),
				Failure:  tc.FailureMessage,
				Location: locationString(tc.Location),
			}
			if tc.DurationMS != nil {
				ms := durationMS(tc)
				test.Duration = &ms
			}
			target.Tests = append(target.Tests, test)
		}
		output.Targets = append(output.Targets, target)
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
