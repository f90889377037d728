package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/parser"
	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// maxMessageLen truncates failure messages in the summary
const maxMessageLen = 300

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// ConsoleFormatter prints run progress as it happens and a summary at the end
type ConsoleFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

// WithVerbose also echoes raw tool output and the slowest tests
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func statusSymbol(s string) string {
	switch results.StatusFromString(s) {
	case results.StatusPassed:
		return green("✓")
	case results.StatusSkipped:
		return yellow("-")
	default:
		return red("✗")
	}
}

// Emit prints one live event
func (f *ConsoleFormatter) Emit(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch e := ev.(type) {
	case events.RunStarted:
		fmt.Fprintf(f.writer, "\n%s %s\n\n", bold("Run"), faint(e.RunID))
	case events.Stdout:
		if f.verbose {
			fmt.Fprintf(f.writer, "    %s\n", faint(e.Line))
		} else if s, ok := parser.ParseSuiteSummary(e.Line); ok {
			fmt.Fprintf(f.writer, "  %s %s\n", faint("suite"), faint(s.Name+" "+s.Status))
		}
	case events.Stderr:
		if f.verbose {
			fmt.Fprintf(f.writer, "    %s\n", red(e.Line))
		}
	case events.TestCompleted:
		name := e.Name
		if e.Suite != "" {
			name = e.Suite + "." + e.Name
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", statusSymbol(e.Status), name, cyan(fmt.Sprintf("(%dms)", e.DurationMS)))
	case events.TargetCompleted:
		if e.Success {
			fmt.Fprintf(f.writer, "%s %s\n", green("PASS"), bold(e.Key))
		} else {
			fmt.Fprintf(f.writer, "%s %s\n", red("FAIL"), bold(e.Key))
		}
	case events.Progress:
		fmt.Fprintf(f.writer, "%s\n\n", faint(fmt.Sprintf("[%d/%d]", e.Completed, e.Total)))
	case events.Error:
		fmt.Fprintf(f.writer, "%s %s\n", red("Error:"), e.Message)
	}
}

// FormatReport prints failures and the run summary
func (f *ConsoleFormatter) FormatReport(report results.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var failures []targetCase
	for _, tc := range casesByTarget(report) {
		if tc.Status == results.StatusFailed {
			failures = append(failures, tc)
		}
	}

	if len(failures) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", bold("Failures:"))
		for _, tc := range failures {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), tc.FullName(), faint("["+tc.target+"]"))
			if loc := locationString(tc.Location); loc != "" {
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), loc)
			}
			if tc.FailureMessage != "" {
				fmt.Fprintf(f.writer, "      %s\n", truncate(tc.FailureMessage, maxMessageLen))
			}
		}
	}

	s := report.Summary()

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Targets: ")
	var passedTargets, failedTargets int
	for _, t := range report.Targets {
		if t.Success {
			passedTargets++
		} else {
			failedTargets++
		}
	}
	if passedTargets > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passedTargets)))
	}
	if failedTargets > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failedTargets)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(report.Targets))

	fmt.Fprintf(f.writer, "Tests:   ")
	if s.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", s.Passed)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Failed)))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Total)

	if s.Timed > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %s, p95 %s, p99 %s, max %s\n",
			fmtDuration(s.P50), fmtDuration(s.P95), fmtDuration(s.P99), fmtDuration(s.Max))
	}
	if f.verbose && len(s.Slowest) > 0 {
		fmt.Fprintf(f.writer, "Slowest:\n")
		for _, tc := range s.Slowest {
			d, _ := tc.Duration()
			fmt.Fprintf(f.writer, "  %s %s\n", cyan(fmtDuration(d)), tc.FullName())
		}
	}

	for _, msg := range report.Errors {
		fmt.Fprintf(f.writer, "%s %s\n", red("Error:"), msg)
	}

	if report.Finished {
		fmt.Fprintf(f.writer, "Time:    %s\n", fmtDuration(report.Duration()))
	} else {
		fmt.Fprintf(f.writer, "Time:    %s\n", yellow("run did not finish"))
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "%s %s\n", bold("xcrunner"), version)
}

func fmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}
