package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// TAPFormatter formats a run report in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer io.Writer
	report *results.Report
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

// Emit ignores live events; the report carries everything
func (f *TAPFormatter) Emit(events.Event) {}

func (f *TAPFormatter) FormatReport(report results.Report) {
	f.report = &report
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in the report
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush() error {
	if f.report == nil {
		return nil
	}
	cases := casesByTarget(*f.report)

	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(cases))

	for i, tc := range cases {
		n := i + 1
		name := tc.target + " " + tc.FullName()
		switch tc.Status {
		case results.StatusSkipped:
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP\n", n, name)
		case results.StatusPassed:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, name)
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, name)
			fmt.Fprintf(f.writer, "  ---\n")
			if tc.FailureMessage != "" {
				fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(tc.FailureMessage))
			}
			if loc := locationString(tc.Location); loc != "" {
				fmt.Fprintf(f.writer, "  at: %s\n", escapeYAML(loc))
			}
			fmt.Fprintf(f.writer, "  severity: fail\n")
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	for _, t := range f.report.Targets {
		if !t.Success {
			fmt.Fprintf(f.writer, "# target failed: %s\n", t.Key)
		}
	}
	for _, msg := range f.report.Errors {
		fmt.Fprintf(f.writer, "# error: %s\n", msg)
	}

	fmt.Fprintln(f.writer)
	return nil
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`\\") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
