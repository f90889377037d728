// Package output provides formatters for displaying test runs.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, streamed live
//   - JSON: Machine-readable JSON report
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//   - HTML: Self-contained HTML report
//   - Events: One JSON object per run event, streamed live
//
// Every formatter is an events.Sink so it can be attached to a run, and
// receives the final results.Report through FormatReport. Formats that
// accumulate before writing implement Flushable.
package output
