package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

func sampleReport() results.Report {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return results.Report{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(2500 * time.Millisecond),
		Finished:   true,
		Success:    false,
		Targets: []results.TargetResult{
			{
				Key:     "App",
				Success: false,
				Source:  results.SourceBundle,
				Cases: []results.TestCase{
					{Suite: "LoginTests", Name: "testLogin", Status: results.StatusPassed, DurationMS: results.Millis(12)},
					{
						Suite:          "LoginTests",
						Name:           "testLogout",
						Status:         results.StatusFailed,
						DurationMS:     results.Millis(30),
						FailureMessage: `XCTAssertEqual failed: ("1") is not equal to ("2")`,
						Location:       &results.Location{File: "LoginTests.swift", Line: 42},
					},
					{Suite: "LoginTests", Name: "testLater", Status: results.StatusSkipped},
				},
			},
			{Key: "Core|CoreTests", Success: false},
		},
	}
}

func TestNew(t *testing.T) {
	for _, name := range Formats() {
		f, err := New(name, Options{Writer: &bytes.Buffer{}})
		require.NoError(t, err, name)
		assert.NotNil(t, f, name)
	}

	_, err := New("yaml", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "console")

	f, err := New("JUnit", Options{})
	require.NoError(t, err)
	assert.IsType(t, &JUnitFormatter{}, f)
}

func TestConsoleFormatter_Emit(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.Emit(events.RunStarted{RunID: "run-1"})
	f.Emit(events.Stdout{Line: "Compiling Swift sources"})
	f.Emit(events.Stdout{Line: "Test Suite 'LoginTests' passed at 2026-03-01 10:00:01.000."})
	f.Emit(events.Stderr{Line: "warning: noisy"})
	f.Emit(events.TestCompleted{Suite: "LoginTests", Name: "testLogin", Status: "passed", DurationMS: 12})
	f.Emit(events.TestCompleted{Suite: "LoginTests", Name: "testLogout", Status: "failed", DurationMS: 30})
	f.Emit(events.TargetCompleted{Key: "App", Success: false})
	f.Emit(events.Progress{Completed: 1, Total: 2})
	f.Emit(events.Error{Message: "Process error: boom"})

	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.NotContains(t, out, "Compiling Swift sources")
	assert.NotContains(t, out, "noisy")
	assert.Contains(t, out, "suite LoginTests passed")
	assert.Contains(t, out, "✓ LoginTests.testLogin (12ms)")
	assert.Contains(t, out, "✗ LoginTests.testLogout (30ms)")
	assert.Contains(t, out, "FAIL App")
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "Error: Process error: boom")
}

func TestConsoleFormatter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.Emit(events.Stdout{Line: "Compiling Swift sources"})
	f.Emit(events.Stderr{Line: "warning: noisy"})
	f.FormatReport(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "Compiling Swift sources")
	assert.Contains(t, out, "warning: noisy")
	assert.Contains(t, out, "Slowest:")
}

func TestConsoleFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatReport(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "Failures:")
	assert.Contains(t, out, "LoginTests.testLogout [App]")
	assert.Contains(t, out, "LoginTests.swift:42")
	assert.Contains(t, out, "XCTAssertEqual failed")
	assert.Contains(t, out, "Targets: 2 failed, 2 total")
	assert.Contains(t, out, "Tests:   1 passed, 1 failed, 1 skipped, 3 total")
	assert.Contains(t, out, "Latency:")
	assert.Contains(t, out, "Time:    2.5s")
	assert.NotContains(t, out, "Slowest:")
}

func TestConsoleFormatter_HeaderAndError(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatHeader("1.2.3")
	f.FormatError(errors.New("no active run to cancel"))

	assert.Equal(t, "xcrunner 1.2.3\nError: no active run to cancel\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.Emit(events.RunStarted{RunID: "ignored"})
	f.FormatReport(sampleReport())
	require.NoError(t, f.Flush())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "run-1", out.RunID)
	assert.False(t, out.Success)
	assert.True(t, out.Finished)
	assert.Equal(t, 3, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Failed)
	assert.Equal(t, float64(2500), out.Duration)
	assert.Equal(t, "2026-03-01T10:00:00Z", out.Time)

	require.Len(t, out.Targets, 2)
	app := out.Targets[0]
	assert.Equal(t, "bundle", app.Source)
	require.Len(t, app.Tests, 3)
	assert.Equal(t, "LoginTests.swift:42", app.Tests[1].Location)
	require.NotNil(t, app.Tests[1].Duration)
	assert.Equal(t, float64(30), *app.Tests[1].Duration)
	assert.Nil(t, app.Tests[2].Duration)
	assert.Empty(t, out.Targets[1].Tests)
}

func TestJSONFormatter_FlushWithoutReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).Flush())
	assert.Empty(t, buf.String())
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatReport(sampleReport())
	require.NoError(t, f.Flush())

	assert.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, "xcrunner", suites.Name)
	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Skipped)
	assert.Equal(t, 1, suites.Errors, "failed unit without failing cases")
	assert.InDelta(t, 2.5, suites.Time, 0.001)

	require.Len(t, suites.TestSuites, 2)
	app := suites.TestSuites[0]
	assert.Equal(t, "App", app.Name)
	assert.InDelta(t, 0.042, app.Time, 0.0001)
	require.Len(t, app.TestCases, 3)
	failed := app.TestCases[1]
	assert.Equal(t, "LoginTests", failed.ClassName)
	assert.Equal(t, "LoginTests.swift", failed.File)
	assert.Equal(t, 42, failed.Line)
	require.NotNil(t, failed.Failure)
	assert.Contains(t, failed.Failure.Content, "LoginTests.swift:42")
	assert.NotNil(t, app.TestCases[2].Skipped)

	assert.Contains(t, suites.TestSuites[1].SystemErr, "Core|CoreTests")
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatReport(sampleReport())
	require.NoError(t, f.Flush())

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "1..3", lines[1])
	assert.Equal(t, "ok 1 - App LoginTests.testLogin", lines[2])
	assert.Equal(t, "not ok 2 - App LoginTests.testLogout", lines[3])
	assert.Contains(t, buf.String(), `  message: "XCTAssertEqual failed: (\"1\") is not equal to (\"2\")"`)
	assert.Contains(t, buf.String(), `  at: "LoginTests.swift:42"`)
	assert.Contains(t, buf.String(), "ok 3 - App LoginTests.testLater # SKIP")
	assert.Contains(t, buf.String(), "# target failed: Core|CoreTests")
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a: b"`, escapeYAML("a: b"))
	assert.Equal(t, `"line\none"`, escapeYAML("line\none"))
}

func TestHTMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHTMLFormatter(HTMLWithWriter(&buf))
	f.FormatHeader("1.0.0")
	f.FormatReport(sampleReport())
	require.NoError(t, f.Flush())

	out := buf.String()
	assert.Contains(t, out, "<title>xcrunner report run-1</title>")
	assert.Contains(t, out, "Run failed")
	assert.Contains(t, out, "LoginTests.testLogout")
	assert.Contains(t, out, "XCTAssertEqual failed: (&#34;1&#34;)")
	assert.Contains(t, out, "xcrunner 1.0.0")
	assert.Contains(t, out, "3 tests: 1 passed, 1 failed, 1 skipped")
}

func TestEventsFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewEventsFormatter(EventsWithWriter(&buf))

	f.Emit(events.RunStarted{RunID: "run-1"})
	f.Emit(events.TargetCompleted{Key: "App", Success: true})
	f.FormatReport(sampleReport())
	f.FormatError(errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"type":"RunStarted","runId":"run-1"}`, lines[0])
	assert.JSONEq(t, `{"type":"TargetCompleted","key":"App","success":true}`, lines[1])
	assert.JSONEq(t, `{"type":"Error","message":"boom"}`, lines[2])
}
