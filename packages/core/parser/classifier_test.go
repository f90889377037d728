package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

func TestParseXcodebuildLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   events.TestCompleted
		wantOK bool
	}{
		{
			name:   "passed case",
			line:   "Test Case '-[S M]' passed (0.001 seconds).",
			want:   events.TestCompleted{Suite: "S", Name: "M", Status: "passed", DurationMS: 1},
			wantOK: true,
		},
		{
			name:   "failed case with module-qualified suite",
			line:   "Test Case '-[AppTests.LoginTests testInvalidPassword]' failed (2.345 seconds).",
			want:   events.TestCompleted{Suite: "AppTests.LoginTests", Name: "testInvalidPassword", Status: "failed", DurationMS: 2345},
			wantOK: true,
		},
		{
			name:   "duration rounds to nearest millisecond",
			line:   "Test Case '-[S M]' passed (0.0006 seconds).",
			want:   events.TestCompleted{Suite: "S", Name: "M", Status: "passed", DurationMS: 1},
			wantOK: true,
		},
		{
			name:   "surrounding text is allowed",
			line:   "\x1b[0mTest Case '-[S M]' passed (0.010 seconds).\r",
			want:   events.TestCompleted{Suite: "S", Name: "M", Status: "passed", DurationMS: 10},
			wantOK: true,
		},
		{name: "started line", line: "Test Case '-[S M]' started."},
		{name: "missing trailing period", line: "Test Case '-[S M]' passed (0.001 seconds)"},
		{name: "swift form", line: "Test Case 'S.M' passed (0.001 seconds)"},
		{name: "skipped is not a grammar status", line: "Test Case '-[S M]' skipped (0.001 seconds)."},
		{name: "integer seconds", line: "Test Case '-[S M]' passed (1 seconds)."},
		{name: "empty", line: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseXcodebuildLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSwiftTestLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   events.TestCompleted
		wantOK bool
	}{
		{
			name:   "failed case",
			line:   "Test Case 'S.M' failed (1.250 seconds)",
			want:   events.TestCompleted{Suite: "S", Name: "M", Status: "failed", DurationMS: 1250},
			wantOK: true,
		},
		{
			name:   "passed case with trailing period",
			line:   "Test Case 'ParserTests.testEmptyInput' passed (0.004 seconds).",
			want:   events.TestCompleted{Suite: "ParserTests", Name: "testEmptyInput", Status: "passed", DurationMS: 4},
			wantOK: true,
		},
		{name: "bracket form", line: "Test Case '-[S M]' passed (0.001 seconds)."},
		{name: "no suite separator", line: "Test Case 'SM' passed (0.001 seconds)"},
		{name: "started line", line: "Test Case 'S.M' started"},
		{name: "empty", line: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSwiftTestLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmatchedLinesProduceNothing(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"Build succeeded",
		"** TEST SUCCEEDED **",
		"Test Suite 'All tests' passed at 2024-01-01 10:00:00.000.",
		"Executed 3 tests, with 0 failures (0 unexpected) in 0.012 (0.015) seconds",
		"Test Case",
		"Test Case '-[' passed (.",
		"ünïcödé ☃",
	}
	for _, cl := range []Classifier{Xcodebuild, SwiftTest, None} {
		for _, line := range lines {
			_, ok := cl.Classify(line)
			assert.False(t, ok, "line %q", line)
		}
	}
}

func TestForProgram(t *testing.T) {
	bracket := "Test Case '-[S M]' passed (0.001 seconds)."
	dotted := "Test Case 'S.M' passed (0.001 seconds)"

	_, ok := ForProgram("xcodebuild").Classify(bracket)
	assert.True(t, ok)
	_, ok = ForProgram("xcodebuild").Classify(dotted)
	assert.False(t, ok)

	_, ok = ForProgram("/usr/bin/swift").Classify(dotted)
	assert.True(t, ok)
	ev, ok := ForProgram("swift").Classify(bracket)
	assert.True(t, ok, "swift falls back to the bracket grammar")
	assert.Equal(t, "S", ev.Suite)

	_, ok = ForProgram("xcrun").Classify(bracket)
	assert.False(t, ok)
}

func TestParseSuiteSummary(t *testing.T) {
	got, ok := ParseSuiteSummary("Test Suite 'LoginTests' failed at 2024-01-01 10:00:00.000.")
	assert.True(t, ok)
	assert.Equal(t, SuiteResult{Name: "LoginTests", Status: "failed"}, got)

	_, ok = ParseSuiteSummary("Test Suite 'LoginTests' started at 2024-01-01 10:00:00.000.")
	assert.False(t, ok)
}

func TestSecondsToMillis(t *testing.T) {
	assert.Equal(t, int64(0), SecondsToMillis(0))
	assert.Equal(t, int64(1), SecondsToMillis(0.001))
	assert.Equal(t, int64(1250), SecondsToMillis(1.25))
	assert.Equal(t, int64(0), SecondsToMillis(0.0004))
}
