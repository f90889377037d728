package parser

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

var (
	xcodebuildCaseRe = regexp.MustCompile(`Test Case '-\[(\S+)\s+(\S+)\]' (passed|failed) \((\d+\.\d+) seconds\)\.`)
	swiftCaseRe      = regexp.MustCompile(`Test Case '([^.]+)\.(\S+)' (passed|failed) \((\d+\.\d+) seconds\)`)
	suiteSummaryRe   = regexp.MustCompile(`Test Suite '(\S+)' (passed|failed) at`)
)

// Classifier recognizes finished test cases in tool output lines
type Classifier interface {
	Classify(line string) (events.TestCompleted, bool)
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(line string) (events.TestCompleted, bool)

// Classify calls f(line)
func (f ClassifierFunc) Classify(line string) (events.TestCompleted, bool) {
	return f(line)
}

var (
	// Xcodebuild recognizes the Objective-C style XCTest line printed by xcodebuild
	Xcodebuild Classifier = ClassifierFunc(ParseXcodebuildLine)

	// SwiftTest recognizes swift test output. On macOS, XCTest under swift
	// test prints the bracket form, so the xcodebuild grammar is tried second.
	SwiftTest Classifier = Chain(ClassifierFunc(ParseSwiftTestLine), Xcodebuild)

	// None never matches
	None Classifier = ClassifierFunc(func(string) (events.TestCompleted, bool) {
		return events.TestCompleted{}, false
	})
)

var byProgram = map[string]Classifier{
	"xcodebuild": Xcodebuild,
	"swift":      SwiftTest,
}

// ForProgram returns the classifier for a tool, matched on its base name.
// Unknown programs get None.
func ForProgram(program string) Classifier {
	if c, ok := byProgram[filepath.Base(program)]; ok {
		return c
	}
	return None
}

type chain []Classifier

func (c chain) Classify(line string) (events.TestCompleted, bool) {
	for _, cl := range c {
		if ev, ok := cl.Classify(line); ok {
			return ev, true
		}
	}
	return events.TestCompleted{}, false
}

// Chain returns a classifier that tries each of cs in order
func Chain(cs ...Classifier) Classifier {
	return chain(cs)
}

// ParseXcodebuildLine parses `Test Case '-[Suite method]' passed (0.001 seconds).`
func ParseXcodebuildLine(line string) (events.TestCompleted, bool) {
	return match(xcodebuildCaseRe, line)
}

// ParseSwiftTestLine parses `Test Case 'Suite.method' passed (0.001 seconds)`
func ParseSwiftTestLine(line string) (events.TestCompleted, bool) {
	return match(swiftCaseRe, line)
}

func match(re *regexp.Regexp, line string) (events.TestCompleted, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return events.TestCompleted{}, false
	}
	seconds, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return events.TestCompleted{}, false
	}
	return events.TestCompleted{
		Suite:      m[1],
		Name:       m[2],
		Status:     m[3],
		DurationMS: SecondsToMillis(seconds),
	}, true
}

// SecondsToMillis converts a duration in seconds to whole milliseconds, rounding to nearest
func SecondsToMillis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// SuiteResult is a parsed `Test Suite 'Name' passed at ...` line
type SuiteResult struct {
	Name   string
	Status string
}

// ParseSuiteSummary recognizes suite-level summary lines
func ParseSuiteSummary(line string) (SuiteResult, bool) {
	m := suiteSummaryRe.FindStringSubmatch(line)
	if m == nil {
		return SuiteResult{}, false
	}
	return SuiteResult{Name: m[1], Status: m[2]}, true
}
