// Package discovery finds what can be run in a project directory: Xcode
// schemes (and the test targets their shared schemes declare), test plans,
// Swift packages with test targets, and available simulators.
//
// All tool output is JSON read with gjson. Tools are run through a
// CommandFunc so tests can substitute canned output.
package discovery
