// Package parser classifies raw test tool output into structured events.
//
// It recognizes two line grammars:
//   - xcodebuild: Test Case '-[Suite method]' passed (0.001 seconds).
//   - swift test: Test Case 'Suite.method' failed (1.250 seconds)
//
// Classifiers are stateless and safe for concurrent use. A line that does
// not match produces nothing; the raw line is still relayed by the caller.
// Suite summary lines are recognized separately by ParseSuiteSummary and are
// never turned into TestCompleted events.
package parser
