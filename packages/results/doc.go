// Package results holds normalized test case records and run reports.
//
// TestCases come from two places: result bundles (authoritative, see
// package xcresult) and TestCompleted events classified from live output.
// A Collector listens to a run's event stream and assembles a Report;
// Summarize reduces a list of cases to counts and duration percentiles.
package results
