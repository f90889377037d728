// Package runner coordinates test runs across schemes, test plans and
// Swift packages.
//
// A RunRequest is flattened into an ordered list of RunUnits: scheme
// targets first, then test plans, then packages. A Manager executes the
// units one at a time through a ProcessStreamer and reports progress on an
// events.Sink:
//
//	RunStarted
//	  Stdout / Stderr / TestCompleted ...   (per unit, while it runs)
//	  TargetCompleted, Progress             (per unit, in schedule order)
//	RunFinished
//
// A Manager runs at most one request at a time. Cancel stops the active
// run: the running process is killed and the remaining units are skipped.
package runner
