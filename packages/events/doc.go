// Package events defines the test run event stream.
//
// A run emits, in order: RunStarted, any number of Stdout/Stderr/TestCompleted
// events interleaved with one TargetCompleted and one Progress per run unit,
// and finally RunFinished. Error may appear at any point after RunStarted.
//
// Events are delivered to a Sink in real time and are never retained.
package events
