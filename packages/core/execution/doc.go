// Package execution spawns external test tools and relays their output.
//
// A Streamer runs one child process at a time per call. Every line the
// child writes to stdout or stderr is forwarded to an events.Sink as a
// Stdout or Stderr event while the process is still running. Tools that
// buffer when not attached to a terminal (xcodebuild, swift) are run under
// script(1) so their output arrives line by line.
//
// Cancellation is observed through a cancel.Token: the child is killed,
// both readers stop, and Stream reports failure.
package execution
