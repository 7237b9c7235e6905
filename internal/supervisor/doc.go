// Package supervisor runs one agent CLI subprocess per request and exposes
// its output as a lazy, single-pass sequence of provider events.
//
// # Lifecycle
//
//	NotStarted -> Running -> {Completed, Failed, Cancelled}
//
// Start spawns the provider's argv in the configured working directory, in its
// own process group. Events yields every classified event in the order the
// child printed the corresponding lines. When stdout closes, the exit status
// is collected; a non-zero exit with separately captured stderr is logged
// with a bounded prefix of that stderr.
//
// # Cancellation
//
// Cancelling the context passed to Start (or calling Stop) sends SIGTERM to
// the process group, waits for the grace period, then sends SIGKILL. After
// Events returns, Err reports the terminal condition: nil for a normal
// completion, the context's cause for cancellation, or an I/O error.
//
// # Platforms
//
// Process groups and the TERM/KILL sequence are unix behaviour. On Linux the
// child also gets a parent-death signal. On Windows the child starts in a new
// process group and both stop phases terminate it directly, so grandchildren
// are not reaped.
//
// # Session persistence
//
// Options.OnSession is invoked for every session event before the event is
// yielded, so resumability survives a crash mid-stream.
package supervisor
