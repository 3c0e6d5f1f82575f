package runner

import "time"

// SentinelExitCode is reported when the process did not exit on its own:
// it timed out, was cancelled, was killed by a signal, or never started.
const SentinelExitCode = 1

// Result holds the outcome of a single command execution.
type Result struct {
	RunID     string        // unique identifier for this run
	Command   string        // reconstructed command line, for display
	ExitCode  int           // process exit code, or SentinelExitCode
	Stdout    string        // captured stdout
	Stderr    string        // captured stderr, or the spawn failure
	TimedOut  bool          // true if the process was terminated on timeout
	Duration  time.Duration // wall time from spawn to return
	Truncated bool          // true if a stream exceeded Runner.MaxOutput
}

// Success reports whether the process exited cleanly with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Outcome classifies the result as "success", "failure" or "timeout".
func (r *Result) Outcome() string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.ExitCode == 0:
		return "success"
	default:
		return "failure"
	}
}
