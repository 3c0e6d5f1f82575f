// Package runner executes external commands with merged environments,
// timeouts, and complete output capture. Every outcome, including a
// binary that cannot be started, is normalised into a Result.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default values used when the Runner or the Spec leave them unset.
const (
	DefaultTimeout     = 5 * time.Minute
	DefaultGracePeriod = 2 * time.Second
)

var errTimedOut = errors.New("command timed out")

// Runner executes command specs. A Runner is not modified by Execute and
// may be shared by concurrent callers.
type Runner struct {
	Timeout     time.Duration // used when Spec.Timeout is zero
	GracePeriod time.Duration // between SIGTERM and the hard kill
	MaxOutput   int           // per-stream capture cap in bytes; 0 is unlimited

	// BaseEnv is the environment the Spec overrides are merged into.
	// When nil, a snapshot of os.Environ() is taken on every call.
	BaseEnv []string

	Logger   *slog.Logger
	OnResult func(*Result) // called once per completed execution
}

// Execute runs spec and blocks until the process exits, is terminated on
// timeout, or fails to start. The only error returned is ErrInvalidSpec;
// process-level failures are reported through the Result.
func (r *Runner) Execute(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	timeout := r.timeout(spec)
	res := &Result{
		RunID:   uuid.New().String(),
		Command: spec.CommandLine(),
	}
	log := r.logger().With("run_id", res.RunID, "command", res.Command)

	runCtx, cancel := context.WithTimeoutCause(ctx, timeout, errTimedOut)
	defer cancel()

	argv := spec.Argv()
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(r.baseEnv(), spec.Env)
	cmd.WaitDelay = r.gracePeriod()
	setProcessGroup(cmd)

	stdout := &limitWriter{limit: r.MaxOutput}
	stderr := &limitWriter{limit: r.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debug("executing command", "argv", argv, "timeout", timeout)
	start := time.Now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)
	// Descendants left in the group (background jobs, daemons that held
	// the pipes open) must not outlive the call.
	killProcessGroup(cmd)

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = stdout.truncated || stderr.truncated

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.ExitCode = 0

	case runCtx.Err() != nil:
		res.ExitCode = SentinelExitCode
		cause := context.Cause(runCtx)
		if errors.Is(cause, errTimedOut) {
			res.TimedOut = true
			log.Warn("command timed out", "timeout", timeout, "duration", res.Duration)
		} else {
			res.Stderr = appendLine(res.Stderr, fmt.Sprintf("execution cancelled: %v", cause))
			log.Warn("command cancelled", "cause", cause)
		}

	case errors.As(runErr, &exitErr):
		res.ExitCode = normaliseExitCode(exitErr.ExitCode())

	case cmd.ProcessState != nil:
		// The process exited but its output pipes were held open past the
		// grace period (exec.ErrWaitDelay) or could not be copied.
		res.ExitCode = normaliseExitCode(cmd.ProcessState.ExitCode())
		log.Debug("output capture ended early", "error", runErr)

	default:
		res.ExitCode = SentinelExitCode
		res.Stdout = ""
		res.Stderr = runErr.Error()
		log.Warn("command failed to start", "error", runErr)
	}

	log.Debug("command finished",
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
	)

	if r.OnResult != nil {
		r.OnResult(res)
	}
	return res, nil
}

func (r *Runner) timeout(spec Spec) time.Duration {
	if spec.Timeout > 0 {
		return spec.Timeout
	}
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) gracePeriod() time.Duration {
	if r.GracePeriod > 0 {
		return r.GracePeriod
	}
	return DefaultGracePeriod
}

func (r *Runner) baseEnv() []string {
	if r.BaseEnv != nil {
		return r.BaseEnv
	}
	return os.Environ()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// normaliseExitCode maps the -1 reported for signal deaths to the sentinel.
func normaliseExitCode(code int) int {
	if code < 0 {
		return SentinelExitCode
	}
	return code
}

func appendLine(s, line string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s + line
	}
	return s + "\n" + line
}

// limitWriter buffers up to limit bytes, then silently discards the rest.
// A limit of zero or less buffers everything.
type limitWriter struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = w.truncated || len(p) > 0
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitWriter) String() string {
	return w.buf.String()
}
