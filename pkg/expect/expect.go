// Package expect turns command results into test outcomes. A Harness runs
// command specs against one executable and fails the calling test with a
// complete Diagnostic when an expectation does not hold.
//
// Helpers named Expect* that check output are fatal: they stop the test, as
// there is nothing sensible to inspect after an unexpected result.
// ExpectFailure, ExpectExitCode and the Assert* helpers only mark the test
// as failed and return, so several assertions can be made against one run.
package expect

import (
	"context"
	"regexp"

	"github.com/deixis/clicheck/pkg/config"
	"github.com/deixis/clicheck/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DefaultFailureExitCode is the exit code ExpectFailure expects.
const DefaultFailureExitCode = 1

// TestingT is the subset of *testing.T the harness reports to.
type TestingT = require.TestingT

type tHelper interface {
	Helper()
}

// Harness executes commands for one executable and asserts on the results.
type Harness struct {
	Runner     *runner.Runner
	Executable string            // used when a Spec has no Path
	Env        map[string]string // applied beneath each Spec's own Env
	Matcher
}

// Option configures a Harness.
type Option func(*Harness)

// WithRunner replaces the default runner.
func WithRunner(r *runner.Runner) Option {
	return func(h *Harness) {
		h.Runner = r
	}
}

// WithEnv sets environment overrides shared by every command.
func WithEnv(env map[string]string) Option {
	return func(h *Harness) {
		h.Env = env
	}
}

// WithStripANSI strips terminal escape sequences before matching output.
func WithStripANSI(strip bool) Option {
	return func(h *Harness) {
		h.StripANSI = strip
	}
}

// New creates a Harness for the executable at path.
func New(path string, opts ...Option) *Harness {
	h := &Harness{Executable: path}
	for _, o := range opts {
		o(h)
	}
	if h.Runner == nil {
		h.Runner = &runner.Runner{}
	}
	return h
}

// FromConfig creates a Harness for a named binary using the resolved
// configuration for its path, timeouts and matching options.
func FromConfig(cfg *config.Resolver, binary string, opts ...Option) *Harness {
	base := []Option{
		WithRunner(cfg.Runner(nil)),
		WithStripANSI(cfg.StripANSI()),
	}
	return New(cfg.BinaryPath(binary), append(base, opts...)...)
}

// Spec builds a spec for the harness executable.
func (h *Harness) Spec(subcommand string, args ...string) runner.Spec {
	return runner.Spec{Path: h.Executable, Subcommand: subcommand, Args: args}
}

// Execute runs spec and returns its result. A malformed spec fails the
// test immediately and yields nil.
func (h *Harness) Execute(t TestingT, spec runner.Spec) *runner.Result {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	res, err := h.Runner.Execute(contextFor(t), h.prepare(spec))
	if err != nil {
		require.FailNow(t, "malformed command spec", err.Error())
		return nil
	}
	return res
}

// ExpectSuccess runs spec and stops the test unless it exits with status 0.
func (h *Harness) ExpectSuccess(t TestingT, spec runner.Spec) *runner.Result {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	res := h.Execute(t, spec)
	if res == nil {
		return nil
	}
	if d := CheckSuccess(res); d != nil {
		require.Fail(t, d.String())
	}
	return res
}

// ExpectFailure runs spec and marks the test failed unless it exits with
// DefaultFailureExitCode. The result is returned either way.
func (h *Harness) ExpectFailure(t TestingT, spec runner.Spec) *runner.Result {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	return h.ExpectExitCode(t, spec, DefaultFailureExitCode)
}

// ExpectExitCode runs spec and marks the test failed unless it exits with
// code. The result is returned either way.
func (h *Harness) ExpectExitCode(t TestingT, spec runner.Spec, code int) *runner.Result {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	res := h.Execute(t, spec)
	if res == nil {
		return nil
	}
	if d := CheckExitCode(res, code); d != nil {
		assert.Fail(t, d.String())
	}
	return res
}

// ExpectOutputContains runs spec and stops the test unless stdout contains
// expected as a literal substring.
func (h *Harness) ExpectOutputContains(t TestingT, spec runner.Spec, expected string) *runner.Result {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	res := h.Execute(t, spec)
	if res == nil {
		return nil
	}
	if d := h.contains(res, Stdout, expected, "OUTPUT ASSERTION FAILED", "EXPECTED OUTPUT TO CONTAIN"); d != nil {
		require.Fail(t, d.String())
	}
	return res
}

// ExpectOutputMatches runs spec and stops the test unless stdout matches re.
func (h *Harness) ExpectOutputMatches(t TestingT, spec runner.Spec, re *regexp.Regexp) *runner.Result {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	res := h.Execute(t, spec)
	if res == nil {
		return nil
	}
	if d := h.matches(res, Stdout, re, "REGEX ASSERTION FAILED", "EXPECTED OUTPUT TO MATCH REGEX"); d != nil {
		require.Fail(t, d.String())
	}
	return res
}

// AssertFieldContains checks an existing result without running anything.
// It marks the test failed and returns false on mismatch.
func (h *Harness) AssertFieldContains(t TestingT, res *runner.Result, f Field, expected string) bool {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	if !f.Valid() {
		require.FailNow(t, "unknown output field", "field %q", f)
		return false
	}
	if d := h.Contains(res, f, expected); d != nil {
		return assert.Fail(t, d.String())
	}
	return true
}

// AssertFieldMatches is the pattern counterpart of AssertFieldContains.
func (h *Harness) AssertFieldMatches(t TestingT, res *runner.Result, f Field, re *regexp.Regexp) bool {
	if th, ok := t.(tHelper); ok {
		th.Helper()
	}
	if !f.Valid() {
		require.FailNow(t, "unknown output field", "field %q", f)
		return false
	}
	if d := h.Matches(res, f, re); d != nil {
		return assert.Fail(t, d.String())
	}
	return true
}

// prepare fills the executable and layers the harness env beneath the
// spec's own overrides. The caller's spec is left untouched.
func (h *Harness) prepare(spec runner.Spec) runner.Spec {
	if spec.Path == "" {
		spec.Path = h.Executable
	}
	if len(h.Env) > 0 {
		env := make(map[string]string, len(h.Env)+len(spec.Env))
		for k, v := range h.Env {
			env[k] = v
		}
		for k, v := range spec.Env {
			env[k] = v
		}
		spec.Env = env
	}
	return spec
}

// contextFor uses the test's context when it has one, so commands are
// cancelled together with the test.
func contextFor(t TestingT) context.Context {
	if c, ok := t.(interface{ Context() context.Context }); ok {
		return c.Context()
	}
	return context.Background()
}
