package suite

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/deixis/clicheck/internal/metrics"
	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/pkg/config"
	"github.com/deixis/clicheck/pkg/expect"
	"github.com/deixis/clicheck/pkg/runner"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Engine runs suites. It is shared by the CLI and the MCP server.
type Engine struct {
	Config  *config.Resolver
	Runner  *runner.Runner
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger     // optional
}

// Filter compiles a case name glob. An empty pattern matches every case.
func Filter(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	return g, nil
}

// Run executes the cases of s selected by filter and returns the run
// record. Case failures are recorded in the run, not returned as errors;
// the error return is reserved for an invalid suite or filter.
func (e *Engine) Run(ctx context.Context, s *Suite, filter string) (*report.Run, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g, err := Filter(filter)
	if err != nil {
		return nil, err
	}

	run := &report.Run{
		ID:      uuid.New().String(),
		Kind:    report.Suite,
		Name:    s.DisplayName(),
		Started: time.Now(),
	}

	var selected []Case
	for _, c := range s.Cases {
		if g == nil || g.Match(c.Name) {
			selected = append(selected, c)
		}
	}
	run.Cases = make([]report.Case, len(selected))

	limit := s.Parallel
	if limit < 1 {
		limit = 1
	}
	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, c := range selected {
		eg.Go(func() error {
			run.Cases[i] = e.runCase(ctx, s, c)
			return nil
		})
	}
	_ = eg.Wait()

	passed, failed, skipped := run.Counts()
	e.logger().Info("suite finished",
		"suite", run.Name, "run_id", run.ID,
		"passed", passed, "failed", failed, "skipped", skipped)
	return run, nil
}

func (e *Engine) runCase(ctx context.Context, s *Suite, c Case) report.Case {
	rc := report.Case{Name: c.Name}

	switch {
	case c.Skip != "":
		rc.Skipped, rc.SkipReason = true, c.Skip
	case c.Integration && e.Config.SkipIntegration():
		rc.Skipped, rc.SkipReason = true, "integration tests disabled"
	}
	if rc.Skipped {
		e.record(metrics.Skip)
		return rc
	}

	spec, err := e.spec(s, c)
	rc.Command = spec.CommandLine()
	if err != nil {
		rc.Error = err.Error()
		e.record(metrics.Fail)
		return rc
	}

	res, err := e.Runner.Execute(ctx, spec)
	if err != nil {
		rc.Error = err.Error()
		e.record(metrics.Fail)
		return rc
	}
	rc.Command = res.Command
	rc.ExitCode = res.ExitCode
	rc.TimedOut = res.TimedOut
	rc.Truncated = res.Truncated
	rc.Duration = res.Duration
	rc.Stdout = res.Stdout
	rc.Stderr = res.Stderr

	m := expect.Matcher{StripANSI: e.Config.StripANSI()}
	if s.StripANSI != nil {
		m.StripANSI = *s.StripANSI
	}
	for _, d := range evaluate(m, c.Expect, res) {
		if d == nil {
			e.record(metrics.Pass)
			continue
		}
		e.record(metrics.Fail)
		rc.Diagnostics = append(rc.Diagnostics, d.String())
	}
	rc.Passed = len(rc.Diagnostics) == 0

	e.logger().Debug("case finished",
		"case", c.Name, "exit_code", res.ExitCode,
		"timed_out", res.TimedOut, "passed", rc.Passed)
	return rc
}

// spec builds the command for c with placeholders expanded. Env layers
// from suite to case, the case winning.
func (e *Engine) spec(s *Suite, c Case) (runner.Spec, error) {
	x := newExpander(e.Config.Resolve)

	path := x.expand(s.Path)
	if path == "" {
		path = e.Config.BinaryPath(s.Binary)
	}
	env := x.expandMap(s.Env)
	if caseEnv := x.expandMap(c.Env); len(caseEnv) > 0 {
		if env == nil {
			env = make(map[string]string, len(caseEnv))
		}
		for k, v := range caseEnv {
			env[k] = v
		}
	}
	timeout := time.Duration(c.Timeout)
	if timeout == 0 {
		timeout = time.Duration(s.Timeout)
	}

	spec := runner.Spec{
		Path:       path,
		Subcommand: x.expand(c.Command),
		Args:       x.expandAll(c.Args),
		Env:        env,
		Timeout:    timeout,
	}
	if err := x.err(); err != nil {
		return spec, err
	}
	return spec, spec.Validate()
}

// evaluate returns one entry per expectation in declaration order; nil
// entries are expectations that held.
func evaluate(m expect.Matcher, ex Expect, res *runner.Result) []*expect.Diagnostic {
	var out []*expect.Diagnostic
	switch {
	case ex.ExitCode != nil:
		out = append(out, expect.CheckExitCode(res, *ex.ExitCode))
	case ex.Success != nil && !*ex.Success:
		out = append(out, expect.CheckExitCode(res, expect.DefaultFailureExitCode))
	default:
		out = append(out, expect.CheckSuccess(res))
	}
	for _, s := range ex.StdoutContains {
		out = append(out, m.Contains(res, expect.Stdout, s))
	}
	for _, s := range ex.StdoutMatches {
		out = append(out, m.Matches(res, expect.Stdout, regexp.MustCompile(s)))
	}
	for _, s := range ex.StderrContains {
		out = append(out, m.Contains(res, expect.Stderr, s))
	}
	for _, s := range ex.StderrMatches {
		out = append(out, m.Matches(res, expect.Stderr, regexp.MustCompile(s)))
	}
	return out
}

func (e *Engine) record(result string) {
	if e.Metrics != nil {
		e.Metrics.RecordAssertion(result)
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}
