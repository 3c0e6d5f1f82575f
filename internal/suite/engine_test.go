package suite

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/deixis/clicheck/internal/metrics"
	"github.com/deixis/clicheck/pkg/config"
	"github.com/deixis/clicheck/pkg/runner"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, env map[string]string) *Engine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	cfg := config.NewResolver(&config.Config{Settings: config.Settings{
		Vars: map[string]string{"TEST_APPSTACK_ID": "app-123"},
	}}, config.MapLookup(env))
	return &Engine{
		Config: cfg,
		Runner: &runner.Runner{Timeout: 10 * time.Second, GracePeriod: 500 * time.Millisecond},
	}
}

func shellCase(name, script string, ex Expect) Case {
	return Case{Name: name, Args: []string{"-c", script}, Expect: ex}
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func TestEngine_Run(t *testing.T) {
	e := newTestEngine(t, nil)
	s := &Suite{
		Name: "shell",
		Path: "/bin/sh",
		Cases: []Case{
			shellCase("ok", "echo ready", Expect{StdoutContains: []string{"ready"}}),
			shellCase("expected failure", "echo 'not found' >&2; exit 1", Expect{
				Success:        boolPtr(false),
				StderrContains: []string{"not found"},
			}),
			shellCase("wrong output", "echo nope", Expect{StdoutMatches: []string{`^yes`}}),
			shellCase("exit code", "exit 3", Expect{ExitCode: intPtr(3)}),
			{Name: "skipped", Skip: "flaky upstream"},
		},
	}

	run, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)
	require.Len(t, run.Cases, 5)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "shell", run.Name)

	passed, failed, skipped := run.Counts()
	assert.Equal(t, 3, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)

	bad := run.Cases[2]
	assert.Equal(t, "wrong output", bad.Name)
	assert.False(t, bad.Passed)
	require.Len(t, bad.Diagnostics, 1)
	assert.Contains(t, bad.Diagnostics[0], "STDOUT ASSERTION FAILED")
	assert.Contains(t, bad.Diagnostics[0], "nope")

	assert.Equal(t, "flaky upstream", run.Cases[4].SkipReason)
}

func TestEngine_DefaultExpectationIsSuccess(t *testing.T) {
	e := newTestEngine(t, nil)
	s := &Suite{Path: "/bin/sh", Cases: []Case{shellCase("fails", "exit 2", Expect{})}}

	run, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)
	require.Len(t, run.Cases[0].Diagnostics, 1)
	assert.Contains(t, run.Cases[0].Diagnostics[0], "COMMAND EXECUTION FAILED")
}

func TestEngine_Filter(t *testing.T) {
	e := newTestEngine(t, nil)
	s := &Suite{Path: "/bin/sh", Cases: []Case{
		shellCase("appstack/list", "true", Expect{}),
		shellCase("appstack/get", "true", Expect{}),
		shellCase("version", "true", Expect{}),
	}}

	run, err := e.Run(context.Background(), s, "appstack/*")
	require.NoError(t, err)
	require.Len(t, run.Cases, 2)
	assert.Equal(t, "appstack/list", run.Cases[0].Name)

	_, err = e.Run(context.Background(), s, "[unclosed")
	assert.Error(t, err)
}

func TestEngine_Expansion(t *testing.T) {
	e := newTestEngine(t, map[string]string{"AWS_PRIMARY_REGION": "ap-south-1"})
	s := &Suite{
		Path: "/bin/sh",
		Env:  map[string]string{"REGION": "${AWS_PRIMARY_REGION}", "SHARED": "suite"},
		Cases: []Case{
			{
				Name:   "expanded",
				Args:   []string{"-c", `echo "$REGION $SHARED $1"`, "sh", "${TEST_APPSTACK_ID}"},
				Env:    map[string]string{"SHARED": "case"},
				Expect: Expect{StdoutContains: []string{"ap-south-1 case app-123"}},
			},
			{
				Name: "undefined",
				Args: []string{"${NOT_DEFINED_ANYWHERE}"},
			},
		},
	}

	run, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)
	assert.True(t, run.Cases[0].Passed, strings.Join(run.Cases[0].Diagnostics, "\n"))

	undef := run.Cases[1]
	assert.False(t, undef.Passed)
	assert.Contains(t, undef.Error, "NOT_DEFINED_ANYWHERE")
}

func TestEngine_IntegrationSkippedOnCI(t *testing.T) {
	e := newTestEngine(t, map[string]string{"CI": "true"})
	s := &Suite{Path: "/bin/sh", Cases: []Case{
		{Name: "deploy", Integration: true, Args: []string{"-c", "exit 1"}},
		shellCase("unit", "true", Expect{}),
	}}

	run, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)
	assert.True(t, run.Cases[0].Skipped)
	assert.True(t, run.Passed())
}

func TestEngine_TimeoutCase(t *testing.T) {
	e := newTestEngine(t, nil)
	s := &Suite{Path: "/bin/sh", Cases: []Case{{
		Name:    "hangs",
		Args:    []string{"-c", "sleep 5"},
		Timeout: Duration(100 * time.Millisecond),
	}}}

	run, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)
	c := run.Cases[0]
	assert.True(t, c.TimedOut)
	assert.Equal(t, runner.SentinelExitCode, c.ExitCode)
	assert.False(t, c.Passed)
}

func TestEngine_ParallelKeepsOrder(t *testing.T) {
	e := newTestEngine(t, nil)
	s := &Suite{Path: "/bin/sh", Parallel: 4}
	for i := range 8 {
		n := string(rune('a' + i))
		s.Cases = append(s.Cases, shellCase(n, "echo "+n, Expect{StdoutContains: []string{n}}))
	}

	run, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)
	require.Len(t, run.Cases, 8)
	for i, c := range run.Cases {
		assert.Equal(t, string(rune('a'+i)), c.Name)
		assert.Equal(t, c.Name+"\n", c.Stdout)
	}
}

func TestEngine_Metrics(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Metrics = metrics.New(false)
	s := &Suite{Path: "/bin/sh", Cases: []Case{
		shellCase("ok", "echo hi", Expect{StdoutContains: []string{"hi", "bye"}}),
		{Name: "skip", Skip: "later"},
	}}

	_, err := e.Run(context.Background(), s, "")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(e.Metrics.Registry(), "clicheck_assertions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "pass, fail and skip series")
}

func TestEngine_InvalidSuite(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Run(context.Background(), &Suite{Cases: []Case{{Name: "a"}}}, "")
	assert.Error(t, err)
}
