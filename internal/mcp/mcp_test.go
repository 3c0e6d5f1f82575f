package mcp

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/deixis/clicheck/internal/metrics"
	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/pkg/config"
	"github.com/deixis/clicheck/pkg/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// setup creates a full clicheck MCP server + client over in-memory transports.
func setup(t *testing.T, workspaceDir string, cfg *config.Config, opts ...ServerOption) *mcp.ClientSession {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	ctx := context.Background()

	resolver := config.NewResolver(cfg, config.MapLookup(nil))
	store := report.NewLRUStore(5, report.NewDiskStore(t.TempDir()))
	r := &runner.Runner{
		Timeout:     30 * time.Second,
		GracePeriod: 500 * time.Millisecond,
	}

	server := NewServer(resolver, r, store, workspaceDir, opts...)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func writeSuite(t *testing.T, dir, name, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatalf("writing suite: %v", err)
	}
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// runID extracts the id from a "Run: <id>" line.
func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Run: ") {
			return strings.TrimPrefix(line, "Run: ")
		}
	}
	t.Fatalf("no Run ID found in output:\n%s", text)
	return ""
}

// --- cli_exec ---

func TestCliExec_Passing(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "cli_exec", map[string]any{
		"path":            "/bin/echo",
		"args":            []string{"hello", "world"},
		"stdout_contains": []string{"hello"},
	})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Status: PASS", "Command: /bin/echo hello world", "Exit code: 0", "hello world"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestCliExec_Failure(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "cli_exec", map[string]any{
		"path": "/bin/sh",
		"args": []string{"-c", "echo 'stack not found' >&2; exit 3"},
	})
	text := resultText(res)
	if !strings.Contains(text, "Status: FAIL") {
		t.Errorf("expected Status: FAIL, got:\n%s", text)
	}
	if !strings.Contains(text, "COMMAND EXECUTION FAILED") {
		t.Errorf("expected a diagnostic, got:\n%s", text)
	}
	if !strings.Contains(text, "stack not found") {
		t.Errorf("expected stderr in the diagnostic, got:\n%s", text)
	}
}

func TestCliExec_ExpectedExitCode(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "cli_exec", map[string]any{
		"path":      "/bin/sh",
		"args":      []string{"-c", "exit 3"},
		"exit_code": 3,
	})
	if text := resultText(res); !strings.Contains(text, "Status: PASS") {
		t.Errorf("expected Status: PASS, got:\n%s", text)
	}
}

func TestCliExec_Timeout(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "cli_exec", map[string]any{
		"path":       "/bin/sh",
		"args":       []string{"-c", "sleep 5"},
		"timeout_ms": 100,
	})
	text := resultText(res)
	if !strings.Contains(text, "Timed out: yes") {
		t.Errorf("expected timeout to be reported, got:\n%s", text)
	}
}

func TestCliExec_ConfiguredBinary(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{
		Binaries: map[string]config.Binary{"shell": {Path: "/bin/sh"}},
	}}
	cs := setup(t, t.TempDir(), cfg)
	res := callTool(t, cs, "cli_exec", map[string]any{
		"binary":         "shell",
		"args":           []string{"-c", "echo ready"},
		"stdout_matches": []string{`(?m)^ready$`},
	})
	text := resultText(res)
	if !strings.Contains(text, "Status: PASS") || !strings.Contains(text, "Command: /bin/sh") {
		t.Errorf("expected the configured path to be used, got:\n%s", text)
	}
}

func TestCliExec_NoExecutable(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "cli_exec", map[string]any{"command": "version"})
	if !res.IsError {
		t.Error("expected IsError without binary or path")
	}
}

// --- cli_suite ---

const shellSuite = `
name: shell smoke
path: /bin/sh
cases:
  - name: greets
    args: [-c, echo hello]
    expect:
      stdout_contains: [hello]
  - name: wrong exit
    args: [-c, "echo boom >&2; exit 4"]
    expect:
      exit_code: 2
  - name: later
    skip: not yet
`

func TestCliSuite(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "smoke.yaml", shellSuite)
	cs := setup(t, dir, nil)

	res := callTool(t, cs, "cli_suite", map[string]any{"file": "smoke.yaml"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{
		"Status: FAIL",
		"Suite: shell smoke",
		"Cases: 1 passed, 1 failed, 1 skipped",
		"greets: pass",
		"later: skipped (not yet)",
		"Failures:",
		"exit 4: /bin/sh -c echo boom >&2; exit 4",
		"cli_inspect",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestCliSuite_Filter(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "smoke.yaml", shellSuite)
	cs := setup(t, dir, nil)

	res := callTool(t, cs, "cli_suite", map[string]any{"file": "smoke.yaml", "filter": "gree*"})
	text := resultText(res)
	if !strings.Contains(text, "Status: PASS") || strings.Contains(text, "wrong exit") {
		t.Errorf("expected only the filtered case, got:\n%s", text)
	}
}

func TestCliSuite_MissingFileParam(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "cli_suite",
		Arguments: map[string]any{"filter": "*"},
	})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCliSuite_BadFile(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "broken.yaml", "cases: [unclosed\n")
	cs := setup(t, dir, nil)

	for _, file := range []string{"broken.yaml", "missing.yaml"} {
		res := callTool(t, cs, "cli_suite", map[string]any{"file": file})
		if !res.IsError {
			t.Errorf("expected IsError for %s", file)
		}
	}
}

// --- cli_inspect ---

func TestCliInspect_MissingRunID(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "cli_inspect",
		Arguments: map[string]any{"case": "greets"},
	})
	if err == nil {
		t.Error("expected error for missing run_id")
	}
}

func TestCliInspect_MissingCase(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "cli_inspect",
		Arguments: map[string]any{"run_id": "some-id"},
	})
	if err == nil {
		t.Error("expected error for missing case")
	}
}

func TestCliInspect_InvalidRunID(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "cli_inspect", map[string]any{
		"run_id": "nonexistent-id",
		"case":   "greets",
	})
	if !res.IsError {
		t.Error("expected IsError for invalid run_id")
	}
}

func TestCliInspect_AfterFailingSuite(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "smoke.yaml", shellSuite)
	cs := setup(t, dir, nil)

	id := runID(t, resultText(callTool(t, cs, "cli_suite", map[string]any{"file": "smoke.yaml"})))

	res := callTool(t, cs, "cli_inspect", map[string]any{"run_id": id, "case": "wrong exit"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error from cli_inspect: %s", text)
	}
	for _, want := range []string{"wrong exit: fail", "Exit code: 4", "EXIT CODE ASSERTION FAILED", "boom"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}

	res = callTool(t, cs, "cli_inspect", map[string]any{"run_id": id, "case": "nope"})
	if !res.IsError || !strings.Contains(resultText(res), "greets") {
		t.Errorf("expected an error listing the run's cases, got:\n%s", resultText(res))
	}
}

func TestCliInspect_PassingCaseShowsOutput(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	id := runID(t, resultText(callTool(t, cs, "cli_exec", map[string]any{
		"path": "/bin/echo",
		"args": []string{"fine"},
	})))

	text := resultText(callTool(t, cs, "cli_inspect", map[string]any{"run_id": id, "case": "exec"}))
	if !strings.Contains(text, "(exec)") || !strings.Contains(text, "    fine") || !strings.Contains(text, "Stderr: (empty)") {
		t.Errorf("expected full output, got:\n%s", text)
	}
}

// --- cli_config ---

func TestCliConfig(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{
		Binaries: map[string]config.Binary{"stackgen": {Path: "/opt/stackgen"}},
	}}
	cs := setup(t, t.TempDir(), cfg)
	text := resultText(callTool(t, cs, "cli_config", nil))
	for _, want := range []string{"environment: local", "stackgen.path: /opt/stackgen", "regions.primary: eu-west-2"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

// --- metrics ---

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New(false)
	cs := setup(t, t.TempDir(), nil, WithMetrics(m))
	callTool(t, cs, "cli_exec", map[string]any{"path": "/bin/echo", "args": []string{"x"}})

	n, err := testutil.GatherAndCount(m.Registry(), "clicheck_executions_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("executions series = %d, want 1", n)
	}
}
