package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/internal/suite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type execParams struct {
	Binary         string            `json:"binary,omitempty" jsonschema:"configured binary name (e.g. stackgen); resolved through <NAME>_CLI_PATH or .clicheck.yaml"`
	Path           string            `json:"path,omitempty" jsonschema:"explicit executable path; overrides binary"`
	Command        string            `json:"command,omitempty" jsonschema:"subcommand words, e.g. 'appstack list'"`
	Args           []string          `json:"args,omitempty" jsonschema:"arguments passed verbatim after the subcommand; no shell parsing"`
	Env            map[string]string `json:"env,omitempty" jsonschema:"environment overrides for this command"`
	TimeoutMS      int               `json:"timeout_ms,omitempty" jsonschema:"timeout in milliseconds; defaults to the configured timeout"`
	ExitCode       *int              `json:"exit_code,omitempty" jsonschema:"expected exit code; defaults to requiring success"`
	StdoutContains []string          `json:"stdout_contains,omitempty" jsonschema:"literal substrings stdout must contain"`
	StdoutMatches  []string          `json:"stdout_matches,omitempty" jsonschema:"regular expressions stdout must match"`
	StderrContains []string          `json:"stderr_contains,omitempty" jsonschema:"literal substrings stderr must contain"`
	StderrMatches  []string          `json:"stderr_matches,omitempty" jsonschema:"regular expressions stderr must match"`
}

func (h *handler) execHandler(ctx context.Context, req *mcp.CallToolRequest, params execParams) (*mcp.CallToolResult, any, error) {
	if params.Binary == "" && params.Path == "" {
		return errorResult("binary or path is required")
	}
	if params.TimeoutMS < 0 {
		return errorResult("timeout_ms must not be negative")
	}

	engine, workspace := h.snapshot()
	s := suite.Single(params.Binary, h.resolveExecutable(workspace, params.Path), suite.Case{
		Command: params.Command,
		Args:    params.Args,
		Env:     params.Env,
		Timeout: suite.Duration(time.Duration(params.TimeoutMS) * time.Millisecond),
		Expect: suite.Expect{
			ExitCode:       params.ExitCode,
			StdoutContains: params.StdoutContains,
			StdoutMatches:  params.StdoutMatches,
			StderrContains: params.StderrContains,
			StderrMatches:  params.StderrMatches,
		},
	})

	run, err := engine.Run(ctx, s, "")
	if err != nil {
		return errorResult(fmt.Sprintf("exec failed: %v", err))
	}
	run.Kind = report.Exec
	h.save(run)

	return textResult(formatExec(run))
}

// save stores run for cli_inspect. Storage failures only cost drill-down,
// so they are logged rather than returned.
func (h *handler) save(run *report.Run) {
	if err := h.store.Save(run); err != nil {
		h.log().Warn("storing run", "run_id", run.ID, "error", err)
	}
}
