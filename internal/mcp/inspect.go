package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deixis/clicheck/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a cli_exec or cli_suite result"`
	Case  string `json:"case" jsonschema:"case name from the run output"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Case == "" {
		return errorResult("case is required")
	}

	run, err := h.store.Load(params.RunID)
	if errors.Is(err, report.ErrNotFound) {
		return errorResult(fmt.Sprintf("Run %s not found. Run IDs are only kept for the lifetime of the server.", params.RunID))
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	c, ok := report.FindCase(run, params.Case)
	if !ok {
		names := make([]string, len(run.Cases))
		for i := range run.Cases {
			names[i] = run.Cases[i].Name
		}
		return errorResult(fmt.Sprintf("No case %q in run %s. Cases: %s", params.Case, run.ID, strings.Join(names, ", ")))
	}

	return textResult(formatInspectOutput(run, c))
}

func formatInspectOutput(run *report.Run, c *report.Case) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", run.ID, run.Kind)
	fmt.Fprintf(&b, "%s: %s\n", c.Name, caseStatus(c))
	fmt.Fprintln(&b)

	if c.Skipped {
		fmt.Fprintf(&b, "Skipped: %s\n", c.SkipReason)
		return b.String()
	}
	if c.Command != "" {
		fmt.Fprintf(&b, "Command: %s\n", c.Command)
	}
	if c.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", c.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "Exit code: %d\n", c.ExitCode)
	if c.TimedOut {
		fmt.Fprintln(&b, "Timed out: yes")
	}
	fmt.Fprintf(&b, "Duration: %s\n", c.Duration)

	for _, d := range c.Diagnostics {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, d)
	}
	if len(c.Diagnostics) == 0 {
		writeStream(&b, "Stdout", c.Stdout)
		writeStream(&b, "Stderr", c.Stderr)
	}
	return b.String()
}

func writeStream(b *strings.Builder, label, text string) {
	fmt.Fprintln(b)
	if text == "" {
		fmt.Fprintf(b, "%s: (empty)\n", label)
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
