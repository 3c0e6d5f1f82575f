package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/clicheck/internal/report"
)

func formatExec(run *report.Run) string {
	var b strings.Builder
	writeStatus(&b, run)

	c := &run.Cases[0]
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
	fmt.Fprintf(&b, "Duration: %s\n", c.Duration.Round(time.Millisecond))

	if len(c.Diagnostics) > 0 {
		for _, d := range c.Diagnostics {
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, d)
		}
		return b.String()
	}
	writeStream(&b, "Stdout", c.Stdout)
	writeStream(&b, "Stderr", c.Stderr)
	return b.String()
}

func formatSuite(run *report.Run) string {
	var b strings.Builder
	writeStatus(&b, run)
	fmt.Fprintf(&b, "Suite: %s\n", run.Name)

	passed, failed, skipped := run.Counts()
	fmt.Fprintf(&b, "Cases: %d passed, %d failed, %d skipped\n", passed, failed, skipped)
	fmt.Fprintln(&b)

	for i := range run.Cases {
		c := &run.Cases[i]
		if c.Skipped {
			fmt.Fprintf(&b, "  %s: skipped (%s)\n", c.Name, c.SkipReason)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s (%s)\n", c.Name, caseStatus(c), c.Duration.Round(time.Millisecond))
	}

	failures := report.Failures(run)
	if len(failures) == 0 {
		return b.String()
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Failures:")
	for _, c := range failures {
		fmt.Fprintf(&b, "  %s\n", c.Name)
		switch {
		case c.Error != "":
			fmt.Fprintf(&b, "    error: %s\n", c.Error)
		case c.TimedOut:
			fmt.Fprintf(&b, "    timed out: %s\n", c.Command)
		default:
			fmt.Fprintf(&b, "    exit %d: %s\n", c.ExitCode, c.Command)
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Use cli_inspect with run_id %s and a case name for full output.\n", run.ID)
	return b.String()
}

func writeStatus(b *strings.Builder, run *report.Run) {
	if run.Passed() {
		fmt.Fprintln(b, "Status: PASS")
	} else {
		fmt.Fprintln(b, "Status: FAIL")
	}
	fmt.Fprintf(b, "Run: %s\n", run.ID)
	fmt.Fprintln(b)
}

func caseStatus(c *report.Case) string {
	switch {
	case c.Skipped:
		return "skip"
	case c.Passed:
		return "pass"
	case c.TimedOut:
		return "timeout"
	}
	return "fail"
}
