package expect

import (
	"fmt"
	"strings"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════"
	lightRule = "───────────────────────────────────────────────────────────────"
)

// Diagnostic is the failure report for an expectation that did not hold.
// It carries everything needed to understand the failure without running
// the command again: the command line, how it ended, what was expected,
// and both output streams in full.
type Diagnostic struct {
	Title       string // e.g. "OUTPUT ASSERTION FAILED"
	Command     string
	ExitCode    int
	TimedOut    bool
	Truncated   bool
	Expectation string // e.g. "EXPECTED OUTPUT TO CONTAIN"; empty for plain failures
	Expected    string // rendered literal or pattern
	Stdout      string
	Stderr      string
}

// Error implements error so diagnostics can travel as values.
func (d *Diagnostic) Error() string {
	return d.String()
}

// String renders the diagnostic as a delimited block for test reports.
func (d *Diagnostic) String() string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(heavyRule)
	line(d.Title)
	line(heavyRule)
	line("")

	if d.Expectation == "" {
		line("FAILED COMMAND:")
	} else {
		line("EXECUTED COMMAND:")
	}
	line("   " + d.Command)
	line("")

	line(fmt.Sprintf("EXIT CODE: %d", d.ExitCode))
	if d.TimedOut {
		line("TIMED OUT: the process was terminated after exceeding its timeout")
	}
	if d.Truncated {
		line("TRUNCATED: output exceeded the capture limit")
	}
	line("")

	if d.Expectation != "" {
		line(d.Expectation + ":")
		line("   " + d.Expected)
		line("")
	}

	line("STDOUT OUTPUT:")
	line(lightRule)
	line(orPlaceholder(d.Stdout, "(no output)"))
	line("")
	line("STDERR OUTPUT:")
	line(lightRule)
	line(orPlaceholder(d.Stderr, "(no errors)"))
	line("")
	b.WriteString(heavyRule)
	return b.String()
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return strings.TrimSuffix(s, "\n")
}

// quote wraps s in double quotes without escaping, so the expected text
// appears exactly as it would in the output.
func quote(s string) string {
	return `"` + s + `"`
}
