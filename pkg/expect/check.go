package expect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/deixis/clicheck/pkg/runner"
)

// Field selects an output stream of a result.
type Field string

const (
	Stdout Field = "stdout"
	Stderr Field = "stderr"
)

// Valid reports whether f names a known stream.
func (f Field) Valid() bool {
	return f == Stdout || f == Stderr
}

// ParseField converts "stdout" or "stderr" (any case) to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown output field %q (want stdout or stderr)", s)
	}
	return f, nil
}

func (f Field) upper() string {
	return strings.ToUpper(string(f))
}

// Matcher evaluates expectations against results. The zero value compares
// the captured text verbatim.
type Matcher struct {
	// StripANSI removes terminal escape sequences from the stream before
	// comparing. Diagnostics still show the captured text verbatim.
	StripANSI bool
}

func (m Matcher) text(res *runner.Result, f Field) string {
	s := res.Stdout
	if f == Stderr {
		s = res.Stderr
	}
	if m.StripANSI {
		s = stripansi.Strip(s)
	}
	return s
}

// Contains checks that field contains expected as a literal substring.
func (m Matcher) Contains(res *runner.Result, f Field, expected string) *Diagnostic {
	return m.contains(res, f, expected, f.upper()+" ASSERTION FAILED", "EXPECTED "+f.upper()+" TO CONTAIN")
}

// Matches checks that field matches re.
func (m Matcher) Matches(res *runner.Result, f Field, re *regexp.Regexp) *Diagnostic {
	return m.matches(res, f, re, f.upper()+" ASSERTION FAILED", "EXPECTED "+f.upper()+" TO MATCH REGEX")
}

func (m Matcher) contains(res *runner.Result, f Field, expected, title, label string) *Diagnostic {
	if strings.Contains(m.text(res, f), expected) {
		return nil
	}
	d := newDiagnostic(res, title)
	d.Expectation = label
	d.Expected = quote(expected)
	return d
}

func (m Matcher) matches(res *runner.Result, f Field, re *regexp.Regexp, title, label string) *Diagnostic {
	if re.MatchString(m.text(res, f)) {
		return nil
	}
	d := newDiagnostic(res, title)
	d.Expectation = label
	d.Expected = "/" + re.String() + "/"
	return d
}

// CheckSuccess reports a diagnostic unless the command exited with status 0.
func CheckSuccess(res *runner.Result) *Diagnostic {
	if res.Success() {
		return nil
	}
	return newDiagnostic(res, "COMMAND EXECUTION FAILED")
}

// CheckExitCode reports a diagnostic unless the command exited with code.
// A timed-out command never satisfies the check.
func CheckExitCode(res *runner.Result, code int) *Diagnostic {
	if res.ExitCode == code && !res.TimedOut {
		return nil
	}
	d := newDiagnostic(res, "EXIT CODE ASSERTION FAILED")
	d.Expectation = "EXPECTED EXIT CODE"
	d.Expected = strconv.Itoa(code)
	return d
}

// CheckContains is Matcher{}.Contains.
func CheckContains(res *runner.Result, f Field, expected string) *Diagnostic {
	return Matcher{}.Contains(res, f, expected)
}

// CheckMatches is Matcher{}.Matches.
func CheckMatches(res *runner.Result, f Field, re *regexp.Regexp) *Diagnostic {
	return Matcher{}.Matches(res, f, re)
}

func newDiagnostic(res *runner.Result, title string) *Diagnostic {
	return &Diagnostic{
		Title:     title,
		Command:   res.Command,
		ExitCode:  res.ExitCode,
		TimedOut:  res.TimedOut,
		Truncated: res.Truncated,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
	}
}
