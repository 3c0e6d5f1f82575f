// Package report provides structured persistence and retrieval of
// command runs. Runs are stored as typed structs and can be queried for
// failing cases or a case by name.
package report

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Kind identifies the type of a run.
type Kind string

const (
	// Exec is a single ad-hoc command.
	Exec Kind = "exec"
	// Suite is a run of a declarative suite file.
	Suite Kind = "suite"
)

// Store persists and retrieves runs.
type Store interface {
	Save(run *Run) error
	Load(runID string) (*Run, error)
}

// Run holds the structured outcome of one exec or suite run.
type Run struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Name    string    `json:"name,omitempty"`
	Started time.Time `json:"started"`
	Cases   []Case    `json:"cases"`
}

// Case records one executed (or skipped) command.
type Case struct {
	Name       string        `json:"name"`
	Command    string        `json:"command"`
	ExitCode   int           `json:"exit_code"`
	TimedOut   bool          `json:"timed_out,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
	Duration   time.Duration `json:"duration"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Passed     bool          `json:"passed"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	// Diagnostics holds one rendered report per failed expectation.
	Diagnostics []string `json:"diagnostics,omitempty"`
	// Error is set when the case could not be run at all.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the case ran and did not pass.
func (c *Case) Failed() bool {
	return !c.Passed && !c.Skipped
}

// Expect returns an error if the run's Kind does not match want.
func (r *Run) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Passed reports whether no case failed.
func (r *Run) Passed() bool {
	for i := range r.Cases {
		if r.Cases[i].Failed() {
			return false
		}
	}
	return true
}

// Counts tallies passed, failed and skipped cases.
func (r *Run) Counts() (passed, failed, skipped int) {
	for i := range r.Cases {
		switch c := &r.Cases[i]; {
		case c.Skipped:
			skipped++
		case c.Passed:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}

// Failures returns the failing cases of run in execution order.
func Failures(run *Run) []Case {
	var out []Case
	for _, c := range run.Cases {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}

// FindCase returns the case with the given name.
func FindCase(run *Run, name string) (*Case, bool) {
	for i := range run.Cases {
		if run.Cases[i].Name == name {
			return &run.Cases[i], true
		}
	}
	return nil, false
}
