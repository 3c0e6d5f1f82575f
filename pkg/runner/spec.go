package runner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidSpec is returned by Execute for a malformed Spec.
var ErrInvalidSpec = errors.New("invalid command spec")

// Spec describes one invocation of an external executable.
type Spec struct {
	Path       string            // executable, absolute or resolved via PATH
	Subcommand string            // zero or more words, e.g. "upload policy"
	Args       []string          // passed through verbatim, never shell-parsed
	Env        map[string]string // merged over the base environment
	Timeout    time.Duration     // 0 selects the runner default
	Dir        string            // working directory; empty inherits
}

// Argv returns the argument vector handed to the process: the executable,
// the whitespace-separated subcommand words, then Args unchanged.
func (s Spec) Argv() []string {
	sub := strings.Fields(s.Subcommand)
	argv := make([]string, 0, 1+len(sub)+len(s.Args))
	argv = append(argv, s.Path)
	argv = append(argv, sub...)
	argv = append(argv, s.Args...)
	return argv
}

// CommandLine joins the executable, subcommand and arguments with single
// spaces. It is meant for humans reading a failure; only empty arguments
// are quoted, as '' so that they stay visible.
func (s Spec) CommandLine() string {
	parts := make([]string, 0, 2+len(s.Args))
	parts = append(parts, s.Path)
	if sub := strings.TrimSpace(s.Subcommand); sub != "" {
		parts = append(parts, sub)
	}
	for _, a := range s.Args {
		if a == "" {
			a = "''"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Validate reports whether the spec can be executed at all.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("%w: empty executable path", ErrInvalidSpec)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidSpec, s.Timeout)
	}
	for k := range s.Env {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			return fmt.Errorf("%w: bad environment key %q", ErrInvalidSpec, k)
		}
	}
	return nil
}

// mergeEnv overlays overrides on base ("KEY=value" entries). Later entries in
// base win over earlier ones, and overrides win over base. The result is
// sorted so that identical inputs always produce identical environments.
func mergeEnv(base []string, overrides map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
