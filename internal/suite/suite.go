// Package suite loads declarative CLI test suites from YAML and runs them
// against a resolved configuration.
package suite

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Suite is one YAML document of cases sharing a binary.
type Suite struct {
	Name      string            `yaml:"name"`
	Binary    string            `yaml:"binary"` // configured binary name
	Path      string            `yaml:"path"`   // explicit executable, overrides Binary
	Env       map[string]string `yaml:"env"`
	Timeout   Duration          `yaml:"timeout"`
	StripANSI *bool             `yaml:"strip_ansi"`
	Parallel  int               `yaml:"parallel"`
	Cases     []Case            `yaml:"cases"`

	// File is the path the suite was read from, if any.
	File string `yaml:"-"`
}

// Case is one command and its expectations.
type Case struct {
	Name        string            `yaml:"name"`
	Command     string            `yaml:"command"` // subcommand words
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	Timeout     Duration          `yaml:"timeout"`
	Skip        string            `yaml:"skip"` // non-empty reason skips the case
	Integration bool              `yaml:"integration"`
	Expect      Expect            `yaml:"expect"`
}

// Expect lists the checks applied to a case result. With no exit
// expectation at all the command must succeed.
type Expect struct {
	ExitCode       *int     `yaml:"exit_code"`
	Success        *bool    `yaml:"success"` // false expects exit code 1
	StdoutContains []string `yaml:"stdout_contains"`
	StdoutMatches  []string `yaml:"stdout_matches"`
	StderrContains []string `yaml:"stderr_contains"`
	StderrMatches  []string `yaml:"stderr_matches"`
}

// Duration accepts Go duration strings ("30s") or integer milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
	} else {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q", node.Line, raw)
		}
		*d = Duration(v)
	}
	if *d < 0 {
		return fmt.Errorf("line %d: negative duration %q", node.Line, raw)
	}
	return nil
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.File = path
	return s, nil
}

// Parse decodes and validates a suite document. Unknown keys are errors
// so that typos in expectations do not silently pass.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the suite for structural errors, including regular
// expressions that do not compile.
func (s *Suite) Validate() error {
	var errs []error
	if s.Binary == "" && s.Path == "" {
		errs = append(errs, errors.New("suite needs a binary or a path"))
	}
	if s.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must not be negative, got %d", s.Parallel))
	}
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("case %d: missing name", i+1))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("case %q: duplicate name", c.Name))
		}
		seen[c.Name] = true
		if c.Expect.ExitCode != nil && c.Expect.Success != nil {
			errs = append(errs, fmt.Errorf("case %q: exit_code and success are mutually exclusive", c.Name))
		}
		for _, re := range append(append([]string{}, c.Expect.StdoutMatches...), c.Expect.StderrMatches...) {
			if _, err := regexp.Compile(re); err != nil {
				errs = append(errs, fmt.Errorf("case %q: %w", c.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// DisplayName returns the suite name, falling back to the file or binary.
func (s *Suite) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.File != "":
		return s.File
	case s.Binary != "":
		return s.Binary
	}
	return s.Path
}

// Single wraps one case in a suite for ad-hoc execution. path, when set,
// takes precedence over binary.
func Single(binary, path string, c Case) *Suite {
	if c.Name == "" {
		c.Name = "exec"
	}
	return &Suite{Name: c.Name, Binary: binary, Path: path, Cases: []Case{c}}
}
