// Package config loads the optional .clicheck.yaml file and resolves
// harness settings from it. Values are layered, lowest precedence first:
// built-in defaults, the base document, the environment profile selected
// by TEST_ENV, and finally process environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up at the repository root.
const FileName = ".clicheck.yaml"

// Default values for settings that are neither configured nor overridden.
const (
	DefaultTimeout         = 5 * time.Minute
	DefaultGracePeriod     = 2 * time.Second
	DefaultEnvironment     = "local"
	DefaultDescription     = "Default environment configuration"
	DefaultPrimaryRegion   = "eu-west-2"
	DefaultSecondaryRegion = "us-west-2"
	DefaultDataPath        = "/var/lib/testData"
	DefaultOutputDir       = "./clicheck-outputs"
)

// Config holds the parsed .clicheck.yaml file.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int                 `yaml:"version"`
	Settings     `yaml:",inline"`    // base values shared by every profile
	Environments map[string]Settings `yaml:"environments"` // keyed by TEST_ENV
}

// Settings are the values a profile may override.
type Settings struct {
	Description     string            `yaml:"description"`
	RawTimeout      string            `yaml:"timeout"`      // e.g. "5m", "30s"
	RawGracePeriod  string            `yaml:"grace_period"` // SIGTERM to SIGKILL
	RawMaxOutput    int               `yaml:"max_output"`   // bytes per stream, 0 = unlimited
	StripANSI       *bool             `yaml:"strip_ansi"`
	SkipIntegration *bool             `yaml:"skip_integration"`
	OutputDir       string            `yaml:"output_dir"`
	Binaries        map[string]Binary `yaml:"binaries"`
	Regions         Regions           `yaml:"regions"`
	Data            DataConfig        `yaml:"data"`
	Vars            map[string]string `yaml:"vars"`
}

// Binary locates an executable under test.
type Binary struct {
	Path            string `yaml:"path"`
	ExpectedVersion string `yaml:"expected_version"`
}

// Regions holds the cloud regions handed to the binaries under test.
type Regions struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

// DataConfig locates test fixtures. Paths maps a fixture kind (e.g.
// "policy", "tfstate") to a directory below BasePath.
type DataConfig struct {
	BasePath string            `yaml:"base_path"`
	Paths    map[string]string `yaml:"paths"`
}

// overlay returns s with every non-zero field of o applied on top.
func (s Settings) overlay(o Settings) Settings {
	out := s
	if o.Description != "" {
		out.Description = o.Description
	}
	if o.RawTimeout != "" {
		out.RawTimeout = o.RawTimeout
	}
	if o.RawGracePeriod != "" {
		out.RawGracePeriod = o.RawGracePeriod
	}
	if o.RawMaxOutput != 0 {
		out.RawMaxOutput = o.RawMaxOutput
	}
	if o.StripANSI != nil {
		out.StripANSI = o.StripANSI
	}
	if o.SkipIntegration != nil {
		out.SkipIntegration = o.SkipIntegration
	}
	if o.OutputDir != "" {
		out.OutputDir = o.OutputDir
	}
	if o.Regions.Primary != "" {
		out.Regions.Primary = o.Regions.Primary
	}
	if o.Regions.Secondary != "" {
		out.Regions.Secondary = o.Regions.Secondary
	}
	if o.Data.BasePath != "" {
		out.Data.BasePath = o.Data.BasePath
	}

	out.Binaries = make(map[string]Binary, len(s.Binaries)+len(o.Binaries))
	for name, b := range s.Binaries {
		out.Binaries[name] = b
	}
	for name, b := range o.Binaries {
		merged := out.Binaries[name]
		if b.Path != "" {
			merged.Path = b.Path
		}
		if b.ExpectedVersion != "" {
			merged.ExpectedVersion = b.ExpectedVersion
		}
		out.Binaries[name] = merged
	}
	out.Data.Paths = mergeMaps(s.Data.Paths, o.Data.Paths)
	out.Vars = mergeMaps(s.Vars, o.Vars)
	return out
}

func mergeMaps(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod; falls back to workspace
	Path     string // file that was read; empty when none existed
}

// Load reads the .clicheck.yaml file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for go.mod. If no config file exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		// No go.mod found; use workspace as root.
		root = workspace
	}

	path := filepath.Join(root, FileName)
	cfg, err := LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
		}
		return nil, err
	}
	return &LoadResult{Config: cfg, RepoRoot: root, Path: path}, nil
}

// LoadFile parses the config file at path. A missing file is reported
// with an error satisfying os.IsNotExist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// findRepoRoot walks upward from dir looking for a directory containing go.mod.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
