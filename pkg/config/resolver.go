package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deixis/clicheck/pkg/runner"
)

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// MapLookup returns a LookupFunc backed by a fixed map.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// Resolver answers configuration queries for one environment profile.
// It never mutates process state.
type Resolver struct {
	profile  string
	found    bool
	settings Settings
	lookup   LookupFunc
}

// NewResolver selects the profile named by TEST_ENV (default "local") from
// cfg and resolves values through lookup. A nil cfg behaves like an empty
// file; a nil lookup reads the process environment.
func NewResolver(cfg *Config, lookup LookupFunc) *Resolver {
	if cfg == nil {
		cfg = &Config{}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	profile := DefaultEnvironment
	if v, ok := lookup("TEST_ENV"); ok && strings.TrimSpace(v) != "" {
		profile = strings.TrimSpace(v)
	}

	settings := cfg.Settings.overlay(Settings{})
	p, found := cfg.Environments[profile]
	if found {
		settings = settings.overlay(p)
	}

	return &Resolver{
		profile:  profile,
		found:    found,
		settings: settings,
		lookup:   lookup,
	}
}

// Profile returns the selected profile name and whether the file defined it.
func (r *Resolver) Profile() (string, bool) {
	return r.profile, r.found
}

func (r *Resolver) env(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// BinaryPath returns <NAME>_CLI_PATH, the configured path, or name itself
// so that the executable is resolved through PATH.
func (r *Resolver) BinaryPath(name string) string {
	if v, ok := r.env(envName(name) + "_CLI_PATH"); ok {
		return v
	}
	if b := r.settings.Binaries[name]; b.Path != "" {
		return b.Path
	}
	return name
}

// ExpectedVersion returns <NAME>_EXPECTED_VERSION or the configured version.
func (r *Resolver) ExpectedVersion(name string) string {
	if v, ok := r.env(envName(name) + "_EXPECTED_VERSION"); ok {
		return v
	}
	return r.settings.Binaries[name].ExpectedVersion
}

// Binaries returns the names of all configured binaries, sorted.
func (r *Resolver) Binaries() []string {
	names := make([]string, 0, len(r.settings.Binaries))
	for name := range r.settings.Binaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Resolver) PrimaryRegion() string {
	return r.pick("AWS_PRIMARY_REGION", r.settings.Regions.Primary, DefaultPrimaryRegion)
}

func (r *Resolver) SecondaryRegion() string {
	return r.pick("AWS_SECONDARY_REGION", r.settings.Regions.Secondary, DefaultSecondaryRegion)
}

// Var returns a free-form variable, preferring the environment variable
// of the same name.
func (r *Resolver) Var(name string) string {
	v, _ := r.LookupVar(name)
	return v
}

// LookupVar is like Var but reports whether the variable was set anywhere.
func (r *Resolver) LookupVar(name string) (string, bool) {
	if v, ok := r.env(name); ok {
		return v, true
	}
	v, ok := r.settings.Vars[name]
	return v, ok
}

// DataBasePath returns TEST_DATA_PATH, the configured base path, or the default.
func (r *Resolver) DataBasePath() string {
	return r.pick("TEST_DATA_PATH", r.settings.Data.BasePath, DefaultDataPath)
}

// DataPath locates a fixture file of the given kind. A kind directory from
// <KIND>_BASE_PATH or data.paths is inserted between the base path and file
// when set.
func (r *Resolver) DataPath(kind, file string) string {
	base := r.DataBasePath()
	sub, ok := r.env(envName(kind) + "_BASE_PATH")
	if !ok {
		sub = r.settings.Data.Paths[kind]
	}
	if strings.TrimSpace(sub) != "" {
		return filepath.Join(base, sub, file)
	}
	return filepath.Join(base, file)
}

// SkipIntegration reports whether integration cases should be skipped.
// SKIP_INTEGRATION_TESTS wins when it is "true" or "false"; then the file;
// otherwise integration cases are skipped on CI unless
// RUN_INTEGRATION_TESTS=true.
func (r *Resolver) SkipIntegration() bool {
	if v, ok := r.env("SKIP_INTEGRATION_TESTS"); ok {
		switch strings.ToLower(v) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	if r.settings.SkipIntegration != nil {
		return *r.settings.SkipIntegration
	}
	ci, _ := r.env("CI")
	gha, _ := r.env("GITHUB_ACTIONS")
	run, _ := r.env("RUN_INTEGRATION_TESTS")
	return (ci == "true" || gha == "true") && run != "true"
}

// Timeout returns TEST_TIMEOUT (milliseconds), the configured timeout, or
// the default. Unparseable or non-positive values are ignored.
func (r *Resolver) Timeout() time.Duration {
	if v, ok := r.env("TEST_TIMEOUT"); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return parseDuration(r.settings.RawTimeout, DefaultTimeout)
}

// GracePeriod returns the configured grace period or the default.
func (r *Resolver) GracePeriod() time.Duration {
	return parseDuration(r.settings.RawGracePeriod, DefaultGracePeriod)
}

// MaxOutputBytes returns the configured per-stream cap; 0 means unlimited.
func (r *Resolver) MaxOutputBytes() int {
	if r.settings.RawMaxOutput > 0 {
		return r.settings.RawMaxOutput
	}
	return 0
}

// StripANSI reports whether escape sequences are removed before matching.
func (r *Resolver) StripANSI() bool {
	return r.settings.StripANSI != nil && *r.settings.StripANSI
}

// OutputDir returns OUTPUT_DIR, the configured directory, or the default,
// joined with suffix when one is given.
func (r *Resolver) OutputDir(suffix string) string {
	dir := r.pick("OUTPUT_DIR", r.settings.OutputDir, DefaultOutputDir)
	if suffix != "" {
		return filepath.Join(dir, suffix)
	}
	return dir
}

// EnvironmentName returns ENVIRONMENT_NAME or the selected profile.
func (r *Resolver) EnvironmentName() string {
	return r.pick("ENVIRONMENT_NAME", "", r.profile)
}

func (r *Resolver) Description() string {
	return r.pick("ENVIRONMENT_DESCRIPTION", r.settings.Description, DefaultDescription)
}

// Runner builds a runner configured with the resolved limits.
func (r *Resolver) Runner(logger *slog.Logger) *runner.Runner {
	return &runner.Runner{
		Timeout:     r.Timeout(),
		GracePeriod: r.GracePeriod(),
		MaxOutput:   r.MaxOutputBytes(),
		Logger:      logger,
	}
}

// Resolve looks up name as a placeholder value. Well-known keys
// (regions, TEST_DATA_PATH, OUTPUT_DIR, ENVIRONMENT_NAME and the
// <NAME>_CLI_PATH of configured binaries) resolve to their effective
// values; anything else goes through LookupVar.
func (r *Resolver) Resolve(name string) (string, bool) {
	switch name {
	case "AWS_PRIMARY_REGION":
		return r.PrimaryRegion(), true
	case "AWS_SECONDARY_REGION":
		return r.SecondaryRegion(), true
	case "TEST_DATA_PATH":
		return r.DataBasePath(), true
	case "OUTPUT_DIR":
		return r.OutputDir(""), true
	case "ENVIRONMENT_NAME":
		return r.EnvironmentName(), true
	}
	if v, ok := r.LookupVar(name); ok {
		return v, true
	}
	for _, b := range r.Binaries() {
		switch name {
		case envName(b) + "_CLI_PATH":
			return r.BinaryPath(b), true
		case envName(b) + "_EXPECTED_VERSION":
			if v := r.ExpectedVersion(b); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Entry is one line of a configuration summary.
type Entry struct {
	Key   string
	Value string
}

// Summary lists the resolved configuration in display order.
func (r *Resolver) Summary() []Entry {
	out := []Entry{
		{"environment", r.EnvironmentName()},
		{"description", r.Description()},
	}
	for _, name := range r.Binaries() {
		out = append(out, Entry{name + ".path", r.BinaryPath(name)})
		if v := r.ExpectedVersion(name); v != "" {
			out = append(out, Entry{name + ".expected_version", v})
		}
	}
	out = append(out,
		Entry{"regions.primary", r.PrimaryRegion()},
		Entry{"regions.secondary", r.SecondaryRegion()},
		Entry{"data.base_path", r.DataBasePath()},
		Entry{"skip_integration", strconv.FormatBool(r.SkipIntegration())},
		Entry{"timeout", r.Timeout().String()},
		Entry{"grace_period", r.GracePeriod().String()},
		Entry{"output_dir", r.OutputDir("")},
	)

	vars := make([]string, 0, len(r.settings.Vars))
	for k := range r.settings.Vars {
		vars = append(vars, k)
	}
	sort.Strings(vars)
	for _, k := range vars {
		out = append(out, Entry{"vars." + k, r.Var(k)})
	}
	return out
}

func (r *Resolver) pick(key, configured, fallback string) string {
	if v, ok := r.env(key); ok {
		return v
	}
	if configured != "" {
		return configured
	}
	return fallback
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// envName upper-cases name and replaces anything that is not a letter or
// digit with an underscore: "cloud2code" → "CLOUD2CODE", "my-cli" → "MY_CLI".
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
