package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FromRepoRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("version: 1\ntimeout: 10m\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, dir)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if res.Config.RawTimeout != "10m" {
		t.Errorf("Config.RawTimeout = %q, want %q", res.Config.RawTimeout, "10m")
	}
	if res.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q, want the file that was read", res.Path)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("version: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "tests", "cli")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_NoGoMod(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q (fallback to workspace)", res.RepoRoot, dir)
	}
	// Should return default config.
	if res.Config.RawTimeout != "" {
		t.Errorf("expected default config, got RawTimeout = %q", res.Config.RawTimeout)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want empty when no file exists", res.Path)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("binaries: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoad_Profiles(t *testing.T) {
	dir := t.TempDir()
	doc := `
version: 1
timeout: 2m
binaries:
  stackgen:
    path: /opt/homebrew/bin/stackgen
    expected_version: 0.62.0
environments:
  dev:
    timeout: 30s
    regions:
      primary: us-east-1
    binaries:
      stackgen:
        expected_version: 0.63.0-rc1
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	r := NewResolver(res.Config, MapLookup(map[string]string{"TEST_ENV": "dev"}))
	if name, found := r.Profile(); name != "dev" || !found {
		t.Errorf("Profile() = %q, %v, want dev, true", name, found)
	}
	if got := r.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout() = %s, want 30s from the dev profile", got)
	}
	if got := r.PrimaryRegion(); got != "us-east-1" {
		t.Errorf("PrimaryRegion() = %q, want us-east-1", got)
	}
	if got := r.SecondaryRegion(); got != DefaultSecondaryRegion {
		t.Errorf("SecondaryRegion() = %q, want the default", got)
	}
	if got := r.BinaryPath("stackgen"); got != "/opt/homebrew/bin/stackgen" {
		t.Errorf("BinaryPath() = %q, want the base path to survive the profile overlay", got)
	}
	if got := r.ExpectedVersion("stackgen"); got != "0.63.0-rc1" {
		t.Errorf("ExpectedVersion() = %q, want 0.63.0-rc1", got)
	}

	local := NewResolver(res.Config, MapLookup(nil))
	if got := local.Timeout(); got != 2*time.Minute {
		t.Errorf("local Timeout() = %s, want 2m from the base document", got)
	}
	if _, found := local.Profile(); found {
		t.Error("local profile reported as found")
	}
}
