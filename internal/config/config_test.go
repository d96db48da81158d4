package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	if err := os.WriteFile(path, []byte("output: dist/\npackagePrefix: github.com/example/oalrt\n"), 0644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Sources.OAL) == 0 {
		t.Fatalf("expected default OAL source globs to survive when sources is omitted")
	}
	if cfg.PackagePrefix != "github.com/example/oalrt" {
		t.Fatalf("expected packagePrefix to be read from the file, got %q", cfg.PackagePrefix)
	}
}

func TestLoadRejectsMissingOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	if err := os.WriteFile(path, []byte("packagePrefix: x\n"), 0644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error when output is missing")
	}
}

func TestLoadRejectsOlderSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	if err := os.WriteFile(path, []byte("output: dist/\nschemaVersion: v0.9.0\n"), 0644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a schemaVersion older than %s", minSchemaVersion)
	}
}

func TestLoadRejectsMalformedSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	if err := os.WriteFile(path, []byte("output: dist/\nschemaVersion: not-a-version\n"), 0644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a malformed schemaVersion")
	}
}
