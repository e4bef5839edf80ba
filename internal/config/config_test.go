package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cs2luadoc.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeConfig(t, `
solution: ./Game.sln
output:
  dir: ./lua
filters:
  exclude_namespaces: [System, UnityEngine]
  public_only: true
assemblies:
  exclude: ["prefix:Unity.", "suffix:.Tests"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Solution != "./Game.sln" {
		t.Errorf("Solution = %q", cfg.Solution)
	}
	if cfg.Output.ClassesPerFile != DefaultClassesPerFile {
		t.Errorf("ClassesPerFile = %d, want %d", cfg.Output.ClassesPerFile, DefaultClassesPerFile)
	}
	if !cfg.Filters.PublicOnly {
		t.Error("PublicOnly not loaded")
	}
	if len(cfg.Filters.ExcludeNamespaces) != 2 {
		t.Errorf("ExcludeNamespaces = %v", cfg.Filters.ExcludeNamespaces)
	}
	if len(cfg.Assemblies.Exclude) != 2 || cfg.Assemblies.Exclude[1] != "suffix:.Tests" {
		t.Errorf("Assemblies.Exclude = %v", cfg.Assemblies.Exclude)
	}
	if len(cfg.Ignore) == 0 {
		t.Error("default ignore patterns lost")
	}
	if cfg.Log.Verbosity != 1 {
		t.Errorf("Log.Verbosity = %d, want 1", cfg.Log.Verbosity)
	}
}

func TestLoad_NonPositiveChunkSize(t *testing.T) {
	cfg, err := Load(writeConfig(t, "output:\n  classes_per_file: -3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.ClassesPerFile != DefaultClassesPerFile {
		t.Errorf("ClassesPerFile = %d, want %d", cfg.Output.ClassesPerFile, DefaultClassesPerFile)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "filters: [not, a, map]\n")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestOutputDir(t *testing.T) {
	dir := t.TempDir()
	sln := filepath.Join(dir, "Game.sln")
	if err := os.WriteFile(sln, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit", Config{Solution: sln, Output: OutputConfig{Dir: "/tmp/lua"}}, "/tmp/lua"},
		{"next to solution file", Config{Solution: sln}, filepath.Join(dir, "output")},
		{"inside solution dir", Config{Solution: dir}, filepath.Join(dir, "output")},
		{"no solution", Config{}, "output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.OutputDir(); got != tt.want {
				t.Errorf("OutputDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without solution")
	}
	cfg.Solution = "Game.sln"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	cfg.Filters.IncludeNamespaces = []string{"Game"}
	cfg.Filters.ExcludeNamespaces = []string{"System"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for include and exclude together")
	}
}
