package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DefaultClassesPerFile is the chunk size used when none is configured.
const DefaultClassesPerFile = 150

// Config represents the cs2luadoc.yaml configuration.
type Config struct {
	Solution   string         `yaml:"solution"`
	Provider   string         `yaml:"provider"`
	Ignore     []string       `yaml:"ignore"`
	Output     OutputConfig   `yaml:"output"`
	Filters    FilterConfig   `yaml:"filters"`
	Assemblies AssemblyConfig `yaml:"assemblies"`
	Log        LogConfig      `yaml:"log"`
}

// OutputConfig controls where annotation files are written.
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	ClassesPerFile int    `yaml:"classes_per_file"`
}

// FilterConfig selects which classes are emitted.
type FilterConfig struct {
	ExcludeNamespaces []string `yaml:"exclude_namespaces"`
	IncludeNamespaces []string `yaml:"include_namespaces"`
	PublicOnly        bool     `yaml:"public_only"`
	ClassName         string   `yaml:"class_name"`
}

// AssemblyConfig selects which compiled units are loaded. Exclude entries
// may be tagged "prefix:" or "suffix:"; include entries may be globs.
type AssemblyConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Verbosity int  `yaml:"verbosity"`
	JSON      bool `yaml:"json"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Ignore: []string{
			"bin/**",
			"obj/**",
			".git/**",
			".vs/**",
		},
		Output: OutputConfig{
			ClassesPerFile: DefaultClassesPerFile,
		},
		Log: LogConfig{
			Verbosity: 1,
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	// Ensure required defaults
	if cfg.Output.ClassesPerFile <= 0 {
		cfg.Output.ClassesPerFile = DefaultClassesPerFile
	}

	return cfg, nil
}

// OutputDir returns the configured output directory, or "output" next to the
// solution when none is set.
func (c *Config) OutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	if c.Solution == "" {
		return "output"
	}
	dir := c.Solution
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, "output")
}

// Validate reports configuration that cannot produce a run.
func (c *Config) Validate() error {
	if c.Solution == "" {
		return errors.WithHint(errors.New("no solution path configured"),
			"pass a .sln, .csproj, directory or symbol dump as the first argument")
	}
	if len(c.Filters.IncludeNamespaces) > 0 && len(c.Filters.ExcludeNamespaces) > 0 {
		return errors.New("include_namespaces and exclude_namespaces are mutually exclusive")
	}
	return nil
}
