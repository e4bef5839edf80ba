package cli

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/dejo1307/cs2luadoc/internal/config"
)

// DefaultConfigFile is read from the working directory when --config is not
// given.
const DefaultConfigFile = "cs2luadoc.yaml"

// EnvPrefix prefixes the environment variables that override the config,
// e.g. CS2LUADOC_OUTPUT_DIR or CS2LUADOC_FILTERS_PUBLIC_ONLY.
const EnvPrefix = "CS2LUADOC"

// loadConfig reads the config file, then overlays environment variables and
// changed flags: flags win over env, env over the file, the file over
// defaults.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, errors.WithHint(err, "fix the config file or pass --config with another path")
		}
		cfg = loaded
	}

	v := o.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	overlay(v, cfg)

	if cfg.Output.ClassesPerFile <= 0 {
		cfg.Output.ClassesPerFile = config.DefaultClassesPerFile
	}
	cfg.Solution = trimQuotes(cfg.Solution)
	cfg.Output.Dir = trimQuotes(cfg.Output.Dir)
	return cfg, nil
}

// overlay copies every key set in v onto cfg.
func overlay(v *viper.Viper, cfg *config.Config) {
	setString(v, "solution", &cfg.Solution)
	setString(v, "provider", &cfg.Provider)
	setList(v, "ignore", &cfg.Ignore)
	setString(v, "output.dir", &cfg.Output.Dir)
	if v.IsSet("output.classes_per_file") {
		cfg.Output.ClassesPerFile = v.GetInt("output.classes_per_file")
	}
	setList(v, "filters.exclude_namespaces", &cfg.Filters.ExcludeNamespaces)
	setList(v, "filters.include_namespaces", &cfg.Filters.IncludeNamespaces)
	if v.IsSet("filters.public_only") {
		cfg.Filters.PublicOnly = v.GetBool("filters.public_only")
	}
	setString(v, "filters.class_name", &cfg.Filters.ClassName)
	setList(v, "assemblies.include", &cfg.Assemblies.Include)
	setList(v, "assemblies.exclude", &cfg.Assemblies.Exclude)
	if v.IsSet("log.verbosity") {
		cfg.Log.Verbosity = v.GetInt("log.verbosity")
	}
	if v.IsSet("log.json") {
		cfg.Log.JSON = v.GetBool("log.json")
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// setList accepts repeated values as well as comma or space separated lists.
func setList(v *viper.Viper, key string, dst *[]string) {
	if !v.IsSet(key) {
		return
	}
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	*dst = out
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
