package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/symbols/dump"
)

const fixture = `
units:
  - name: Game.Core
    types:
      - {name: Entity, namespace: Game}
      - {name: Player, namespace: Game, base: Game.Entity}
      - {name: Secret, namespace: Game, access: internal}
`

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("CS2LUADOC_LOG_VERBOSITY", "0")
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

// generateOptionsFor returns options with the generate flags bound, as the
// command tree does.
func generateOptionsFor(configPath string) (*rootOptions, *cobra.Command) {
	o := &rootOptions{configPath: configPath, v: viper.New()}
	return o, newGenerateCmd(o)
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cs2luadoc dev\n")
	assert.Contains(t, out, "Git commit: none\n")
}

func TestGenerate(t *testing.T) {
	solution := writeFixture(t)
	out := filepath.Join(t.TempDir(), "lua")

	stdout, stderr, err := run(t, "generate", solution, "-o", out, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Build Success\n")
	assert.Contains(t, stdout, "Output: "+out+"\n")
	assert.Contains(t, stderr, "cs2luadoc settings")
	assert.FileExists(t, filepath.Join(out, ".meta.lua"))

	content, err := os.ReadFile(filepath.Join(out, "Game.lua"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "---@class Game.Player : Game.Entity\n")
}

func TestGenerate_QuotedPathAndProgress(t *testing.T) {
	solution := writeFixture(t)
	out := filepath.Join(t.TempDir(), "lua")

	stdout, _, err := run(t, "generate", `"`+solution+`"`, "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Build Success")
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("missing solution", func(t *testing.T) {
		_, _, err := run(t, "generate", filepath.Join(t.TempDir(), "Game.sln"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
		assert.NotEmpty(t, errors.FlattenHints(err))
	})
	t.Run("no solution", func(t *testing.T) {
		_, _, err := run(t, "generate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no solution path configured")
	})
	t.Run("conflicting namespace filters", func(t *testing.T) {
		_, _, err := run(t, "generate", writeFixture(t), "--include-namespace", "A", "--exclude-namespace", "B")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})
	t.Run("too many arguments", func(t *testing.T) {
		_, _, err := run(t, "generate", "a", "b")
		assert.Error(t, err)
	})
}

func TestGenerate_EnvOverlay(t *testing.T) {
	solution := writeFixture(t)
	out := filepath.Join(t.TempDir(), "lua")
	t.Setenv("CS2LUADOC_OUTPUT_DIR", out)
	t.Setenv("CS2LUADOC_FILTERS_PUBLIC_ONLY", "true")

	_, _, err := run(t, "generate", solution, "--no-progress")
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(out, "Game.lua"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "Secret")
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cs2luadoc.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
solution: "./Game.sln"
output:
  dir: from-file
  classes_per_file: 10
filters:
  exclude_namespaces: [System]
assemblies:
  exclude: ["suffix:.Tests"]
`), 0o644))
	t.Setenv("CS2LUADOC_OUTPUT_DIR", "from-env")
	t.Setenv("CS2LUADOC_FILTERS_CLASS_NAME", "Player")

	o, cmd := generateOptionsFor(cfgPath)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--exclude-namespace", "Unity,UnityEngine",
		"--exclude-namespace", "TMPro",
		"--classes-per-file", "25",
	}))

	cfg, err := o.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "./Game.sln", cfg.Solution)
	assert.Equal(t, "from-env", cfg.Output.Dir)
	assert.Equal(t, 25, cfg.Output.ClassesPerFile)
	assert.Equal(t, []string{"Unity", "UnityEngine", "TMPro"}, cfg.Filters.ExcludeNamespaces)
	assert.Equal(t, "Player", cfg.Filters.ClassName)
	assert.Equal(t, []string{"suffix:.Tests"}, cfg.Assemblies.Exclude)
	assert.False(t, cfg.Filters.PublicOnly, "unchanged flags keep file values")
}

func TestLoadConfig_Defaults(t *testing.T) {
	o, _ := generateOptionsFor("")
	cfg, err := o.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultClassesPerFile, cfg.Output.ClassesPerFile)
	assert.Equal(t, config.Default().Ignore, cfg.Ignore)
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: ["), 0o644))
	o, _ := generateOptionsFor(path)
	_, err := o.loadConfig()
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Player.cs"), []byte(`namespace Game
{
    public class Player
    {
        public int Hp;
    }
}
`), 0o644))

	stdout, _, err := run(t, "dump", dir)
	require.NoError(t, err)

	var f dump.File
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &f))
	require.Len(t, f.Units, 1)
	require.Len(t, f.Units[0].Types, 1)
	player := f.Units[0].Types[0]
	assert.Equal(t, "Game", player.Namespace)
	assert.Equal(t, "Player", player.Name)
	require.Len(t, player.Fields, 1)
	assert.Equal(t, "int", player.Fields[0].Type)

	// The dump feeds straight back into generate.
	dumpFile := filepath.Join(t.TempDir(), "game.yaml")
	_, _, err = run(t, "dump", dir, "-o", dumpFile)
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "lua")
	stdout, _, err = run(t, "generate", dumpFile, "-o", out, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Build Success")
	content, err := os.ReadFile(filepath.Join(out, "Game.lua"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "---@class Game.Player\n---@field Hp number | System.Int32\n---@overload fun(): Game.Player\n")
}
