package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/model"
	"github.com/dejo1307/cs2luadoc/internal/symbols"
	"github.com/dejo1307/cs2luadoc/internal/symbols/dump"
)

const fixture = `
units:
  - name: Game.Core
    types:
      - {name: Entity, namespace: Game, doc: "<summary>Base entity.</summary>"}
      - name: Player
        namespace: Game
        base: Game.Entity
        fields: [{name: Hp, type: int}]
      - {name: Secret, namespace: Game, access: internal}
  - name: Game.Tests
    types:
      - {name: PlayerTest, namespace: Game.Tests}
`

func writeFixture(t *testing.T) (solution, out string) {
	t.Helper()
	dir := t.TempDir()
	solution = filepath.Join(dir, "symbols.yaml")
	require.NoError(t, os.WriteFile(solution, []byte(fixture), 0o644))
	return solution, filepath.Join(dir, "out")
}

func newEngine(cfg *config.Config, providers ...symbols.Provider) *Engine {
	e := New(cfg, nil, WithVersion("test"))
	if len(providers) == 0 {
		providers = []symbols.Provider{dump.New()}
	}
	for _, p := range providers {
		e.RegisterProvider(p)
	}
	return e
}

func TestGenerate(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Output.Dir = out

	var progress []int
	e := newEngine(cfg)
	e.progress = func(done, total int) { progress = append(progress, done) }

	res, err := e.Generate(context.Background(), solution)
	require.NoError(t, err)

	assert.Equal(t, "dump", res.Provider)
	assert.Equal(t, out, res.OutputDir)
	assert.Equal(t, 2, res.Units)
	assert.Equal(t, 4, res.Classes)
	assert.Equal(t, 3, res.Emitted, "internal Game.Secret is not written")
	assert.Equal(t, []string{
		filepath.Join(out, ".meta.lua"),
		filepath.Join(out, "Game.lua"),
		filepath.Join(out, "Game.Tests.lua"),
	}, res.Files)
	assert.Equal(t, []int{1, 2}, progress)

	content, err := os.ReadFile(filepath.Join(out, "Game.lua"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- Base entity.\n---@class Game.Entity\n")
	assert.Contains(t, string(content), "---@class Game.Player : Game.Entity\n")
	assert.NotContains(t, string(content), "Game.Secret")

	meta, err := os.ReadFile(filepath.Join(out, ".meta.lua"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), "-- Version: test\n")

	require.NotNil(t, e.Project())
	assert.Equal(t, 4, e.Project().Len())
	require.NotNil(t, e.Hierarchy())
	assert.Equal(t, 1, e.Hierarchy().EdgeCount())
	assert.Same(t, res, e.LastResult())
}

func TestGenerate_DefaultsToConfiguredSolution(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Solution = `"` + solution + `"`
	cfg.Output.Dir = out

	res, err := newEngine(cfg).Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, solution, res.Solution)
}

func TestGenerate_OutputNextToSolution(t *testing.T) {
	solution, _ := writeFixture(t)
	res, err := newEngine(config.Default()).Generate(context.Background(), solution)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(solution), "output"), res.OutputDir)
	assert.FileExists(t, filepath.Join(res.OutputDir, "Game.lua"))
}

func TestGenerate_ReplacesPreviousOutput(t *testing.T) {
	solution, out := writeFixture(t)
	require.NoError(t, os.MkdirAll(out, 0o755))
	stale := filepath.Join(out, "Stale.lua")
	require.NoError(t, os.WriteFile(stale, []byte("-- old"), 0o644))

	cfg := config.Default()
	cfg.Output.Dir = out
	_, err := newEngine(cfg).Generate(context.Background(), solution)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestGenerate_Filters(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Output.Dir = out
	cfg.Assemblies.Exclude = []string{"suffix:.Tests"}
	cfg.Filters.PublicOnly = true

	res, err := newEngine(cfg).Generate(context.Background(), solution)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Units)
	assert.Equal(t, 3, res.Classes)
	assert.Equal(t, 2, res.Emitted)
	assert.NoFileExists(t, filepath.Join(out, "Game.Tests.lua"))
}

func TestGenerate_ClassesPerFile(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Output.Dir = out
	cfg.Output.ClassesPerFile = 2

	res, err := newEngine(cfg).Generate(context.Background(), solution)
	require.NoError(t, err)
	assert.Contains(t, res.Files, filepath.Join(out, "Game_0.lua"))
	assert.Contains(t, res.Files, filepath.Join(out, "Game_1.lua"))
}

type failingProvider struct{ err error }

func (failingProvider) Name() string                 { return "failing" }
func (failingProvider) Detect(string) (bool, error) { return true, nil }
func (f failingProvider) Load(context.Context, string) ([]*symbols.Unit, error) {
	return nil, f.err
}

func TestGenerate_LoadErrors(t *testing.T) {
	solution, out := writeFixture(t)

	tests := []struct {
		name      string
		path      string
		provider  string
		providers []symbols.Provider
	}{
		{"missing path", filepath.Join(t.TempDir(), "missing.sln"), "", nil},
		{"empty path", "", "", nil},
		{"unknown provider", solution, "roslyn", nil},
		{"nothing detects", solution, "", []symbols.Provider{noProvider{}}},
		{"provider fails", solution, "", []symbols.Provider{failingProvider{err: errors.New("boom")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Output.Dir = out
			cfg.Provider = tt.provider
			e := newEngine(cfg, tt.providers...)

			_, err := e.Generate(context.Background(), tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLoad), "error %v is not marked", err)
			assert.NoDirExists(t, out, "nothing is written on load failure")
			assert.Nil(t, e.Project())
		})
	}
}

type noProvider struct{}

func (noProvider) Name() string                 { return "none" }
func (noProvider) Detect(string) (bool, error) { return false, nil }
func (noProvider) Load(context.Context, string) ([]*symbols.Unit, error) {
	return nil, nil
}

func TestGenerate_Canceled(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Output.Dir = out

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(cfg).Generate(ctx, solution)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrLoad))
}

func TestGenerate_ConcurrentCallsAreSerialized(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Output.Dir = out
	e := newEngine(cfg)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Generate(context.Background(), solution)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.FileExists(t, filepath.Join(out, "Game.lua"))
}

func TestRenderClass(t *testing.T) {
	solution, out := writeFixture(t)
	cfg := config.Default()
	cfg.Output.Dir = out
	e := newEngine(cfg)

	_, err := e.RenderClass("Player")
	require.Error(t, err, "no project yet")

	_, err = e.Generate(context.Background(), solution)
	require.NoError(t, err)

	block, err := e.RenderClass("Game.Player")
	require.NoError(t, err)
	assert.Contains(t, block, "---@class Game.Player : Game.Entity\n")

	_, err = e.RenderClass("Nope")
	assert.Error(t, err)

	// "Game" matches several full names by substring.
	_, err = e.RenderClass("game")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "Game.Entity")
}

func TestBuild_IndexesHierarchy(t *testing.T) {
	solution, _ := writeFixture(t)
	e := newEngine(config.Default())
	units, _, err := e.Load(context.Background(), solution)
	require.NoError(t, err)

	project, err := e.Build(context.Background(), units)
	require.NoError(t, err)
	player, ok := project.Lookup("Game.Player")
	require.True(t, ok)
	ancestors := e.Hierarchy().Ancestors(player.ID)
	require.Len(t, ancestors, 1)
	assert.Equal(t, "Game.Entity", ancestors[0].FullName())

	nodes := e.Hierarchy().Traverse(ancestors[0].ID, model.Down, 0, 0).Nodes
	assert.Len(t, nodes, 2)
}

func TestBuild_ReportsInheritanceCycles(t *testing.T) {
	dir := t.TempDir()
	solution := filepath.Join(dir, "cyclic.yaml")
	require.NoError(t, os.WriteFile(solution, []byte(`
units:
  - name: Broken
    types:
      - {name: A, namespace: Game, base: Game.B}
      - {name: B, namespace: Game, base: Game.A}
`), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	e := New(config.Default(), zap.New(core).Sugar())
	e.RegisterProvider(dump.New())

	units, _, err := e.Load(context.Background(), solution)
	require.NoError(t, err)
	_, err = e.Build(context.Background(), units)
	require.NoError(t, err)

	entries := logs.FilterMessageSnippet("inheritance cycle").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Game.A -> Game.B -> Game.A", entries[0].ContextMap()["cycle"])
}
