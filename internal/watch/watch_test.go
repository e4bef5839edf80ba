package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_FileRootWatchesDirectory(t *testing.T) {
	dir := t.TempDir()
	sln := filepath.Join(dir, "Game.sln")
	write(t, sln, "")

	w, err := New(sln)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Root())

	_, err = New(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestChanged_IgnoresTouchOnlyEvents(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "A.cs")
	b := filepath.Join(dir, "sub", "B.cs")
	write(t, a, "class A {}")
	write(t, b, "class B {}")

	w, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, w.Snapshot())
	assert.Len(t, w.hashes, 2)

	// Same content: nothing changed.
	write(t, a, "class A {}")
	assert.Empty(t, w.Changed([]string{a}))

	write(t, a, "class A { int x; }")
	assert.Equal(t, []string{a}, w.Changed([]string{a, b}))
	assert.Empty(t, w.Changed([]string{a}), "hash is updated")

	require.NoError(t, os.Remove(b))
	assert.Equal(t, []string{b}, w.Changed([]string{b}))
	assert.Empty(t, w.Changed([]string{b}), "removal is reported once")

	c := filepath.Join(dir, "C.cs")
	write(t, c, "class C {}")
	assert.Equal(t, []string{c}, w.Changed([]string{c}))
}

func TestSnapshot_SkipsBuildOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "output")
	write(t, filepath.Join(dir, "A.cs"), "")
	write(t, filepath.Join(dir, "obj", "Gen.cs"), "")
	write(t, filepath.Join(dir, "bin", "Debug", "X.cs"), "")
	write(t, filepath.Join(out, "dump.yaml"), "")
	write(t, filepath.Join(dir, "README.md"), "")

	w, err := New(dir, WithSkipDir(out))
	require.NoError(t, err)
	require.NoError(t, w.Snapshot())
	assert.Equal(t, []string{filepath.Join(dir, "A.cs")}, keys(w.hashes))

	dirs, err := w.dirs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, dirs)
}

func keys(m map[string]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestRelevant(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	for path, want := range map[string]bool{
		"A.cs":         true,
		"A.CS":         true,
		"Game.csproj":  true,
		"Game.sln":     true,
		"symbols.yaml": true,
		"symbols.yml":  true,
		"Player.lua":   false,
		"notes.txt":    false,
	} {
		assert.Equal(t, want, w.relevant(path), path)
	}
}

func TestRun_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Player.cs")
	write(t, file, "class Player {}")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan []string, 16)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, dir, func(ctx context.Context, changed []string) error {
			calls <- changed
			return nil
		}, WithDebounce(20*time.Millisecond))
	}()

	// The watch is registered asynchronously; keep changing the file until
	// the first run is reported.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case changed := <-calls:
			assert.Equal(t, []string{file}, changed)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			write(t, file, fmt.Sprintf("class Player { int v%d; }", i))
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}

func TestRun_OnChangeErrorsDoNotStopWatching(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "symbols.yaml")
	write(t, file, "units: []")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, dir, func(context.Context, []string) error {
			calls <- struct{}{}
			return fmt.Errorf("broken")
		}, WithDebounce(20*time.Millisecond))
	}()

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	seen := 0
	for i := 0; seen < 2; i++ {
		select {
		case <-calls:
			seen++
		case <-tick.C:
			write(t, file, fmt.Sprintf("units: [] # %d", i))
		case <-deadline:
			t.Fatalf("saw %d runs, want 2", seen)
		}
	}
	cancel()
	require.NoError(t, <-done)
}
