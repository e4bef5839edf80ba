package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/engine"
	"github.com/dejo1307/cs2luadoc/internal/model"
	"github.com/dejo1307/cs2luadoc/internal/symbols/dump"
)

const fixture = `
units:
  - name: Game.Core
    types:
      - {name: Entity, namespace: Game}
      - name: Actor
        namespace: Game
        base: Game.Entity
      - name: Player
        namespace: Game.Actors
        base: Game.Actor
        doc: "<summary>The player.</summary>"
        fields: [{name: Hp, type: int}]
      - {name: Hidden, namespace: Game.Actors, access: internal}
      - {name: Helper, namespace: Tools}
`

// --- test helpers ---

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	solution := filepath.Join(dir, "symbols.yaml")
	require.NoError(t, os.WriteFile(solution, []byte(fixture), 0o644))

	cfg := config.Default()
	eng := engine.New(cfg, nil)
	eng.RegisterProvider(dump.New())
	return New(eng, cfg, nil, "test"), solution
}

func generated(t *testing.T) *Server {
	t.Helper()
	s, solution := newTestServer(t)
	res := s.generate(context.Background(), generateArgs{
		SolutionPath: solution,
		OutputDir:    filepath.Join(t.TempDir(), "out"),
	})
	require.False(t, res.IsError, text(t, res))
	return s
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func decodeSummaries(t *testing.T, res *mcp.CallToolResult) []classSummary {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	body := text(t, res)
	if i := strings.Index(body, "\n\n..."); i >= 0 {
		body = body[:i]
	}
	var out []classSummary
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

func fullNames(summaries []classSummary) []string {
	var out []string
	for _, s := range summaries {
		out = append(out, s.FullName)
	}
	return out
}

// --- tool tests ---

func TestGenerate(t *testing.T) {
	s, solution := newTestServer(t)
	out := filepath.Join(t.TempDir(), "out")

	res := s.generate(context.Background(), generateArgs{SolutionPath: solution, OutputDir: out})
	require.False(t, res.IsError, text(t, res))
	body := text(t, res)
	assert.Contains(t, body, "Annotations generated successfully.")
	assert.Contains(t, body, "- Classes: 5\n")
	assert.Contains(t, body, "- Output: "+out+"\n")
	assert.FileExists(t, filepath.Join(out, "Game.Actors.lua"))
}

func TestGenerate_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	res := s.generate(context.Background(), generateArgs{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "solution_path is required")

	res = s.generate(context.Background(), generateArgs{SolutionPath: filepath.Join(t.TempDir(), "missing.sln")})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "generation failed")
	assert.Contains(t, text(t, res), "check that the solution path")
}

func TestQueryClasses_RequiresProject(t *testing.T) {
	s, _ := newTestServer(t)
	for _, res := range []*mcp.CallToolResult{
		s.queryClasses(queryClassesArgs{}),
		s.showClass(showClassArgs{Name: "Player"}),
		s.classHierarchy(classHierarchyArgs{Name: "Player"}),
	} {
		assert.True(t, res.IsError)
	}
	_, err := s.classesJSON()
	assert.Error(t, err)
}

func TestQueryClasses(t *testing.T) {
	s := generated(t)

	tests := []struct {
		name string
		args queryClassesArgs
		want []string
	}{
		{"all", queryClassesArgs{}, []string{"Game.Entity", "Game.Actor", "Game.Actors.Player", "Game.Actors.Hidden", "Tools.Helper"}},
		{"namespace prefix", queryClassesArgs{Namespace: "Game.Actors"}, []string{"Game.Actors.Player", "Game.Actors.Hidden"}},
		{"name substring", queryClassesArgs{Name: "ACTOR"}, []string{"Game.Actor", "Game.Actors.Player", "Game.Actors.Hidden"}},
		{"public only", queryClassesArgs{Namespace: "Game.Actors", PublicOnly: true}, []string{"Game.Actors.Player"}},
		{"no match", queryClassesArgs{Name: "nothing"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fullNames(decodeSummaries(t, s.queryClasses(tt.args))))
		})
	}
}

func TestQueryClasses_Limit(t *testing.T) {
	s := generated(t)
	res := s.queryClasses(queryClassesArgs{Limit: 2})
	assert.Len(t, decodeSummaries(t, res), 2)
	assert.Contains(t, text(t, res), "(showing 2 of 5 results, refine your query)")
}

func TestQueryClasses_Summary(t *testing.T) {
	s := generated(t)
	got := decodeSummaries(t, s.queryClasses(queryClassesArgs{Name: "Game.Actors.Player"}))
	require.Len(t, got, 1)
	assert.Equal(t, classSummary{
		ID:        "Game.Actors.Player",
		FullName:  "Game.Actors.Player",
		Namespace: "Game.Actors",
		Name:      "Player",
		Public:    true,
		Base:      "Game.Actor",
		Fields:    1,
	}, got[0])
}

func TestShowClass(t *testing.T) {
	s := generated(t)

	res := s.showClass(showClassArgs{Name: "Player"})
	require.False(t, res.IsError, text(t, res))
	body := text(t, res)
	assert.True(t, strings.HasPrefix(body, "```lua\n-- The player.\n---@class Game.Actors.Player : Game.Actor\n"), body)

	res = s.showClass(showClassArgs{Name: "Game.Actors.Hidden"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not public")

	assert.True(t, s.showClass(showClassArgs{}).IsError)
	assert.True(t, s.showClass(showClassArgs{Name: "Missing"}).IsError)
}

func TestClassHierarchy(t *testing.T) {
	s := generated(t)

	decode := func(res *mcp.CallToolResult) model.TraversalResult {
		t.Helper()
		require.False(t, res.IsError, text(t, res))
		var out model.TraversalResult
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
		return out
	}
	names := func(r model.TraversalResult) []string {
		var out []string
		for _, n := range r.Nodes {
			out = append(out, n.FullName)
		}
		return out
	}

	up := decode(s.classHierarchy(classHierarchyArgs{Name: "Game.Actors.Player"}))
	assert.Equal(t, []string{"Game.Actors.Player", "Game.Actor", "Game.Entity"}, names(up))
	assert.Equal(t, 2, up.Nodes[2].Depth)

	down := decode(s.classHierarchy(classHierarchyArgs{Name: "Game.Entity", Direction: "down", MaxDepth: 1}))
	assert.Equal(t, []string{"Game.Entity", "Game.Actor"}, names(down))

	res := s.classHierarchy(classHierarchyArgs{Name: "Entity", Direction: "sideways"})
	assert.True(t, res.IsError)

	// "Actor" is an exact simple name, "Act" only a substring of several.
	res = s.classHierarchy(classHierarchyArgs{Name: "Act"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "ambiguous")
}

func TestClassesJSON(t *testing.T) {
	s := generated(t)
	data, err := s.classesJSON()
	require.NoError(t, err)
	var got []classSummary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 5)
}

func TestErrorResult(t *testing.T) {
	res := errorResult("boom")
	assert.True(t, res.IsError)
	assert.Equal(t, "boom", text(t, res))
	assert.False(t, textResult("ok").IsError)
}
