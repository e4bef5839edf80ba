package luatype

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/cs2luadoc/internal/symbols"
)

func resolve(t *testing.T, u *symbols.Universe, src string) *symbols.Type {
	t.Helper()
	typ, err := u.ResolveString(src, &symbols.Scope{
		Namespace: "Game",
		Usings:    []string{"System", "System.Collections.Generic"},
	})
	require.NoError(t, err)
	return typ
}

func TestRender(t *testing.T) {
	u := symbols.NewUniverse()
	player := &symbols.Type{Kind: symbols.KindNamed, Name: "Player", Namespace: "Game", Access: symbols.AccessPublic}
	u.Add(player)
	box := &symbols.Type{
		Kind: symbols.KindNamed, Name: "Box", Namespace: "Game", Access: symbols.AccessPublic,
		TypeParameters: []*symbols.Type{symbols.NewTypeParameter("T")},
	}
	u.Add(box)

	tests := []struct {
		src  string
		want string
	}{
		{"object", "any"},
		{"string", "string"},
		{"bool", "boolean"},
		{"int", "number | System.Int32"},
		{"byte", "number | System.Byte"},
		{"ulong", "number | System.UInt64"},
		{"float", "number | System.Single"},
		{"double", "number | System.Double"},
		{"decimal", "number | System.Decimal"},
		{"char", "System.Char"},
		{"Player", "Game.Player"},
		{"Player[]", "Game.Player[]"},
		{"int[][]", "number | System.Int32[][]"},
		{"List<Player>", "Game.Player[]"},
		{"List<int>", "number | System.Int32[]"},
		{"Dictionary<string, Player>", "System.Collections.Generic.Dictionary<string, Game.Player>"},
		{"Box<Box<int>>", "Game.Box<Game.Box<number | System.Int32>>"},
		{"Action", "fun()"},
		{"Action<int>", "fun(obj: number | System.Int32)"},
		{"Func<int, string>", "fun(arg: number | System.Int32) : string"},
		{"Func<bool>", "fun() : boolean"},
		{"Predicate<Player>", "fun(obj: Game.Player) : boolean"},
		{"Unity.Engine.Vector3", "Unity.Engine.Vector3"},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Render(resolve(t, u, tt.src)))
		})
	}
}

func TestRender_NumericUnionNeverBare(t *testing.T) {
	u := symbols.NewUniverse()
	r := New()
	for _, kw := range []string{"sbyte", "byte", "short", "ushort", "int", "uint", "long", "ulong", "decimal", "float", "double"} {
		got := r.Render(u.Keyword(kw))
		assert.NotEqual(t, "number", got)
		assert.Contains(t, got, "number | System.")
	}
}

func TestRender_Nil(t *testing.T) {
	r := New()
	assert.Equal(t, "any", r.Render(nil))
	assert.Equal(t, "any", r.QualifiedName(nil))
}

func TestRender_TypeParameter(t *testing.T) {
	r := New()
	assert.Equal(t, "T", r.Render(symbols.NewTypeParameter("T")))
	assert.Equal(t, "T[]", r.Render(symbols.NewArray(symbols.NewTypeParameter("T"), 1)))
}

func TestRender_DelegateOptionalAndVoid(t *testing.T) {
	u := symbols.NewUniverse()
	callback := &symbols.Type{
		Kind: symbols.KindNamed, Name: "Callback", Namespace: "Game", Decl: symbols.DeclDelegate,
		BaseType: u.Lookup("System.MulticastDelegate", 0),
		Invoke: &symbols.Method{
			Name:       "Invoke",
			ReturnType: u.Keyword("void"),
			Parameters: []*symbols.Parameter{
				{Name: "id", Type: u.Keyword("int")},
				{Name: "tag", Type: u.Keyword("string"), Optional: true},
			},
		},
	}
	assert.Equal(t, "fun(id: number | System.Int32, tag: string?)", New().Render(callback))
}

func TestRender_SelfReferentialDelegate(t *testing.T) {
	d := &symbols.Type{Kind: symbols.KindNamed, Name: "Chain", Namespace: "Game", Decl: symbols.DeclDelegate}
	d.Invoke = &symbols.Method{Name: "Invoke", ReturnType: d, Parameters: []*symbols.Parameter{{Name: "next", Type: d}}}
	assert.Equal(t, "fun(next: Game.Chain) : Game.Chain", New().Render(d))
}

func TestQualifiedName(t *testing.T) {
	u := symbols.NewUniverse()
	r := New()
	list := resolve(t, u, "List<int>")
	assert.Equal(t, "System.Collections.Generic.List<number | System.Int32>", r.QualifiedName(list))
	assert.Equal(t, "System.Int32", r.QualifiedName(u.Keyword("int")))
}

func TestRender_Concurrent(t *testing.T) {
	u := symbols.NewUniverse()
	r := New()
	typ := resolve(t, u, "Dictionary<string, List<int>>")
	want := "System.Collections.Generic.Dictionary<string, number | System.Int32[]>"

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, r.Render(typ))
		}()
	}
	wg.Wait()
}
