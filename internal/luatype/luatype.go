// Package luatype maps symbol types onto EmmyLua type expressions.
package luatype

import (
	"strings"
	"sync"

	"github.com/dejo1307/cs2luadoc/internal/symbols"
)

const listDefinition = "System.Collections.Generic.List"

// shape is the closed set of rendering categories.
type shape int

const (
	shapeNamed shape = iota
	shapeDelegate
	shapeArray
	shapeList
	shapeObject
	shapeString
	shapeBoolean
	shapeNumber
	shapeTypeParameter
)

func classify(t *symbols.Type) shape {
	switch {
	case t.Kind == symbols.KindTypeParameter:
		return shapeTypeParameter
	case t.Kind == symbols.KindArray:
		return shapeArray
	case t.IsDelegate():
		return shapeDelegate
	case t.IsClosedGeneric() && len(t.TypeArguments) == 1 && t.Origin().FullName() == listDefinition:
		return shapeList
	}
	switch {
	case t.Special == symbols.SpecialObject:
		return shapeObject
	case t.Special == symbols.SpecialString:
		return shapeString
	case t.Special == symbols.SpecialBoolean:
		return shapeBoolean
	case t.Special.IsNumeric():
		return shapeNumber
	}
	return shapeNamed
}

// Renderer renders types. Results are memoized per type pointer, which is
// only valid while the graph is not mutated. A Renderer is safe for
// concurrent use.
type Renderer struct {
	memo sync.Map // *symbols.Type → string
}

// New returns a Renderer with an empty memo.
func New() *Renderer {
	return &Renderer{}
}

// Render returns the Lua annotation for t. A nil type renders as any.
func (r *Renderer) Render(t *symbols.Type) string {
	return r.render(t, nil)
}

// render tracks the delegates being expanded so a signature that mentions
// its own delegate type falls back to the plain name. Only results computed
// outside any expansion are memoized.
func (r *Renderer) render(t *symbols.Type, active map[*symbols.Type]bool) string {
	if t == nil {
		return "any"
	}
	if s, ok := r.memo.Load(t); ok {
		return s.(string)
	}
	if active[t] {
		return t.FullName()
	}
	s := r.renderShape(t, active)
	if len(active) == 0 {
		r.memo.Store(t, s)
	}
	return s
}

func (r *Renderer) renderShape(t *symbols.Type, active map[*symbols.Type]bool) string {
	switch classify(t) {
	case shapeDelegate:
		if active == nil {
			active = make(map[*symbols.Type]bool)
		}
		active[t] = true
		defer delete(active, t)
		return r.function(t.Signature(), active)
	case shapeArray:
		return r.render(t.Element, active) + "[]"
	case shapeList:
		return r.render(t.TypeArguments[0], active) + "[]"
	case shapeObject:
		return "any"
	case shapeString:
		return "string"
	case shapeBoolean:
		return "boolean"
	case shapeNumber:
		return "number | " + t.FullName()
	case shapeTypeParameter:
		return t.Name
	default:
		return r.qualified(t, active)
	}
}

// QualifiedName renders t by namespace-qualified name, appending rendered
// type arguments for closed generics. No primitive mapping is applied to t
// itself.
func (r *Renderer) QualifiedName(t *symbols.Type) string {
	if t == nil {
		return "any"
	}
	return r.qualified(t, nil)
}

func (r *Renderer) qualified(t *symbols.Type, active map[*symbols.Type]bool) string {
	name := t.FullName()
	if !t.IsClosedGeneric() {
		return name
	}
	args := make([]string, len(t.TypeArguments))
	for i, a := range t.TypeArguments {
		args[i] = r.render(a, active)
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

func (r *Renderer) function(sig *symbols.Method, active map[*symbols.Type]bool) string {
	var sb strings.Builder
	sb.WriteString("fun(")
	for i, p := range sig.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		sb.WriteString(": ")
		sb.WriteString(r.render(p.Type, active))
		if p.Optional {
			sb.WriteByte('?')
		}
	}
	sb.WriteByte(')')
	if !sig.ReturnType.IsVoid() {
		sb.WriteString(" : ")
		sb.WriteString(r.render(sig.ReturnType, active))
	}
	return sb.String()
}
