package emitter

import (
	"fmt"
	"strings"

	"github.com/dejo1307/cs2luadoc/internal/doccomment"
	"github.com/dejo1307/cs2luadoc/internal/model"
)

// luaKeywords are the reserved words of Lua 5.4.
var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

// EscapeName prefixes Lua reserved words with an underscore.
func EscapeName(name string) string {
	if luaKeywords[name] {
		return "_" + name
	}
	return name
}

func (e *Emitter) className(c *model.ClassMetaData) string {
	if c.Symbol != nil {
		return e.renderer.QualifiedName(c.Symbol)
	}
	return c.FullName()
}

func (e *Emitter) writeClass(sb *strings.Builder, c *model.ClassMetaData) {
	if !c.IsPublic {
		return
	}

	doc := doccomment.Parse(c.RawRemark, e.logger)
	if summary, ok := doc.Summary(); ok {
		for _, line := range doccomment.Lines(summary) {
			fmt.Fprintf(sb, "-- %s\n", line)
		}
	}

	fmt.Fprintf(sb, "---@class %s", e.className(c))
	if c.BaseClass != nil {
		fmt.Fprintf(sb, " : %s", e.className(c.BaseClass))
	}
	sb.WriteString("\n")

	if c.IsGenericClass {
		e.writeGenerics(sb, c.GenericTypeParameters)
	}

	for _, f := range c.Fields {
		if f.IsPublic {
			e.writeField(sb, f.Name, e.renderer.Render(f.Type), f.RawRemark)
		}
	}
	for _, p := range c.Properties {
		if p.IsPublic {
			e.writeField(sb, p.Name, e.renderer.Render(p.Type), p.RawRemark)
		}
	}
	for _, ev := range c.Events {
		if ev.IsPublic {
			e.writeField(sb, ev.Name, e.renderer.Render(ev.Type), ev.RawRemark)
		}
	}
	for _, ctor := range c.Constructors {
		if ctor.IsPublic {
			e.writeOverload(sb, c, ctor)
		}
	}

	fmt.Fprintf(sb, "local %s = {}\n", c.Name)
	if c.Namespace != "" {
		fmt.Fprintf(sb, "CS.%s.%s = %s\n", c.Namespace, c.Name, c.Name)
	} else {
		fmt.Fprintf(sb, "CS.%s = %s\n", c.Name, c.Name)
	}

	for _, m := range c.Methods {
		if m.IsPublic {
			e.writeMethod(sb, c, m)
		}
	}
	sb.WriteString("\n")
}

func (e *Emitter) writeGenerics(sb *strings.Builder, params []*model.TypeParameterMetaData) {
	for _, tp := range params {
		fmt.Fprintf(sb, "---@generic %s", tp.Name)
		if len(tp.Constraints) > 0 {
			names := make([]string, len(tp.Constraints))
			for i, ct := range tp.Constraints {
				names[i] = e.renderer.Render(ct)
			}
			fmt.Fprintf(sb, " : %s", strings.Join(names, " | "))
		}
		sb.WriteString("\n")
	}
}

func (e *Emitter) writeField(sb *strings.Builder, name, typ, rawRemark string) {
	fmt.Fprintf(sb, "---@field %s %s", name, typ)
	if summary, ok := doccomment.Parse(rawRemark, e.logger).Summary(); ok && summary != "" {
		sb.WriteString(" ")
		sb.WriteString(doccomment.SingleLine(summary, false))
	}
	sb.WriteString("\n")
}

func (e *Emitter) writeOverload(sb *strings.Builder, c *model.ClassMetaData, ctor *model.MethodMetaData) {
	names := make([]string, len(ctor.Parameters))
	for i, p := range ctor.Parameters {
		names[i] = EscapeName(p.Name)
		if p.IsRefOrOut() || p.IsParams {
			names[i] += "?"
		}
	}
	fmt.Fprintf(sb, "---@overload fun(%s): %s\n", strings.Join(names, ", "), e.className(c))
}

func (e *Emitter) writeMethod(sb *strings.Builder, c *model.ClassMetaData, m *model.MethodMetaData) {
	doc := doccomment.Parse(m.RawRemark, e.logger)
	if summary, ok := doc.Summary(); ok {
		for _, line := range doccomment.Lines(summary) {
			fmt.Fprintf(sb, "-- %s\n", line)
		}
	}

	if m.IsGenericMethod {
		params := append(append([]*model.TypeParameterMetaData(nil), m.TypeParameters...), c.GenericTypeParameters...)
		e.writeGenerics(sb, params)
	}

	for _, p := range m.Parameters {
		fmt.Fprintf(sb, "---@param %s %s", EscapeName(p.Name), e.renderer.Render(p.Type))
		switch {
		case p.IsRef:
			sb.WriteString(" ref:")
		case p.IsOut:
			sb.WriteString(" out:")
		case p.IsParams:
			sb.WriteString(" params:")
		}
		if text, ok := doc.Param(p.Name); ok && text != "" {
			sb.WriteString(" ")
			sb.WriteString(doccomment.SingleLine(text, true))
		}
		sb.WriteString("\n")
	}

	if !m.ReturnType.IsVoid() {
		fmt.Fprintf(sb, "---@return %s", e.renderer.Render(m.ReturnType))
		for _, p := range m.Parameters {
			if p.IsRefOrOut() {
				fmt.Fprintf(sb, ", %s", e.renderer.Render(p.Type))
			}
		}
		if text, ok := doc.Returns(); ok && text != "" {
			sb.WriteString(" ")
			sb.WriteString(doccomment.SingleLine(text, true))
		}
		sb.WriteString("\n")
	}

	sep := ":"
	if m.IsStatic {
		sep = "."
	}
	var args []string
	for _, p := range m.Parameters {
		if !p.IsOut {
			args = append(args, EscapeName(p.Name))
		}
	}
	fmt.Fprintf(sb, "function %s%s%s(%s) end\n", c.Name, sep, m.Name, strings.Join(args, ", "))
	sb.WriteString("\n")
}
