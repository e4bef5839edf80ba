package csharp

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/symbols"
	"github.com/dejo1307/cs2luadoc/internal/symbols/dump"
)

var typeKinds = map[string]string{
	"class_declaration":         "class",
	"struct_declaration":        "struct",
	"interface_declaration":     "interface",
	"enum_declaration":          "enum",
	"record_declaration":        "class",
	"record_struct_declaration": "struct",
	"delegate_declaration":      "delegate",
}

var parameterWords = map[string]bool{"this": true, "ref": true, "out": true, "in": true, "params": true}

// fileParser lowers one source file into type declarations.
type fileParser struct {
	src    []byte
	file   string
	logger *zap.SugaredLogger
}

// Parse lowers C# source into type declarations. Top-level declarations
// carry the usings and aliases in effect where they appear. Syntax errors
// are tolerated: whatever tree-sitter recovers is kept.
func Parse(file string, src []byte, logger *zap.SugaredLogger) []dump.TypeDecl {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(sitter.NewLanguage(tree_sitter_csharp.Language()))

	tree := parser.Parse(src, nil)
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		logging.OrNop(logger).Debugw("syntax errors in source, keeping recovered declarations", "file", file)
	}

	p := &fileParser{src: src, file: file, logger: logging.OrNop(logger)}
	var out []dump.TypeDecl
	p.walkScope(root, "", nil, nil, &out)
	return out
}

func (p *fileParser) text(n *sitter.Node) string {
	return string(p.src[n.StartByte():n.EndByte()])
}

// walkScope visits the children of a compilation unit, namespace body or
// file-scoped namespace.
func (p *fileParser) walkScope(n *sitter.Node, ns string, usings []string, aliases map[string]string, out *[]dump.TypeDecl) {
	usings = append([]string(nil), usings...)
	aliases = copyAliases(aliases)

	for i := range n.ChildCount() {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch kind := child.Kind(); kind {
		case "using_directive":
			p.using(child, &usings, aliases)
		case "namespace_declaration":
			name := child.ChildByFieldName("name")
			body := child.ChildByFieldName("body")
			if name == nil || body == nil {
				continue
			}
			p.walkScope(body, joinNamespace(ns, p.text(name)), usings, aliases, out)
		case "file_scoped_namespace_declaration":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			ns = joinNamespace(ns, p.text(name))
			// Some grammar versions nest the following members inside the
			// declaration; others leave them as siblings.
			p.walkScope(child, ns, usings, aliases, out)
		default:
			if _, ok := typeKinds[kind]; !ok {
				continue
			}
			d, ok := p.typeDecl(child, false, false)
			if !ok {
				continue
			}
			d.Namespace = ns
			d.Usings = append([]string(nil), usings...)
			if len(aliases) > 0 {
				d.Aliases = copyAliases(aliases)
			}
			*out = append(*out, d)
		}
	}
}

func (p *fileParser) using(n *sitter.Node, usings *[]string, aliases map[string]string) {
	var alias string
	var names []*sitter.Node
	static, equals := false, false
	for i := range n.ChildCount() {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "static":
			static = true
		case "=":
			equals = true
		case "name_equals":
			if id := childOfKind(c, "identifier"); id != nil {
				alias = p.text(id)
			}
		case "identifier", "qualified_name", "generic_name", "alias_qualified_name":
			names = append(names, c)
		}
	}
	if len(names) == 0 || static {
		return
	}
	// using Alias = Target; puts the alias first when there is no
	// name_equals wrapper.
	if equals && alias == "" && len(names) > 1 {
		alias = p.text(names[0])
	}
	target := strings.TrimPrefix(compact(p.text(names[len(names)-1])), "global::")
	if alias != "" {
		aliases[alias] = target
		return
	}
	*usings = append(*usings, target)
}

// modifiers returns the modifier keywords of a declaration.
func (p *fileParser) modifiers(n *sitter.Node) map[string]bool {
	mods := make(map[string]bool)
	for i := range n.ChildCount() {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch {
		case c.Kind() == "modifier":
			for _, w := range strings.Fields(p.text(c)) {
				mods[w] = true
			}
		case !c.IsNamed():
			mods[c.Kind()] = true
		}
	}
	return mods
}

// access maps modifiers to an accessibility keyword, def when none is given.
func access(mods map[string]bool, def string) string {
	switch {
	case mods["public"]:
		return "public"
	case mods["protected"] && mods["internal"]:
		return "protected internal"
	case mods["private"] && mods["protected"]:
		return "private"
	case mods["protected"]:
		return "protected"
	case mods["internal"]:
		return "internal"
	case mods["private"]:
		return "private"
	}
	return def
}

// doc collects the /// comment lines directly above n.
func (p *fileParser) doc(n *sitter.Node) string {
	var lines []string
	for s := n.PrevSibling(); s != nil && s.Kind() == "comment"; s = s.PrevSibling() {
		text := p.text(s)
		if !strings.HasPrefix(text, "///") {
			break
		}
		line := strings.TrimPrefix(text, "///")
		line = strings.TrimPrefix(line, " ")
		lines = append([]string{strings.TrimRight(line, "\r\n")}, lines...)
	}
	if len(lines) == 0 {
		return ""
	}
	return "<doc>\n" + strings.Join(lines, "\n") + "\n</doc>"
}

// typeDecl lowers a type declaration. nested and inInterface select the
// default accessibility.
func (p *fileParser) typeDecl(n *sitter.Node, nested, inInterface bool) (dump.TypeDecl, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return dump.TypeDecl{}, false
	}
	mods := p.modifiers(n)
	def := "internal"
	if nested {
		def = "private"
	}
	if inInterface {
		def = "public"
	}

	d := dump.TypeDecl{
		Name:     p.text(name),
		Kind:     typeKinds[n.Kind()],
		Access:   access(mods, def),
		Static:   mods["static"],
		Abstract: mods["abstract"],
		Doc:      p.doc(n),
	}
	if n.Kind() == "record_declaration" && mods["struct"] {
		d.Kind = "struct"
	}
	d.TypeParams = p.typeParams(n)

	if n.Kind() == "delegate_declaration" {
		inv := dump.MethodDecl{Name: "Invoke", Access: "public"}
		if ret := returnType(n); ret != nil {
			inv.Return = p.typeText(ret)
		}
		inv.Params = p.parameters(n.ChildByFieldName("parameters"))
		d.Invoke = &inv
		return d, true
	}

	if base := p.baseType(n); base != "" {
		d.Bases = []string{base}
	}

	if params := primaryParameters(n); params != nil {
		ps := p.parameters(params)
		d.Constructors = append(d.Constructors, dump.MethodDecl{Access: "public", Params: ps})
		if strings.HasPrefix(n.Kind(), "record") {
			for _, param := range ps {
				d.Properties = append(d.Properties, dump.PropertyDecl{
					MemberDecl: dump.MemberDecl{Name: param.Name, Type: param.Type, Access: "public"},
					Get:        true,
					Set:        d.Kind == "struct",
				})
			}
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		body = childOfKind(n, "declaration_list")
	}
	if body == nil {
		body = childOfKind(n, "enum_member_declaration_list")
	}
	if body == nil {
		return d, true
	}
	if d.Kind == "enum" {
		p.enumMembers(body, &d)
		return d, true
	}
	p.members(body, &d, d.Kind == "interface")
	return d, true
}

func (p *fileParser) typeParams(n *sitter.Node) []dump.TypeParamDecl {
	list := n.ChildByFieldName("type_parameters")
	if list == nil {
		list = childOfKind(n, "type_parameter_list")
	}
	if list == nil {
		return nil
	}
	var out []dump.TypeParamDecl
	for i := range list.NamedChildCount() {
		tp := list.NamedChild(i)
		if tp == nil || tp.Kind() != "type_parameter" {
			continue
		}
		name := tp.ChildByFieldName("name")
		if name == nil {
			name = childOfKind(tp, "identifier")
		}
		if name != nil {
			out = append(out, dump.TypeParamDecl{Name: p.text(name)})
		}
	}

	for i := range n.ChildCount() {
		clause := n.Child(i)
		if clause == nil || clause.Kind() != "type_parameter_constraints_clause" {
			continue
		}
		target := clause.ChildByFieldName("target")
		if target == nil {
			target = childOfKind(clause, "identifier")
		}
		if target == nil {
			continue
		}
		for j := range out {
			if out[j].Name == p.text(target) {
				out[j].Constraints = append(out[j].Constraints, p.constraints(clause)...)
			}
		}
	}
	return out
}

func (p *fileParser) constraints(clause *sitter.Node) []string {
	var out []string
	for i := range clause.NamedChildCount() {
		c := clause.NamedChild(i)
		if c == nil || c.Kind() != "type_parameter_constraint" {
			continue
		}
		t := c.ChildByFieldName("type")
		if t == nil && c.NamedChildCount() == 1 {
			t = c.NamedChild(0)
		}
		if t == nil || t.Kind() == "constructor_constraint" {
			continue
		}
		switch txt := compact(p.text(t)); txt {
		case "class", "class?", "struct", "notnull", "unmanaged", "default", "new()":
		default:
			out = append(out, p.typeText(t))
		}
	}
	return out
}

// baseType returns the first entry of a base list, the only one that may
// name a base class. Whether it is a class or an interface is decided when
// the name is resolved.
func (p *fileParser) baseType(n *sitter.Node) string {
	switch n.Kind() {
	case "class_declaration", "record_declaration":
	default:
		return ""
	}
	list := childOfKind(n, "base_list")
	if list == nil {
		return ""
	}
	for i := range list.NamedChildCount() {
		c := list.NamedChild(i)
		if c == nil {
			continue
		}
		if c.Kind() == "primary_constructor_base_type" {
			if t := c.ChildByFieldName("type"); t != nil {
				c = t
			} else if c.NamedChildCount() > 0 {
				c = c.NamedChild(0)
			}
		}
		return p.typeText(c)
	}
	return ""
}

func primaryParameters(n *sitter.Node) *sitter.Node {
	switch n.Kind() {
	case "class_declaration", "struct_declaration", "record_declaration", "record_struct_declaration":
	default:
		return nil
	}
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		return ps
	}
	return childOfKind(n, "parameter_list")
}

func (p *fileParser) enumMembers(body *sitter.Node, d *dump.TypeDecl) {
	for i := range body.NamedChildCount() {
		m := body.NamedChild(i)
		if m == nil || m.Kind() != "enum_member_declaration" {
			continue
		}
		name := m.ChildByFieldName("name")
		if name == nil {
			name = childOfKind(m, "identifier")
		}
		if name == nil {
			continue
		}
		d.Fields = append(d.Fields, dump.MemberDecl{
			Name:   p.text(name),
			Type:   d.Name,
			Access: "public",
			Static: true,
			Doc:    p.doc(m),
		})
	}
}

func (p *fileParser) members(body *sitter.Node, d *dump.TypeDecl, inInterface bool) {
	def := "private"
	if inInterface {
		def = "public"
	}
	for i := range body.ChildCount() {
		m := body.Child(i)
		if m == nil || !m.IsNamed() {
			continue
		}
		kind := m.Kind()
		if _, ok := typeKinds[kind]; ok {
			if nested, ok := p.typeDecl(m, true, inInterface); ok {
				d.Nested = append(d.Nested, nested)
			}
			continue
		}
		// Explicit interface implementations are not callable by name.
		if childOfKind(m, "explicit_interface_specifier") != nil {
			continue
		}
		mods := p.modifiers(m)
		acc := access(mods, def)
		static := mods["static"] || mods["const"]
		doc := p.doc(m)

		switch kind {
		case "field_declaration", "event_field_declaration":
			decl := childOfKind(m, "variable_declaration")
			if decl == nil {
				continue
			}
			typ := decl.ChildByFieldName("type")
			if typ == nil {
				continue
			}
			for _, name := range p.declarators(decl) {
				md := dump.MemberDecl{Name: name, Type: p.typeText(typ), Access: acc, Static: static, Doc: doc}
				if kind == "field_declaration" {
					d.Fields = append(d.Fields, md)
				} else {
					d.Events = append(d.Events, md)
				}
			}
		case "event_declaration":
			name, typ := m.ChildByFieldName("name"), m.ChildByFieldName("type")
			if name == nil || typ == nil {
				continue
			}
			d.Events = append(d.Events, dump.MemberDecl{Name: p.text(name), Type: p.typeText(typ), Access: acc, Static: static, Doc: doc})
		case "property_declaration", "indexer_declaration":
			typ := m.ChildByFieldName("type")
			if typ == nil {
				continue
			}
			pd := dump.PropertyDecl{MemberDecl: dump.MemberDecl{Type: p.typeText(typ), Access: acc, Static: static, Doc: doc}}
			if kind == "indexer_declaration" {
				pd.Name = "Item"
				pd.Params = p.parameters(m.ChildByFieldName("parameters"))
			} else if name := m.ChildByFieldName("name"); name != nil {
				pd.Name = p.text(name)
			} else {
				continue
			}
			pd.Get, pd.Set = p.accessors(m)
			d.Properties = append(d.Properties, pd)
		case "method_declaration":
			name := m.ChildByFieldName("name")
			if name == nil {
				continue
			}
			md := dump.MethodDecl{
				Name:       p.text(name),
				Access:     acc,
				Static:     static,
				Doc:        doc,
				TypeParams: p.typeParams(m),
				Params:     p.parameters(m.ChildByFieldName("parameters")),
			}
			if ret := returnType(m); ret != nil {
				md.Return = p.typeText(ret)
			}
			if len(md.Params) > 0 && md.Params[0].This {
				md.Extension = true
			}
			d.Methods = append(d.Methods, md)
		case "constructor_declaration":
			d.Constructors = append(d.Constructors, dump.MethodDecl{
				Access: acc,
				Static: static,
				Doc:    doc,
				Params: p.parameters(m.ChildByFieldName("parameters")),
			})
		}
	}
}

func returnType(n *sitter.Node) *sitter.Node {
	if t := n.ChildByFieldName("returns"); t != nil {
		return t
	}
	return n.ChildByFieldName("type")
}

func (p *fileParser) declarators(decl *sitter.Node) []string {
	var names []string
	for i := range decl.NamedChildCount() {
		v := decl.NamedChild(i)
		if v == nil || v.Kind() != "variable_declarator" {
			continue
		}
		name := v.ChildByFieldName("name")
		if name == nil {
			name = childOfKind(v, "identifier")
		}
		if name != nil {
			names = append(names, p.text(name))
		}
	}
	return names
}

// accessors reports a readable and a writable accessor. An expression body
// is a getter; private accessors are not reachable from script code.
func (p *fileParser) accessors(n *sitter.Node) (get, set bool) {
	list := n.ChildByFieldName("accessors")
	if list == nil {
		list = childOfKind(n, "accessor_list")
	}
	if list == nil {
		return true, false
	}
	for i := range list.NamedChildCount() {
		a := list.NamedChild(i)
		if a == nil || a.Kind() != "accessor_declaration" {
			continue
		}
		if p.modifiers(a)["private"] {
			continue
		}
		keyword := ""
		if k := a.ChildByFieldName("name"); k != nil {
			keyword = p.text(k)
		} else {
			for j := range a.ChildCount() {
				if c := a.Child(j); c != nil && !c.IsNamed() {
					switch c.Kind() {
					case "get", "set", "init":
						keyword = c.Kind()
					}
				}
			}
		}
		switch keyword {
		case "get":
			get = true
		case "set", "init":
			set = true
		}
	}
	return get, set
}

// parameters lowers a parameter list. Params arrays appear as a parameter
// node in some grammar versions and as loose tokens in others.
func (p *fileParser) parameters(list *sitter.Node) []dump.ParamDecl {
	if list == nil {
		return nil
	}
	var out []dump.ParamDecl
	var loose *dump.ParamDecl
	for i := range list.ChildCount() {
		c := list.Child(i)
		if c == nil {
			continue
		}
		switch {
		case c.Kind() == "parameter" || c.Kind() == "parameter_array":
			if pd, ok := p.parameter(c); ok {
				if c.Kind() == "parameter_array" {
					pd.Params = true
				}
				out = append(out, pd)
			}
		case !c.IsNamed() && c.Kind() == "params":
			loose = &dump.ParamDecl{Params: true}
		case loose != nil && c.Kind() == "identifier" && loose.Type != "":
			loose.Name = p.text(c)
			out = append(out, *loose)
			loose = nil
		case loose != nil && c.IsNamed() && loose.Type == "":
			loose.Type = p.typeText(c)
		}
	}
	return out
}

func (p *fileParser) parameter(n *sitter.Node) (dump.ParamDecl, bool) {
	name := n.ChildByFieldName("name")
	typ := n.ChildByFieldName("type")
	if name == nil || typ == nil {
		// Lambda-style parameters carry no type and never occur here.
		return dump.ParamDecl{}, false
	}
	pd := dump.ParamDecl{Name: p.text(name), Type: p.typeText(typ)}
	for i := range n.ChildCount() {
		c := n.Child(i)
		if c == nil {
			continue
		}
		var words []string
		switch {
		case c.Kind() == "modifier" || c.Kind() == "parameter_modifier":
			words = strings.Fields(p.text(c))
		case c.Kind() == "equals_value_clause" || c.Kind() == "=":
			pd.Optional = true
		case !c.IsNamed():
			words = []string{c.Kind()}
		}
		for _, w := range words {
			if !parameterWords[w] {
				continue
			}
			switch w {
			case "this":
				pd.This = true
			case "params":
				pd.Params = true
			default:
				pd.Ref = w
			}
		}
	}
	return pd, true
}

// typeText returns the source text of a type, normalized for the type
// expression parser. Unparseable types degrade to object.
func (p *fileParser) typeText(n *sitter.Node) string {
	text := compact(p.text(n))
	for _, prefix := range []string{"scoped ", "ref readonly ", "ref "} {
		text = strings.TrimPrefix(text, prefix)
	}
	if _, err := symbols.ParseTypeExpr(text); err != nil {
		p.logger.Warnw("unsupported type syntax, rendering as object",
			"file", p.file, "line", n.StartPosition().Row+1, "type", text, "error", err)
		return "object"
	}
	return text
}

func childOfKind(n *sitter.Node, kind string) *sitter.Node {
	for i := range n.ChildCount() {
		if c := n.Child(i); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinNamespace(outer, inner string) string {
	inner = compact(inner)
	if outer == "" {
		return inner
	}
	return outer + "." + inner
}

func copyAliases(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
