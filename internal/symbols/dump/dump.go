// Package dump loads compiled units from a YAML symbol dump. Dumps let an
// external compiler-backed tool hand its symbol table over without this
// module linking against a compiler, and they make compact test fixtures.
//
// The declaration types double as the syntax-level model of other
// providers: anything that can describe types with unresolved type
// expressions can hand a File to Resolve.
package dump

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/symbols"
)

// ProviderName identifies the dump provider.
const ProviderName = "dump"

// defaultUsings are imported into every unit so dumps can write short BCL
// names such as List<int>, Action or Task<int>. They match the implicit
// global usings of SDK-style projects and are searched after the declared
// usings.
var defaultUsings = []string{
	"System",
	"System.Collections.Generic",
	"System.IO",
	"System.Linq",
	"System.Net.Http",
	"System.Threading",
	"System.Threading.Tasks",
}

// File is the top-level document of a dump.
type File struct {
	Units []UnitDecl `yaml:"units"`
}

// UnitDecl is one compiled unit.
type UnitDecl struct {
	Name   string     `yaml:"name"`
	Usings []string   `yaml:"usings,omitempty"`
	Types  []TypeDecl `yaml:"types"`
}

// TypeDecl is a named type. Nested types inherit the namespace, usings and
// aliases of their container.
//
// Base names the base class exactly. Bases instead lists candidates taken
// from source base lists, where a class and its interfaces are written
// alike; the first candidate that is not an interface becomes the base.
type TypeDecl struct {
	Name         string            `yaml:"name"`
	Namespace    string            `yaml:"namespace,omitempty"`
	Usings       []string          `yaml:"usings,omitempty"`
	Aliases      map[string]string `yaml:"aliases,omitempty"`
	Kind         string            `yaml:"kind,omitempty"`
	Access       string            `yaml:"access,omitempty"`
	Static       bool              `yaml:"static,omitempty"`
	Abstract     bool              `yaml:"abstract,omitempty"`
	Implicit     bool              `yaml:"implicit,omitempty"`
	Anonymous    bool              `yaml:"anonymous,omitempty"`
	Base         string            `yaml:"base,omitempty"`
	Bases        []string          `yaml:"bases,omitempty"`
	TypeParams   []TypeParamDecl   `yaml:"type_params,omitempty"`
	Doc          string            `yaml:"doc,omitempty"`
	Invoke       *MethodDecl       `yaml:"invoke,omitempty"`
	Fields       []MemberDecl      `yaml:"fields,omitempty"`
	Properties   []PropertyDecl    `yaml:"properties,omitempty"`
	Events       []MemberDecl      `yaml:"events,omitempty"`
	Methods      []MethodDecl      `yaml:"methods,omitempty"`
	Constructors []MethodDecl      `yaml:"constructors,omitempty"`
	Nested       []TypeDecl        `yaml:"nested,omitempty"`
}

// TypeParamDecl is a generic parameter with its type constraints.
type TypeParamDecl struct {
	Name        string   `yaml:"name"`
	Constraints []string `yaml:"constraints,omitempty"`
}

// MemberDecl is a field or an event.
type MemberDecl struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Access string `yaml:"access,omitempty"`
	Static bool   `yaml:"static,omitempty"`
	Doc    string `yaml:"doc,omitempty"`
}

// PropertyDecl is a property or, with params, an indexer.
type PropertyDecl struct {
	MemberDecl `yaml:",inline"`
	Get        bool        `yaml:"get,omitempty"`
	Set        bool        `yaml:"set,omitempty"`
	Params     []ParamDecl `yaml:"params,omitempty"`
}

// MethodDecl is a method, constructor or delegate signature.
type MethodDecl struct {
	Name       string          `yaml:"name,omitempty"`
	Return     string          `yaml:"return,omitempty"`
	Access     string          `yaml:"access,omitempty"`
	Static     bool            `yaml:"static,omitempty"`
	Extension  bool            `yaml:"extension,omitempty"`
	Params     []ParamDecl     `yaml:"params,omitempty"`
	TypeParams []TypeParamDecl `yaml:"type_params,omitempty"`
	Doc        string          `yaml:"doc,omitempty"`
}

// ParamDecl is a method parameter.
type ParamDecl struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Ref      string `yaml:"ref,omitempty"`
	Params   bool   `yaml:"params,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
	This     bool   `yaml:"this,omitempty"`
}

// Provider reads YAML symbol dumps.
type Provider struct {
	logger *zap.SugaredLogger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Provider) { p.logger = l }
}

// New returns a dump provider.
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, o := range opts {
		o(p)
	}
	p.logger = logging.OrNop(p.logger).Named(ProviderName)
	return p
}

// Name returns "dump".
func (p *Provider) Name() string { return ProviderName }

// Detect reports whether path is a YAML file.
func (p *Provider) Detect(path string) (bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, nil
	}
	return !info.IsDir(), nil
}

// Load reads the dump at path.
func (p *Provider) Load(ctx context.Context, path string) ([]*symbols.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading symbol dump %s", path)
	}
	units, err := p.Decode(ctx, data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding symbol dump %s", path)
	}
	return units, nil
}

// Decode builds units from dump text.
func (p *Provider) Decode(ctx context.Context, data []byte) ([]*symbols.Unit, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing yaml")
	}
	units, err := Resolve(ctx, &f)
	if err != nil {
		return nil, err
	}
	p.logger.Debugw("decoded symbol dump", "units", len(units))
	return units, nil
}

// Resolve turns declarations into units. Every type of f is declared before
// any reference is resolved, so units may refer to each other in any order.
func Resolve(ctx context.Context, f *File) ([]*symbols.Unit, error) {
	l := &loader{universe: symbols.NewUniverse()}

	units := make([]*symbols.Unit, 0, len(f.Units))
	for i := range f.Units {
		ud := &f.Units[i]
		if strings.TrimSpace(ud.Name) == "" {
			return nil, errors.Newf("unit %d has no name", i)
		}
		u := symbols.NewUnit(ud.Name)
		for j := range ud.Types {
			t, err := l.declare(ud, &ud.Types[j], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "unit %s", ud.Name)
			}
			ns := u.Global.Descend(t.Namespace)
			ns.Types = append(ns.Types, t)
			l.universe.Add(t)
		}
		units = append(units, u)
	}

	for _, d := range l.pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.define(d); err != nil {
			return nil, errors.Wrapf(err, "unit %s: type %s", d.unit.Name, d.typ.QualifiedPath())
		}
	}
	return units, nil
}

type declared struct {
	unit *UnitDecl
	decl *TypeDecl
	typ  *symbols.Type
	// params are the type parameters in scope, the containers' first.
	params  []*symbols.Type
	usings  []string
	aliases map[string]string
}

type loader struct {
	universe *symbols.Universe
	pending  []*declared
}

// declare creates the skeleton of d and its nested types: names, containers
// and type parameters. Members are filled in by define once every type of
// the dump is known.
func (l *loader) declare(ud *UnitDecl, d *TypeDecl, container *declared) (*symbols.Type, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, errors.New("type without a name")
	}
	access, err := accessibility(d.Access)
	if err != nil {
		return nil, errors.Wrapf(err, "type %s", d.Name)
	}
	t := &symbols.Type{
		Kind:      symbols.KindNamed,
		Name:      d.Name,
		Namespace: d.Namespace,
		Decl:      symbols.ParseDecl(d.Kind),
		Access:    access,
		Unit:      ud.Name,
		Static:    d.Static,
		Implicit:  d.Implicit,
		Anonymous: d.Anonymous,
		Doc:       d.Doc,
	}
	if container != nil {
		t.Container = container.typ
		t.Namespace = container.typ.Namespace
	}
	for _, tp := range d.TypeParams {
		t.TypeParameters = append(t.TypeParameters, symbols.NewTypeParameter(tp.Name))
	}

	entry := &declared{
		unit:    ud,
		decl:    d,
		typ:     t,
		usings:  append([]string(nil), ud.Usings...),
		aliases: make(map[string]string),
	}
	if container != nil {
		entry.params = append(entry.params, container.params...)
		entry.usings = container.usings
		for k, v := range container.aliases {
			entry.aliases[k] = v
		}
	}
	entry.params = append(entry.params, t.TypeParameters...)
	entry.usings = append(append([]string(nil), entry.usings...), d.Usings...)
	for k, v := range d.Aliases {
		entry.aliases[k] = v
	}
	l.pending = append(l.pending, entry)

	for i := range d.Nested {
		n, err := l.declare(ud, &d.Nested[i], entry)
		if err != nil {
			return nil, errors.Wrapf(err, "nested in %s", d.Name)
		}
		t.NestedTypes = append(t.NestedTypes, n)
	}
	return t, nil
}

// base resolves the base class of decl. Bases resolving to a declared
// interface are dropped. Unresolved candidates named like an interface (I
// followed by an upper-case letter) are dropped too.
func (l *loader) base(decl *TypeDecl, scope *symbols.Scope) (*symbols.Type, error) {
	if decl.Base != "" {
		b, err := l.universe.ResolveString(decl.Base, scope)
		if err != nil {
			return nil, errors.Wrap(err, "base")
		}
		if b.Origin().Decl == symbols.DeclInterface {
			return nil, nil
		}
		return b, nil
	}
	for _, candidate := range decl.Bases {
		b, err := l.universe.ResolveString(candidate, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "base %s", candidate)
		}
		switch {
		case b.Origin().Decl == symbols.DeclInterface:
		case l.universe.Unresolved(b) && looksLikeInterface(b.Name):
		default:
			return b, nil
		}
	}
	return nil, nil
}

func looksLikeInterface(name string) bool {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return len(name) > 1 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z'
}

func (l *loader) scope(d *declared) *symbols.Scope {
	var enclosing []*symbols.Type
	for c := d.typ; c != nil; c = c.Container {
		enclosing = append([]*symbols.Type{c}, enclosing...)
	}
	return &symbols.Scope{
		Namespace:      d.typ.Namespace,
		Usings:         append(append([]string(nil), d.usings...), defaultUsings...),
		Aliases:        d.aliases,
		Enclosing:      enclosing,
		TypeParameters: d.params,
	}
}

// define resolves the base type, constraints and members of a declared type.
func (l *loader) define(d *declared) error {
	t, decl := d.typ, d.decl
	scope := l.scope(d)

	for i, tp := range decl.TypeParams {
		cs, err := l.types(tp.Constraints, scope)
		if err != nil {
			return errors.Wrapf(err, "constraints of %s", tp.Name)
		}
		t.TypeParameters[i].Constraints = cs
	}

	base, err := l.base(decl, scope)
	if err != nil {
		return err
	}
	t.BaseType = base

	if t.Decl == symbols.DeclDelegate {
		t.BaseType = l.universe.Special(symbols.SpecialMulticastDelegate)
		var inv MethodDecl
		if decl.Invoke != nil {
			inv = *decl.Invoke
		}
		if inv.Name == "" {
			inv.Name = "Invoke"
		}
		m, err := l.method(&inv, scope)
		if err != nil {
			return errors.Wrap(err, "invoke")
		}
		m.Access = symbols.AccessPublic
		t.Invoke = m
	}

	for _, fd := range decl.Fields {
		ft, access, err := l.member(fd, scope)
		if err != nil {
			return errors.Wrapf(err, "field %s", fd.Name)
		}
		t.Fields = append(t.Fields, &symbols.Field{Name: fd.Name, Type: ft, Access: access, Static: fd.Static, Doc: fd.Doc})
	}
	for _, pd := range decl.Properties {
		pt, access, err := l.member(pd.MemberDecl, scope)
		if err != nil {
			return errors.Wrapf(err, "property %s", pd.Name)
		}
		params, err := l.parameters(pd.Params, scope)
		if err != nil {
			return errors.Wrapf(err, "property %s", pd.Name)
		}
		t.Properties = append(t.Properties, &symbols.Property{
			Name: pd.Name, Type: pt, Access: access, Static: pd.Static,
			Parameters: params, HasGetter: pd.Get, HasSetter: pd.Set, Doc: pd.Doc,
		})
	}
	for _, ed := range decl.Events {
		et, access, err := l.member(ed, scope)
		if err != nil {
			return errors.Wrapf(err, "event %s", ed.Name)
		}
		t.Events = append(t.Events, &symbols.Event{Name: ed.Name, Type: et, Access: access, Static: ed.Static, Doc: ed.Doc})
	}
	for i := range decl.Methods {
		md := &decl.Methods[i]
		m, err := l.method(md, scope)
		if err != nil {
			return errors.Wrapf(err, "method %s", md.Name)
		}
		t.Methods = append(t.Methods, m)
	}
	for i := range decl.Constructors {
		cd := decl.Constructors[i]
		cd.Name = ".ctor"
		cd.Return = ""
		m, err := l.method(&cd, scope)
		if err != nil {
			return errors.Wrap(err, "constructor")
		}
		t.Constructors = append(t.Constructors, m)
	}
	return nil
}

func (l *loader) member(md MemberDecl, scope *symbols.Scope) (*symbols.Type, symbols.Accessibility, error) {
	access, err := accessibility(md.Access)
	if err != nil {
		return nil, access, err
	}
	t, err := l.universe.ResolveString(md.Type, scope)
	if err != nil {
		return nil, access, err
	}
	return t, access, nil
}

func (l *loader) method(md *MethodDecl, scope *symbols.Scope) (*symbols.Method, error) {
	access, err := accessibility(md.Access)
	if err != nil {
		return nil, err
	}
	m := &symbols.Method{
		Name:      md.Name,
		Access:    access,
		Static:    md.Static || md.Extension,
		Extension: md.Extension,
		Doc:       md.Doc,
	}
	for _, tp := range md.TypeParams {
		m.TypeParameters = append(m.TypeParameters, symbols.NewTypeParameter(tp.Name))
	}
	inner := *scope
	inner.TypeParameters = append(append([]*symbols.Type(nil), scope.TypeParameters...), m.TypeParameters...)
	for i, tp := range md.TypeParams {
		cs, err := l.types(tp.Constraints, &inner)
		if err != nil {
			return nil, errors.Wrapf(err, "constraints of %s", tp.Name)
		}
		m.TypeParameters[i].Constraints = cs
	}

	ret := md.Return
	if ret == "" {
		ret = "void"
	}
	if m.ReturnType, err = l.universe.ResolveString(ret, &inner); err != nil {
		return nil, errors.Wrap(err, "return type")
	}
	if m.Parameters, err = l.parameters(md.Params, &inner); err != nil {
		return nil, err
	}
	if m.Extension && len(m.Parameters) > 0 {
		m.Parameters[0].This = true
	}
	return m, nil
}

func (l *loader) parameters(pds []ParamDecl, scope *symbols.Scope) ([]*symbols.Parameter, error) {
	var out []*symbols.Parameter
	for _, pd := range pds {
		pt, err := l.universe.ResolveString(pd.Type, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", pd.Name)
		}
		out = append(out, &symbols.Parameter{
			Name:     pd.Name,
			Type:     pt,
			RefKind:  symbols.ParseRefKind(pd.Ref),
			Params:   pd.Params,
			Optional: pd.Optional,
			This:     pd.This,
		})
	}
	return out, nil
}

func (l *loader) types(exprs []string, scope *symbols.Scope) ([]*symbols.Type, error) {
	var out []*symbols.Type
	for _, e := range exprs {
		t, err := l.universe.ResolveString(e, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// accessibility parses a modifier. Dumps describe a public surface, so an
// empty modifier means public.
func accessibility(s string) (symbols.Accessibility, error) {
	if strings.TrimSpace(s) == "" {
		return symbols.AccessPublic, nil
	}
	a, ok := symbols.ParseAccessibility(s)
	if !ok {
		return a, errors.Newf("unknown accessibility %q", s)
	}
	return a, nil
}
