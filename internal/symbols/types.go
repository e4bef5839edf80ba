// Package symbols defines the data handed over by a symbol provider: compiled
// units, their namespace trees, and the type graph reachable from them.
package symbols

import "strings"

// Kind distinguishes the shapes a type reference can take.
type Kind int

const (
	KindNamed Kind = iota
	KindArray
	KindTypeParameter
)

// Decl is the declaration keyword of a named type.
type Decl int

const (
	DeclClass Decl = iota
	DeclStruct
	DeclInterface
	DeclEnum
	DeclDelegate
)

func (d Decl) String() string {
	switch d {
	case DeclStruct:
		return "struct"
	case DeclInterface:
		return "interface"
	case DeclEnum:
		return "enum"
	case DeclDelegate:
		return "delegate"
	default:
		return "class"
	}
}

// ParseDecl maps a declaration keyword to a Decl. Unknown keywords are classes.
func ParseDecl(s string) Decl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "struct", "record struct":
		return DeclStruct
	case "interface":
		return DeclInterface
	case "enum":
		return DeclEnum
	case "delegate":
		return DeclDelegate
	default:
		return DeclClass
	}
}

// Special classifies the handful of types the renderer maps to script
// primitives.
type Special int

const (
	SpecialNone Special = iota
	SpecialObject
	SpecialVoid
	SpecialBoolean
	SpecialChar
	SpecialSByte
	SpecialByte
	SpecialInt16
	SpecialUInt16
	SpecialInt32
	SpecialUInt32
	SpecialInt64
	SpecialUInt64
	SpecialDecimal
	SpecialSingle
	SpecialDouble
	SpecialString
	SpecialMulticastDelegate
)

// IsNumeric reports whether s is an integral, floating point or decimal type.
func (s Special) IsNumeric() bool {
	switch s {
	case SpecialSByte, SpecialByte, SpecialInt16, SpecialUInt16, SpecialInt32,
		SpecialUInt32, SpecialInt64, SpecialUInt64, SpecialDecimal, SpecialSingle, SpecialDouble:
		return true
	}
	return false
}

// Accessibility is the declared visibility of a type or member.
type Accessibility int

const (
	AccessPrivate Accessibility = iota
	AccessProtected
	AccessInternal
	AccessProtectedInternal
	AccessPublic
)

func (a Accessibility) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessInternal:
		return "internal"
	case AccessProtectedInternal:
		return "protected internal"
	default:
		return "private"
	}
}

// ParseAccessibility maps a modifier string to an Accessibility.
// ok is false when s names no accessibility.
func ParseAccessibility(s string) (Accessibility, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return AccessPublic, true
	case "protected":
		return AccessProtected, true
	case "internal":
		return AccessInternal, true
	case "protected internal", "internal protected":
		return AccessProtectedInternal, true
	case "private", "private protected", "protected private":
		return AccessPrivate, true
	}
	return AccessPrivate, false
}

// RefKind is how a parameter is passed.
type RefKind int

const (
	RefNone RefKind = iota
	RefRef
	RefOut
	RefIn
)

// ParseRefKind maps "ref", "out" and "in" to a RefKind.
func ParseRefKind(s string) RefKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ref":
		return RefRef
	case "out":
		return RefOut
	case "in":
		return RefIn
	}
	return RefNone
}

// Unit is one compiled module: a project or assembly.
type Unit struct {
	Name   string
	Global *Namespace
}

// NewUnit returns a unit with an empty global namespace.
func NewUnit(name string) *Unit {
	return &Unit{Name: name, Global: &Namespace{}}
}

// Namespace is a node of a unit's namespace tree. The global namespace has an
// empty name and no parent.
type Namespace struct {
	Name       string
	Parent     *Namespace
	Namespaces []*Namespace
	Types      []*Type
}

// IsGlobal reports whether ns is the root of its tree.
func (ns *Namespace) IsGlobal() bool {
	return ns.Parent == nil
}

// FullName returns the dotted namespace path, empty for the global namespace.
func (ns *Namespace) FullName() string {
	if ns == nil || ns.IsGlobal() {
		return ""
	}
	if p := ns.Parent.FullName(); p != "" {
		return p + "." + ns.Name
	}
	return ns.Name
}

// Child returns the direct child namespace called name, creating it if needed.
func (ns *Namespace) Child(name string) *Namespace {
	for _, c := range ns.Namespaces {
		if c.Name == name {
			return c
		}
	}
	c := &Namespace{Name: name, Parent: ns}
	ns.Namespaces = append(ns.Namespaces, c)
	return c
}

// Descend walks a dotted path below ns, creating namespaces as needed.
func (ns *Namespace) Descend(path string) *Namespace {
	cur := ns
	if path == "" {
		return cur
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		cur = cur.Child(part)
	}
	return cur
}

// Type is a node of the symbol graph. Named types, arrays and type parameters
// share the struct; Kind says which fields are meaningful.
type Type struct {
	Kind      Kind
	Name      string
	Namespace string
	Container *Type
	Decl      Decl
	Special   Special
	Access    Accessibility
	Unit      string
	Static    bool

	// External marks placeholders for types referenced but never declared.
	External bool

	BaseType       *Type
	TypeParameters []*Type
	TypeArguments  []*Type
	Definition     *Type

	Unbound   bool
	Implicit  bool
	Anonymous bool

	Element *Type
	Rank    int

	// Constraints lists the type constraints of a type parameter.
	Constraints []*Type

	// Invoke is the signature of a delegate type.
	Invoke *Method

	Fields       []*Field
	Properties   []*Property
	Events       []*Event
	Methods      []*Method
	Constructors []*Method
	NestedTypes  []*Type

	Doc string
}

// Field is a data member.
type Field struct {
	Name   string
	Type   *Type
	Access Accessibility
	Static bool
	Doc    string
}

// Property is a property or indexer.
type Property struct {
	Name       string
	Type       *Type
	Access     Accessibility
	Static     bool
	Parameters []*Parameter
	HasGetter  bool
	HasSetter  bool
	Doc        string
}

// Event is an event member.
type Event struct {
	Name   string
	Type   *Type
	Access Accessibility
	Static bool
	Doc    string
}

// Method is a method, constructor or delegate signature.
type Method struct {
	Name           string
	ReturnType     *Type
	Parameters     []*Parameter
	TypeParameters []*Type
	Access         Accessibility
	Static         bool
	Extension      bool
	Doc            string
}

// Parameter is a method or indexer parameter.
type Parameter struct {
	Name     string
	Type     *Type
	RefKind  RefKind
	Params   bool
	Optional bool
	This     bool
}

// NewTypeParameter returns a type parameter named name.
func NewTypeParameter(name string, constraints ...*Type) *Type {
	return &Type{Kind: KindTypeParameter, Name: name, Access: AccessPublic, Constraints: constraints}
}

// NewArray returns an array of elem with the given rank.
func NewArray(elem *Type, rank int) *Type {
	if rank < 1 {
		rank = 1
	}
	return &Type{Kind: KindArray, Element: elem, Rank: rank, Access: AccessPublic}
}

// Origin returns the generic definition t was constructed from, or t itself.
func (t *Type) Origin() *Type {
	if t != nil && t.Definition != nil {
		return t.Definition
	}
	return t
}

// IsClosedGeneric reports whether t is a generic type with bound arguments.
func (t *Type) IsClosedGeneric() bool {
	return t != nil && t.Kind == KindNamed && t.Definition != nil && len(t.TypeArguments) > 0
}

// IsDelegate reports whether t has a delegate invoke signature.
func (t *Type) IsDelegate() bool {
	return t != nil && t.Kind == KindNamed && t.Origin().Invoke != nil
}

// IsVoid reports whether t is the void type or absent.
func (t *Type) IsVoid() bool {
	return t == nil || t.Special == SpecialVoid
}

// FullName returns the namespace-qualified name without type arguments.
// Nested types are qualified by namespace only.
func (t *Type) FullName() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case KindArray:
		return t.Element.FullName() + "[]"
	case KindTypeParameter:
		return t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// QualifiedPath returns the namespace, containing types and name joined by
// dots. It is the key types are looked up by in source.
func (t *Type) QualifiedPath() string {
	var parts []string
	for c := t.Origin(); c != nil; c = c.Container {
		parts = append([]string{c.Name}, parts...)
	}
	if t.Namespace != "" {
		parts = append([]string{t.Namespace}, parts...)
	}
	return strings.Join(parts, ".")
}

// String renders t in source syntax for log messages.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindArray:
		return t.Element.String() + "[" + strings.Repeat(",", t.Rank-1) + "]"
	case KindTypeParameter:
		return t.Name
	}
	name := t.FullName()
	args := t.TypeArguments
	if len(args) == 0 {
		args = t.TypeParameters
	}
	if len(args) == 0 {
		return name
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return name + "<" + strings.Join(parts, ", ") + ">"
}

// AllTypes returns every type declared under ns, depth first, nested types
// following their container.
func (ns *Namespace) AllTypes() []*Type {
	var out []*Type
	var visitType func(t *Type)
	visitType = func(t *Type) {
		out = append(out, t)
		for _, n := range t.NestedTypes {
			visitType(n)
		}
	}
	var visitNS func(n *Namespace)
	visitNS = func(n *Namespace) {
		for _, t := range n.Types {
			visitType(t)
		}
		for _, c := range n.Namespaces {
			visitNS(c)
		}
	}
	visitNS(ns)
	return out
}
