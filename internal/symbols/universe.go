package symbols

import (
	"fmt"
	"strings"
)

// Universe indexes named types by qualified path and generic arity so that
// providers can resolve type references written in source. It is preloaded
// with the base class library types the renderer has rules for.
type Universe struct {
	types    map[string]*Type
	external map[string]*Type
	keywords map[string]*Type
}

// Scope is the lexical context a type reference is resolved in.
type Scope struct {
	// Namespace is the enclosing namespace, dotted.
	Namespace string
	// Usings are imported namespaces.
	Usings []string
	// Aliases maps using aliases to the qualified name they stand for.
	Aliases map[string]string
	// Enclosing lists containing types, innermost last.
	Enclosing []*Type
	// TypeParameters are the type parameters in scope, innermost last.
	TypeParameters []*Type
}

func key(path string, arity int) string {
	return fmt.Sprintf("%s`%d", path, arity)
}

// NewUniverse returns a universe holding the well-known library types.
func NewUniverse() *Universe {
	u := &Universe{
		types:    make(map[string]*Type),
		external: make(map[string]*Type),
		keywords: make(map[string]*Type),
	}
	u.addWellKnown()
	return u
}

// Add registers t and its nested types.
func (u *Universe) Add(t *Type) {
	if t == nil || t.Kind != KindNamed {
		return
	}
	k := key(t.QualifiedPath(), len(t.TypeParameters))
	if _, exists := u.types[k]; !exists {
		u.types[k] = t
	}
	for _, n := range t.NestedTypes {
		u.Add(n)
	}
}

// AddNamespace registers every type declared under ns.
func (u *Universe) AddNamespace(ns *Namespace) {
	for _, t := range ns.Types {
		u.Add(t)
	}
	for _, c := range ns.Namespaces {
		u.AddNamespace(c)
	}
}

// Lookup returns the type registered under a qualified path and arity.
func (u *Universe) Lookup(path string, arity int) *Type {
	return u.types[key(path, arity)]
}

// Keyword returns the type a predefined keyword such as "int" stands for.
func (u *Universe) Keyword(name string) *Type {
	return u.keywords[name]
}

// Special returns the well-known type with the given classification.
func (u *Universe) Special(s Special) *Type {
	for _, t := range u.keywords {
		if t.Special == s {
			return t
		}
	}
	for _, t := range u.types {
		if t.Special == s {
			return t
		}
	}
	return nil
}

// ResolveString parses and resolves a type reference.
func (u *Universe) ResolveString(src string, scope *Scope) (*Type, error) {
	e, err := ParseTypeExpr(src)
	if err != nil {
		return nil, err
	}
	return u.Resolve(e, scope), nil
}

// Resolve maps a parsed type reference to a type. Names that match nothing
// become external placeholders, shared across references.
func (u *Universe) Resolve(e *TypeExpr, scope *Scope) *Type {
	if scope == nil {
		scope = &Scope{}
	}
	var t *Type
	switch {
	case e.Tuple != nil:
		elems := make([]*Type, len(e.Tuple))
		for i, el := range e.Tuple {
			elems[i] = u.Resolve(el, scope)
		}
		t = Construct(u.valueTuple(len(elems)), elems)
	case e.IsOpen():
		t = u.Keyword("object")
	default:
		t = u.resolveName(e, scope)
	}
	for _, r := range e.Ranks {
		t = NewArray(t, r)
	}
	return t
}

func (u *Universe) resolveName(e *TypeExpr, scope *Scope) *Type {
	arity := len(e.Args)
	name := e.Name()
	if arity == 0 && len(e.Parts) == 1 {
		for i := len(scope.TypeParameters) - 1; i >= 0; i-- {
			if scope.TypeParameters[i].Name == name {
				return scope.TypeParameters[i]
			}
		}
		if k := u.keywords[name]; k != nil {
			return k
		}
	}

	def := u.find(name, arity, scope)
	if def == nil {
		def = u.externalType(name, arity, scope)
	}
	if arity == 0 {
		return def
	}
	args := make([]*Type, arity)
	open := true
	for i, a := range e.Args {
		if !a.IsOpen() {
			open = false
		}
		args[i] = u.Resolve(a, scope)
	}
	if open {
		unbound := Construct(def, def.TypeParameters)
		unbound.Unbound = true
		return unbound
	}
	return Construct(def, args)
}

func (u *Universe) find(name string, arity int, scope *Scope) *Type {
	if alias, rest, ok := strings.Cut(name, "."); ok {
		if target, found := scope.Aliases[alias]; found {
			name = target + "." + rest
		}
	} else if target, found := scope.Aliases[name]; found {
		name = target
	}

	for i := len(scope.Enclosing) - 1; i >= 0; i-- {
		if t := u.Lookup(scope.Enclosing[i].QualifiedPath()+"."+name, arity); t != nil {
			return t
		}
	}
	ns := scope.Namespace
	for {
		path := name
		if ns != "" {
			path = ns + "." + name
		}
		if t := u.Lookup(path, arity); t != nil {
			return t
		}
		if ns == "" {
			break
		}
		if i := strings.LastIndexByte(ns, '.'); i >= 0 {
			ns = ns[:i]
		} else {
			ns = ""
		}
	}
	for _, using := range scope.Usings {
		if t := u.Lookup(using+"."+name, arity); t != nil {
			return t
		}
	}
	return nil
}

// Unresolved reports whether t, or its generic definition, is a placeholder
// for a name no loaded unit or well-known type declares.
func (u *Universe) Unresolved(t *Type) bool {
	o := t.Origin()
	if o == nil || o.Kind != KindNamed {
		return false
	}
	name := o.Name
	if o.Namespace != "" {
		name = o.Namespace + "." + name
	}
	return u.external[key(name, len(o.TypeParameters))] == o
}

// externalType returns a shared placeholder for a type outside every loaded
// unit. Its namespace is whatever qualifier the reference carried.
func (u *Universe) externalType(name string, arity int, scope *Scope) *Type {
	k := key(name, arity)
	if t, ok := u.external[k]; ok {
		return t
	}
	ns, simple := "", name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		ns, simple = name[:i], name[i+1:]
	}
	t := &Type{
		Kind:      KindNamed,
		Name:      simple,
		Namespace: ns,
		Access:    AccessPublic,
		External:  true,
	}
	for i := range arity {
		t.TypeParameters = append(t.TypeParameters, NewTypeParameter(fmt.Sprintf("T%d", i+1)))
	}
	u.external[k] = t
	return t
}

func (u *Universe) valueTuple(n int) *Type {
	if t := u.Lookup("System.ValueTuple", n); t != nil {
		return t
	}
	t := u.declare("System", "ValueTuple", DeclStruct, SpecialNone, typeParams("T", n)...)
	return t
}

func typeParams(prefix string, n int) []*Type {
	if n == 1 {
		return []*Type{NewTypeParameter(prefix)}
	}
	out := make([]*Type, n)
	for i := range out {
		out[i] = NewTypeParameter(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return out
}

func (u *Universe) declare(ns, name string, decl Decl, special Special, params ...*Type) *Type {
	t := &Type{
		Kind:           KindNamed,
		Name:           name,
		Namespace:      ns,
		Decl:           decl,
		Special:        special,
		Access:         AccessPublic,
		External:       true,
		TypeParameters: params,
	}
	u.Add(t)
	return t
}

func (u *Universe) addWellKnown() {
	object := u.declare("System", "Object", DeclClass, SpecialObject)
	valueType := u.declare("System", "ValueType", DeclClass, SpecialNone)
	valueType.BaseType = object

	primitive := func(keyword, name string, special Special, decl Decl) *Type {
		t := u.declare("System", name, decl, special)
		if decl == DeclStruct {
			t.BaseType = valueType
		} else if special != SpecialObject {
			t.BaseType = object
		}
		if keyword != "" {
			u.keywords[keyword] = t
		}
		return t
	}
	u.keywords["object"] = object
	u.keywords["void"] = primitive("", "Void", SpecialVoid, DeclStruct)
	primitive("bool", "Boolean", SpecialBoolean, DeclStruct)
	primitive("char", "Char", SpecialChar, DeclStruct)
	primitive("sbyte", "SByte", SpecialSByte, DeclStruct)
	primitive("byte", "Byte", SpecialByte, DeclStruct)
	primitive("short", "Int16", SpecialInt16, DeclStruct)
	primitive("ushort", "UInt16", SpecialUInt16, DeclStruct)
	primitive("int", "Int32", SpecialInt32, DeclStruct)
	primitive("uint", "UInt32", SpecialUInt32, DeclStruct)
	primitive("long", "Int64", SpecialInt64, DeclStruct)
	primitive("ulong", "UInt64", SpecialUInt64, DeclStruct)
	primitive("decimal", "Decimal", SpecialDecimal, DeclStruct)
	primitive("float", "Single", SpecialSingle, DeclStruct)
	primitive("double", "Double", SpecialDouble, DeclStruct)
	primitive("string", "String", SpecialString, DeclClass)
	u.keywords["nint"] = primitive("", "IntPtr", SpecialNone, DeclStruct)
	u.keywords["nuint"] = primitive("", "UIntPtr", SpecialNone, DeclStruct)
	u.keywords["dynamic"] = object

	del := u.declare("System", "Delegate", DeclClass, SpecialNone)
	del.BaseType = object
	multicast := u.declare("System", "MulticastDelegate", DeclClass, SpecialMulticastDelegate)
	multicast.BaseType = del

	void := u.keywords["void"]
	delegate := func(name string, params []*Type, names []string, ret *Type) {
		t := u.declare("System", name, DeclDelegate, SpecialNone, params...)
		t.BaseType = multicast
		inv := &Method{Name: "Invoke", ReturnType: ret, Access: AccessPublic}
		for i, n := range names {
			inv.Parameters = append(inv.Parameters, &Parameter{Name: n, Type: params[i]})
		}
		t.Invoke = inv
	}
	argNames := func(n int) []string {
		if n == 1 {
			return []string{"obj"}
		}
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("arg%d", i+1)
		}
		return out
	}
	delegate("Action", nil, nil, void)
	for n := 1; n <= 8; n++ {
		delegate("Action", typeParams("T", n), argNames(n), void)
	}
	funcArgNames := func(n int) []string {
		if n == 1 {
			return []string{"arg"}
		}
		return argNames(n)
	}
	for n := 0; n <= 8; n++ {
		params := append(typeParams("T", n), NewTypeParameter("TResult"))
		if n == 0 {
			params = []*Type{NewTypeParameter("TResult")}
		}
		delegate("Func", params, funcArgNames(n), params[len(params)-1])
	}
	pred := NewTypeParameter("T")
	delegate("Predicate", []*Type{pred}, []string{"obj"}, u.keywords["bool"])
	cmpT := NewTypeParameter("T")
	cmp := u.declare("System", "Comparison", DeclDelegate, SpecialNone, cmpT)
	cmp.BaseType = multicast
	cmp.Invoke = &Method{Name: "Invoke", ReturnType: u.keywords["int"], Access: AccessPublic, Parameters: []*Parameter{
		{Name: "x", Type: cmpT}, {Name: "y", Type: cmpT},
	}}
	eventArgs := u.declare("System", "EventArgs", DeclClass, SpecialNone)
	eventArgs.BaseType = object
	evt := u.declare("System", "EventHandler", DeclDelegate, SpecialNone)
	evt.BaseType = multicast
	evt.Invoke = &Method{Name: "Invoke", ReturnType: void, Access: AccessPublic, Parameters: []*Parameter{
		{Name: "sender", Type: object},
		{Name: "e", Type: eventArgs},
	}}

	u.declare("System", "Nullable", DeclStruct, SpecialNone, NewTypeParameter("T")).BaseType = valueType
	u.declare("System", "Type", DeclClass, SpecialNone).BaseType = object
	u.declare("System", "Exception", DeclClass, SpecialNone).BaseType = object
	u.declare("System", "Enum", DeclClass, SpecialNone).BaseType = valueType

	const generic = "System.Collections.Generic"
	u.declare(generic, "List", DeclClass, SpecialNone, NewTypeParameter("T")).BaseType = object
	u.declare(generic, "Dictionary", DeclClass, SpecialNone, NewTypeParameter("TKey"), NewTypeParameter("TValue")).BaseType = object
	u.declare(generic, "HashSet", DeclClass, SpecialNone, NewTypeParameter("T")).BaseType = object
	u.declare(generic, "Queue", DeclClass, SpecialNone, NewTypeParameter("T")).BaseType = object
	u.declare(generic, "Stack", DeclClass, SpecialNone, NewTypeParameter("T")).BaseType = object
	u.declare(generic, "IEnumerable", DeclInterface, SpecialNone, NewTypeParameter("T"))
	u.declare(generic, "IList", DeclInterface, SpecialNone, NewTypeParameter("T"))
	u.declare(generic, "ICollection", DeclInterface, SpecialNone, NewTypeParameter("T"))
	u.declare(generic, "IReadOnlyList", DeclInterface, SpecialNone, NewTypeParameter("T"))
	u.declare(generic, "IDictionary", DeclInterface, SpecialNone, NewTypeParameter("TKey"), NewTypeParameter("TValue"))
	u.declare(generic, "KeyValuePair", DeclStruct, SpecialNone, NewTypeParameter("TKey"), NewTypeParameter("TValue")).BaseType = valueType
	u.declare("System.Collections", "IEnumerable", DeclInterface, SpecialNone)
	u.declare("System.Collections", "IEnumerator", DeclInterface, SpecialNone)
	task := u.declare("System.Threading.Tasks", "Task", DeclClass, SpecialNone)
	task.BaseType = object
	u.declare("System.Threading.Tasks", "Task", DeclClass, SpecialNone, NewTypeParameter("TResult")).BaseType = task
}
