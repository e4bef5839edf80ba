package symbols

// Construct returns def instantiated with args. Members and the base type of
// the result are read from def through Bindings.
func Construct(def *Type, args []*Type) *Type {
	def = def.Origin()
	return &Type{
		Kind:       KindNamed,
		Name:       def.Name,
		Namespace:  def.Namespace,
		Container:  def.Container,
		Decl:       def.Decl,
		Special:    def.Special,
		Access:     def.Access,
		Unit:       def.Unit,
		Static:     def.Static,
		External:   def.External,
		Implicit:   def.Implicit,
		Anonymous:  def.Anonymous,
		Definition: def,
		// TypeArguments is copied so callers may reuse their slice.
		TypeArguments: append([]*Type(nil), args...),
		Doc:           def.Doc,
	}
}

// Bindings maps the type parameters of t's definition to t's arguments.
// It is nil for anything but a closed generic.
func (t *Type) Bindings() map[*Type]*Type {
	if !t.IsClosedGeneric() {
		return nil
	}
	params := t.Definition.TypeParameters
	m := make(map[*Type]*Type, len(params))
	for i, p := range params {
		if i < len(t.TypeArguments) {
			m[p] = t.TypeArguments[i]
		}
	}
	return m
}

// Substitute replaces type parameters in t according to m. Types that do not
// mention a bound parameter are returned unchanged.
func Substitute(t *Type, m map[*Type]*Type) *Type {
	if t == nil || len(m) == 0 {
		return t
	}
	switch t.Kind {
	case KindTypeParameter:
		if r, ok := m[t]; ok {
			return r
		}
		return t
	case KindArray:
		if e := Substitute(t.Element, m); e != t.Element {
			return NewArray(e, t.Rank)
		}
		return t
	}
	if len(t.TypeArguments) == 0 {
		return t
	}
	changed := false
	args := make([]*Type, len(t.TypeArguments))
	for i, a := range t.TypeArguments {
		args[i] = Substitute(a, m)
		if args[i] != a {
			changed = true
		}
	}
	if !changed {
		return t
	}
	return Construct(t.Origin(), args)
}

// Base returns the base type of t with type arguments applied.
func (t *Type) Base() *Type {
	if t == nil {
		return nil
	}
	if t.IsClosedGeneric() {
		return Substitute(t.Definition.BaseType, t.Bindings())
	}
	return t.BaseType
}

// Signature returns the delegate invoke method of t with type arguments
// applied, or nil when t is not a delegate.
func (t *Type) Signature() *Method {
	if !t.IsDelegate() {
		return nil
	}
	inv := t.Origin().Invoke
	m := t.Bindings()
	if len(m) == 0 {
		return inv
	}
	return SubstituteMethod(inv, m)
}

// SubstituteMethod returns a copy of meth with parameter and return types
// rewritten through m.
func SubstituteMethod(meth *Method, m map[*Type]*Type) *Method {
	if meth == nil {
		return nil
	}
	out := *meth
	out.ReturnType = Substitute(meth.ReturnType, m)
	out.Parameters = SubstituteParameters(meth.Parameters, m)
	return &out
}

// SubstituteParameters rewrites parameter types through m.
func SubstituteParameters(params []*Parameter, m map[*Type]*Type) []*Parameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]*Parameter, len(params))
	for i, p := range params {
		cp := *p
		cp.Type = Substitute(p.Type, m)
		out[i] = &cp
	}
	return out
}
