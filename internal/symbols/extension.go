package symbols

// ReceiverResolver answers which types an extension method attaches to.
type ReceiverResolver interface {
	Receivers(m *Method) []*Type
}

// ReceiverFunc adapts a function to ReceiverResolver.
type ReceiverFunc func(m *Method) []*Type

// Receivers calls f.
func (f ReceiverFunc) Receivers(m *Method) []*Type { return f(m) }

// DefaultReceivers resolves the receiver from the first parameter. A named
// type is its own receiver; a type parameter stands for each of its named
// constraints, and an unconstrained one has no concrete receiver. Arrays have
// no class record to attach to.
var DefaultReceivers ReceiverResolver = ReceiverFunc(defaultReceivers)

func defaultReceivers(m *Method) []*Type {
	if m == nil || !m.Extension || len(m.Parameters) == 0 {
		return nil
	}
	t := m.Parameters[0].Type
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindNamed:
		return []*Type{t}
	case KindTypeParameter:
		var out []*Type
		for _, c := range t.Constraints {
			if c != nil && c.Kind == KindNamed {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}
