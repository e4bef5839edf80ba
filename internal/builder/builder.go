// Package builder turns the symbol graph of a set of compiled units into a
// ProjectMetaData with one record per canonical type identifier.
//
// Records are inserted before they are populated, so a base-type chain that
// leads back to a type under construction sees the placeholder instead of
// recursing. Extension methods are attached to their receivers in a second
// pass, after every declared type carries its own members.
package builder

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/model"
	"github.com/dejo1307/cs2luadoc/internal/symbols"
)

// GlobalMarker stands in for the namespace of types in the global namespace.
const GlobalMarker = "<global>"

// Builder walks compiled units. It is not safe for concurrent use.
type Builder struct {
	logger    *zap.SugaredLogger
	receivers symbols.ReceiverResolver

	project *model.ProjectMetaData
	pending []pendingExtension
}

type pendingExtension struct {
	method *symbols.Method
	holder *model.ClassMetaData
}

// Option configures a Builder.
type Option func(*Builder)

// WithReceiverResolver replaces the extension receiver query.
func WithReceiverResolver(r symbols.ReceiverResolver) Option {
	return func(b *Builder) {
		if r != nil {
			b.receivers = r
		}
	}
}

// New returns a Builder.
func New(logger *zap.SugaredLogger, opts ...Option) *Builder {
	b := &Builder{
		logger:    logging.OrNop(logger).Named("builder"),
		receivers: symbols.DefaultReceivers,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// CanonicalID returns the deduplication key of a named type:
// namespace (or GlobalMarker), a dot, the simple name, and for closed
// generics "__" followed by the argument simple names joined by "___".
func CanonicalID(t *symbols.Type) string {
	ns := t.Namespace
	if ns == "" {
		ns = GlobalMarker
	}
	id := ns + "." + t.Name
	if t.IsClosedGeneric() {
		args := make([]string, len(t.TypeArguments))
		for i, a := range t.TypeArguments {
			args[i] = simpleName(a)
		}
		id += "__" + strings.Join(args, "___")
	}
	return id
}

func simpleName(t *symbols.Type) string {
	switch {
	case t == nil:
		return ""
	case t.Kind == symbols.KindArray:
		return simpleName(t.Element) + "[]"
	default:
		return t.Name
	}
}

// Excluded reports whether t never gets a record: compiler-synthesized and
// anonymous types, unbound generic definitions, synthetic names, and
// delegates.
func Excluded(t *symbols.Type) bool {
	if t == nil || t.Kind != symbols.KindNamed {
		return true
	}
	if t.Implicit || t.Anonymous || t.Unbound {
		return true
	}
	if strings.HasPrefix(t.Name, "<") || strings.Contains(t.Name, "=") {
		return true
	}
	if base := t.Base(); base != nil && base.Special == symbols.SpecialMulticastDelegate {
		return true
	}
	return false
}

// Build visits every type of every unit, in unit order, and returns the
// resulting project. It fails only when ctx is done.
func (b *Builder) Build(ctx context.Context, units []*symbols.Unit) (*model.ProjectMetaData, error) {
	b.project = model.NewProjectMetaData()
	b.pending = nil
	defer func() {
		b.project = nil
		b.pending = nil
	}()

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "building unit %s", u.Name)
		}
		before := b.project.Len()
		if u.Global != nil {
			b.visitNamespace(u.Global)
		}
		b.logger.Debugw("visited unit", "unit", u.Name, "records", b.project.Len()-before)
	}

	injected := b.injectExtensions()

	if err := b.project.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating project")
	}
	b.logger.Infow("built project", "units", len(units), "classes", b.project.Len(), "extensions", injected)
	return b.project, nil
}

func (b *Builder) visitNamespace(ns *symbols.Namespace) {
	for _, t := range ns.Types {
		b.visitType(t)
	}
	for _, child := range ns.Namespaces {
		b.visitNamespace(child)
	}
}

func (b *Builder) visitType(t *symbols.Type) {
	b.resolve(t)
	for _, nested := range t.NestedTypes {
		b.visitType(nested)
	}
}

// resolve returns the record for t, creating and populating it on first use.
func (b *Builder) resolve(t *symbols.Type) *model.ClassMetaData {
	if Excluded(t) {
		return nil
	}
	id := CanonicalID(t)
	if existing, ok := b.project.Lookup(id); ok {
		if existing.Symbol != nil && existing.Symbol.Origin() != t.Origin() {
			b.logger.Debugw("canonical id collision, keeping first record",
				"id", id, "kept", existing.Symbol.Unit, "dropped", t.Unit)
		}
		return existing
	}

	c := &model.ClassMetaData{}
	b.project.Insert(id, c)
	b.populate(c, t)
	return c
}

func (b *Builder) populate(c *model.ClassMetaData, t *symbols.Type) {
	origin := t.Origin()
	bindings := t.Bindings()

	c.Name = t.Name
	c.RawRemark = origin.Doc
	c.Namespace = t.Namespace
	c.IsPublic = t.Access == symbols.AccessPublic
	c.Symbol = t

	if len(origin.TypeParameters) > 0 {
		c.IsGenericClass = true
		c.GenericTypeParameters = typeParameters(origin.TypeParameters)
	}
	if t.IsClosedGeneric() {
		c.GenericTypeArguments = append([]*symbols.Type(nil), t.TypeArguments...)
	}

	c.BaseClass = b.resolve(t.Base())

	for _, f := range origin.Fields {
		c.Fields = append(c.Fields, &model.FieldMetaData{
			BaseMetaData: model.BaseMetaData{Name: f.Name, RawRemark: f.Doc},
			Type:         symbols.Substitute(f.Type, bindings),
			IsPublic:     f.Access == symbols.AccessPublic,
			IsStatic:     f.Static,
		})
	}
	for _, p := range origin.Properties {
		c.Properties = append(c.Properties, &model.PropertyMetaData{
			BaseMetaData: model.BaseMetaData{Name: p.Name, RawRemark: p.Doc},
			Type:         symbols.Substitute(p.Type, bindings),
			IsPublic:     p.Access == symbols.AccessPublic,
			IsStatic:     p.Static,
			Parameters:   parameters(symbols.SubstituteParameters(p.Parameters, bindings)),
			HasGetter:    p.HasGetter,
			HasSetter:    p.HasSetter,
		})
	}
	for _, e := range origin.Events {
		c.Events = append(c.Events, &model.EventMetaData{
			BaseMetaData: model.BaseMetaData{Name: e.Name, RawRemark: e.Doc},
			Type:         symbols.Substitute(e.Type, bindings),
			IsPublic:     e.Access == symbols.AccessPublic,
			IsStatic:     e.Static,
		})
	}
	for _, m := range origin.Methods {
		if isSynthesized(m.Name) {
			continue
		}
		m = symbols.SubstituteMethod(m, bindings)
		c.Methods = append(c.Methods, method(m, m.Parameters))
		if m.Extension {
			b.pending = append(b.pending, pendingExtension{method: m, holder: c})
		}
	}
	for _, ctor := range origin.Constructors {
		if ctor.Static {
			continue
		}
		ctor = symbols.SubstituteMethod(ctor, bindings)
		mm := method(ctor, ctor.Parameters)
		mm.Name = ".ctor"
		c.Constructors = append(c.Constructors, mm)
	}
}

// isSynthesized reports accessor and constructor pseudo-methods.
func isSynthesized(name string) bool {
	switch name {
	case ".ctor", ".cctor":
		return true
	}
	for _, prefix := range []string{"get_", "set_", "add_", "remove_"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// injectExtensions attaches an instance projection of every pending
// extension method to each of its receivers. Records created here may queue
// further extensions, which are handled in the same pass.
func (b *Builder) injectExtensions() int {
	injected := 0
	for i := 0; i < len(b.pending); i++ {
		ext := b.pending[i]
		if len(ext.method.Parameters) == 0 {
			continue
		}
		seen := make(map[*model.ClassMetaData]bool)
		for _, recv := range b.receivers.Receivers(ext.method) {
			rc := b.resolve(recv)
			if rc == nil || seen[rc] {
				continue
			}
			seen[rc] = true

			proj := method(ext.method, ext.method.Parameters[1:])
			proj.IsStatic = false
			proj.IsExtension = true
			rc.Methods = append(rc.Methods, proj)
			injected++
			b.logger.Debugw("injected extension method",
				"method", ext.method.Name, "holder", ext.holder.ID, "receiver", rc.ID)
		}
	}
	return injected
}

func method(m *symbols.Method, params []*symbols.Parameter) *model.MethodMetaData {
	return &model.MethodMetaData{
		BaseMetaData:    model.BaseMetaData{Name: m.Name, RawRemark: m.Doc},
		IsPublic:        m.Access == symbols.AccessPublic,
		IsStatic:        m.Static,
		IsExtension:     m.Extension,
		ReturnType:      m.ReturnType,
		Parameters:      parameters(params),
		IsGenericMethod: len(m.TypeParameters) > 0,
		TypeParameters:  typeParameters(m.TypeParameters),
	}
}

func parameters(params []*symbols.Parameter) []*model.ParameterMetaData {
	if len(params) == 0 {
		return nil
	}
	out := make([]*model.ParameterMetaData, len(params))
	for i, p := range params {
		out[i] = &model.ParameterMetaData{
			BaseMetaData: model.BaseMetaData{Name: p.Name},
			Type:         p.Type,
			IsRef:        p.RefKind == symbols.RefRef,
			IsOut:        p.RefKind == symbols.RefOut,
			IsParams:     p.Params,
			IsOptional:   p.Optional,
		}
	}
	return out
}

func typeParameters(params []*symbols.Type) []*model.TypeParameterMetaData {
	if len(params) == 0 {
		return nil
	}
	out := make([]*model.TypeParameterMetaData, len(params))
	for i, p := range params {
		out[i] = &model.TypeParameterMetaData{
			BaseMetaData: model.BaseMetaData{Name: p.Name},
			Constraints:  append([]*symbols.Type(nil), p.Constraints...),
		}
	}
	return out
}
