// Package model holds the metadata records the builder produces and the
// emitter renders: one record per class, member, parameter and generic
// parameter, owned by a single ProjectMetaData per run.
package model

import (
	"github.com/cockroachdb/errors"

	"github.com/dejo1307/cs2luadoc/internal/symbols"
)

// ErrDanglingBase is reported by Validate when a base record is missing from
// the project.
var ErrDanglingBase = errors.New("base class record not in project")

// ProjectMetaData maps canonical type identifiers to class records. Iteration
// follows insertion order.
type ProjectMetaData struct {
	classes map[string]*ClassMetaData
	order   []string
}

// NewProjectMetaData returns an empty project.
func NewProjectMetaData() *ProjectMetaData {
	return &ProjectMetaData{classes: make(map[string]*ClassMetaData)}
}

// Lookup returns the record for id.
func (p *ProjectMetaData) Lookup(id string) (*ClassMetaData, bool) {
	c, ok := p.classes[id]
	return c, ok
}

// Insert stores c under id unless a record is already present, in which case
// the existing record is returned and inserted is false.
func (p *ProjectMetaData) Insert(id string, c *ClassMetaData) (stored *ClassMetaData, inserted bool) {
	if existing, ok := p.classes[id]; ok {
		return existing, false
	}
	c.ID = id
	p.classes[id] = c
	p.order = append(p.order, id)
	return c, true
}

// Classes returns every record in insertion order.
func (p *ProjectMetaData) Classes() []*ClassMetaData {
	out := make([]*ClassMetaData, len(p.order))
	for i, id := range p.order {
		out[i] = p.classes[id]
	}
	return out
}

// IDs returns every identifier in insertion order.
func (p *ProjectMetaData) IDs() []string {
	return append([]string(nil), p.order...)
}

// Len returns the number of records.
func (p *ProjectMetaData) Len() int {
	return len(p.order)
}

// Validate checks that every base reference points at a record owned by p.
func (p *ProjectMetaData) Validate() error {
	for _, id := range p.order {
		c := p.classes[id]
		if c.BaseClass == nil {
			continue
		}
		if owned, ok := p.classes[c.BaseClass.ID]; !ok || owned != c.BaseClass {
			return errors.Wrapf(ErrDanglingBase, "%s -> %s", id, c.BaseClass.ID)
		}
	}
	return nil
}

// BaseMetaData is shared by every record.
type BaseMetaData struct {
	Name      string
	RawRemark string
}

// ClassMetaData describes one class, struct, interface or enum.
type ClassMetaData struct {
	BaseMetaData
	ID        string
	IsPublic  bool
	Namespace string

	Constructors []*MethodMetaData
	Fields       []*FieldMetaData
	Properties   []*PropertyMetaData
	Methods      []*MethodMetaData
	Events       []*EventMetaData

	IsGenericClass        bool
	GenericTypeParameters []*TypeParameterMetaData
	GenericTypeArguments  []*symbols.Type

	// BaseClass points at another record of the same project.
	BaseClass *ClassMetaData

	// Symbol is the type the record was built from.
	Symbol *symbols.Type
}

// FullName returns Namespace.Name, or Name in the global namespace.
func (c *ClassMetaData) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// IsClosedGeneric reports whether the record is a generic instantiation.
func (c *ClassMetaData) IsClosedGeneric() bool {
	return len(c.GenericTypeArguments) > 0
}

// FieldMetaData is a field.
type FieldMetaData struct {
	BaseMetaData
	Type     *symbols.Type
	IsPublic bool
	IsStatic bool
}

// PropertyMetaData is a property or indexer.
type PropertyMetaData struct {
	BaseMetaData
	Type       *symbols.Type
	IsPublic   bool
	IsStatic   bool
	Parameters []*ParameterMetaData
	HasGetter  bool
	HasSetter  bool
}

// IsIndexer reports whether the property takes parameters.
func (p *PropertyMetaData) IsIndexer() bool {
	return len(p.Parameters) > 0
}

// EventMetaData is an event.
type EventMetaData struct {
	BaseMetaData
	Type     *symbols.Type
	IsPublic bool
	IsStatic bool
}

// MethodMetaData is a method or constructor.
type MethodMetaData struct {
	BaseMetaData
	IsPublic        bool
	IsStatic        bool
	IsExtension     bool
	ReturnType      *symbols.Type
	Parameters      []*ParameterMetaData
	IsGenericMethod bool
	TypeParameters  []*TypeParameterMetaData
}

// ParameterMetaData is a parameter.
type ParameterMetaData struct {
	BaseMetaData
	Type       *symbols.Type
	IsRef      bool
	IsOut      bool
	IsParams   bool
	IsOptional bool
}

// IsRefOrOut reports whether the parameter is passed by reference.
func (p *ParameterMetaData) IsRefOrOut() bool {
	return p.IsRef || p.IsOut
}

// TypeParameterMetaData is a generic parameter and its constraints.
type TypeParameterMetaData struct {
	BaseMetaData
	Constraints []*symbols.Type
}
