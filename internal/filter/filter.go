// Package filter selects which class records the emitter renders.
package filter

import (
	"strings"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/model"
)

// Filter decides whether a class is kept.
type Filter interface {
	Keep(c *model.ClassMetaData) bool
}

// Func adapts a function to Filter.
type Func func(c *model.ClassMetaData) bool

// Keep calls f.
func (f Func) Keep(c *model.ClassMetaData) bool { return f(c) }

func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return prefix
}

// NamespaceInclude keeps classes whose full name starts with Prefix followed
// by a dot. An empty prefix keeps everything.
type NamespaceInclude struct {
	prefix string
}

// NewNamespaceInclude returns an include filter for prefix.
func NewNamespaceInclude(prefix string) *NamespaceInclude {
	return &NamespaceInclude{prefix: normalizePrefix(prefix)}
}

func (f *NamespaceInclude) Keep(c *model.ClassMetaData) bool {
	return strings.HasPrefix(c.FullName(), f.prefix)
}

// NamespaceExclude is the negation of NamespaceInclude.
type NamespaceExclude struct {
	prefix string
}

// NewNamespaceExclude returns an exclude filter for prefix.
func NewNamespaceExclude(prefix string) *NamespaceExclude {
	return &NamespaceExclude{prefix: normalizePrefix(prefix)}
}

func (f *NamespaceExclude) Keep(c *model.ClassMetaData) bool {
	return !strings.HasPrefix(c.FullName(), f.prefix)
}

// PublicOnly keeps public classes.
type PublicOnly struct{}

func (PublicOnly) Keep(c *model.ClassMetaData) bool {
	return c.IsPublic
}

// NameExact keeps classes whose simple name is Name.
type NameExact struct {
	Name string
}

func (f NameExact) Keep(c *model.ClassMetaData) bool {
	return c.Name == f.Name
}

// AnyOf keeps a class when at least one member filter does. An empty AnyOf
// keeps nothing.
type AnyOf []Filter

func (a AnyOf) Keep(c *model.ClassMetaData) bool {
	for _, f := range a {
		if f.Keep(c) {
			return true
		}
	}
	return false
}

// Pipeline is a conjunction of filters.
type Pipeline struct {
	filters []Filter
}

// NewPipeline returns a pipeline over filters.
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Add appends f.
func (p *Pipeline) Add(f Filter) {
	p.filters = append(p.filters, f)
}

// Len returns the number of active filters.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.filters)
}

// ShouldEmit reports whether every filter keeps c. A nil or empty pipeline
// keeps everything.
func (p *Pipeline) ShouldEmit(c *model.ClassMetaData) bool {
	if p == nil {
		return true
	}
	for _, f := range p.filters {
		if !f.Keep(c) {
			return false
		}
	}
	return true
}

// Select returns the classes that pass, preserving order.
func (p *Pipeline) Select(classes []*model.ClassMetaData) []*model.ClassMetaData {
	var out []*model.ClassMetaData
	for _, c := range classes {
		if p.ShouldEmit(c) {
			out = append(out, c)
		}
	}
	return out
}

// ExcludeNamespaces returns one exclude filter per non-empty prefix.
func ExcludeNamespaces(prefixes []string) []Filter {
	var out []Filter
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, NewNamespaceExclude(p))
		}
	}
	return out
}

// IncludeNamespaces returns one include filter per non-empty prefix.
func IncludeNamespaces(prefixes []string) []Filter {
	var out []Filter
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, NewNamespaceInclude(p))
		}
	}
	return out
}

// FromConfig builds the pipeline described by cfg. Several include prefixes
// form a single alternative so that a class in any of them is kept.
func FromConfig(cfg config.FilterConfig) *Pipeline {
	p := NewPipeline(ExcludeNamespaces(cfg.ExcludeNamespaces)...)
	if inc := IncludeNamespaces(cfg.IncludeNamespaces); len(inc) == 1 {
		p.Add(inc[0])
	} else if len(inc) > 1 {
		p.Add(AnyOf(inc))
	}
	if cfg.PublicOnly {
		p.Add(PublicOnly{})
	}
	if name := strings.TrimSpace(cfg.ClassName); name != "" {
		p.Add(NameExact{Name: name})
	}
	return p
}
