package symbols

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/glob"
)

const (
	prefixTag = "prefix:"
	suffixTag = "suffix:"
)

// UnitFilter selects compiled units by name before they reach the builder.
// Exclude entries are exact names, "prefix:"-tagged or "suffix:"-tagged.
// Include entries are exact names or glob patterns; an empty include list
// keeps every unit that is not excluded.
type UnitFilter struct {
	exclude       map[string]bool
	excludePrefix []string
	excludeSuffix []string
	include       []glob.Glob
	includeExact  map[string]bool
}

// NewUnitFilter compiles include and exclude lists.
func NewUnitFilter(include, exclude []string) (*UnitFilter, error) {
	f := &UnitFilter{
		exclude:      make(map[string]bool),
		includeExact: make(map[string]bool),
	}
	for _, e := range exclude {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case strings.HasPrefix(e, prefixTag):
			f.excludePrefix = append(f.excludePrefix, strings.TrimPrefix(e, prefixTag))
		case strings.HasPrefix(e, suffixTag):
			f.excludeSuffix = append(f.excludeSuffix, strings.TrimPrefix(e, suffixTag))
		default:
			f.exclude[e] = true
		}
	}
	for _, in := range include {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		if !strings.ContainsAny(in, "*?[{") {
			f.includeExact[in] = true
			continue
		}
		g, err := glob.Compile(in, '.')
		if err != nil {
			return nil, errors.Wrapf(err, "compiling include pattern %q", in)
		}
		f.include = append(f.include, g)
	}
	return f, nil
}

// Keep reports whether the unit called name should be loaded.
func (f *UnitFilter) Keep(name string) bool {
	if f == nil {
		return true
	}
	if f.exclude[name] {
		return false
	}
	for _, p := range f.excludePrefix {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	for _, s := range f.excludeSuffix {
		if strings.HasSuffix(name, s) {
			return false
		}
	}
	if len(f.includeExact) == 0 && len(f.include) == 0 {
		return true
	}
	if f.includeExact[name] {
		return true
	}
	for _, g := range f.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Apply returns the units f keeps, preserving order.
func (f *UnitFilter) Apply(units []*Unit) []*Unit {
	var out []*Unit
	for _, u := range units {
		if f.Keep(u.Name) {
			out = append(out, u)
		}
	}
	return out
}
