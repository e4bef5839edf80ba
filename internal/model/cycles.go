package model

import (
	"sort"
	"strings"
)

// Cycle is a set of classes whose base links loop back on themselves.
type Cycle []string

// String renders the loop as "A -> B -> A".
func (c Cycle) String() string {
	if len(c) == 0 {
		return ""
	}
	return strings.Join(c, " -> ") + " -> " + c[0]
}

// Cycles returns every inheritance loop in the project. Only hand-edited
// symbol dumps produce them. Each cycle starts at its lexically smallest
// identifier and follows the base links; cycles are sorted by that first
// identifier.
func (h *Hierarchy) Cycles() []Cycle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var cycles []Cycle
	for _, scc := range tarjanSCC(h.forward) {
		if len(scc) == 1 && h.forward[scc[0]] != scc[0] {
			continue
		}
		cycles = append(cycles, h.loopFrom(scc))
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// loopFrom orders the members of a strongly connected component along the
// base links. Every class has at most one base, so the component is a ring.
func (h *Hierarchy) loopFrom(scc []string) Cycle {
	start := scc[0]
	for _, id := range scc[1:] {
		if id < start {
			start = id
		}
	}
	out := Cycle{start}
	for cur := h.forward[start]; cur != start; cur = h.forward[cur] {
		out = append(out, cur)
	}
	return out
}

// tarjanSCC returns the strongly connected components of the base graph.
func tarjanSCC(forward map[string]string) [][]string {
	var (
		index    int
		stack    []string
		onStack  = make(map[string]bool)
		indices  = make(map[string]int)
		lowlinks = make(map[string]int)
		sccs     [][]string
	)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		if w, ok := forward[v]; ok {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlinks[v] = min(lowlinks[v], lowlinks[w])
			} else if onStack[w] {
				lowlinks[v] = min(lowlinks[v], indices[w])
			}
		}

		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	ids := make([]string, 0, len(forward))
	for id := range forward {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, v := range ids {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}
