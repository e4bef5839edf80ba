package model

import (
	"sort"
	"strings"
	"sync"
)

// Direction selects which way a hierarchy traversal walks.
type Direction string

const (
	// Up walks from a class to its base classes.
	Up Direction = "up"
	// Down walks from a class to the classes deriving from it.
	Down Direction = "down"
)

// Hierarchy is a derived inheritance index over a ProjectMetaData. It is
// rebuilt after each build and never mutates the project.
type Hierarchy struct {
	mu      sync.RWMutex
	forward map[string]string   // id → base id
	reverse map[string][]string // id → derived ids
	project *ProjectMetaData
}

// TraversalNode is a class visited during traversal.
type TraversalNode struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Public   bool   `json:"public"`
	Depth    int    `json:"depth"`
}

// TraversalResult holds the output of a hierarchy traversal.
type TraversalResult struct {
	Nodes     []TraversalNode `json:"nodes"`
	Truncated bool            `json:"truncated"`
}

// NewHierarchy indexes the base links of p in a single pass.
func NewHierarchy(p *ProjectMetaData) *Hierarchy {
	h := &Hierarchy{
		forward: make(map[string]string),
		reverse: make(map[string][]string),
		project: p,
	}
	for _, c := range p.Classes() {
		if c.BaseClass == nil {
			continue
		}
		h.forward[c.ID] = c.BaseClass.ID
		h.reverse[c.BaseClass.ID] = append(h.reverse[c.BaseClass.ID], c.ID)
	}
	return h
}

// Ancestors returns the base chain of id, nearest first.
func (h *Hierarchy) Ancestors(id string) []*ClassMetaData {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*ClassMetaData
	seen := map[string]bool{id: true}
	for cur, ok := h.forward[id]; ok && !seen[cur]; cur, ok = h.forward[cur] {
		seen[cur] = true
		if c, found := h.project.Lookup(cur); found {
			out = append(out, c)
		}
	}
	return out
}

// Traverse performs a BFS from start in the given direction.
// maxDepth limits traversal depth (0 = use default 5).
// maxNodes limits total returned nodes (0 = use default 100).
func (h *Hierarchy) Traverse(start string, dir Direction, maxDepth, maxNodes int) TraversalResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if maxDepth <= 0 {
		maxDepth = 5
	}
	if maxNodes <= 0 {
		maxNodes = 100
	}

	var result TraversalResult
	c, ok := h.project.Lookup(start)
	if !ok {
		return result
	}

	type queueItem struct {
		id    string
		depth int
	}
	visited := map[string]bool{start: true}
	queue := []queueItem{{id: start}}
	result.Nodes = append(result.Nodes, nodeFor(c, 0))

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= maxDepth {
			continue
		}

		var next []string
		if dir == Down {
			next = h.reverse[item.id]
		} else if base, ok := h.forward[item.id]; ok {
			next = []string{base}
		}

		for _, id := range next {
			if visited[id] {
				continue
			}
			visited[id] = true
			if len(result.Nodes) >= maxNodes {
				result.Truncated = true
				continue
			}
			nc, ok := h.project.Lookup(id)
			if !ok {
				continue
			}
			result.Nodes = append(result.Nodes, nodeFor(nc, item.depth+1))
			queue = append(queue, queueItem{id: id, depth: item.depth + 1})
		}
	}
	return result
}

// Find returns records whose identifier, full name or simple name equals
// name. When nothing matches exactly, a case-insensitive substring match on
// the full name is used. Results are sorted by full name.
func (h *Hierarchy) Find(name string) []*ClassMetaData {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var exact, partial []*ClassMetaData
	lower := strings.ToLower(name)
	for _, c := range h.project.Classes() {
		switch {
		case c.ID == name || c.FullName() == name || c.Name == name:
			exact = append(exact, c)
		case strings.Contains(strings.ToLower(c.FullName()), lower):
			partial = append(partial, c)
		}
	}
	out := exact
	if len(out) == 0 {
		out = partial
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// EdgeCount returns the number of inheritance links.
func (h *Hierarchy) EdgeCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.forward)
}

func nodeFor(c *ClassMetaData, depth int) TraversalNode {
	return TraversalNode{ID: c.ID, FullName: c.FullName(), Public: c.IsPublic, Depth: depth}
}
