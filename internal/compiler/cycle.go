package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning reports a reference cycle between schemas.
//
// Cycles are warnings, not errors, because recursive schemas are
// legitimate: a Person referencing a Person (spouse), a tree node
// referencing its children. Shape generation and validation both break
// cycles by reference, so a cyclic model is fully usable.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Person", "Employer", "Person"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis over a set of introspected
// models.
//
// The algorithm:
//  1. Build a schema → referenced-schemas graph from nested references
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, and each self-loop, as a warning
//
// A DAG returns an empty warning list.
func AnalyzeCycles(models []*Model) []CycleWarning {
	if len(models) == 0 {
		return []CycleWarning{}
	}

	graph := buildReferenceGraph(models)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}
	return warnings
}

// referenceGraph maps schema name → names of schemas it references.
type referenceGraph map[string][]string

// buildReferenceGraph constructs the schema reference graph. Every model is
// a node even when it references nothing, and edges within a node are
// sorted so warning paths come out deterministic.
func buildReferenceGraph(models []*Model) referenceGraph {
	graph := make(referenceGraph)
	for _, m := range models {
		edges := make([]string, 0, len(m.Nested))
		for _, src := range m.Nested {
			edges = append(edges, src.Name())
		}
		sort.Strings(edges)
		graph[m.Name] = edges
	}
	return graph
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are not cycles.
func tarjanSCC(graph referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
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

	// Visit nodes in sorted order so SCC discovery is deterministic.
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleWarning(scc []string, graph referenceGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing schema detected: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential reference cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges within an SCC from its first member
// until the walk returns to the start.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
