/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package callgraph builds and queries a method-to-method call graph over a
// batch of decompiled classes, so API-reachability questions ("can
// onCreate reach WebView.loadUrl?") can be answered as bounded path search
// instead of re-walking bytecode.
package callgraph

import "strings"

// Edge is one caller -> callee relationship, with the reconstructed
// expression text that produced it.
type Edge struct {
	Caller   string
	Callee   string
	CallSite string
}

// Path is one acyclic walk through the graph from a source to a target
// method.
type Path struct {
	Methods []string
	Edges   []Edge
	Length  int
}

// ContainsMethod reports whether any method on the path contains substr.
func (p Path) ContainsMethod(substr string) bool {
	for _, m := range p.Methods {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// Stats summarizes graph size.
type Stats struct {
	TotalMethods int
	TotalEdges   int
}

// Graph is a forward/reverse adjacency map keyed by "Class.method" strings.
// The known-methods set is tracked separately from the adjacency maps so
// isolated nodes still resolve.
type Graph struct {
	forward map[string][]Edge
	reverse map[string][]string
	methods map[string]bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		forward: make(map[string][]Edge),
		reverse: make(map[string][]string),
		methods: make(map[string]bool),
	}
}

// AddMethod records a method without any edges, so isolated nodes still
// show up in MethodsMatching and AllMethods.
func (g *Graph) AddMethod(method string) {
	g.methods[method] = true
}

// AddCall records one caller -> callee edge.
func (g *Graph) AddCall(caller, callee, callSite string) {
	g.methods[caller] = true
	g.methods[callee] = true
	g.forward[caller] = append(g.forward[caller], Edge{Caller: caller, Callee: callee, CallSite: callSite})
	g.reverse[callee] = append(g.reverse[callee], caller)
}

// Callees returns the methods directly called by method.
func (g *Graph) Callees(method string) []string {
	edges := g.forward[method]
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.Callee
	}
	return out
}

// Callers returns the methods that directly call method.
func (g *Graph) Callers(method string) []string {
	return g.reverse[method]
}

// MethodsMatching returns every known method containing substr.
func (g *Graph) MethodsMatching(substr string) []string {
	var out []string
	for m := range g.methods {
		if strings.Contains(m, substr) {
			out = append(out, m)
		}
	}
	return out
}

// AllMethods returns every known method.
func (g *Graph) AllMethods() []string {
	out := make([]string, 0, len(g.methods))
	for m := range g.methods {
		out = append(out, m)
	}
	return out
}

// Stats reports graph size.
func (g *Graph) Stats() Stats {
	edges := 0
	for _, es := range g.forward {
		edges += len(es)
	}
	return Stats{TotalMethods: len(g.methods), TotalEdges: edges}
}

// pathState is one in-flight BFS frontier entry.
type pathState struct {
	current string
	methods []string
	edges   []Edge
}

// FindPaths performs a bounded, acyclic breadth-first search from source to
// any method containing target as a substring (substring matching is
// deliberate: sink patterns like "WebView.loadUrl" are specific enough not
// to need exact identity). maxDepth caps a path at maxDepth nodes; maxPaths
// bounds the result count so a source with a combinatorial fan-out cannot
// make this unbounded.
func (g *Graph) FindPaths(source, target string, maxDepth, maxPaths int) []Path {
	var paths []Path
	queue := []pathState{{current: source, methods: []string{source}}}

	for len(queue) > 0 {
		if maxPaths > 0 && len(paths) >= maxPaths {
			break
		}
		state := queue[0]
		queue = queue[1:]

		if len(state.methods) > maxDepth {
			continue
		}
		if strings.Contains(state.current, target) {
			paths = append(paths, Path{
				Methods: state.methods,
				Edges:   state.edges,
				Length:  len(state.methods) - 1,
			})
			continue
		}

		for _, e := range g.forward[state.current] {
			if containsMethod(state.methods, e.Callee) {
				continue // cycle guard
			}
			nextMethods := append(append([]string{}, state.methods...), e.Callee)
			nextEdges := append(append([]Edge{}, state.edges...), e)
			queue = append(queue, pathState{current: e.Callee, methods: nextMethods, edges: nextEdges})
		}
	}
	return paths
}

func containsMethod(methods []string, m string) bool {
	for _, existing := range methods {
		if existing == m {
			return true
		}
	}
	return false
}
