/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package flow answers source-to-sink reachability queries over a built
// call graph: for each declared entry point, does some lifecycle method
// reach a security-relevant sink (a WebView loader, a file/network/SQL
// API)? It adds a textual data-flow heuristic on top
// of the raw paths, flagging ones that look like they carry
// attacker-controlled Intent data.
package flow

import (
	"strings"

	"github.com/mixL1nk/dexlens/callgraph"
	"github.com/mixL1nk/dexlens/manifest"
)

// DefaultMaxDepth and DefaultMaxPaths bound the path search when a caller
// doesn't have an opinion.
const (
	DefaultMaxDepth = 10
	DefaultMaxPaths = 500
)

// lifecycleRoots are the methods the flow analyzer treats as each entry
// point's callable surface.
var lifecycleRoots = []string{"onCreate", "onStart", "onResume", "onNewIntent"}

// Canned sink-pattern sets.
var (
	WebviewPatterns = []string{
		"loadUrl", "loadData", "loadDataWithBaseURL", "evaluateJavascript",
		"addJavascriptInterface", "setWebViewClient", "setWebChromeClient",
	}
	FilePatterns = []string{
		"FileOutputStream", "FileWriter", "RandomAccessFile.write", "Files.write",
	}
	NetworkPatterns = []string{
		"HttpURLConnection", "OkHttp", "URLConnection.connect", "Socket.connect",
	}
	SQLPatterns = []string{
		"execSQL", "rawQuery", "SQLiteDatabase.query",
	}
)

// intentDataMethods are the Intent-extraction calls the data-flow heuristic
// treats as a data source.
var intentDataMethods = []string{
	"getStringExtra", "getIntExtra", "getBooleanExtra", "getData", "getDataString", "getExtras",
}

// Flow is one (entry point, sink) pair reachable in the call graph, with
// every acyclic path the bounded search found between them.
type Flow struct {
	EntryPoint        string
	ComponentKind     manifest.ComponentKind
	SinkMethod        string
	Paths             []callgraph.Path
	IsDeeplinkHandler bool
	MinPathLength     int
	PathCount         int
}

// ShortestPath returns the shortest of Flow's paths.
func (f Flow) ShortestPath() (callgraph.Path, bool) {
	if len(f.Paths) == 0 {
		return callgraph.Path{}, false
	}
	shortest := f.Paths[0]
	for _, p := range f.Paths[1:] {
		if p.Length < shortest.Length {
			shortest = p
		}
	}
	return shortest, true
}

// LifecycleMethods returns every method on any path that names one of the
// well-known Android lifecycle callbacks.
func (f Flow) LifecycleMethods() []string {
	names := []string{
		"onCreate", "onStart", "onResume", "onPause", "onStop", "onDestroy",
		"onNewIntent", "onActivityResult", "onRequestPermissionsResult",
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range f.Paths {
		for _, m := range p.Methods {
			for _, lc := range names {
				if strings.Contains(m, lc) && !seen[m] {
					seen[m] = true
					out = append(out, m)
				}
			}
		}
	}
	return out
}

// DataFlow is a heuristic-flagged path whose methods include an
// Intent-data-extraction call, paired with the confidence bucket its path
// length falls into.
type DataFlow struct {
	Source     string
	Sink       string
	FlowPath   []string
	Confidence float32
}

// Analyzer runs bounded reachability queries from every linked entry
// point's lifecycle roots to a caller-chosen sink pattern set.
type Analyzer struct {
	graph       *callgraph.Graph
	entryPoints []manifest.EntryPoint
	maxPaths    int
}

// NewAnalyzer builds an Analyzer over an already-built call graph and an
// already-linked entry-point set.
func NewAnalyzer(graph *callgraph.Graph, entryPoints []manifest.EntryPoint) *Analyzer {
	return &Analyzer{graph: graph, entryPoints: entryPoints, maxPaths: DefaultMaxPaths}
}

// WithMaxPaths overrides the per-query path cap. The cap guards against
// exponential path blowup on highly connected graphs.
func (a *Analyzer) WithMaxPaths(maxPaths int) *Analyzer {
	a.maxPaths = maxPaths
	return a
}

// FindFlowsTo searches from every entry point's lifecycle roots to every
// method matching sinkPatterns, yielding one Flow per (entry point, sink)
// whose path set is non-empty.
func (a *Analyzer) FindFlowsTo(sinkPatterns []string, maxDepth int) []Flow {
	sinkMethods := a.sinkMethodsMatching(sinkPatterns)
	if len(sinkMethods) == 0 {
		return nil
	}

	var flows []Flow
	for _, ep := range a.entryPoints {
		for _, sink := range sinkMethods {
			var paths []callgraph.Path
			for _, lifecycle := range lifecycleRoots {
				source := ep.ClassName + "." + lifecycle
				paths = append(paths, a.graph.FindPaths(source, sink, maxDepth, a.maxPaths)...)
			}
			if len(paths) == 0 {
				continue
			}
			flows = append(flows, Flow{
				EntryPoint:        ep.ClassName,
				ComponentKind:     ep.ComponentKind,
				SinkMethod:        sink,
				Paths:             paths,
				IsDeeplinkHandler: ep.IsDeeplinkHandler,
				MinPathLength:     minPathLength(paths),
				PathCount:         len(paths),
			})
		}
	}
	return flows
}

func (a *Analyzer) sinkMethodsMatching(patterns []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		for _, m := range a.graph.MethodsMatching(p) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func minPathLength(paths []callgraph.Path) int {
	min := paths[0].Length
	for _, p := range paths[1:] {
		if p.Length < min {
			min = p.Length
		}
	}
	return min
}

// FindWebviewFlows finds flows into WebView/WebSettings sinks.
func (a *Analyzer) FindWebviewFlows(maxDepth int) []Flow {
	return a.FindFlowsTo(WebviewPatterns, maxDepth)
}

// FindFileFlows finds flows into file I/O sinks.
func (a *Analyzer) FindFileFlows(maxDepth int) []Flow {
	return a.FindFlowsTo(FilePatterns, maxDepth)
}

// FindNetworkFlows finds flows into network sinks.
func (a *Analyzer) FindNetworkFlows(maxDepth int) []Flow {
	return a.FindFlowsTo(NetworkPatterns, maxDepth)
}

// FindSQLFlows finds flows into SQL sinks.
func (a *Analyzer) FindSQLFlows(maxDepth int) []Flow {
	return a.FindFlowsTo(SQLPatterns, maxDepth)
}

// FindDeeplinkFlows narrows FindFlowsTo's result to entry points that
// handle a deeplink.
func (a *Analyzer) FindDeeplinkFlows(sinkPatterns []string, maxDepth int) []Flow {
	var out []Flow
	for _, f := range a.FindFlowsTo(sinkPatterns, maxDepth) {
		if f.IsDeeplinkHandler {
			out = append(out, f)
		}
	}
	return out
}

// AnalyzeDataFlows applies the textual Intent-data-provenance heuristic to
// an already-computed flow set.
func AnalyzeDataFlows(flows []Flow) []DataFlow {
	var out []DataFlow
	for _, f := range flows {
		for _, p := range f.Paths {
			source, ok := firstIntentDataMethod(p.Methods)
			if !ok {
				continue
			}
			out = append(out, DataFlow{
				Source:     source,
				Sink:       f.SinkMethod,
				FlowPath:   p.Methods,
				Confidence: confidenceForLength(p.Length),
			})
		}
	}
	return out
}

func firstIntentDataMethod(methods []string) (string, bool) {
	for _, m := range methods {
		for _, im := range intentDataMethods {
			if strings.Contains(m, im) {
				return m, true
			}
		}
	}
	return "", false
}

// confidenceForLength buckets a path's length into the heuristic's four
// confidence tiers: closer sources are more credible.
func confidenceForLength(length int) float32 {
	switch {
	case length <= 3:
		return 0.9
	case length <= 5:
		return 0.7
	case length <= 8:
		return 0.5
	default:
		return 0.3
	}
}

// Stats summarizes the entry points this Analyzer was built over.
type Stats struct {
	EntryPoints      int
	DeeplinkHandlers int
}

// Stats reports entry-point counts over the linked set.
func (a *Analyzer) Stats() Stats {
	stats := Stats{EntryPoints: len(a.entryPoints)}
	for _, ep := range a.entryPoints {
		if ep.IsDeeplinkHandler {
			stats.DeeplinkHandlers++
		}
	}
	return stats
}
