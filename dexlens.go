/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package dexlens wires the dex, manifest, apk, callgraph, and flow
// packages into one pipeline: an APK path in, a class catalog,
// call graph, or flow report out. Each exported function here is a thin
// composition of those packages and owns no analysis logic of its own.
package dexlens

import (
	"context"
	"fmt"

	"github.com/mixL1nk/dexlens/apk"
	"github.com/mixL1nk/dexlens/callgraph"
	"github.com/mixL1nk/dexlens/dex"
	"github.com/mixL1nk/dexlens/flow"
	"github.com/mixL1nk/dexlens/manifest"
)

// Info summarizes one APK: its parsed manifest plus the coarse shape of
// its DEX payload.
type Info struct {
	Manifest     *manifest.Info
	DexCount     int
	HasResources bool
}

// ExtractAPKInfo opens path and reports its manifest plus archive shape,
// without decompiling any class.
func ExtractAPKInfo(path string) (*Info, error) {
	archive, err := apk.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dexlens.ExtractAPKInfo: %w", err)
	}
	info, err := parseManifest(archive)
	if err != nil {
		return nil, fmt.Errorf("dexlens.ExtractAPKInfo: %w", err)
	}
	return &Info{
		Manifest:     info,
		DexCount:     len(archive.DexEntries()),
		HasResources: archive.HasResources(),
	}, nil
}

// ParseManifestFromAPK decodes just the manifest, skipping all DEX work.
func ParseManifestFromAPK(path string) (*manifest.Info, error) {
	archive, err := apk.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dexlens.ParseManifestFromAPK: %w", err)
	}
	info, err := parseManifest(archive)
	if err != nil {
		return nil, fmt.Errorf("dexlens.ParseManifestFromAPK: %w", err)
	}
	return info, nil
}

func parseManifest(archive *apk.Archive) (*manifest.Info, error) {
	data, err := archive.ExtractManifest()
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}

// openPrimaryDex opens the archive's classes.dex as a *dex.Parser. The
// flow analyzer and call-graph builder both need at least this single
// image; multi-DEX fan-out across classesN.dex is left to callers that
// want it (ExtractClassesFromAPK only decompiles the primary image).
func openPrimaryDex(path string) (*apk.Archive, *dex.Parser, error) {
	archive, err := apk.Open(path)
	if err != nil {
		return nil, nil, err
	}
	primary, ok := archive.PrimaryDex()
	if !ok {
		return nil, nil, fmt.Errorf("no classes.dex in %s", path)
	}
	data, err := archive.ExtractDex(primary)
	if err != nil {
		return nil, nil, err
	}
	parser, err := dex.Open(data)
	if err != nil {
		return nil, nil, err
	}
	return archive, parser, nil
}

// ExtractClassesFromAPK decompiles every class in the primary DEX image,
// sequentially or in parallel.
func ExtractClassesFromAPK(ctx context.Context, path string, parallel bool) ([]dex.DecompiledClass, dex.Stats, error) {
	_, parser, err := openPrimaryDex(path)
	if err != nil {
		return nil, dex.Stats{}, fmt.Errorf("dexlens.ExtractClassesFromAPK: %w", err)
	}
	if parallel {
		return dex.ExtractClassesParallel(ctx, parser)
	}
	return dex.ExtractClasses(parser)
}

// SearchClasses re-exports dex.SearchClasses; kept here too so callers
// that only import dexlens don't need a second import for a one-line
// filter call.
func SearchClasses(classes []dex.DecompiledClass, f dex.ClassFilter, limit int) []dex.DecompiledClass {
	return dex.SearchClasses(classes, f, limit)
}

// SearchMethods re-exports dex.SearchMethods.
func SearchMethods(classes []dex.DecompiledClass, cf dex.ClassFilter, mf dex.MethodFilter, limit int) []dex.MethodHit {
	return dex.SearchMethods(classes, cf, mf, limit)
}

// DecompileClassFromAPK decompiles exactly one named class.
func DecompileClassFromAPK(path, className string) (*dex.DecompiledClass, error) {
	_, parser, err := openPrimaryDex(path)
	if err != nil {
		return nil, fmt.Errorf("dexlens.DecompileClassFromAPK: %w", err)
	}
	for i := 0; i < parser.ClassCount(); i++ {
		classDef, err := parser.ClassDef(i)
		if err != nil {
			continue
		}
		dc, err := dex.Decompile(parser, classDef)
		if err != nil || dc.ClassName != className {
			continue
		}
		return dc, nil
	}
	return nil, fmt.Errorf("dexlens.DecompileClassFromAPK: %w: %s", dex.ErrClassNotFound, className)
}

// BuildCallGraphFromAPK decompiles every class and assembles the call
// graph over them.
func BuildCallGraphFromAPK(ctx context.Context, path string, parallel bool) (*callgraph.Graph, error) {
	classes, _, err := ExtractClassesFromAPK(ctx, path, parallel)
	if err != nil {
		return nil, fmt.Errorf("dexlens.BuildCallGraphFromAPK: %w", err)
	}
	if parallel {
		return callgraph.BuildParallel(ctx, classes)
	}
	builder := callgraph.NewBuilder()
	for _, c := range classes {
		builder.AddClass(c)
	}
	return builder.Build(), nil
}

// analyzerFor builds every stage of the pipeline up to a flow.Analyzer:
// manifest, decompiled classes, entry-point linking, and call graph.
func analyzerFor(ctx context.Context, path string, parallel bool) (*flow.Analyzer, error) {
	archive, parser, err := openPrimaryDex(path)
	if err != nil {
		return nil, err
	}
	manifestInfo, err := parseManifest(archive)
	if err != nil {
		return nil, err
	}

	var classes []dex.DecompiledClass
	if parallel {
		classes, _, err = dex.ExtractClassesParallel(ctx, parser)
	} else {
		classes, _, err = dex.ExtractClasses(parser)
	}
	if err != nil {
		return nil, err
	}

	index := make(manifest.ClassIndex, len(classes))
	for _, c := range classes {
		index[c.ClassName] = true
	}
	entryPoints := manifest.LinkEntryPoints(manifestInfo, index)

	var graph *callgraph.Graph
	if parallel {
		graph, err = callgraph.BuildParallel(ctx, classes)
		if err != nil {
			return nil, err
		}
	} else {
		builder := callgraph.NewBuilder()
		for _, c := range classes {
			builder.AddClass(c)
		}
		graph = builder.Build()
	}

	return flow.NewAnalyzer(graph, entryPoints), nil
}

// FindFlowsFromAPK runs the full pipeline and searches for flows into
// sinkPatterns.
func FindFlowsFromAPK(ctx context.Context, path string, sinkPatterns []string, maxDepth int) ([]flow.Flow, error) {
	a, err := analyzerFor(ctx, path, false)
	if err != nil {
		return nil, fmt.Errorf("dexlens.FindFlowsFromAPK: %w", err)
	}
	return a.FindFlowsTo(sinkPatterns, maxDepth), nil
}

// FindWebviewFlowsFromAPK specializes FindFlowsFromAPK to the WebView
// sink set.
func FindWebviewFlowsFromAPK(ctx context.Context, path string, maxDepth int) ([]flow.Flow, error) {
	return FindFlowsFromAPK(ctx, path, flow.WebviewPatterns, maxDepth)
}

// FindFileFlowsFromAPK specializes FindFlowsFromAPK to the file-I/O sink
// set.
func FindFileFlowsFromAPK(ctx context.Context, path string, maxDepth int) ([]flow.Flow, error) {
	return FindFlowsFromAPK(ctx, path, flow.FilePatterns, maxDepth)
}

// FindNetworkFlowsFromAPK specializes FindFlowsFromAPK to the network
// sink set.
func FindNetworkFlowsFromAPK(ctx context.Context, path string, maxDepth int) ([]flow.Flow, error) {
	return FindFlowsFromAPK(ctx, path, flow.NetworkPatterns, maxDepth)
}

// FindSQLFlowsFromAPK specializes FindFlowsFromAPK to the SQL sink set.
func FindSQLFlowsFromAPK(ctx context.Context, path string, maxDepth int) ([]flow.Flow, error) {
	return FindFlowsFromAPK(ctx, path, flow.SQLPatterns, maxDepth)
}
