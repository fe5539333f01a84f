/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package callgraph

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mixL1nk/dexlens/dex"
)

// Builder accumulates decompiled classes into a Graph.
type Builder struct {
	graph *Graph
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{graph: New()}
}

// AddClass records every method-call edge originating in class.
func (b *Builder) AddClass(class dex.DecompiledClass) {
	for _, method := range class.Methods {
		addMethod(b.graph, class.ClassName, method)
	}
}

// Build returns the accumulated Graph.
func (b *Builder) Build() *Graph {
	return b.graph
}

func addMethod(g *Graph, className string, method dex.DecompiledMethod) {
	callerSig := className + "." + method.Name
	g.AddMethod(callerSig)
	for _, expr := range method.Expressions {
		callee, ok := extractMethodCall(expr)
		if !ok {
			continue
		}
		callSite := fmt.Sprintf("%s:%s", method.Name, expr.Text)
		g.AddCall(callerSig, callee, callSite)
	}
}

// extractMethodCall resolves the callee node identity for one expression,
// preferring the pre-resolved MethodSignature and falling back to parsing
// a Dalvik descriptor out of the rendered expression text. The graph keys
// every node by the "Class.method" form, so a full
// "Class.method(P1, P2): R" signature is trimmed down to its qualified name
// before it becomes a node, otherwise callee nodes would never match the
// plain "Class.method" caller nodes addMethod records, and no path could
// ever extend past a single hop.
func extractMethodCall(expr dex.Expression) (string, bool) {
	if !expr.IsMethodCall {
		return "", false
	}
	if expr.MethodSignature != "" {
		if qualified, ok := qualifiedMethodName(expr.MethodSignature); ok {
			return qualified, true
		}
	}
	return parseMethodFromExpression(expr.Text)
}

// qualifiedMethodName strips a full "Class.method(P1, P2): R" signature down
// to its "Class.method" node identity.
func qualifiedMethodName(fullSignature string) (string, bool) {
	paren := strings.IndexByte(fullSignature, '(')
	if paren < 0 {
		return "", false
	}
	return fullSignature[:paren], true
}

// parseMethodFromExpression looks for a Dalvik descriptor fragment like
// "Landroid/webkit/WebView;->loadUrl" inside free-form expression text and
// turns it into "android.webkit.WebView.loadUrl".
func parseMethodFromExpression(code string) (string, bool) {
	arrow := strings.Index(code, "->")
	if arrow < 0 {
		return "", false
	}
	start := strings.IndexByte(code, 'L')
	if start < 0 || start >= arrow {
		return "", false
	}
	classPart := code[start+1 : arrow]
	className := strings.ReplaceAll(classPart, "/", ".")
	className = strings.TrimSuffix(className, ";")

	methodPart := code[arrow+2:]
	if paren := strings.IndexByte(methodPart, '('); paren >= 0 {
		methodPart = methodPart[:paren]
	}
	if methodPart == "" {
		return "", false
	}
	return className + "." + methodPart, true
}

// BuildParallel extracts per-class edges concurrently (bounded by
// GOMAXPROCS, mirroring dex.ExtractClassesParallel) and merges them into a
// single Graph with a single writer, so no synchronization is needed around
// the graph's maps.
func BuildParallel(ctx context.Context, classes []dex.DecompiledClass) (*Graph, error) {
	type classEdges struct {
		callerSig string
		callee    string
		callSite  string
	}
	perClass := make([][]classEdges, len(classes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, class := range classes {
		i, class := i, class
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var edges []classEdges
			for _, method := range class.Methods {
				callerSig := class.ClassName + "." + method.Name
				for _, expr := range method.Expressions {
					callee, ok := extractMethodCall(expr)
					if !ok {
						continue
					}
					edges = append(edges, classEdges{
						callerSig: callerSig,
						callee:    callee,
						callSite:  fmt.Sprintf("%s:%s", method.Name, expr.Text),
					})
				}
			}
			perClass[i] = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("callgraph.BuildParallel: %w", err)
	}

	graph := New()
	for _, class := range classes {
		for _, method := range class.Methods {
			graph.AddMethod(class.ClassName + "." + method.Name)
		}
	}
	for _, edges := range perClass {
		for _, e := range edges {
			graph.AddCall(e.callerSig, e.callee, e.callSite)
		}
	}
	return graph, nil
}
