/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Command dexlens is a thin CLI shell over the root dexlens package: every
// subcommand opens the given APK, runs one root-level adapter function, and
// renders the result as indented text on stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mixL1nk/dexlens"
	"github.com/mixL1nk/dexlens/dex"
	"github.com/mixL1nk/dexlens/flow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dexlens:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dexlens",
		Short: "Static analysis over Android APK/DEX files",
	}
	root.AddCommand(
		newInfoCmd(),
		newManifestCmd(),
		newClassesCmd(),
		newSearchClassesCmd(),
		newSearchMethodsCmd(),
		newDecompileCmd(),
		newCallgraphCmd(),
		newFlowsCmd(),
	)
	return root
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <apk>",
		Short: "Print manifest package, DEX count, and resource presence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := dexlens.ExtractAPKInfo(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "package: %s\n", info.Manifest.PackageName)
			fmt.Fprintf(out, "dex files: %d\n", info.DexCount)
			fmt.Fprintf(out, "has resources: %t\n", info.HasResources)
			return nil
		},
	}
}

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <apk>",
		Short: "Decode AndroidManifest.xml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := dexlens.ParseManifestFromAPK(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "package: %s\n", info.PackageName)
			fmt.Fprintf(out, "versionCode: %s  versionName: %s\n", info.VersionCode, info.VersionName)
			fmt.Fprintf(out, "minSdk: %s  targetSdk: %s\n", info.MinSDKVersion, info.TargetSDKVersion)
			fmt.Fprintf(out, "permissions: %d  activities: %d  services: %d  receivers: %d  providers: %d\n",
				len(info.Permissions), len(info.Activities), len(info.Services), len(info.Receivers), len(info.Providers))
			for _, a := range info.Activities {
				fmt.Fprintf(out, "  activity %s\n", a)
			}
			return nil
		},
	}
}

func newClassesCmd() *cobra.Command {
	var parallel bool
	c := &cobra.Command{
		Use:   "classes <apk>",
		Short: "Decompile every class in the primary DEX image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classes, stats, err := dexlens.ExtractClassesFromAPK(cmd.Context(), args[0], parallel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range classes {
				fmt.Fprintf(out, "%s (%d methods, %d fields)\n", c.ClassName, len(c.Methods), len(c.Fields))
			}
			fmt.Fprintf(out, "total: %d  decompiled: %d  skipped: %d\n", stats.TotalClasses, stats.Decompiled, stats.SkippedClasses)
			return nil
		},
	}
	c.Flags().BoolVar(&parallel, "parallel", false, "decompile classes concurrently")
	return c
}

func newSearchClassesCmd() *cobra.Command {
	var parallel bool
	var pkg, name string
	var limit int
	c := &cobra.Command{
		Use:   "search-classes <apk>",
		Short: "Filter decompiled classes by package prefix and/or name substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classes, _, err := dexlens.ExtractClassesFromAPK(cmd.Context(), args[0], parallel)
			if err != nil {
				return err
			}
			filter := dex.ClassFilter{ClassName: name}
			if pkg != "" {
				filter.Packages = []string{pkg}
			}
			hits := dexlens.SearchClasses(classes, filter, limit)
			out := cmd.OutOrStdout()
			for _, h := range hits {
				fmt.Fprintln(out, h.ClassName)
			}
			fmt.Fprintf(out, "matched: %d\n", len(hits))
			return nil
		},
	}
	c.Flags().BoolVar(&parallel, "parallel", false, "decompile classes concurrently")
	c.Flags().StringVar(&pkg, "package", "", "required package prefix")
	c.Flags().StringVar(&name, "name", "", "class name substring")
	c.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = unbounded)")
	return c
}

func newSearchMethodsCmd() *cobra.Command {
	var parallel bool
	var pkg, className, methodName, returnType string
	var limit int
	c := &cobra.Command{
		Use:   "search-methods <apk>",
		Short: "Filter decompiled methods across classes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classes, _, err := dexlens.ExtractClassesFromAPK(cmd.Context(), args[0], parallel)
			if err != nil {
				return err
			}
			cf := dex.ClassFilter{ClassName: className}
			if pkg != "" {
				cf.Packages = []string{pkg}
			}
			mf := dex.MethodFilter{MethodName: methodName, ParamCount: -1, ReturnType: returnType}
			hits := dexlens.SearchMethods(classes, cf, mf, limit)
			out := cmd.OutOrStdout()
			for _, h := range hits {
				fmt.Fprintf(out, "%s.%s%s\n", h.Class.ClassName, h.Method.Name, h.Method.Signature)
			}
			fmt.Fprintf(out, "matched: %d\n", len(hits))
			return nil
		},
	}
	c.Flags().BoolVar(&parallel, "parallel", false, "decompile classes concurrently")
	c.Flags().StringVar(&pkg, "package", "", "required package prefix")
	c.Flags().StringVar(&className, "class", "", "class name substring")
	c.Flags().StringVar(&methodName, "name", "", "method name substring")
	c.Flags().StringVar(&returnType, "return-type", "", "exact return type")
	c.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = unbounded)")
	return c
}

func newDecompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompile <apk> <class>",
		Short: "Decompile one named class and print its fields, methods, and reconstructed expressions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := dexlens.DecompileClassFromAPK(args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "class %s extends %s\n", class.ClassName, class.Superclass)
			for _, f := range class.Fields {
				fmt.Fprintf(out, "  field %s\n", f)
			}
			for _, m := range class.Methods {
				fmt.Fprintf(out, "  method %s%s\n", m.Name, m.Signature)
				for _, e := range m.Expressions {
					fmt.Fprintf(out, "    %s\n", e.Text)
				}
			}
			return nil
		},
	}
}

func newCallgraphCmd() *cobra.Command {
	var parallel bool
	c := &cobra.Command{
		Use:   "callgraph <apk>",
		Short: "Build the call graph over every decompiled method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := dexlens.BuildCallGraphFromAPK(cmd.Context(), args[0], parallel)
			if err != nil {
				return err
			}
			stats := graph.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "methods: %d  edges: %d\n", stats.TotalMethods, stats.TotalEdges)
			return nil
		},
	}
	c.Flags().BoolVar(&parallel, "parallel", false, "decompile and build the graph concurrently")
	return c
}

func newFlowsCmd() *cobra.Command {
	var webview, file, network bool
	var maxDepth int
	c := &cobra.Command{
		Use:   "flows <apk>",
		Short: "Find source-to-sink flows from manifest entry points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			var flows []flow.Flow
			var err error
			switch {
			case webview:
				flows, err = dexlens.FindWebviewFlowsFromAPK(ctx, path, maxDepth)
			case file:
				flows, err = dexlens.FindFileFlowsFromAPK(ctx, path, maxDepth)
			case network:
				flows, err = dexlens.FindNetworkFlowsFromAPK(ctx, path, maxDepth)
			default:
				flows, err = dexlens.FindWebviewFlowsFromAPK(ctx, path, maxDepth)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range flows {
				fmt.Fprintf(out, "%s -> %s (%d paths, shortest %d)\n", f.EntryPoint, f.SinkMethod, f.PathCount, f.MinPathLength)
				if shortest, ok := f.ShortestPath(); ok {
					for _, m := range shortest.Methods {
						fmt.Fprintf(out, "  %s\n", m)
					}
				}
			}
			fmt.Fprintf(out, "flows found: %d\n", len(flows))
			return nil
		},
	}
	c.Flags().BoolVar(&webview, "webview", false, "search WebView sinks (default)")
	c.Flags().BoolVar(&file, "file", false, "search file I/O sinks")
	c.Flags().BoolVar(&network, "network", false, "search network sinks")
	c.Flags().IntVar(&maxDepth, "max-depth", flow.DefaultMaxDepth, "maximum call-graph search depth")
	return c
}
