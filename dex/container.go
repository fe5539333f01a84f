/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mixL1nk/dexlens/internal/dexlog"
)

// Stats summarizes one batch decompilation pass.
type Stats struct {
	TotalClasses   int
	Decompiled     int
	SkippedClasses int
}

// ExtractClasses decompiles every class_def sequentially. A per-class
// failure is logged and counted in Stats.SkippedClasses rather than
// aborting the batch; real-world APKs carry obfuscated and occasionally
// malformed classes, and one bad class must not poison a full scan.
func ExtractClasses(p *Parser) ([]DecompiledClass, Stats, error) {
	stats := Stats{TotalClasses: p.ClassCount()}
	out := make([]DecompiledClass, 0, stats.TotalClasses)

	for i := 0; i < stats.TotalClasses; i++ {
		classDef, err := p.ClassDef(i)
		if err != nil {
			return nil, stats, fmt.Errorf("dex.ExtractClasses: %w", err)
		}
		dc, err := Decompile(p, classDef)
		if err != nil {
			dexlog.Warn(fmt.Sprintf("dex.ExtractClasses: skipping class_def %d: %v", i, err))
			stats.SkippedClasses++
			continue
		}
		out = append(out, *dc)
	}
	stats.Decompiled = len(out)

	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out, stats, nil
}

// ExtractClassesParallel is the concurrent counterpart: an errgroup
// bounded to GOMAXPROCS. The shared Parser is read-only after Open, so no
// locking is required around it; each goroutine owns its own result slot.
func ExtractClassesParallel(ctx context.Context, p *Parser) ([]DecompiledClass, Stats, error) {
	total := p.ClassCount()
	results := make([]*DecompiledClass, total)
	skipped := make([]bool, total)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			classDef, err := p.ClassDef(i)
			if err != nil {
				return fmt.Errorf("dex.ExtractClassesParallel: %w", err)
			}
			dc, err := Decompile(p, classDef)
			if err != nil {
				dexlog.Warn(fmt.Sprintf("dex.ExtractClassesParallel: skipping class_def %d: %v", i, err))
				skipped[i] = true
				return nil
			}
			results[i] = dc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{TotalClasses: total}
	out := make([]DecompiledClass, 0, total)
	for i, dc := range results {
		if skipped[i] {
			stats.SkippedClasses++
			continue
		}
		out = append(out, *dc)
	}
	stats.Decompiled = len(out)

	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out, stats, nil
}
