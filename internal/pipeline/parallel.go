package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/vertexfit/internal/lineio"
	"github.com/banshee-data/vertexfit/internal/vertex"
)

// accumulateGroup folds lines into a fresh candidate.
func accumulateGroup(lines []vertex.Line, weigh vertex.WeightFunc) *vertex.VertexCandidate {
	c := vertex.NewVertexCandidate(weigh)
	for _, l := range lines {
		c.Add(l)
	}
	return c
}

// numGroups returns how many GroupSize work groups cover n lines.
func numGroups(n int) int {
	return (n + vertex.GroupSize - 1) / vertex.GroupSize
}

func groupBounds(g, n int) (lo, hi int) {
	lo = g * vertex.GroupSize
	return lo, min(lo+vertex.GroupSize, n)
}

// accumulateGroups is the sequential rendition of AccumulateParallel.
func accumulateGroups(lines []vertex.Line, weigh vertex.WeightFunc) *vertex.VertexCandidate {
	merged := vertex.NewVertexCandidate(weigh)
	for g := 0; g < numGroups(len(lines)); g++ {
		lo, hi := groupBounds(g, len(lines))
		merged.Merge(accumulateGroup(lines[lo:hi], weigh))
	}
	return merged
}

// AccumulateParallel folds lines into one candidate using up to lanes
// goroutines. Each work group of GroupSize lines is accumulated into its
// own candidate; after every lane has finished the partial candidates are
// merged in group order. lanes <= 0 places no limit.
func AccumulateParallel(ctx context.Context, lines []vertex.Line, weigh vertex.WeightFunc, lanes int) (*vertex.VertexCandidate, error) {
	partial := make([]*vertex.VertexCandidate, numGroups(len(lines)))

	g, ctx := errgroup.WithContext(ctx)
	if lanes > 0 {
		g.SetLimit(lanes)
	}
	for i := range partial {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo, hi := groupBounds(i, len(lines))
			partial[i] = accumulateGroup(lines[lo:hi], weigh)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("accumulate %d lines: %w", len(lines), err)
	}

	merged := vertex.NewVertexCandidate(weigh)
	for _, p := range partial {
		merged.Merge(p)
	}
	return merged, nil
}

// FitClusters fits every cluster concurrently, bounded by opts.Workers.
// Results are returned in input order. When there are fewer clusters than
// workers, the spare workers become lanes inside each cluster.
func FitClusters(ctx context.Context, clusters []lineio.Cluster, opts Options) ([]Result, error) {
	workers := opts.workers()
	lanes := 1
	if len(clusters) > 0 && len(clusters) < workers {
		lanes = workers / len(clusters)
	}

	results := make([]Result, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cl := range clusters {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := fitOne(gctx, cl, opts, lanes)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", cl.ID, err)
			}
			results[i] = res
			tracef("cluster %s: lines=%d status=%s", res.ClusterID, res.Count, res.Status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
		if r.Status == StatusSingular || r.Status == StatusNonFinite {
			opsf("cluster %s: %s (%d lines) %s", r.ClusterID, r.Status, r.Count, r.Error)
		}
	}
	diagf("fitted %d clusters with %d workers: fitted=%d underdetermined=%d singular=%d non_finite=%d",
		len(results), workers, counts[StatusFitted], counts[StatusUnderdetermined],
		counts[StatusSingular], counts[StatusNonFinite])
	return results, nil
}

func fitOne(ctx context.Context, cl lineio.Cluster, opts Options, lanes int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if lanes < 2 || len(cl.Lines) <= vertex.GroupSize {
		return FitCluster(cl.ID, cl.Lines, opts), nil
	}
	c, err := AccumulateParallel(ctx, cl.Lines, opts.Weighting, lanes)
	if err != nil {
		return Result{}, err
	}
	return solve(cl.ID, c, cl.Lines, opts), nil
}
