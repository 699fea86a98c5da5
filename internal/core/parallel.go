package core

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor runs fn for every index in [0, n) on up to GOMAXPROCS goroutines and
// returns the first error. Each index is visited exactly once.
func ParallelFor(ctx context.Context, n int, fn func(ctx context.Context, idx int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			return fn(ctx, idx)
		})
	}
	return g.Wait()
}
