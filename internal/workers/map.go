// Package workers runs index-parallel numeric work on a bounded number of
// goroutines.
package workers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ChunkSize is the number of indices one task evaluates.
const ChunkSize = 64

// Map evaluates f on every index in [0, n) using at most limit goroutines and
// returns the results in index order. The first error cancels the remaining
// chunks and is returned.
func Map(ctx context.Context, n, limit int, f func(i int) (float64, error)) ([]float64, error) {
	out := make([]float64, n)
	err := Range(ctx, n, limit, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := f(i)
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Range splits [0, n) into ChunkSize pieces and calls f on each with at most
// limit in flight.
func Range(ctx context.Context, n, limit int, f func(ctx context.Context, lo, hi int) error) error {
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for lo := 0; lo < n; lo += ChunkSize {
		lo, hi := lo, min(lo+ChunkSize, n)
		g.Go(func() error {
			return f(gctx, lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
