package densities

import (
	"context"
	"math/rand/v2"

	"metabias/domain/core"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// StreamSize is the number of draws taken from one seeded stream in
// SampleParallel. The output depends only on the seed, never on the worker
// count.
const StreamSize = 1024

// StreamRNG returns the generator for stream k of seed. Stream k is a PCG
// keyed by (seed, k).
func StreamRNG(seed uint64, k int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(k)))
}

// StreamSource hands out the k-th generator of a seed.
type StreamSource interface {
	Stream(ctx context.Context, seed uint64, k int) (*rand.Rand, error)
}

type pcgStreams struct{}

func (pcgStreams) Stream(_ context.Context, seed uint64, k int) (*rand.Rand, error) {
	return StreamRNG(seed, k), nil
}

// SampleParallel draws n values from fam, splitting the work into streams of
// StreamSize draws with one independent generator each. At most workers
// streams run at once.
func SampleParallel(ctx context.Context, fam Family, seed uint64, n int, p Params, workers int) ([]float64, error) {
	return SampleStreams(ctx, fam, pcgStreams{}, seed, n, p, workers)
}

// SampleStreams is SampleParallel with generators taken from src.
func SampleStreams(ctx context.Context, fam Family, src StreamSource, seed uint64, n int, p Params, workers int) ([]float64, error) {
	if n < 0 {
		return nil, core.NewInvalidArgumentf("n", "must be non-negative, got %d", n)
	}
	if src == nil {
		return nil, core.NewInvalidArgument("rng", "a stream source is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	out := make([]float64, n)
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)
	for k, lo := 0, 0; lo < n; k, lo = k+1, lo+StreamSize {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		k, lo, hi := k, lo, min(lo+StreamSize, n)
		g.Go(func() error {
			defer sem.Release(1)
			rng, err := src.Stream(gctx, seed, k)
			if err != nil {
				return err
			}
			draws, err := fam.Sample(rng, hi-lo, p)
			if err != nil {
				return err
			}
			copy(out[lo:hi], draws)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
