package densities

import (
	"context"

	"metabias/domain/selection"
	"metabias/internal/workers"
)

// Batch holds broadcastable parameter vectors: every field has length 1 or a
// common N. X is ignored by the parameter-only operations.
type Batch struct {
	X      []float64
	Theta0 []float64
	Tau    []float64
	Sigma  []float64
	Part   selection.Partition
	Eta    selection.Weights
}

type expanded struct {
	n                     int
	x, theta0, tau, sigma []float64
}

func (b Batch) expand(withX bool) (expanded, error) {
	names := []string{"theta0", "tau", "sigma"}
	vs := [][]float64{b.Theta0, b.Tau, b.Sigma}
	if withX {
		names = append(names, "x")
		vs = append(vs, b.X)
	}
	n, out, err := selection.Broadcast(names, vs...)
	if err != nil {
		return expanded{}, err
	}
	e := expanded{n: n, theta0: out[0], tau: out[1], sigma: out[2]}
	if withX {
		e.x = out[3]
	}
	return e, nil
}

func (e expanded) params(i int, b Batch) Params {
	return Params{Theta0: e.theta0[i], Tau: e.tau[i], Sigma: e.sigma[i], Part: b.Part, Eta: b.Eta}
}

// DensityBatch evaluates fam's density (or log density) element-wise.
func DensityBatch(ctx context.Context, fam Family, b Batch, logScale bool, limit int) ([]float64, error) {
	e, err := b.expand(true)
	if err != nil {
		return nil, err
	}
	return workers.Map(ctx, e.n, limit, func(i int) (float64, error) {
		if logScale {
			return fam.LogDensity(e.x[i], e.params(i, b))
		}
		return fam.Density(e.x[i], e.params(i, b))
	})
}

// ExpectationBatch evaluates fam's expectation for each parameter tuple.
func ExpectationBatch(ctx context.Context, fam Family, b Batch, limit int) ([]float64, error) {
	e, err := b.expand(false)
	if err != nil {
		return nil, err
	}
	return workers.Map(ctx, e.n, limit, func(i int) (float64, error) {
		return fam.Expectation(e.params(i, b))
	})
}

// WeightBatch evaluates Weight over broadcast (sigma, x). Theta0 and Tau are
// not used.
func WeightBatch(ctx context.Context, b Batch, limit int) ([]float64, error) {
	n, out, err := selection.Broadcast([]string{"sigma", "x"}, b.Sigma, b.X)
	if err != nil {
		return nil, err
	}
	if err := b.Eta.Validate(b.Part); err != nil {
		return nil, err
	}
	sigma, x := out[0], out[1]
	return workers.Map(ctx, n, limit, func(i int) (float64, error) {
		return Weight(sigma[i], x[i], b.Part, b.Eta)
	})
}

// NormalizerBatch evaluates the quadrature normalizer for each tuple.
func NormalizerBatch(ctx context.Context, cfg Config, b Batch, limit int) ([]float64, error) {
	e, err := b.expand(false)
	if err != nil {
		return nil, err
	}
	return workers.Map(ctx, e.n, limit, func(i int) (float64, error) {
		return Normalizer(cfg.Integrator, e.sigma[i], e.theta0[i], e.tau[i], b.Part, b.Eta)
	})
}
