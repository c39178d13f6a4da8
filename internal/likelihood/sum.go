package likelihood

import (
	"context"
	"math"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/workers"

	"gonum.org/v1/gonum/floats"
)

// Studies is a data set of effect estimates yi with sampling variances vi.
type Studies struct {
	Y []float64
	V []float64
}

// Validate requires equal, non-zero lengths, finite yi and positive finite vi.
func (s Studies) Validate() error {
	if len(s.Y) == 0 {
		return core.NewInvalidArgument("yi", "at least one study is required")
	}
	if len(s.Y) != len(s.V) {
		return core.NewInvalidArgumentf("vi", "length %d does not match yi length %d", len(s.V), len(s.Y))
	}
	for i := range s.Y {
		if math.IsNaN(s.Y[i]) || math.IsInf(s.Y[i], 0) {
			return core.NewInvalidArgumentf("yi", "entry %d = %v must be finite", i, s.Y[i])
		}
		if !(s.V[i] > 0) || math.IsInf(s.V[i], 1) {
			return core.NewInvalidArgumentf("vi", "entry %d = %v must be positive and finite", i, s.V[i])
		}
	}
	return nil
}

// Sigmas returns sqrt(vi).
func (s Studies) Sigmas() []float64 {
	out := make([]float64, len(s.V))
	for i, v := range s.V {
		out[i] = math.Sqrt(v)
	}
	return out
}

// Pointwise returns the kernel's log-likelihood for every study. theta holds
// one latent effect per study, or a single value shared by all.
func Pointwise(ctx context.Context, k Kernel, s Studies, theta []float64, eta selection.Weights, limit int) ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := k.Validate(eta); err != nil {
		return nil, err
	}
	n, th, err := selection.Broadcast([]string{"yi", "theta"}, s.Y, theta)
	if err != nil {
		return nil, err
	}
	if n != len(s.Y) {
		return nil, core.NewInvalidArgumentf("theta", "length %d exceeds the %d studies", len(theta), len(s.Y))
	}
	for i, t := range th[1] {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, core.NewInvalidArgumentf("theta", "entry %d = %v must be finite", i, t)
		}
	}
	sigma := s.Sigmas()
	return workers.Map(ctx, len(s.Y), limit, func(i int) (float64, error) {
		return k.LogLik(s.Y[i], th[1][i], sigma[i], eta), nil
	})
}

// Sum is the total log-likelihood of the data set.
func Sum(ctx context.Context, k Kernel, s Studies, theta []float64, eta selection.Weights, limit int) (float64, error) {
	ll, err := Pointwise(ctx, k, s, theta, eta, limit)
	if err != nil {
		return 0, err
	}
	return floats.Sum(ll), nil
}
