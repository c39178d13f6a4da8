package selection

import (
	"math"

	"metabias/domain/core"
)

// SimplexTolerance is the default slack allowed on Σ eta = 1.
const SimplexTolerance = 1e-8

// Weights is the per-bin vector eta. Under publication selection the entries
// are relative publication probabilities; under p-hacking they are mixture
// proportions.
type Weights []float64

// Validate checks eta against the partition: one finite, non-negative entry
// per bin.
func (w Weights) Validate(p Partition) error {
	if p.IsZero() {
		return core.NewInvalidArgument("alpha", "partition is not initialised")
	}
	if len(w) != p.Bins() {
		return core.NewInvalidArgumentf("eta", "length %d does not match %d bins (len(alpha)-1)", len(w), p.Bins())
	}
	for j, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return core.NewInvalidArgumentf("eta", "entry %d = %v must be finite and non-negative", j, v)
		}
	}
	return nil
}

// ValidateSimplex additionally requires the weights to sum to 1 within tol.
// Weights are never renormalised silently.
func (w Weights) ValidateSimplex(p Partition, tol float64) error {
	if err := w.Validate(p); err != nil {
		return err
	}
	if sum := w.Sum(); math.Abs(sum-1) > tol {
		return core.NewInvalidArgumentf("eta", "mixture weights must sum to 1, got %.12g", sum)
	}
	return nil
}

func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func (w Weights) Max() float64 {
	m := 0.0
	for _, v := range w {
		if v > m {
			m = v
		}
	}
	return m
}

// HasMass reports whether at least one entry is strictly positive.
func (w Weights) HasMass() bool {
	return w.Max() > 0
}

// IsUniform reports whether all entries are equal.
func (w Weights) IsUniform() bool {
	if len(w) == 0 {
		return true
	}
	for _, v := range w[1:] {
		if v != w[0] {
			return false
		}
	}
	return true
}

// Logs returns log(eta_j); zero weights map to -Inf.
func (w Weights) Logs() []float64 {
	out := make([]float64, len(w))
	for j, v := range w {
		out[j] = math.Log(v)
	}
	return out
}
