package numeric

import (
	"math"
	"sort"

	"metabias/domain/core"

	"gonum.org/v1/gonum/integrate/quad"
)

// Integrator approximates integrals over the real line. The caller supplies
// the points where the integrand is not smooth; every piece between two
// consecutive points is integrated with Gauss-Legendre at doubling orders
// until two successive estimates agree. Infinite end pieces use the
// change of variables built into quad.Fixed.
type Integrator struct {
	AbsTol    float64
	RelTol    float64
	MinPoints int
	MaxPoints int
}

// DefaultIntegrator returns tolerances of 1e-10 absolute and 1e-8 relative.
func DefaultIntegrator() Integrator {
	return Integrator{
		AbsTol:    1e-10,
		RelTol:    1e-8,
		MinPoints: 16,
		MaxPoints: 4096,
	}
}

// Validate rejects unusable settings.
func (in Integrator) Validate() error {
	if !(in.AbsTol > 0) && !(in.RelTol > 0) {
		return core.NewInvalidArgument("integrator", "at least one of AbsTol and RelTol must be positive")
	}
	if in.MinPoints < 1 {
		return core.NewInvalidArgumentf("integrator", "MinPoints must be positive, got %d", in.MinPoints)
	}
	if in.MaxPoints < 2*in.MinPoints {
		return core.NewInvalidArgumentf("integrator", "MaxPoints (%d) must allow at least one refinement of MinPoints (%d)", in.MaxPoints, in.MinPoints)
	}
	return nil
}

// Integrate returns ∫ f over (-Inf, +Inf), split at breaks.
func (in Integrator) Integrate(f func(float64) float64, breaks []float64) (float64, error) {
	return in.IntegrateRange(f, math.Inf(-1), math.Inf(1), breaks)
}

// IntegrateRange returns ∫ f over (lo, hi), split at the breaks that fall
// strictly inside the range.
func (in Integrator) IntegrateRange(f func(float64) float64, lo, hi float64, breaks []float64) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return 0, core.NewInvalidArgumentf("range", "invalid integration range [%g, %g]", lo, hi)
	}
	points := segmentPoints(lo, hi, breaks)

	var total float64
	for i := 0; i+1 < len(points); i++ {
		v, err := in.piece(f, points[i], points[i+1])
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

func (in Integrator) piece(f func(float64) float64, lo, hi float64) (float64, error) {
	n := in.MinPoints
	prev := quad.Fixed(f, lo, hi, n, nil, 0)
	delta := math.Inf(1)
	for 2*n <= in.MaxPoints {
		n *= 2
		cur := quad.Fixed(f, lo, hi, n, nil, 0)
		if math.IsNaN(cur) || math.IsInf(cur, 0) {
			return 0, core.NewInstabilityError(lo, hi, n, math.NaN())
		}
		delta = math.Abs(cur - prev)
		if delta <= math.Max(in.AbsTol, in.RelTol*math.Abs(cur)) {
			return cur, nil
		}
		prev = cur
	}
	return 0, core.NewInstabilityError(lo, hi, n, delta)
}

// segmentPoints returns lo, the sorted distinct breaks strictly inside
// (lo, hi), and hi.
func segmentPoints(lo, hi float64, breaks []float64) []float64 {
	inner := make([]float64, 0, len(breaks))
	for _, b := range breaks {
		if b > lo && b < hi && !math.IsNaN(b) {
			inner = append(inner, b)
		}
	}
	sort.Float64s(inner)

	points := make([]float64, 0, len(inner)+2)
	points = append(points, lo)
	for _, b := range inner {
		if b != points[len(points)-1] {
			points = append(points, b)
		}
	}
	if hi != points[len(points)-1] {
		points = append(points, hi)
	}
	return points
}
