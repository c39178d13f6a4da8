package selection

import (
	"math"
	"sort"

	"metabias/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultCutoffs are the conventional two-sided significance levels 2.5% and 5%.
var DefaultCutoffs = []float64{0, 0.025, 0.05, 1}

// Partition is a validated set of p-value cutoffs alpha[0..k-1] with
// alpha[0] = 0, alpha[k-1] = 1 and strictly increasing entries. It splits
// [0, 1] into k-1 significance bins. The zero value is not usable.
type Partition struct {
	cutoffs []float64
}

// NewPartition validates alpha as given. Unsorted input is rejected.
func NewPartition(alpha []float64) (Partition, error) {
	if len(alpha) < 2 {
		return Partition{}, core.NewInvalidArgumentf("alpha", "need at least 2 cutoffs, got %d", len(alpha))
	}
	for i, a := range alpha {
		if math.IsNaN(a) || a < 0 || a > 1 {
			return Partition{}, core.NewInvalidArgumentf("alpha", "cutoff %d = %v is outside [0, 1]", i, a)
		}
		if i > 0 && !(a > alpha[i-1]) {
			return Partition{}, core.NewInvalidArgumentf("alpha", "cutoffs must be strictly increasing (alpha[%d]=%v, alpha[%d]=%v)", i-1, alpha[i-1], i, a)
		}
	}
	if alpha[0] != 0 {
		return Partition{}, core.NewInvalidArgumentf("alpha", "first cutoff must be 0, got %v", alpha[0])
	}
	if alpha[len(alpha)-1] != 1 {
		return Partition{}, core.NewInvalidArgumentf("alpha", "last cutoff must be 1, got %v", alpha[len(alpha)-1])
	}

	cutoffs := make([]float64, len(alpha))
	copy(cutoffs, alpha)
	return Partition{cutoffs: cutoffs}, nil
}

// SortedPartition sorts a copy of alpha before validating it. This is the
// entry point for user-supplied cutoffs.
func SortedPartition(alpha []float64) (Partition, error) {
	sorted := make([]float64, len(alpha))
	copy(sorted, alpha)
	sort.Float64s(sorted)
	return NewPartition(sorted)
}

// MustPartition panics on invalid cutoffs. For package-level fixtures only.
func MustPartition(alpha []float64) Partition {
	p, err := NewPartition(alpha)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPartition returns the partition built from DefaultCutoffs.
func DefaultPartition() Partition {
	return MustPartition(DefaultCutoffs)
}

// Cutoffs returns a copy of alpha.
func (p Partition) Cutoffs() []float64 {
	out := make([]float64, len(p.cutoffs))
	copy(out, p.cutoffs)
	return out
}

// Len is k, the number of cutoffs.
func (p Partition) Len() int { return len(p.cutoffs) }

// Bins is k-1.
func (p Partition) Bins() int { return len(p.cutoffs) - 1 }

// IsZero reports whether p was never constructed.
func (p Partition) IsZero() bool { return len(p.cutoffs) == 0 }

// Bin returns j with alpha[j] <= pval < alpha[j+1]; pval = 1 belongs to the
// last bin. Out-of-range values are clamped into the first or last bin.
func (p Partition) Bin(pval float64) int {
	last := len(p.cutoffs) - 2
	if !(pval < 1) {
		return last
	}
	// First index whose cutoff exceeds pval; the bin starts one before it.
	j := sort.SearchFloat64s(p.cutoffs, pval)
	if j < len(p.cutoffs) && p.cutoffs[j] == pval {
		return j
	}
	j--
	if j < 0 {
		return 0
	}
	if j > last {
		return last
	}
	return j
}

// PValue is the two-sided p-value 2·(1 - Φ(|x|/sigma)), computed through the
// lower tail so it stays accurate for large |x|.
func PValue(x, sigma float64) float64 {
	return 2 * distuv.UnitNormal.CDF(-math.Abs(x)/sigma)
}

// Thresholds returns c_j = sigma·Φ⁻¹(1 - alpha[j]/2) for every cutoff, so
// c_0 = +Inf and c_{k-1} = 0. They are computed as -sigma·Φ⁻¹(alpha[j]/2),
// which keeps precision for tiny alpha.
func (p Partition) Thresholds(sigma float64) []float64 {
	c := make([]float64, len(p.cutoffs))
	for j, a := range p.cutoffs {
		switch a {
		case 0:
			c[j] = math.Inf(1)
		case 1:
			c[j] = 0
		default:
			c[j] = -sigma * distuv.UnitNormal.Quantile(a/2)
		}
	}
	return c
}

// Interval is a closed range on the effect-size axis. Endpoints may be infinite.
type Interval struct {
	Lo float64
	Hi float64
}

// Region is the effect-size set of one significance bin: {x : c_{j+1} < |x| <= c_j}.
// It has one interval when the bin touches p = 1 and two mirrored ones otherwise.
type Region []Interval

// Regions returns the effect-size region of each bin for sampling noise sigma.
func (p Partition) Regions(sigma float64) []Region {
	c := p.Thresholds(sigma)
	regions := make([]Region, p.Bins())
	for j := range regions {
		outer, inner := c[j], c[j+1]
		if inner == 0 {
			regions[j] = Region{{Lo: -outer, Hi: outer}}
			continue
		}
		regions[j] = Region{
			{Lo: -outer, Hi: -inner},
			{Lo: inner, Hi: outer},
		}
	}
	return regions
}

// Breakpoints returns the finite jump points ±c_j of the selection weight,
// sorted ascending.
func (p Partition) Breakpoints(sigma float64) []float64 {
	c := p.Thresholds(sigma)
	out := make([]float64, 0, 2*len(c))
	for _, v := range c {
		switch {
		case math.IsInf(v, 0):
		case v == 0:
			out = append(out, 0)
		default:
			out = append(out, -v, v)
		}
	}
	sort.Float64s(out)
	return out
}
