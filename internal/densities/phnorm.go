package densities

import (
	"math"
	"math/rand/v2"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/numeric"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// PHackingMixture is the p-hacking family: a mixture over significance bins
// whose j-th component is N(theta0, tau) truncated to bin j's effect-size
// region, with mixing proportions eta.
type PHackingMixture struct {
	cfg Config
}

func NewPHackingMixture(cfg Config) PHackingMixture {
	return PHackingMixture{cfg: cfg}
}

func (PHackingMixture) Name() string { return "phma" }

// components holds the per-bin quantities every operation needs.
type components struct {
	regions []selection.Region
	logZ    []float64 // log P(θ ∈ region j) under N(theta0, tau)
}

func (m PHackingMixture) prepare(p Params) (components, error) {
	if err := p.Validate(); err != nil {
		return components{}, err
	}
	if err := p.Eta.ValidateSimplex(p.Part, m.cfg.SimplexTol); err != nil {
		return components{}, err
	}
	regions := p.Part.Regions(p.Sigma)
	return components{
		regions: regions,
		logZ:    BinLogProbs(p.Theta0, p.Tau, regions, nil),
	}, nil
}

// Density is Σ_j eta_j · TruncNormal(x; theta0, tau, region j).
func (m PHackingMixture) Density(x float64, p Params) (float64, error) {
	ld, err := m.LogDensity(x, p)
	if err != nil {
		return 0, err
	}
	return math.Exp(ld), nil
}

// LogDensity combines the weighted component log densities with
// log-sum-exp. Membership follows the same half-open bins as Weight, so a
// threshold point belongs to exactly one component.
func (m PHackingMixture) LogDensity(x float64, p Params) (float64, error) {
	if math.IsNaN(x) {
		return 0, core.NewInvalidArgument("x", "must not be NaN")
	}
	c, err := m.prepare(p)
	if err != nil {
		return 0, err
	}
	own := p.Part.Bin(selection.PValue(x, p.Sigma))
	base := numeric.LogPDF((x-p.Theta0)/p.Tau) - math.Log(p.Tau)

	terms := make([]float64, len(c.logZ))
	for j := range terms {
		if j != own || p.Eta[j] == 0 {
			terms[j] = math.Inf(-1)
			continue
		}
		terms[j] = math.Log(p.Eta[j]) + base - c.logZ[j]
	}
	return floats.LogSumExp(terms), nil
}

// Expectation is Σ_j eta_j · E[θ | θ ∈ region j] in closed form. Each region
// mean is the probability-weighted mean of its truncated pieces, and every
// piece uses log-space tail probabilities.
func (m PHackingMixture) Expectation(p Params) (float64, error) {
	c, err := m.prepare(p)
	if err != nil {
		return 0, err
	}
	var mean float64
	for j, r := range c.regions {
		if p.Eta[j] == 0 {
			continue
		}
		mean += p.Eta[j] * regionMean(p.Theta0, p.Tau, r, c.logZ[j])
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0, core.NewInstabilityError(math.Inf(-1), math.Inf(1), 0, math.NaN())
	}
	return mean, nil
}

func regionMean(mu, sd float64, r selection.Region, logZ float64) float64 {
	var m float64
	for _, iv := range r {
		lp := numeric.LogIntervalProb((iv.Lo-mu)/sd, (iv.Hi-mu)/sd)
		if math.IsInf(lp, -1) {
			continue
		}
		m += math.Exp(lp-logZ) * numeric.TruncatedMean(mu, sd, iv.Lo, iv.Hi)
	}
	return m
}

// Sample draws a bin from eta, a side of the bin's region in proportion to its
// probability, and then a value from the truncated normal by inversion.
func (m PHackingMixture) Sample(rng *rand.Rand, n int, p Params) ([]float64, error) {
	if err := checkSampleArgs(rng, n, p); err != nil {
		return nil, err
	}
	c, err := m.prepare(p)
	if err != nil {
		return nil, err
	}
	bins := distuv.NewCategorical(p.Eta, rng)
	unif := distuv.Uniform{Min: 0, Max: 1, Src: rng}

	out := make([]float64, n)
	for i := range out {
		j := int(bins.Rand())
		iv := pickInterval(p.Theta0, p.Tau, c.regions[j], c.logZ[j], unif.Rand())
		a, b := (iv.Lo-p.Theta0)/p.Tau, (iv.Hi-p.Theta0)/p.Tau
		out[i] = p.Theta0 + p.Tau*truncatedStandard(a, b, openUnit(unif))
	}
	return out, nil
}

func pickInterval(mu, sd float64, r selection.Region, logZ, u float64) selection.Interval {
	for _, iv := range r[:len(r)-1] {
		share := math.Exp(numeric.LogIntervalProb((iv.Lo-mu)/sd, (iv.Hi-mu)/sd) - logZ)
		if u < share {
			return iv
		}
		u -= share
	}
	return r[len(r)-1]
}

// truncatedStandard maps u ∈ (0, 1) to a standard normal truncated to (a, b).
// Intervals in the upper half are mirrored into the lower tail, where Φ keeps
// full relative precision. If the target quantile underflows the draw is
// clamped to the endpoint closest to the mode.
func truncatedStandard(a, b, u float64) float64 {
	if a >= 0 {
		return -truncatedStandard(-b, -a, 1-u)
	}
	if b > 0 {
		// Straddles zero: no precision problem on either end.
		fa, fb := numeric.CDF(a), numeric.CDF(b)
		return clamp(numeric.Quantile(fa+u*(fb-fa)), a, b)
	}
	la, lb := numeric.LogCDF(a), numeric.LogCDF(b)
	lq := numeric.LogAddExp(la+math.Log1p(-u), lb+math.Log(u))
	q := math.Exp(lq)
	if q == 0 {
		return b
	}
	return clamp(numeric.Quantile(q), a, b)
}

// openUnit draws from (0, 1); an exact 0 would map to an infinite quantile.
func openUnit(unif distuv.Uniform) float64 {
	u := unif.Rand()
	for u == 0 {
		u = unif.Rand()
	}
	return u
}

func clamp(x, lo, hi float64) float64 {
	switch {
	case math.IsNaN(x):
		return hi
	case x < lo:
		return lo
	case x > hi:
		return hi
	}
	return x
}
