package densities

import (
	"math"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/numeric"

	"gonum.org/v1/gonum/floats"
)

// zAnchors are extra split points, in standard units of the integration
// variable, that keep every quadrature piece short near the bulk of the mass.
var zAnchors = []float64{-8, -4, 0, 4, 8}

// Weight returns eta[j] for the bin j that the two-sided p-value of x falls in.
func Weight(sigma, x float64, part selection.Partition, eta selection.Weights) (float64, error) {
	if err := checkScale("sigma", sigma); err != nil {
		return 0, err
	}
	if math.IsNaN(x) {
		return 0, core.NewInvalidArgument("x", "must not be NaN")
	}
	if err := eta.Validate(part); err != nil {
		return 0, err
	}
	return weightAt(sigma, x, part, eta), nil
}

func weightAt(sigma, x float64, part selection.Partition, eta selection.Weights) float64 {
	return eta[part.Bin(selection.PValue(x, sigma))]
}

// Normalizer integrates weight(sigma, θ) against N(θ; theta0, tau) over the
// real line with adaptive quadrature, split at the jump points of the weight.
func Normalizer(in numeric.Integrator, sigma, theta0, tau float64, part selection.Partition, eta selection.Weights) (float64, error) {
	if err := checkNormalizerArgs(sigma, theta0, tau, part, eta); err != nil {
		return 0, err
	}
	z, err := in.Integrate(func(t float64) float64 {
		return weightAt(sigma, theta0+tau*t, part, eta) * numeric.PDF(t)
	}, standardBreaks(part.Breakpoints(sigma), theta0, tau))
	if err != nil {
		return 0, err
	}
	if !(z > 0) {
		return 0, core.NewDomainError("normalizer has no mass under N(theta0, tau)")
	}
	return z, nil
}

// ClosedFormNormalizer is Σ_j eta_j · P(θ ∈ bin j) for θ ~ N(theta0, tau).
// It equals Normalizer up to quadrature error.
func ClosedFormNormalizer(sigma, theta0, tau float64, part selection.Partition, eta selection.Weights) (float64, error) {
	lz, err := LogClosedFormNormalizer(sigma, theta0, tau, part, eta)
	if err != nil {
		return 0, err
	}
	return math.Exp(lz), nil
}

// LogClosedFormNormalizer is the log of ClosedFormNormalizer, computed with
// log-space tail probabilities.
func LogClosedFormNormalizer(sigma, theta0, tau float64, part selection.Partition, eta selection.Weights) (float64, error) {
	if err := checkNormalizerArgs(sigma, theta0, tau, part, eta); err != nil {
		return 0, err
	}
	terms := BinLogProbs(theta0, tau, part.Regions(sigma), nil)
	for j := range terms {
		terms[j] += math.Log(eta[j])
	}
	lz := floats.LogSumExp(terms)
	if math.IsInf(lz, -1) {
		return 0, core.NewDomainError("normalizer has no mass under N(theta0, tau)")
	}
	return lz, nil
}

// BinLogProbs writes log P(X ∈ region j) for X ~ N(mean, sd) into dst and
// returns it. dst is allocated when it is too short.
func BinLogProbs(mean, sd float64, regions []selection.Region, dst []float64) []float64 {
	if cap(dst) < len(regions) {
		dst = make([]float64, len(regions))
	}
	dst = dst[:len(regions)]
	for j, r := range regions {
		dst[j] = RegionLogProb(mean, sd, r)
	}
	return dst
}

// RegionLogProb is log P(X ∈ r) for X ~ N(mean, sd).
func RegionLogProb(mean, sd float64, r selection.Region) float64 {
	lp := math.Inf(-1)
	for _, iv := range r {
		lp = numeric.LogAddExp(lp, numeric.LogIntervalProb((iv.Lo-mean)/sd, (iv.Hi-mean)/sd))
	}
	return lp
}

func checkNormalizerArgs(sigma, theta0, tau float64, part selection.Partition, eta selection.Weights) error {
	if err := checkScale("sigma", sigma); err != nil {
		return err
	}
	if math.IsNaN(theta0) || math.IsInf(theta0, 0) {
		return core.NewInvalidArgumentf("theta0", "must be finite, got %v", theta0)
	}
	if !(tau > 0) || math.IsInf(tau, 1) {
		return core.NewDomainError("tau must be positive and finite")
	}
	if err := eta.Validate(part); err != nil {
		return err
	}
	if !eta.HasMass() {
		return core.NewDomainError("every eta is zero")
	}
	return nil
}

func checkScale(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return core.NewInvalidArgumentf(name, "must be positive and finite, got %v", v)
	}
	return nil
}

// standardBreaks maps jump points on the θ axis to z = (θ - theta0)/tau and
// appends the fixed anchors.
func standardBreaks(breaks []float64, theta0, tau float64) []float64 {
	out := make([]float64, 0, len(breaks)+len(zAnchors))
	for _, b := range breaks {
		out = append(out, (b-theta0)/tau)
	}
	return append(out, zAnchors...)
}
