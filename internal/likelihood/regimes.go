package likelihood

import (
	"math"

	"metabias/domain/selection"
	"metabias/internal/numeric"
)

// PublicationSelection scores y under selective publication:
//
//	log w(y) + log φ_σ(y - θ) - log Σ_j eta_j P(Y ∈ bin j | θ, σ)
//
// The normalizer integrates the selection weight over the sampling
// distribution of y given θ, so it is a weighted sum of normal interval
// probabilities.
type PublicationSelection struct{ binned }

func (PublicationSelection) Regime() selection.Regime { return selection.RegimePublicationSelection }

func (k PublicationSelection) Validate(eta selection.Weights) error { return k.validate(eta) }

func (k PublicationSelection) logNormalizer(m float64, eta selection.Weights) float64 {
	lz := math.Inf(-1)
	for j := 0; j < k.bins(); j++ {
		if eta[j] == 0 {
			continue
		}
		lz = numeric.LogAddExp(lz, math.Log(eta[j])+k.logProb(j, m))
	}
	return lz
}

func (k PublicationSelection) LogLik(y, theta, sigma float64, eta selection.Weights) float64 {
	own := k.bin(y, sigma)
	ratio := k.logRatio(y, theta/sigma, sigma, func(j int) float64 { return math.Log(eta[j]) })
	return math.Log(eta[own]) - math.Log(sigma) + ratio
}

func (k PublicationSelection) GradTheta(y, theta, sigma float64, eta selection.Weights) float64 {
	m := theta / sigma
	lz := k.logNormalizer(m, eta)
	var d float64
	for j := 0; j < k.bins(); j++ {
		if eta[j] == 0 {
			continue
		}
		lp := k.logProb(j, m)
		d += math.Exp(math.Log(eta[j])+lp-lz) * k.dLogProb(j, m, lp)
	}
	return scoreNormal(y, theta, sigma) - d/sigma
}

func (k PublicationSelection) GradEta(y, theta, sigma float64, eta selection.Weights, dst []float64) []float64 {
	dst = zeroed(dst, k.bins())
	m := theta / sigma
	lz := k.logNormalizer(m, eta)
	for j := range dst {
		dst[j] = -math.Exp(k.logProb(j, m) - lz)
	}
	own := k.bin(y, sigma)
	dst[own] += 1 / eta[own]
	return dst
}

// PHacking scores y under the truncated-normal mixture. The mixture is
//
//	log Σ_j eta_j · 1[y ∈ bin j] · φ_σ(y - θ) / P(Y ∈ bin j | θ, σ)
//
// and since the bins partition the line only the component owning y is
// non-zero there.
type PHacking struct {
	binned
	tol float64
}

func (PHacking) Regime() selection.Regime { return selection.RegimePHacking }

func (k PHacking) Validate(eta selection.Weights) error {
	if err := k.validate(eta); err != nil {
		return err
	}
	return eta.ValidateSimplex(k.part, k.tol)
}

func (k PHacking) LogLik(y, theta, sigma float64, eta selection.Weights) float64 {
	own := k.bin(y, sigma)
	ratio := k.logRatio(y, theta/sigma, sigma, func(j int) float64 {
		if j != own {
			return math.Inf(-1)
		}
		return 0
	})
	return math.Log(eta[own]) - math.Log(sigma) + ratio
}

func (k PHacking) GradTheta(y, theta, sigma float64, eta selection.Weights) float64 {
	own := k.bin(y, sigma)
	m := theta / sigma
	return scoreNormal(y, theta, sigma) - k.dLogProb(own, m, k.logProb(own, m))/sigma
}

// GradEta is the unconstrained gradient; the simplex constraint belongs to
// the prior on eta.
func (k PHacking) GradEta(y, theta, sigma float64, eta selection.Weights, dst []float64) []float64 {
	dst = zeroed(dst, k.bins())
	own := k.bin(y, sigma)
	dst[own] = 1 / eta[own]
	return dst
}

// Uncorrected is the plain random-effects likelihood log φ_σ(y - θ).
type Uncorrected struct {
	part selection.Partition
}

func (Uncorrected) Regime() selection.Regime { return selection.RegimeNone }

func (k Uncorrected) Partition() selection.Partition { return k.part }

// Validate accepts any eta, including none.
func (Uncorrected) Validate(selection.Weights) error { return nil }

func (Uncorrected) LogLik(y, theta, sigma float64, _ selection.Weights) float64 {
	return logNormal(y, theta, sigma)
}

func (Uncorrected) GradTheta(y, theta, sigma float64, _ selection.Weights) float64 {
	return scoreNormal(y, theta, sigma)
}

func (k Uncorrected) GradEta(_, _, _ float64, _ selection.Weights, dst []float64) []float64 {
	return zeroed(dst, k.part.Bins())
}
