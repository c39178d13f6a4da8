package likelihood

import (
	"math"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/numeric"
)

// Kernel is the per-study log-likelihood of an observed effect y with
// sampling sd sigma, given the study's latent true effect theta. It is the
// closed-form counterpart of the density families: no quadrature and no
// sampling. LogLik stays finite for every finite theta.
type Kernel interface {
	Regime() selection.Regime
	Partition() selection.Partition
	// Validate checks eta once, before it is used in LogLik.
	Validate(eta selection.Weights) error
	LogLik(y, theta, sigma float64, eta selection.Weights) float64
	// GradTheta is d LogLik / d theta.
	GradTheta(y, theta, sigma float64, eta selection.Weights) float64
	// GradEta writes d LogLik / d eta_j into dst.
	GradEta(y, theta, sigma float64, eta selection.Weights, dst []float64) []float64
}

// ForRegime resolves the kernel for a correction regime. simplexTol is the
// slack PHacking allows on Σ eta = 1. It is called once per fit; the returned
// kernel is safe for concurrent use.
func ForRegime(r selection.Regime, part selection.Partition, simplexTol float64) (Kernel, error) {
	if part.IsZero() {
		return nil, core.NewInvalidArgument("alpha", "partition is required")
	}
	if !(simplexTol >= 0) {
		return nil, core.NewInvalidArgumentf("simplex_tol", "must be non-negative, got %v", simplexTol)
	}
	switch r {
	case selection.RegimePublicationSelection:
		return PublicationSelection{newBinned(part)}, nil
	case selection.RegimePHacking:
		return PHacking{binned: newBinned(part), tol: simplexTol}, nil
	case selection.RegimeNone:
		return Uncorrected{part: part}, nil
	}
	return nil, core.NewInvalidArgumentf("bias", "unsupported regime %v", r)
}

// binned holds the standardized thresholds q_j = Φ⁻¹(1 - alpha_j/2), so the
// effect-size thresholds for sampling sd sigma are sigma·q_j.
type binned struct {
	part selection.Partition
	q    []float64
}

func newBinned(part selection.Partition) binned {
	return binned{part: part, q: part.Thresholds(1)}
}

func (k binned) Partition() selection.Partition { return k.part }

func (k binned) bins() int { return len(k.q) - 1 }

func (k binned) bin(y, sigma float64) int {
	return k.part.Bin(selection.PValue(y, sigma))
}

type span struct{ a, b float64 }

// regions returns bin j's region in standard units before the shift by
// m = theta/sigma.
func (k binned) regions(j int) ([2]numeric.Span, int) {
	outer, inner := k.q[j], k.q[j+1]
	if inner == 0 {
		return [2]numeric.Span{{Lo: -outer, Hi: outer}}, 1
	}
	return [2]numeric.Span{{Lo: -outer, Hi: -inner}, {Lo: inner, Hi: outer}}, 2
}

// spans returns bin j's region for Y ~ N(theta, sigma) in standard units,
// where m = theta/sigma.
func (k binned) spans(j int, m float64) ([2]span, int) {
	r, n := k.regions(j)
	var s [2]span
	for i := 0; i < n; i++ {
		s[i] = span{r[i].Lo - m, r[i].Hi - m}
	}
	return s, n
}

// logProb is log P(Y ∈ bin j).
func (k binned) logProb(j int, m float64) float64 {
	r, n := k.regions(j)
	lp := math.Inf(-1)
	for i := 0; i < n; i++ {
		lp = numeric.LogAddExp(lp, numeric.LogShiftedIntervalProb(r[i].Lo, r[i].Hi, m))
	}
	return lp
}

// dLogProb is sigma · d log P(Y ∈ bin j) / d theta, given lp = logProb(j, m).
func (k binned) dLogProb(j int, m, lp float64) float64 {
	r, n := k.regions(j)
	s, _ := k.spans(j, m)
	var d float64
	for i := 0; i < n; i++ {
		lpi := numeric.LogShiftedIntervalProb(r[i].Lo, r[i].Hi, m)
		if math.IsInf(lpi, -1) {
			continue
		}
		mills := numeric.MillsDifference(s[i].a, s[i].b)
		if math.IsNaN(mills) || math.IsInf(mills, 0) {
			// Past the range of the density ratio the truncated mean sits
			// at the end nearest zero.
			mills = s[i].b
			if s[i].a+s[i].b > 0 {
				mills = s[i].a
			}
		}
		d += math.Exp(lpi-lp) * mills
	}
	return d
}

// logRatio is log φ(y/σ - m) - log Σ_j w_j P(Y ∈ bin j) over the bins whose
// log weight logW(j) is finite.
func (k binned) logRatio(y, m, sigma float64, logW func(j int) float64) float64 {
	var buf [16]numeric.Span
	spans := buf[:0]
	for j := 0; j < k.bins(); j++ {
		lw := logW(j)
		if math.IsInf(lw, -1) {
			continue
		}
		r, n := k.regions(j)
		for i := 0; i < n; i++ {
			r[i].LogW = lw
			spans = append(spans, r[i])
		}
	}
	return numeric.LogPDFRatio(y/sigma, m, spans)
}

func (k binned) validate(eta selection.Weights) error {
	if err := eta.Validate(k.part); err != nil {
		return err
	}
	if !eta.HasMass() {
		return core.NewDomainError("every eta is zero")
	}
	return nil
}

func logNormal(y, theta, sigma float64) float64 {
	return numeric.LogPDF((y-theta)/sigma) - math.Log(sigma)
}

func scoreNormal(y, theta, sigma float64) float64 {
	return (y - theta) / (sigma * sigma)
}

func zeroed(dst []float64, n int) []float64 {
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = 0
	}
	return dst
}
