package numeric

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// asymptoticCutoff is where log Φ(z) switches from erfc to the asymptotic
// series. erfc underflows near z = -37.5; at -30 five terms of the series are
// accurate to ~1e-12 relative.
const asymptoticCutoff = -30

// narrowWidth bounds w·max(1, |mid|) below which an interval's probability is
// its width times the density at its midpoint.
const narrowWidth = 1e-5

var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

var unit = distuv.UnitNormal

// LogPDF is the log density of the standard normal. It returns -Inf at ±Inf
// and stays finite, at worst -MaxFloat64, for every finite z.
func LogPDF(z float64) float64 {
	if math.IsInf(z, 0) {
		return math.Inf(-1)
	}
	return -halfLog2Pi - halfSq(z)
}

// halfSq is z²/2 saturating at MaxFloat64.
func halfSq(z float64) float64 {
	return math.Min(z*z/2, math.MaxFloat64)
}

// halfDiffSq is ((u-m)² - (v-m)²)/2 computed as (u-v)(u+v-2m)/2, so that the
// offsets u and v survive a shift m far larger than either. It saturates at
// ±MaxFloat64.
func halfDiffSq(u, v, m float64) float64 {
	if u == v {
		return 0
	}
	d := (u - v) * ((u - m) + (v - m)) / 2
	return math.Max(-math.MaxFloat64, math.Min(d, math.MaxFloat64))
}

// logSeries is log(1 - 1/z² + 3/z⁴ - 15/z⁶ + 105/z⁸), the correction in
// Φ(z) ≈ φ(z)/|z| · series for z far in the lower tail.
func logSeries(z float64) float64 {
	w := 1 / z
	w2 := w * w
	return math.Log(1 + w2*(-1+w2*(3+w2*(-15+105*w2))))
}

// PDF is φ(z).
func PDF(z float64) float64 {
	return unit.Prob(z)
}

// CDF is Φ(z).
func CDF(z float64) float64 {
	return unit.CDF(z)
}

// UpperTail is 1 - Φ(z) evaluated as Φ(-z). distuv.Normal.Survival goes
// through 1 - erf and loses everything past z ≈ 8.
func UpperTail(z float64) float64 {
	return unit.CDF(-z)
}

// Quantile is Φ⁻¹(p) for p in [0, 1].
func Quantile(p float64) float64 {
	return unit.Quantile(p)
}

// LogCDF is log Φ(z), finite for every finite z.
func LogCDF(z float64) float64 {
	switch {
	case math.IsNaN(z):
		return math.NaN()
	case math.IsInf(z, 1):
		return 0
	case math.IsInf(z, -1):
		return math.Inf(-1)
	case z < asymptoticCutoff:
		return LogPDF(z) - math.Log(-z) + logSeries(z)
	case z > 0:
		return math.Log1p(-UpperTail(z))
	default:
		return math.Log(unit.CDF(z))
	}
}

// LogUpperTail is log(1 - Φ(z)).
func LogUpperTail(z float64) float64 {
	return LogCDF(-z)
}

// LogIntervalProb is log P(a < Z < b) for standard normal Z. It works in the
// tail that keeps both ends small so the difference never cancels.
func LogIntervalProb(a, b float64) float64 {
	if !(a < b) {
		return math.Inf(-1)
	}
	rest, p := logSpan(a, b, 0)
	return rest - halfSq(p)
}

// LogShiftedIntervalProb is log P(lo - m < Z < hi - m). The width hi - lo is
// taken before the shift, so the interval keeps its mass when m is so large
// that lo - m and hi - m round to the same value.
func LogShiftedIntervalProb(lo, hi, m float64) float64 {
	if !(lo < hi) {
		return math.Inf(-1)
	}
	rest, p := logSpan(lo, hi, m)
	return rest - halfSq(p-m)
}

// logSpan splits log P(lo - m < Z < hi - m) as rest - (p - m)²/2, where p is
// the point of the interval, or m itself, that the quadratic is taken at.
// Keeping the quadratic apart lets callers cancel it against other terms
// exactly. Requires lo < hi.
func logSpan(lo, hi, m float64) (rest, p float64) {
	if math.IsInf(lo, -1) && math.IsInf(hi, 1) {
		return 0, m
	}
	a, b, w := lo-m, hi-m, hi-lo
	near := hi
	if a+b > 0 {
		// Reflect onto the lower half-line.
		a, b = -b, -a
		near = lo
	}
	if b > 0 {
		return math.Log1p(-(unit.CDF(a) + unit.CDF(-b))), m
	}
	if mid := b - w/2; w*math.Max(1, -mid) < narrowWidth {
		// w·φ(mid)·(1 + (mid² - 1)·w²/24)
		h := mid * w
		return -halfLog2Pi + math.Log(w) + (h*h-w*w)/24, (lo + hi) / 2
	}
	if b < asymptoticCutoff {
		rest = -halfLog2Pi - math.Log(-b) + logSeries(b)
		if math.IsInf(a, -1) {
			return rest, near
		}
		// log Φ(a) - log Φ(b), expanded so the leading terms cancel
		// analytically.
		d := w*(a+b)/2 - math.Log1p(-w/b) + logSeries(a) - logSeries(b)
		return rest + Log1mExp(math.Min(d, 0)), near
	}
	la, lb := LogCDF(a), LogCDF(b)
	return lb + Log1mExp(la-lb), m
}

// Span is the interval (Lo - m, Hi - m) for a shift m supplied alongside,
// carrying log weight LogW.
type Span struct {
	Lo, Hi float64
	LogW   float64
}

// LogPDFRatio is log φ(x - m) - log Σ_i exp(LogW_i)·P(Lo_i - m < Z < Hi_i - m).
// Both terms carry a quadratic in m that is cancelled before it is formed, so
// the ratio stays finite for finite arguments however far m pushes the spans
// into the tail. Spans with Lo >= Hi carry no mass; it returns +Inf when none
// does.
func LogPDFRatio(x, m float64, spans []Span) float64 {
	ref := math.NaN()
	for _, s := range spans {
		if !(s.Lo < s.Hi) || math.IsInf(s.LogW, -1) {
			continue
		}
		rest, p := logSpan(s.Lo, s.Hi, m)
		if math.IsInf(rest, -1) {
			continue
		}
		if math.IsNaN(ref) || math.Abs(p-m) < math.Abs(ref-m) {
			ref = p
		}
	}
	if math.IsNaN(ref) {
		return math.Inf(1)
	}
	lz := math.Inf(-1)
	for _, s := range spans {
		if !(s.Lo < s.Hi) || math.IsInf(s.LogW, -1) {
			continue
		}
		rest, p := logSpan(s.Lo, s.Hi, m)
		lz = LogAddExp(lz, s.LogW+rest-halfDiffSq(p, ref, m))
	}
	return -halfLog2Pi - halfDiffSq(x, ref, m) - lz
}

// IntervalProb is P(a < Z < b).
func IntervalProb(a, b float64) float64 {
	return math.Exp(LogIntervalProb(a, b))
}

// MillsDifference is (φ(a) - φ(b)) / (Φ(b) - Φ(a)), the standardized shift
// of the mean of a normal truncated to (a, b). Evaluated in log space.
func MillsDifference(a, b float64) float64 {
	lz := LogIntervalProb(a, b)
	if math.IsInf(lz, -1) {
		return math.NaN()
	}
	return math.Exp(LogPDF(a)-lz) - math.Exp(LogPDF(b)-lz)
}

// TruncatedMean is the mean of N(mu, sigma) restricted to (lo, hi).
func TruncatedMean(mu, sigma, lo, hi float64) float64 {
	return mu + sigma*MillsDifference((lo-mu)/sigma, (hi-mu)/sigma)
}

// Log1mExp is log(1 - exp(x)) for x <= 0.
func Log1mExp(x float64) float64 {
	if x > -math.Ln2 {
		return math.Log(-math.Expm1(x))
	}
	return math.Log1p(-math.Exp(x))
}

// LogAddExp is log(exp(a) + exp(b)).
func LogAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
