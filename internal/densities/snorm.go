package densities

import (
	"math"
	"math/rand/v2"

	"metabias/domain/core"
	"metabias/internal/numeric"

	"gonum.org/v1/gonum/stat/distuv"
)

// SelectedNormal is the publication-selection family: N(theta0, tau)
// reweighted by the selection weight of each value's significance bin and
// renormalised by quadrature.
type SelectedNormal struct {
	cfg Config
}

func NewSelectedNormal(cfg Config) SelectedNormal {
	return SelectedNormal{cfg: cfg}
}

func (SelectedNormal) Name() string { return "psma" }

// Normalizer is the quadrature normalizer for p.
func (s SelectedNormal) Normalizer(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return Normalizer(s.cfg.Integrator, p.Sigma, p.Theta0, p.Tau, p.Part, p.Eta)
}

// Density is weight(x) · φ_tau(x - theta0) / Z.
func (s SelectedNormal) Density(x float64, p Params) (float64, error) {
	z, err := s.normalize(x, p)
	if err != nil {
		return 0, err
	}
	w := weightAt(p.Sigma, x, p.Part, p.Eta)
	if w == 0 {
		return 0, nil
	}
	return w * numeric.PDF((x-p.Theta0)/p.Tau) / (p.Tau * z), nil
}

// LogDensity is log weight(x) + log φ_tau(x - theta0) - log Z, assembled in
// log space so tail values do not underflow first.
func (s SelectedNormal) LogDensity(x float64, p Params) (float64, error) {
	z, err := s.normalize(x, p)
	if err != nil {
		return 0, err
	}
	w := weightAt(p.Sigma, x, p.Part, p.Eta)
	return math.Log(w) + numeric.LogPDF((x-p.Theta0)/p.Tau) - math.Log(p.Tau) - math.Log(z), nil
}

func (s SelectedNormal) normalize(x float64, p Params) (float64, error) {
	if math.IsNaN(x) {
		return 0, core.NewInvalidArgument("x", "must not be NaN")
	}
	return s.Normalizer(p)
}

// Sample draws n values by rejection. Each attempt proposes θ ~ N(theta0, tau)
// and then draws u ~ U(0, 1); θ is accepted when u < weight(θ)/max(eta).
// Dividing by max(eta) leaves the target unchanged and keeps weights above 1
// from accepting everything. A draw that exhausts MaxProposals fails with
// ErrSamplingStalled.
func (s SelectedNormal) Sample(rng *rand.Rand, n int, p Params) ([]float64, error) {
	if err := checkSampleArgs(rng, n, p); err != nil {
		return nil, err
	}
	if !p.Eta.HasMass() {
		return nil, core.NewDomainError("every eta is zero; nothing can be accepted")
	}
	budget := s.cfg.MaxProposals
	if budget < 1 {
		budget = DefaultMaxProposals
	}

	wmax := p.Eta.Max()
	proposal := distuv.Normal{Mu: p.Theta0, Sigma: p.Tau, Src: rng}
	unif := distuv.Uniform{Min: 0, Max: 1, Src: rng}

	out := make([]float64, n)
	for i := range out {
		accepted := false
		for try := 0; try < budget; try++ {
			theta := proposal.Rand()
			u := unif.Rand()
			if u < weightAt(p.Sigma, theta, p.Part, p.Eta)/wmax {
				out[i] = theta
				accepted = true
				break
			}
		}
		if !accepted {
			return nil, core.NewSamplingStalledError(budget, i)
		}
	}
	return out, nil
}

// Expectation is ∫ θ · density(θ) dθ, evaluated as
// theta0 + tau · ∫ z w(theta0 + tau z) φ(z) dz / Z.
func (s SelectedNormal) Expectation(p Params) (float64, error) {
	z, err := s.Normalizer(p)
	if err != nil {
		return 0, err
	}
	first, err := s.cfg.Integrator.Integrate(func(t float64) float64 {
		return t * weightAt(p.Sigma, p.Theta0+p.Tau*t, p.Part, p.Eta) * numeric.PDF(t)
	}, standardBreaks(p.Part.Breakpoints(p.Sigma), p.Theta0, p.Tau))
	if err != nil {
		return 0, err
	}
	return p.Theta0 + p.Tau*first/z, nil
}

func checkSampleArgs(rng *rand.Rand, n int, p Params) error {
	if rng == nil {
		return core.NewInvalidArgument("rng", "an explicit random source is required")
	}
	if n < 0 {
		return core.NewInvalidArgumentf("n", "must be non-negative, got %d", n)
	}
	return p.Validate()
}
