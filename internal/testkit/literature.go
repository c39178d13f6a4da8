package testkit

import (
	"math"
	"math/rand/v2"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/densities"
	"metabias/internal/likelihood"

	"gonum.org/v1/gonum/stat/distuv"
)

// Literature describes a synthetic published literature: true effects
// theta_i ~ N(Theta0, Tau), standard errors uniform on [SigmaMin, SigmaMax],
// and estimates filtered through the bias regime.
type Literature struct {
	Studies  int
	Theta0   float64
	Tau      float64
	SigmaMin float64
	SigmaMax float64
	Regime   selection.Regime
	Part     selection.Partition
	Eta      selection.Weights
}

func (l Literature) validate() error {
	if l.Studies < 1 {
		return core.NewInvalidArgumentf("studies", "must be positive, got %d", l.Studies)
	}
	if !(l.SigmaMin > 0) || l.SigmaMax < l.SigmaMin || math.IsInf(l.SigmaMax, 1) {
		return core.NewInvalidArgumentf("sigma", "need 0 < min <= max < Inf, got [%v, %v]", l.SigmaMin, l.SigmaMax)
	}
	if !(l.Tau >= 0) {
		return core.NewInvalidArgumentf("tau", "must be non-negative, got %v", l.Tau)
	}
	if l.Regime.UsesWeights() && l.Part.IsZero() {
		return core.NewInvalidArgument("alpha", "partition is required for a bias regime")
	}
	return nil
}

// Generate draws the published studies. Under publication selection each
// estimate comes from the selected normal with sd sqrt(tau^2 + sigma^2); under
// p-hacking each study's own effect is drawn first and the estimate comes from
// the truncated-normal mixture around it.
func (l Literature) Generate(rng *rand.Rand, cfg densities.Config) (likelihood.Studies, error) {
	if err := l.validate(); err != nil {
		return likelihood.Studies{}, err
	}
	out := likelihood.Studies{Y: make([]float64, l.Studies), V: make([]float64, l.Studies)}
	unif := distuv.Uniform{Min: l.SigmaMin, Max: l.SigmaMax, Src: rng}
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	snorm := densities.NewSelectedNormal(cfg)
	mix := densities.NewPHackingMixture(cfg)

	for i := range out.Y {
		sigma := l.SigmaMin
		if l.SigmaMax > l.SigmaMin {
			sigma = unif.Rand()
		}
		var y float64
		switch l.Regime {
		case selection.RegimePublicationSelection:
			draws, err := snorm.Sample(rng, 1, densities.Params{
				Theta0: l.Theta0, Tau: math.Hypot(l.Tau, sigma), Sigma: sigma, Part: l.Part, Eta: l.Eta,
			})
			if err != nil {
				return likelihood.Studies{}, err
			}
			y = draws[0]
		case selection.RegimePHacking:
			theta := l.Theta0 + l.Tau*norm.Rand()
			draws, err := mix.Sample(rng, 1, densities.Params{
				Theta0: theta, Tau: sigma, Sigma: sigma, Part: l.Part, Eta: l.Eta,
			})
			if err != nil {
				return likelihood.Studies{}, err
			}
			y = draws[0]
		default:
			y = l.Theta0 + math.Hypot(l.Tau, sigma)*norm.Rand()
		}
		out.Y[i] = y
		out.V[i] = sigma * sigma
	}
	return out, nil
}
