package densities

import (
	"math"
	"math/rand/v2"
	"strings"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/numeric"
)

const (
	// DefaultMaxProposals bounds the rejection sampler per accepted draw.
	DefaultMaxProposals = 1_000_000
	// DefaultMaxDraws bounds the draws one sample request may ask for.
	DefaultMaxDraws = 1_000_000
)

// Params is one parameter tuple of a density family. Theta0 and Tau describe
// the underlying normal; Sigma is the sampling standard deviation that fixes
// where the significance thresholds sit on the effect-size axis.
type Params struct {
	Theta0 float64
	Tau    float64
	Sigma  float64
	Part   selection.Partition
	Eta    selection.Weights
}

// Validate checks the shared preconditions of both families.
func (p Params) Validate() error {
	if p.Part.IsZero() {
		return core.NewInvalidArgument("alpha", "partition is required")
	}
	if err := p.Eta.Validate(p.Part); err != nil {
		return err
	}
	if math.IsNaN(p.Theta0) || math.IsInf(p.Theta0, 0) {
		return core.NewInvalidArgumentf("theta0", "must be finite, got %v", p.Theta0)
	}
	if err := checkScale("tau", p.Tau); err != nil {
		return err
	}
	return checkScale("sigma", p.Sigma)
}

// Config carries the numeric settings shared by the families.
type Config struct {
	Integrator   numeric.Integrator
	MaxProposals int
	MaxDraws     int
	SimplexTol   float64
	Workers      int
}

func DefaultConfig() Config {
	return Config{
		Integrator:   numeric.DefaultIntegrator(),
		MaxProposals: DefaultMaxProposals,
		MaxDraws:     DefaultMaxDraws,
		SimplexTol:   selection.SimplexTolerance,
		Workers:      4,
	}
}

func (c Config) Validate() error {
	if err := c.Integrator.Validate(); err != nil {
		return err
	}
	if c.MaxProposals < 1 {
		return core.NewInvalidArgumentf("max_proposals", "must be positive, got %d", c.MaxProposals)
	}
	if c.MaxDraws < 1 {
		return core.NewInvalidArgumentf("max_draws", "must be positive, got %d", c.MaxDraws)
	}
	if !(c.SimplexTol >= 0) {
		return core.NewInvalidArgumentf("simplex_tol", "must be non-negative, got %v", c.SimplexTol)
	}
	if c.Workers < 1 {
		return core.NewInvalidArgumentf("workers", "must be positive, got %d", c.Workers)
	}
	return nil
}

// Family is a distribution of published effect sizes.
type Family interface {
	Name() string
	Density(x float64, p Params) (float64, error)
	LogDensity(x float64, p Params) (float64, error)
	Sample(rng *rand.Rand, n int, p Params) ([]float64, error)
	Expectation(p Params) (float64, error)
}

// ForName resolves "psma" / "selected_normal" and "phma" / "mixture".
func ForName(name string, cfg Config) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "psma", "snorm", "selected_normal", "publication_selection":
		return NewSelectedNormal(cfg), nil
	case "phma", "mixture", "phacking_mixture", "p_hacking":
		return NewPHackingMixture(cfg), nil
	}
	return nil, core.NewInvalidArgumentf("family", "unknown density family %q", name)
}
