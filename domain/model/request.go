package model

import (
	"math"

	"metabias/domain/core"
	"metabias/domain/selection"
)

// SamplerRequest is everything an external posterior sampler needs to fit one
// model. It is the JSON wire form sent to the sampler service.
type SamplerRequest struct {
	Model      string           `json:"model"`
	Regime     selection.Regime `json:"bias"`
	Yi         []float64        `json:"yi"`
	Vi         []float64        `json:"vi"`
	Alpha      []float64        `json:"alpha"`
	Priors     Priors           `json:"priors"`
	Chains     int              `json:"chains"`
	Iterations int              `json:"iter"`
	Warmup     int              `json:"warmup"`
	Seed       uint64           `json:"seed"`
}

// Validate checks shapes only; values were validated when the request was
// built.
func (r SamplerRequest) Validate() error {
	if len(r.Yi) == 0 || len(r.Yi) != len(r.Vi) {
		return core.NewInvalidArgumentf("yi", "need equal, non-empty yi and vi (got %d and %d)", len(r.Yi), len(r.Vi))
	}
	if r.Chains < 1 {
		return core.NewInvalidArgumentf("chains", "must be positive, got %d", r.Chains)
	}
	if r.Iterations < 1 {
		return core.NewInvalidArgumentf("iter", "must be positive, got %d", r.Iterations)
	}
	if r.Warmup < 0 || r.Warmup >= r.Iterations {
		return core.NewInvalidArgumentf("warmup", "must be in [0, iter), got %d", r.Warmup)
	}
	return nil
}

// ModelName is the identifier of the model variant for a regime.
func ModelName(r selection.Regime) string {
	return r.Short()
}

// Draws are posterior draws returned by the sampler. Eta is draws × bins and
// Theta, when present, is draws × studies.
type Draws struct {
	Theta0 []float64   `json:"theta0"`
	Tau    []float64   `json:"tau"`
	Eta    [][]float64 `json:"eta,omitempty"`
	Theta  [][]float64 `json:"theta,omitempty"`
}

// Len is the number of draws.
func (d Draws) Len() int { return len(d.Theta0) }

// Validate checks that the draws fit a model with the given regime, bins and
// number of studies.
func (d Draws) Validate(r selection.Regime, bins, studies int) error {
	n := d.Len()
	if n == 0 {
		return core.NewInvalidArgument("draws", "sampler returned no draws")
	}
	if len(d.Tau) != n {
		return core.NewInvalidArgumentf("draws.tau", "has %d draws, theta0 has %d", len(d.Tau), n)
	}
	if err := checkFinite("draws.theta0", d.Theta0); err != nil {
		return err
	}
	if err := checkFinite("draws.tau", d.Tau); err != nil {
		return err
	}
	for i, t := range d.Tau {
		if t < 0 {
			return core.NewInvalidArgumentf("draws.tau", "draw %d is negative (%v)", i, t)
		}
	}
	if r.UsesWeights() {
		if len(d.Eta) != n {
			return core.NewInvalidArgumentf("draws.eta", "has %d draws, want %d", len(d.Eta), n)
		}
		for i, row := range d.Eta {
			if len(row) != bins {
				return core.NewInvalidArgumentf("draws.eta", "draw %d has %d entries, want %d", i, len(row), bins)
			}
			if err := checkFinite("draws.eta", row); err != nil {
				return err
			}
		}
	}
	if d.Theta != nil {
		if len(d.Theta) != n {
			return core.NewInvalidArgumentf("draws.theta", "has %d draws, want %d", len(d.Theta), n)
		}
		for i, row := range d.Theta {
			if len(row) != studies {
				return core.NewInvalidArgumentf("draws.theta", "draw %d has %d entries, want %d", i, len(row), studies)
			}
			if err := checkFinite("draws.theta", row); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkFinite(field string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return core.NewInvalidArgumentf(field, "entry %d is not finite", i)
		}
	}
	return nil
}
