package model

import (
	"fmt"

	"metabias/domain/core"
	"metabias/domain/selection"
)

// FittedModel is the immutable record of one successful fit: the inputs, the
// regime and priors used, the posterior draws and what was derived from them.
// Nothing mutates a FittedModel after NewFittedModel returns it.
type FittedModel struct {
	ID          core.FitID       `json:"id"`
	CreatedAt   core.Timestamp   `json:"created_at"`
	Regime      selection.Regime `json:"bias"`
	Yi          []float64        `json:"yi"`
	Vi          []float64        `json:"vi"`
	Alpha       []float64        `json:"alpha"`
	Priors      Priors           `json:"priors"`
	Chains      int              `json:"chains"`
	Iterations  int              `json:"iter"`
	Warmup      int              `json:"warmup"`
	Seed        uint64           `json:"seed"`
	Draws       Draws            `json:"draws"`
	Summaries   []Summary        `json:"summaries"`
	LogLik      [][]float64      `json:"log_lik,omitempty"` // draws × studies
	DataHash    core.DataHash    `json:"data_hash"`
	Fingerprint core.Hash        `json:"fingerprint"`
}

// NewFittedModel assembles the record. logLik may be nil when the sampler
// returned no per-study effects.
func NewFittedModel(req SamplerRequest, draws Draws, logLik [][]float64) (*FittedModel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := draws.Validate(req.Regime, len(req.Alpha)-1, len(req.Yi)); err != nil {
		return nil, err
	}
	if logLik != nil && len(logLik) != draws.Len() {
		return nil, core.NewInvalidArgumentf("log_lik", "has %d rows, want %d", len(logLik), draws.Len())
	}
	summaries, err := SummarizeDraws(draws)
	if err != nil {
		return nil, err
	}

	dataHash := core.ComputeDataHash("studies", req.Yi, req.Vi)
	return &FittedModel{
		ID:          core.NewFitID(),
		CreatedAt:   core.Now(),
		Regime:      req.Regime,
		Yi:          clone(req.Yi),
		Vi:          clone(req.Vi),
		Alpha:       clone(req.Alpha),
		Priors:      req.Priors,
		Chains:      req.Chains,
		Iterations:  req.Iterations,
		Warmup:      req.Warmup,
		Seed:        req.Seed,
		Draws:       draws,
		Summaries:   summaries,
		LogLik:      logLik,
		DataHash:    dataHash,
		Fingerprint: Fingerprint(dataHash, req),
	}, nil
}

// Fingerprint identifies a fit configuration: same data, alpha, regime, priors,
// sampler settings and seed give the same fingerprint.
func Fingerprint(data core.DataHash, req SamplerRequest) core.Hash {
	alpha := core.ComputeDataHash("alpha", req.Alpha)
	priors := core.ComputeDataHash("priors", req.Priors.Eta0, []float64{
		req.Priors.Theta0Mean, req.Priors.Theta0SD, req.Priors.TauMean, req.Priors.TauSD,
		req.Priors.UMin, req.Priors.UMax, req.Priors.Shape, req.Priors.Scale,
	})
	s := fmt.Sprintf("data:%s|alpha:%s|bias:%s|priors:%s|tau_prior:%s|chains:%d|iter:%d|warmup:%d|seed:%d",
		data, alpha, req.Regime, priors, req.Priors.TauPrior, req.Chains, req.Iterations, req.Warmup, req.Seed)
	return core.NewHash([]byte(s))
}

// Summary returns the summary for a parameter name such as "theta0" or "eta[2]".
func (m *FittedModel) Summary(parameter string) (Summary, bool) {
	for _, s := range m.Summaries {
		if s.Parameter == parameter {
			return s, true
		}
	}
	return Summary{}, false
}

// Studies is the number of studies in the fit.
func (m *FittedModel) Studies() int { return len(m.Yi) }

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
