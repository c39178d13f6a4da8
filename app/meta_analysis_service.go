package app

import (
	"context"
	"fmt"
	"time"

	"metabias/domain/core"
	"metabias/domain/model"
	"metabias/domain/selection"
	"metabias/internal"
	"metabias/internal/errors"
	"metabias/internal/likelihood"
	"metabias/ports"
)

// FitDefaults fill sampler settings a FitInput leaves at zero. SimplexTol is
// the slack allowed on Σ eta = 1 when checking p-hacking weights.
type FitDefaults struct {
	Chains     int
	Iterations int
	Workers    int
	SimplexTol float64
}

// MetaAnalysisService validates a meta-analysis, hands it to the external
// posterior sampler and records the fitted model.
type MetaAnalysisService struct {
	sampler  ports.PosteriorSampler
	repo     ports.FitRepository
	defaults FitDefaults
	logger   *internal.Logger
}

// NewMetaAnalysisService creates the service. repo may be nil, in which case
// fits are returned but not stored.
func NewMetaAnalysisService(sampler ports.PosteriorSampler, repo ports.FitRepository, defaults FitDefaults, logger *internal.Logger) *MetaAnalysisService {
	if defaults.Chains < 1 {
		defaults.Chains = 4
	}
	if defaults.Iterations < 2 {
		defaults.Iterations = 2000
	}
	if defaults.Workers < 1 {
		defaults.Workers = 1
	}
	if !(defaults.SimplexTol > 0) {
		defaults.SimplexTol = selection.SimplexTolerance
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MetaAnalysisService{
		sampler:  sampler,
		repo:     repo,
		defaults: defaults,
		logger:   logger.With("MetaAnalysis"),
	}
}

// FitInput is one meta-analysis. Priors overrides DefaultPriors key by key;
// PriorSet, when non-nil, replaces them wholesale. Warmup defaults to half of
// Iterations.
type FitInput struct {
	Yi         []float64        `json:"yi"`
	Vi         []float64        `json:"vi"`
	Alpha      []float64        `json:"alpha,omitempty"`
	Regime     selection.Regime `json:"bias"`
	Priors     map[string]any   `json:"priors,omitempty"`
	PriorSet   *model.Priors    `json:"-"`
	Chains     int              `json:"chains,omitempty"`
	Iterations int              `json:"iter,omitempty"`
	Warmup     int              `json:"warmup,omitempty"`
	Seed       uint64           `json:"seed"`
}

// Request validates in and builds the sampler request together with the
// kernel for the chosen regime.
func (s *MetaAnalysisService) Request(in FitInput) (model.SamplerRequest, likelihood.Kernel, error) {
	studies := likelihood.Studies{Y: in.Yi, V: in.Vi}
	if err := studies.Validate(); err != nil {
		return model.SamplerRequest{}, nil, err
	}
	part, err := partitionFor(in.Alpha)
	if err != nil {
		return model.SamplerRequest{}, nil, err
	}

	var priors model.Priors
	if in.PriorSet != nil {
		priors = *in.PriorSet
	} else if priors, err = model.PriorsFromMap(in.Priors, part.Bins()); err != nil {
		return model.SamplerRequest{}, nil, err
	}
	if priors, err = priors.ForRegime(in.Regime, part); err != nil {
		return model.SamplerRequest{}, nil, err
	}

	kernel, err := likelihood.ForRegime(in.Regime, part, s.defaults.SimplexTol)
	if err != nil {
		return model.SamplerRequest{}, nil, err
	}

	req := model.SamplerRequest{
		Model:      model.ModelName(in.Regime),
		Regime:     in.Regime,
		Yi:         append([]float64(nil), in.Yi...),
		Vi:         append([]float64(nil), in.Vi...),
		Alpha:      part.Cutoffs(),
		Priors:     priors,
		Chains:     in.Chains,
		Iterations: in.Iterations,
		Warmup:     in.Warmup,
		Seed:       in.Seed,
	}
	if req.Chains == 0 {
		req.Chains = s.defaults.Chains
	}
	if req.Iterations == 0 {
		req.Iterations = s.defaults.Iterations
	}
	if req.Warmup == 0 {
		req.Warmup = req.Iterations / 2
	}
	if err := req.Validate(); err != nil {
		return model.SamplerRequest{}, nil, err
	}
	return req, kernel, nil
}

// Fit runs the sampler for in and returns the fitted model. Sampler failures
// are reported as external service errors and are not retried.
func (s *MetaAnalysisService) Fit(ctx context.Context, in FitInput) (*model.FittedModel, error) {
	req, kernel, err := s.Request(in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fitting %s: %d studies, %d bins, %d chains x %d iter, seed %d",
		req.Model, len(req.Yi), len(req.Alpha)-1, req.Chains, req.Iterations, req.Seed)

	start := time.Now()
	draws, err := s.sampler.Sample(ctx, req)
	if err != nil {
		s.logger.Error("sampler failed after %s: %v", time.Since(start), err)
		return nil, errors.ExternalServiceError("sampler", err)
	}
	s.logger.Info("sampler returned %d draws in %s", draws.Len(), time.Since(start))

	if err := draws.Validate(req.Regime, len(req.Alpha)-1, len(req.Yi)); err != nil {
		return nil, errors.ExternalServiceError("sampler", err)
	}

	logLik, err := s.pointwise(ctx, kernel, req, draws)
	if err != nil {
		return nil, err
	}

	fit, err := model.NewFittedModel(req, draws, logLik)
	if err != nil {
		return nil, err
	}

	if s.repo != nil {
		s.reportRepeats(ctx, fit)
		if err := s.repo.Save(ctx, fit); err != nil {
			s.logger.Error("failed to store fit %s: %v", fit.ID, err)
			return nil, errors.DatabaseError("failed to store fit", err)
		}
		s.logger.Info("stored fit %s", fit.ID)
	}
	return fit, nil
}

// reportRepeats logs stored fits that share fit's configuration. A failed
// lookup does not fail the fit.
func (s *MetaAnalysisService) reportRepeats(ctx context.Context, fit *model.FittedModel) {
	ids, err := s.repo.FindByFingerprint(ctx, fit.Fingerprint)
	if err != nil {
		s.logger.Warn("fingerprint lookup for %s failed: %v", fit.ID, err)
		return
	}
	if len(ids) > 0 {
		s.logger.Info("fit %s repeats the configuration of %d stored fit(s), newest %s", fit.ID, len(ids), ids[0])
	}
}

// pointwise is the draws × studies log-likelihood matrix, or nil when the
// sampler returned no per-study effects.
func (s *MetaAnalysisService) pointwise(ctx context.Context, k likelihood.Kernel, req model.SamplerRequest, d model.Draws) ([][]float64, error) {
	if d.Theta == nil {
		return nil, nil
	}
	studies := likelihood.Studies{Y: req.Yi, V: req.Vi}
	out := make([][]float64, d.Len())
	for i := range out {
		var eta selection.Weights
		if req.Regime.UsesWeights() {
			eta = d.Eta[i]
		}
		row, err := likelihood.Pointwise(ctx, k, studies, d.Theta[i], eta, s.defaults.Workers)
		if err != nil {
			if core.IsInvalidArgument(err) || core.IsDomainError(err) {
				return nil, errors.ExternalServiceError("sampler", fmt.Errorf("draw %d: %w", i, err))
			}
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// Get loads a stored fit.
func (s *MetaAnalysisService) Get(ctx context.Context, id core.FitID) (*model.FittedModel, error) {
	if s.repo == nil {
		return nil, errors.NotFound(fmt.Sprintf("fit %s (no fit store configured)", id))
	}
	return s.repo.Get(ctx, id)
}

// List returns the most recent stored fits.
func (s *MetaAnalysisService) List(ctx context.Context, limit int) ([]ports.FitSummary, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, limit)
}
