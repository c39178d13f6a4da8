package app

import (
	"context"
	"time"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal"
	"metabias/internal/densities"
	"metabias/internal/likelihood"
	"metabias/ports"

	"gonum.org/v1/gonum/floats"
)

// DensityService evaluates the weight function, both density families and the
// likelihood kernel over broadcast parameter vectors.
type DensityService struct {
	cfg    densities.Config
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewDensityService creates a density service. rng supplies the sampling
// streams.
func NewDensityService(cfg densities.Config, rng ports.RNGPort, logger *internal.Logger) (*DensityService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DensityService{cfg: cfg, rng: rng, logger: logger.With("Densities")}, nil
}

// Config returns the numeric settings in use.
func (s *DensityService) Config() densities.Config { return s.cfg }

// Inputs are the broadcastable vectors shared by the operations. Alpha may be
// unsorted; nil alpha means the default partition.
type Inputs struct {
	X      []float64 `json:"x,omitempty"`
	Theta0 []float64 `json:"theta0,omitempty"`
	Tau    []float64 `json:"tau,omitempty"`
	Sigma  []float64 `json:"sigma"`
	Alpha  []float64 `json:"alpha,omitempty"`
	Eta    []float64 `json:"eta"`
}

func (in Inputs) batch() (densities.Batch, error) {
	part, err := partitionFor(in.Alpha)
	if err != nil {
		return densities.Batch{}, err
	}
	return densities.Batch{
		X:      in.X,
		Theta0: in.Theta0,
		Tau:    in.Tau,
		Sigma:  in.Sigma,
		Part:   part,
		Eta:    selection.Weights(in.Eta),
	}, nil
}

func partitionFor(alpha []float64) (selection.Partition, error) {
	if alpha == nil {
		return selection.DefaultPartition(), nil
	}
	return selection.SortedPartition(alpha)
}

// Weight evaluates the step weight at each (sigma, x).
func (s *DensityService) Weight(ctx context.Context, in Inputs) ([]float64, error) {
	b, err := in.batch()
	if err != nil {
		return nil, err
	}
	return densities.WeightBatch(ctx, b, s.cfg.Workers)
}

// Normalizer evaluates the quadrature normalizer per parameter tuple.
func (s *DensityService) Normalizer(ctx context.Context, in Inputs) ([]float64, error) {
	b, err := in.batch()
	if err != nil {
		return nil, err
	}
	return densities.NormalizerBatch(ctx, s.cfg, b, s.cfg.Workers)
}

// Density evaluates the named family's density, or its log when logScale.
func (s *DensityService) Density(ctx context.Context, family string, in Inputs, logScale bool) ([]float64, error) {
	fam, err := densities.ForName(family, s.cfg)
	if err != nil {
		return nil, err
	}
	b, err := in.batch()
	if err != nil {
		return nil, err
	}
	return densities.DensityBatch(ctx, fam, b, logScale, s.cfg.Workers)
}

// Expectation evaluates the named family's mean per parameter tuple.
func (s *DensityService) Expectation(ctx context.Context, family string, in Inputs) ([]float64, error) {
	fam, err := densities.ForName(family, s.cfg)
	if err != nil {
		return nil, err
	}
	b, err := in.batch()
	if err != nil {
		return nil, err
	}
	return densities.ExpectationBatch(ctx, fam, b, s.cfg.Workers)
}

// SampleInput is one parameter tuple plus the number of draws and the seed.
type SampleInput struct {
	N      int       `json:"n"`
	Seed   uint64    `json:"seed"`
	Theta0 float64   `json:"theta0"`
	Tau    float64   `json:"tau"`
	Sigma  float64   `json:"sigma"`
	Alpha  []float64 `json:"alpha,omitempty"`
	Eta    []float64 `json:"eta"`
}

// Sample draws in.N values from the named family. The same seed gives the
// same draws whatever the worker count. N is capped by Config.MaxDraws.
func (s *DensityService) Sample(ctx context.Context, family string, in SampleInput) ([]float64, error) {
	if in.N > s.cfg.MaxDraws {
		return nil, core.NewInvalidArgumentf("n", "at most %d draws per request, got %d", s.cfg.MaxDraws, in.N)
	}
	fam, err := densities.ForName(family, s.cfg)
	if err != nil {
		return nil, err
	}
	part, err := partitionFor(in.Alpha)
	if err != nil {
		return nil, err
	}
	p := densities.Params{Theta0: in.Theta0, Tau: in.Tau, Sigma: in.Sigma, Part: part, Eta: in.Eta}

	start := time.Now()
	var draws []float64
	if s.rng != nil {
		draws, err = densities.SampleStreams(ctx, fam, s.rng, in.Seed, in.N, p, s.cfg.Workers)
	} else {
		draws, err = densities.SampleParallel(ctx, fam, in.Seed, in.N, p, s.cfg.Workers)
	}
	if err != nil {
		s.logger.Warn("%s sample of %d failed: %v", fam.Name(), in.N, err)
		return nil, err
	}
	s.logger.Debug("%s: %d draws in %s", fam.Name(), in.N, time.Since(start))
	return draws, nil
}

// LogLikInput evaluates a kernel over a data set.
type LogLikInput struct {
	Regime selection.Regime `json:"bias"`
	Yi     []float64        `json:"yi"`
	Vi     []float64        `json:"vi"`
	Theta  []float64        `json:"theta"`
	Alpha  []float64        `json:"alpha,omitempty"`
	Eta    []float64        `json:"eta,omitempty"`
}

// LogLikResult holds per-study values and their sum.
type LogLikResult struct {
	Pointwise []float64 `json:"pointwise"`
	Total     float64   `json:"total"`
}

// LogLik evaluates the regime's likelihood kernel for every study.
func (s *DensityService) LogLik(ctx context.Context, in LogLikInput) (*LogLikResult, error) {
	part, err := partitionFor(in.Alpha)
	if err != nil {
		return nil, err
	}
	k, err := likelihood.ForRegime(in.Regime, part, s.cfg.SimplexTol)
	if err != nil {
		return nil, err
	}
	studies := likelihood.Studies{Y: in.Yi, V: in.Vi}
	pointwise, err := likelihood.Pointwise(ctx, k, studies, in.Theta, selection.Weights(in.Eta), s.cfg.Workers)
	if err != nil {
		return nil, err
	}
	return &LogLikResult{Pointwise: pointwise, Total: floats.Sum(pointwise)}, nil
}
