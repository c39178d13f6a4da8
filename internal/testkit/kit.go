package testkit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"metabias/domain/core"
	"metabias/domain/model"
	"metabias/domain/selection"
	"metabias/internal/densities"
	"metabias/ports"

	"gonum.org/v1/gonum/stat/distuv"
)

// RNGAdapter implements the RNGPort interface with PCG streams.
type RNGAdapter struct{}

var _ ports.RNGPort = (*RNGAdapter)(nil)

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error) {
	return rand.New(rand.NewPCG(seed, uint64(hashString(name)))), nil
}

// Stream returns densities.StreamRNG(seed, k).
func (r *RNGAdapter) Stream(ctx context.Context, seed uint64, k int) (*rand.Rand, error) {
	if k < 0 {
		return nil, core.NewInvalidArgumentf("stream", "index must be non-negative, got %d", k)
	}
	return densities.StreamRNG(seed, k), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

// FakeSampler returns plausible draws without running MCMC. It is
// deterministic in the request seed and records every request it receives.
type FakeSampler struct {
	// Err, when set, is returned instead of draws.
	Err error
	// WithTheta adds per-study effect draws.
	WithTheta bool

	mu       sync.Mutex
	requests []model.SamplerRequest
}

var _ ports.PosteriorSampler = (*FakeSampler)(nil)

// Sample draws chains × (iter - warmup) values centred on the inverse-variance
// weighted mean of yi.
func (f *FakeSampler) Sample(ctx context.Context, req model.SamplerRequest) (model.Draws, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Err != nil {
		return model.Draws{}, f.Err
	}
	if err := ctx.Err(); err != nil {
		return model.Draws{}, err
	}

	rng := rand.New(rand.NewPCG(req.Seed, 0x5eed))
	n := req.Chains * (req.Iterations - req.Warmup)
	bins := len(req.Alpha) - 1
	center := weightedMean(req.Yi, req.Vi)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	d := model.Draws{Theta0: make([]float64, n), Tau: make([]float64, n)}
	if req.Regime.UsesWeights() {
		d.Eta = make([][]float64, n)
	}
	if f.WithTheta {
		d.Theta = make([][]float64, n)
	}
	for i := 0; i < n; i++ {
		d.Theta0[i] = center + 0.05*norm.Rand()
		d.Tau[i] = math.Abs(0.1 * norm.Rand())
		if d.Eta != nil {
			d.Eta[i] = fakeEta(rng, bins, req.Regime == selection.RegimePHacking)
		}
		if d.Theta != nil {
			row := make([]float64, len(req.Yi))
			for s := range row {
				row[s] = d.Theta0[i] + d.Tau[i]*norm.Rand()
			}
			d.Theta[i] = row
		}
	}
	return d, nil
}

// Requests returns a copy of the requests seen so far.
func (f *FakeSampler) Requests() []model.SamplerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SamplerRequest(nil), f.requests...)
}

// fakeEta gives selection weights with eta[0] = 1, or simplex weights when
// simplex is set.
func fakeEta(rng *rand.Rand, bins int, simplex bool) []float64 {
	eta := make([]float64, bins)
	total := 0.0
	for j := range eta {
		if j == 0 && !simplex {
			eta[j] = 1
		} else {
			eta[j] = 0.2 + 0.8*rng.Float64()
		}
		total += eta[j]
	}
	if simplex {
		for j := range eta {
			eta[j] /= total
		}
	}
	return eta
}

func weightedMean(y, v []float64) float64 {
	num, den := 0.0, 0.0
	for i := range y {
		num += y[i] / v[i]
		den += 1 / v[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// InMemoryFitRepository keeps fits in a map.
type InMemoryFitRepository struct {
	mu   sync.RWMutex
	fits map[core.FitID]*model.FittedModel
}

var _ ports.FitRepository = (*InMemoryFitRepository)(nil)

func NewInMemoryFitRepository() *InMemoryFitRepository {
	return &InMemoryFitRepository{fits: make(map[core.FitID]*model.FittedModel)}
}

func (r *InMemoryFitRepository) Save(ctx context.Context, fit *model.FittedModel) error {
	if fit == nil {
		return core.NewInvalidArgument("fit", "nil fit")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fits[fit.ID]; ok {
		return fmt.Errorf("fit %s already stored", fit.ID)
	}
	r.fits[fit.ID] = fit
	return nil
}

func (r *InMemoryFitRepository) Get(ctx context.Context, id core.FitID) (*model.FittedModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fit, ok := r.fits[id]
	if !ok {
		return nil, fmt.Errorf("%w with id %s", core.ErrFitNotFound, id)
	}
	return fit, nil
}

func (r *InMemoryFitRepository) List(ctx context.Context, limit int) ([]ports.FitSummary, error) {
	r.mu.RLock()
	out := make([]ports.FitSummary, 0, len(r.fits))
	for _, fit := range r.fits {
		out = append(out, ports.FitSummary{
			ID:          fit.ID,
			CreatedAt:   fit.CreatedAt,
			Regime:      fit.Regime.String(),
			Studies:     fit.Studies(),
			Fingerprint: fit.Fingerprint,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt.Time(), out[j].CreatedAt.Time()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryFitRepository) FindByFingerprint(ctx context.Context, fp core.Hash) ([]core.FitID, error) {
	list, err := r.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var ids []core.FitID
	for _, s := range list {
		if s.Fingerprint == fp {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}
