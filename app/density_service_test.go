package app

import (
	"context"
	"math"
	"testing"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/densities"
	"metabias/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDensityService(t *testing.T) *DensityService {
	t.Helper()
	svc, err := NewDensityService(densities.DefaultConfig(), &testkit.RNGAdapter{}, nil)
	require.NoError(t, err)
	return svc
}

func TestDensityService_Weight(t *testing.T) {
	svc := newDensityService(t)
	w, err := svc.Weight(context.Background(), Inputs{
		X:     []float64{0, 3, -3},
		Sigma: []float64{1},
		Alpha: []float64{1, 0.05, 0, 0.025},
		Eta:   []float64{3, 2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 3}, w)

	_, err = svc.Weight(context.Background(), Inputs{X: []float64{0}, Sigma: []float64{1}, Eta: []float64{1}})
	assert.True(t, core.IsInvalidArgument(err), "eta length must match the default partition")
}

func TestDensityService_DensityAndExpectation(t *testing.T) {
	svc := newDensityService(t)
	in := Inputs{
		X:      []float64{-1, 0, 1},
		Theta0: []float64{0},
		Tau:    []float64{1},
		Sigma:  []float64{1},
		Eta:    []float64{1, 1, 1},
	}
	d, err := svc.Density(context.Background(), "psma", in, false)
	require.NoError(t, err)
	for i, x := range in.X {
		assert.InDelta(t, math.Exp(-x*x/2)/math.Sqrt(2*math.Pi), d[i], 1e-7)
	}

	ld, err := svc.Density(context.Background(), "phma", Inputs{
		X: []float64{0.5}, Theta0: []float64{0}, Tau: []float64{1}, Sigma: []float64{1},
		Eta: []float64{0.2, 0.3, 0.5},
	}, true)
	require.NoError(t, err)
	assert.False(t, math.IsInf(ld[0], 0))

	e, err := svc.Expectation(context.Background(), "selected_normal", Inputs{
		Theta0: []float64{0.4}, Tau: []float64{1}, Sigma: []float64{1}, Eta: []float64{2, 2, 2},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, e[0], 1e-7)

	z, err := svc.Normalizer(context.Background(), Inputs{
		Theta0: []float64{0}, Tau: []float64{1}, Sigma: []float64{1}, Eta: []float64{2, 2, 2},
	})
	require.NoError(t, err)
	assert.InDelta(t, 2, z[0], 1e-7)

	_, err = svc.Density(context.Background(), "gamma", in, false)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestDensityService_SampleIsSeeded(t *testing.T) {
	svc := newDensityService(t)
	in := SampleInput{N: 500, Seed: 17, Theta0: 0.1, Tau: 1, Sigma: 1, Eta: []float64{1, 0.5, 0.25}}

	a, err := svc.Sample(context.Background(), "psma", in)
	require.NoError(t, err)
	b, err := svc.Sample(context.Background(), "psma", in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 500)

	// The testkit streams are the default PCG streams.
	plain, err := NewDensityService(densities.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	c, err := plain.Sample(context.Background(), "psma", in)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	in.Eta = []float64{0, 0, 0}
	_, err = svc.Sample(context.Background(), "psma", in)
	assert.True(t, core.IsDomainError(err))
}

func TestDensityService_SampleRejectsTooManyDraws(t *testing.T) {
	cfg := densities.DefaultConfig()
	cfg.MaxDraws = 100
	svc, err := NewDensityService(cfg, &testkit.RNGAdapter{}, nil)
	require.NoError(t, err)
	in := SampleInput{N: 100, Seed: 1, Theta0: 0, Tau: 1, Sigma: 1, Eta: []float64{1, 1, 1}}

	draws, err := svc.Sample(context.Background(), "psma", in)
	require.NoError(t, err)
	assert.Len(t, draws, 100)

	in.N = 101
	_, err = svc.Sample(context.Background(), "phma", in)
	assert.True(t, core.IsInvalidArgument(err))

	in.N = math.MaxInt
	_, err = svc.Sample(context.Background(), "psma", in)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestDensityService_LogLikUsesConfiguredSimplexTolerance(t *testing.T) {
	in := LogLikInput{
		Regime: selection.RegimePHacking,
		Yi:     []float64{0.1},
		Vi:     []float64{1},
		Theta:  []float64{0},
		Eta:    []float64{0.2, 0.3, 0.5004},
	}
	_, err := newDensityService(t).LogLik(context.Background(), in)
	assert.True(t, core.IsInvalidArgument(err))

	cfg := densities.DefaultConfig()
	cfg.SimplexTol = 1e-3
	svc, err := NewDensityService(cfg, nil, nil)
	require.NoError(t, err)
	res, err := svc.LogLik(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.Total, 0))
}

func TestDensityService_LogLik(t *testing.T) {
	svc := newDensityService(t)
	res, err := svc.LogLik(context.Background(), LogLikInput{
		Regime: selection.RegimeNone,
		Yi:     []float64{0.1, 0.2},
		Vi:     []float64{1, 1},
		Theta:  []float64{0},
	})
	require.NoError(t, err)
	want := -0.5*math.Log(2*math.Pi) - 0.005 - 0.5*math.Log(2*math.Pi) - 0.02
	assert.InDelta(t, want, res.Total, 1e-12)
	assert.Len(t, res.Pointwise, 2)

	_, err = svc.LogLik(context.Background(), LogLikInput{
		Regime: selection.RegimePHacking,
		Yi:     []float64{0.1},
		Vi:     []float64{1},
		Theta:  []float64{0},
		Eta:    []float64{1, 1, 1},
	})
	assert.True(t, core.IsInvalidArgument(err))
}

func TestNewDensityService_RejectsConfig(t *testing.T) {
	cfg := densities.DefaultConfig()
	cfg.Workers = 0
	_, err := NewDensityService(cfg, nil, nil)
	assert.Error(t, err)

	cfg = densities.DefaultConfig()
	cfg.MaxDraws = 0
	_, err = NewDensityService(cfg, nil, nil)
	assert.True(t, core.IsInvalidArgument(err))
}
