package likelihood

import (
	"context"
	"math"
	"testing"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/densities"
	"metabias/internal/numeric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var part3 = selection.MustPartition([]float64{0, 0.025, 0.05, 1})

func mustKernel(t *testing.T, r selection.Regime) Kernel {
	t.Helper()
	k, err := ForRegime(r, part3, selection.SimplexTolerance)
	require.NoError(t, err)
	return k
}

type point struct{ y, theta, sigma float64 }

var points = []point{
	{0, 0, 1},
	{0.3, 0.1, 0.2},
	{2.1, 0.5, 1},
	{-2.6, 0, 1},
	{5, 4, 0.5},
	{-0.05, 1.2, 0.03},
}

func TestForRegime(t *testing.T) {
	for _, r := range selection.Regimes {
		k := mustKernel(t, r)
		assert.Equal(t, r, k.Regime())
		assert.Equal(t, part3.Cutoffs(), k.Partition().Cutoffs())
	}
	_, err := ForRegime(selection.Regime(42), part3, selection.SimplexTolerance)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = ForRegime(selection.RegimePHacking, selection.Partition{}, selection.SimplexTolerance)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = ForRegime(selection.RegimePHacking, part3, -1)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestPublicationSelection_UniformWeightsReduceToNormal(t *testing.T) {
	psma := mustKernel(t, selection.RegimePublicationSelection)
	plain := mustKernel(t, selection.RegimeNone)
	for _, eta := range []selection.Weights{{1, 1, 1}, {0.4, 0.4, 0.4}, {7, 7, 7}} {
		for _, p := range points {
			want := plain.LogLik(p.y, p.theta, p.sigma, nil)
			assert.InDelta(t, want, psma.LogLik(p.y, p.theta, p.sigma, eta), 1e-12, "%+v eta=%v", p, eta)
			assert.InDelta(t, plain.GradTheta(p.y, p.theta, p.sigma, nil),
				psma.GradTheta(p.y, p.theta, p.sigma, eta), 1e-8)
		}
	}
}

func TestPublicationSelection_MatchesSelectedNormal(t *testing.T) {
	psma := mustKernel(t, selection.RegimePublicationSelection)
	fam := densities.NewSelectedNormal(densities.DefaultConfig())
	eta := selection.Weights{3, 2, 1}
	for _, p := range points {
		want, err := fam.LogDensity(p.y, densities.Params{
			Theta0: p.theta, Tau: p.sigma, Sigma: p.sigma, Part: part3, Eta: eta,
		})
		require.NoError(t, err)
		assert.InDelta(t, want, psma.LogLik(p.y, p.theta, p.sigma, eta), 1e-7, "%+v", p)
	}
}

func TestPHacking_MatchesMixture(t *testing.T) {
	phma := mustKernel(t, selection.RegimePHacking)
	fam := densities.NewPHackingMixture(densities.DefaultConfig())
	eta := selection.Weights{0.5, 0.3, 0.2}
	for _, p := range points {
		want, err := fam.LogDensity(p.y, densities.Params{
			Theta0: p.theta, Tau: p.sigma, Sigma: p.sigma, Part: part3, Eta: eta,
		})
		require.NoError(t, err)
		assert.InDelta(t, want, phma.LogLik(p.y, p.theta, p.sigma, eta), 1e-10, "%+v", p)
	}
}

func TestKernels_GradThetaMatchesFiniteDifference(t *testing.T) {
	const h = 1e-5
	cases := []struct {
		regime selection.Regime
		eta    selection.Weights
	}{
		{selection.RegimePublicationSelection, selection.Weights{3, 2, 1}},
		{selection.RegimePublicationSelection, selection.Weights{1, 0.2, 0.05}},
		{selection.RegimePHacking, selection.Weights{0.5, 0.3, 0.2}},
		{selection.RegimeNone, nil},
	}
	for _, tc := range cases {
		k := mustKernel(t, tc.regime)
		for _, p := range points {
			up := k.LogLik(p.y, p.theta+h, p.sigma, tc.eta)
			down := k.LogLik(p.y, p.theta-h, p.sigma, tc.eta)
			fd := (up - down) / (2 * h)
			got := k.GradTheta(p.y, p.theta, p.sigma, tc.eta)
			assert.InDelta(t, fd, got, 1e-5*math.Max(1, math.Abs(fd)), "%v %+v", tc.regime, p)
		}
	}
}

func TestPublicationSelection_GradEtaMatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	k := mustKernel(t, selection.RegimePublicationSelection)
	eta := selection.Weights{3, 2, 1}
	for _, p := range points {
		grad := k.GradEta(p.y, p.theta, p.sigma, eta, nil)
		require.Len(t, grad, 3)
		for j := range eta {
			up := append(selection.Weights(nil), eta...)
			down := append(selection.Weights(nil), eta...)
			up[j] += h
			down[j] -= h
			fd := (k.LogLik(p.y, p.theta, p.sigma, up) - k.LogLik(p.y, p.theta, p.sigma, down)) / (2 * h)
			assert.InDelta(t, fd, grad[j], 1e-5, "%+v j=%d", p, j)
		}
	}
}

func TestPHacking_GradEtaOnlyOwnBin(t *testing.T) {
	k := mustKernel(t, selection.RegimePHacking)
	grad := k.GradEta(3, 0, 1, selection.Weights{0.5, 0.3, 0.2}, make([]float64, 1))
	assert.Equal(t, []float64{2, 0, 0}, grad)

	none := mustKernel(t, selection.RegimeNone)
	assert.Equal(t, []float64{0, 0, 0}, none.GradEta(1, 0, 1, nil, nil))
}

func TestKernels_FiniteForExtremeTheta(t *testing.T) {
	cases := []struct {
		regime selection.Regime
		eta    selection.Weights
	}{
		{selection.RegimePublicationSelection, selection.Weights{3, 2, 1}},
		{selection.RegimePublicationSelection, selection.Weights{0, 0, 1}},
		{selection.RegimePHacking, selection.Weights{0.5, 0.3, 0.2}},
		{selection.RegimeNone, nil},
	}
	for _, tc := range cases {
		k := mustKernel(t, tc.regime)
		for _, theta := range []float64{-1e3, -50, -8, 8, 50, 1e3} {
			for _, sigma := range []float64{0.1, 1} {
				y := 0.0 // top bin, positive weight in every case
				ll := k.LogLik(y, theta, sigma, tc.eta)
				g := k.GradTheta(y, theta, sigma, tc.eta)
				assert.False(t, math.IsNaN(ll) || math.IsInf(ll, 0), "%v theta=%v sigma=%v ll=%v", tc.regime, theta, sigma, ll)
				assert.False(t, math.IsNaN(g) || math.IsInf(g, 0), "%v theta=%v sigma=%v grad=%v", tc.regime, theta, sigma, g)
			}
		}
		// Far enough out that theta ± sigma·q rounds to theta.
		for _, theta := range []float64{-1e17, 1e17, 1e100, -1e160, 1e160, 1e300} {
			for _, sigma := range []float64{0.1, 1} {
				ll := k.LogLik(0, theta, sigma, tc.eta)
				assert.False(t, math.IsNaN(ll) || math.IsInf(ll, 0), "%v theta=%v sigma=%v ll=%v", tc.regime, theta, sigma, ll)
				assert.Less(t, ll, -1e16, "%v theta=%v sigma=%v", tc.regime, theta, sigma)
				assert.False(t, math.IsNaN(k.GradTheta(0, theta, sigma, tc.eta)), "%v theta=%v sigma=%v", tc.regime, theta, sigma)
			}
		}
	}
}

func TestPHacking_HugeThetaMatchesTailAsymptote(t *testing.T) {
	k := mustKernel(t, selection.RegimePHacking)
	eta := selection.Weights{0.5, 0.3, 0.2}
	q := part3.Thresholds(1)[2]
	// y = 0 sits in the non-significant bin (-q, q); for |theta| >> q the
	// truncated density there is about exp(-q·|theta|)·|theta|.
	for _, theta := range []float64{1e17, -1e17, 1e160} {
		want := math.Log(0.2) - q*math.Abs(theta)
		assert.InEpsilon(t, want, k.LogLik(0, theta, 1, eta), 1e-9, "theta=%v", theta)
	}
}

func TestPublicationSelection_FavorsSignificantResults(t *testing.T) {
	k := mustKernel(t, selection.RegimePublicationSelection)
	plain := mustKernel(t, selection.RegimeNone)
	eta := selection.Weights{1, 0.5, 0.1}
	// A significant estimate is more likely than without selection, a null
	// one less likely.
	assert.Greater(t, k.LogLik(2.5, 0.5, 1, eta), plain.LogLik(2.5, 0.5, 1, nil))
	assert.Less(t, k.LogLik(0.1, 0.5, 1, eta), plain.LogLik(0.1, 0.5, 1, nil))
}

func TestValidate(t *testing.T) {
	psma := mustKernel(t, selection.RegimePublicationSelection)
	assert.NoError(t, psma.Validate(selection.Weights{3, 2, 1}))
	assert.True(t, core.IsDomainError(psma.Validate(selection.Weights{0, 0, 0})))
	assert.True(t, core.IsInvalidArgument(psma.Validate(selection.Weights{1, 1})))

	two := selection.MustPartition([]float64{0, 0.05, 1})
	phma, err := ForRegime(selection.RegimePHacking, two, selection.SimplexTolerance)
	require.NoError(t, err)
	assert.True(t, core.IsInvalidArgument(phma.Validate(selection.Weights{0.5, 0.6})))
	assert.NoError(t, phma.Validate(selection.Weights{0.4, 0.6}))
	assert.True(t, core.IsInvalidArgument(phma.Validate(selection.Weights{0.4, 0.6005})))

	// The slack follows the configured tolerance, as the mixture density does.
	loose, err := ForRegime(selection.RegimePHacking, two, 1e-3)
	require.NoError(t, err)
	assert.NoError(t, loose.Validate(selection.Weights{0.4, 0.6005}))
	cfg := densities.DefaultConfig()
	cfg.SimplexTol = 1e-3
	mix := densities.NewPHackingMixture(cfg)
	_, err = mix.LogDensity(0, densities.Params{Theta0: 0, Tau: 1, Sigma: 1, Part: two, Eta: selection.Weights{0.4, 0.6005}})
	assert.NoError(t, err)

	assert.NoError(t, mustKernel(t, selection.RegimeNone).Validate(nil))
}

func TestSumAndPointwise(t *testing.T) {
	k := mustKernel(t, selection.RegimeNone)
	s := Studies{Y: []float64{0.1, 0.5, -0.2}, V: []float64{0.04, 0.25, 0.01}}

	ll, err := Pointwise(context.Background(), k, s, []float64{0.2}, nil, 2)
	require.NoError(t, err)
	require.Len(t, ll, 3)
	var want float64
	for i := range s.Y {
		sd := math.Sqrt(s.V[i])
		v := numeric.LogPDF((s.Y[i]-0.2)/sd) - math.Log(sd)
		assert.InDelta(t, v, ll[i], 1e-14)
		want += v
	}
	total, err := Sum(context.Background(), k, s, []float64{0.2}, nil, 2)
	require.NoError(t, err)
	assert.InDelta(t, want, total, 1e-12)

	_, err = Sum(context.Background(), k, s, []float64{0, 1}, nil, 2)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = Sum(context.Background(), k, Studies{Y: []float64{1}, V: []float64{0}}, []float64{0}, nil, 1)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = Sum(context.Background(), k, Studies{Y: []float64{1, 2}, V: []float64{1}}, []float64{0}, nil, 1)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = Sum(context.Background(), k, Studies{Y: []float64{1}, V: []float64{1}}, []float64{0, 1}, nil, 1)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = Sum(context.Background(), k, Studies{}, []float64{0}, nil, 1)
	assert.True(t, core.IsInvalidArgument(err))

	phma := mustKernel(t, selection.RegimePHacking)
	_, err = Sum(context.Background(), phma, s, []float64{0}, selection.Weights{1, 1, 1}, 1)
	assert.True(t, core.IsInvalidArgument(err))
}
