package densities

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"metabias/domain/core"
	"metabias/domain/selection"
	"metabias/internal/numeric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

var alpha3 = []float64{0, 0.025, 0.05, 1}

func psmaParams(theta0, tau, sigma float64, eta ...float64) Params {
	return Params{
		Theta0: theta0,
		Tau:    tau,
		Sigma:  sigma,
		Part:   selection.MustPartition(alpha3),
		Eta:    selection.Weights(eta),
	}
}

// integrateDensity integrates f over the line, split at the weight jumps and
// around the bulk of N(theta0, tau).
func integrateDensity(t *testing.T, f Family, p Params, moment int) float64 {
	t.Helper()
	breaks := p.Part.Breakpoints(p.Sigma)
	for _, k := range []float64{-8, -4, 0, 4, 8} {
		breaks = append(breaks, p.Theta0+k*p.Tau)
	}
	v, err := numeric.DefaultIntegrator().Integrate(func(x float64) float64 {
		d, err := f.Density(x, p)
		require.NoError(t, err)
		return math.Pow(x, float64(moment)) * d
	}, breaks)
	require.NoError(t, err)
	return v
}

func TestWeight_ConcreteScenario(t *testing.T) {
	part := selection.MustPartition(alpha3)
	eta := selection.Weights{3, 2, 1}

	w, err := Weight(1, 0, part, eta)
	require.NoError(t, err)
	assert.Equal(t, 1.0, w)

	w, err = Weight(1, 3, part, eta)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w)

	w, err = Weight(1, -2.1, part, eta)
	require.NoError(t, err)
	assert.Equal(t, 2.0, w)

	w, err = Weight(1, 1e6, part, eta)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w, "far tail lands in the bottom bin")
}

func TestWeight_JumpsAtThresholds(t *testing.T) {
	part := selection.MustPartition(alpha3)
	eta := selection.Weights{3, 2, 1}
	for _, sigma := range []float64{0.2, 1, 3.5} {
		c := part.Thresholds(sigma)
		for j := 1; j < part.Len()-1; j++ {
			jump := sigma * numeric.Quantile(1-alpha3[j]/2)
			assert.InDelta(t, jump, c[j], 1e-9*sigma)
			for _, sign := range []float64{-1, 1} {
				below, err := Weight(sigma, sign*(c[j]*(1-1e-9)), part, eta)
				require.NoError(t, err)
				above, err := Weight(sigma, sign*(c[j]*(1+1e-9)), part, eta)
				require.NoError(t, err)
				assert.Equal(t, eta[j], below, "sigma=%v j=%d", sigma, j)
				assert.Equal(t, eta[j-1], above, "sigma=%v j=%d", sigma, j)
			}
		}
	}
}

func TestWeight_InvalidArguments(t *testing.T) {
	part := selection.MustPartition(alpha3)
	_, err := Weight(0, 1, part, selection.Weights{1, 1, 1})
	assert.True(t, core.IsInvalidArgument(err))
	_, err = Weight(1, 1, part, selection.Weights{1, 1})
	assert.True(t, core.IsInvalidArgument(err))
	_, err = Weight(1, math.NaN(), part, selection.Weights{1, 1, 1})
	assert.True(t, core.IsInvalidArgument(err))
}

func TestNormalizer_MatchesClosedForm(t *testing.T) {
	part := selection.MustPartition(alpha3)
	in := numeric.DefaultIntegrator()
	cases := []struct {
		sigma, theta0, tau float64
		eta                selection.Weights
	}{
		{1, 0, 1, selection.Weights{3, 2, 1}},
		{0.3, 0.4, 0.2, selection.Weights{1, 0.5, 0.1}},
		{2, -1.5, 0.7, selection.Weights{0, 0, 1}},
		{0.1, 5, 1, selection.Weights{1, 0, 0}},
		{1, 40, 0.5, selection.Weights{0.2, 0.3, 1}},
	}
	for _, tc := range cases {
		quadZ, err := Normalizer(in, tc.sigma, tc.theta0, tc.tau, part, tc.eta)
		require.NoError(t, err)
		closed, err := ClosedFormNormalizer(tc.sigma, tc.theta0, tc.tau, part, tc.eta)
		require.NoError(t, err)
		assert.Greater(t, quadZ, 0.0)
		assert.InDelta(t, closed, quadZ, 1e-8*math.Max(1, closed), "case %+v", tc)
	}
}

func TestNormalizer_UniformWeightsIsTheWeight(t *testing.T) {
	z, err := Normalizer(numeric.DefaultIntegrator(), 0.5, 1, 2, selection.MustPartition(alpha3), selection.Weights{2, 2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, z, 1e-9)
}

func TestNormalizer_DomainErrors(t *testing.T) {
	part := selection.MustPartition(alpha3)
	in := numeric.DefaultIntegrator()

	_, err := Normalizer(in, 1, 0, 0, part, selection.Weights{1, 1, 1})
	assert.True(t, core.IsDomainError(err), "tau = 0")
	_, err = Normalizer(in, 1, 0, -1, part, selection.Weights{1, 1, 1})
	assert.True(t, core.IsDomainError(err), "tau < 0")
	_, err = Normalizer(in, 1, 0, 1, part, selection.Weights{0, 0, 0})
	assert.True(t, core.IsDomainError(err), "zero mass")
	_, err = ClosedFormNormalizer(1, 0, 1, part, selection.Weights{0, 0, 0})
	assert.True(t, core.IsDomainError(err))
}

func TestNormalizer_NonConvergenceIsReported(t *testing.T) {
	in := numeric.Integrator{AbsTol: 1e-300, RelTol: 0, MinPoints: 2, MaxPoints: 4}
	_, err := Normalizer(in, 1, 0, 1, selection.MustPartition(alpha3), selection.Weights{3, 2, 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNumericalInstability))
}

func TestSelectedNormal_IntegratesToOne(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	for _, p := range []Params{
		psmaParams(0, 1, 1, 3, 2, 1),
		psmaParams(0.3, 0.25, 0.4, 1, 0.6, 0.05),
		psmaParams(-1, 2, 0.5, 0, 1, 1),
	} {
		assert.InDelta(t, 1.0, integrateDensity(t, fam, p, 0), 1e-6)
	}
}

func TestSelectedNormal_LogRoundTrip(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	p := psmaParams(0, 1, 1, 3, 2, 1)
	for _, x := range []float64{-10, -6, -2.2, -1, 0, 0.5, 1.97, 3, 7.5, 10} {
		d, err := fam.Density(x, p)
		require.NoError(t, err)
		ld, err := fam.LogDensity(x, p)
		require.NoError(t, err)
		assert.InDelta(t, math.Log(d), ld, 1e-10, "x=%v", x)
	}
}

func TestSelectedNormal_LogDensityStaysFiniteInTheTail(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	ld, err := fam.LogDensity(60, psmaParams(0, 1, 1, 3, 2, 1))
	require.NoError(t, err)
	assert.False(t, math.IsInf(ld, 0))
	assert.Less(t, ld, -1000.0)
}

func TestSelectedNormal_ZeroWeightBin(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	p := psmaParams(0, 1, 1, 1, 1, 0)
	d, err := fam.Density(0, p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
	ld, err := fam.LogDensity(0, p)
	require.NoError(t, err)
	assert.True(t, math.IsInf(ld, -1))
}

func TestSelectedNormal_Preconditions(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())

	_, err := fam.Density(0, psmaParams(0, 0, 1, 1, 1, 1))
	assert.True(t, core.IsInvalidArgument(err), "tau")
	_, err = fam.Density(0, psmaParams(0, 1, -1, 1, 1, 1))
	assert.True(t, core.IsInvalidArgument(err), "sigma")
	_, err = fam.Density(0, psmaParams(0, 1, 1, 1, 1))
	assert.True(t, core.IsInvalidArgument(err), "eta length")
	_, err = fam.Density(0, psmaParams(0, 1, 1, 0, 0, 0))
	assert.True(t, core.IsDomainError(err), "zero mass")
}

func TestSelectedNormal_ExpectationWithUniformWeights(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	for _, p := range []Params{
		psmaParams(0.7, 1.3, 0.8, 1, 1, 1),
		psmaParams(-2, 0.4, 0.1, 0.3, 0.3, 0.3),
		psmaParams(0, 1, 1, 5, 5, 5),
	} {
		e, err := fam.Expectation(p)
		require.NoError(t, err)
		assert.InDelta(t, p.Theta0, e, 1e-8)
	}
}

func TestSelectedNormal_ExpectationMatchesFirstMoment(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	p := psmaParams(0.2, 0.5, 0.3, 1, 0.5, 0.1)
	e, err := fam.Expectation(p)
	require.NoError(t, err)
	assert.InDelta(t, integrateDensity(t, fam, p, 1), e, 1e-6)
	assert.Greater(t, e, p.Theta0, "selection for significance pulls the mean away from zero")
}

func TestSelectedNormal_SampleReproducible(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	p := psmaParams(0, 1, 1, 3, 2, 1)

	a, err := fam.Sample(rand.New(rand.NewPCG(20240601, 7)), 50, p)
	require.NoError(t, err)
	b, err := fam.Sample(rand.New(rand.NewPCG(20240601, 7)), 50, p)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := fam.Sample(rand.New(rand.NewPCG(20240601, 8)), 50, p)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

// The sampler must consume the stream as: one normal proposal, then one
// uniform, per attempt. Replaying that order by hand reproduces every draw.
func TestSelectedNormal_SampleProposalOrder(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	p := psmaParams(0, 1, 1, 3, 2, 1)
	got, err := fam.Sample(rand.New(rand.NewPCG(1, 2)), 25, p)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	unif := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	eta := []float64{3, 2, 1}
	want := make([]float64, 0, 25)
	for len(want) < 25 {
		theta := normal.Rand()
		u := unif.Rand()
		j := p.Part.Bin(selection.PValue(theta, 1))
		if u < eta[j]/3 {
			want = append(want, theta)
		}
	}
	for i := range want {
		assert.Equal(t, math.Float64bits(want[i]), math.Float64bits(got[i]), "draw %d", i)
	}
}

func TestSelectedNormal_SampleMatchesExpectation(t *testing.T) {
	cfg := DefaultConfig()
	fam := NewSelectedNormal(cfg)
	p := psmaParams(0.5, 1, 1, 1, 0.6, 0.2)
	draws, err := SampleParallel(context.Background(), fam, 99, 20000, p, 4)
	require.NoError(t, err)

	var mean float64
	for _, d := range draws {
		mean += d
	}
	mean /= float64(len(draws))
	e, err := fam.Expectation(p)
	require.NoError(t, err)
	assert.InDelta(t, e, mean, 0.05)
}

func TestSelectedNormal_SamplingStalled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxProposals = 100
	fam := NewSelectedNormal(cfg)
	// Only the bottom bin (|θ| > 2.24) is ever published, but θ ~ N(0, 0.01).
	_, err := fam.Sample(rand.New(rand.NewPCG(3, 3)), 1, psmaParams(0, 0.01, 1, 1, 0, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSamplingStalled))
	assert.True(t, core.IsNumericalError(err))
}

func TestSelectedNormal_SampleArguments(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := fam.Sample(rng, 3, psmaParams(0, 1, 1, 0, 0, 0))
	assert.True(t, core.IsDomainError(err))
	_, err = fam.Sample(nil, 3, psmaParams(0, 1, 1, 1, 1, 1))
	assert.True(t, core.IsInvalidArgument(err))
	_, err = fam.Sample(rng, -1, psmaParams(0, 1, 1, 1, 1, 1))
	assert.True(t, core.IsInvalidArgument(err))
	_, err = fam.Sample(rng, 3, psmaParams(0, -1, 1, 1, 1, 1))
	assert.True(t, core.IsInvalidArgument(err))

	out, err := fam.Sample(rng, 0, psmaParams(0, 1, 1, 1, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func phmaParams(theta0, tau, sigma float64, eta ...float64) Params {
	return psmaParams(theta0, tau, sigma, eta...)
}

func TestPHackingMixture_RejectsOffSimplex(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	p := Params{Theta0: 0, Tau: 1, Sigma: 1, Part: selection.MustPartition([]float64{0, 0.05, 1}), Eta: selection.Weights{0.5, 0.6}}

	_, err := fam.Density(0, p)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = fam.LogDensity(0, p)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = fam.Expectation(p)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = fam.Sample(rand.New(rand.NewPCG(1, 1)), 1, p)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestPHackingMixture_IntegratesToOne(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	for _, p := range []Params{
		phmaParams(0, 1, 1, 0.5, 0.3, 0.2),
		phmaParams(0.4, 0.3, 0.2, 0.1, 0.1, 0.8),
		phmaParams(-1, 2, 1.5, 0, 1, 0),
	} {
		assert.InDelta(t, 1.0, integrateDensity(t, fam, p, 0), 1e-6)
	}
}

func TestPHackingMixture_LogRoundTrip(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	p := phmaParams(0, 1, 1, 0.5, 0.3, 0.2)
	for _, x := range []float64{-10, -6, -2.2, -1, 0, 0.5, 1.97, 3, 7.5, 10} {
		d, err := fam.Density(x, p)
		require.NoError(t, err)
		ld, err := fam.LogDensity(x, p)
		require.NoError(t, err)
		assert.InDelta(t, math.Log(d), ld, 1e-10, "x=%v", x)
	}
}

func TestPHackingMixture_LogDensityStaysFiniteInTheTail(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	ld, err := fam.LogDensity(60, phmaParams(0, 1, 1, 0.5, 0.3, 0.2))
	require.NoError(t, err)
	assert.False(t, math.IsInf(ld, 0))
	assert.Less(t, ld, -1000.0)
}

func TestPHackingMixture_ComponentFormula(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	p := phmaParams(0.3, 0.8, 1, 0.5, 0.3, 0.2)
	regions := p.Part.Regions(p.Sigma)
	for _, x := range []float64{-4, -2.1, 0, 1.0, 2.05, 3} {
		j := p.Part.Bin(selection.PValue(x, p.Sigma))
		pj := math.Exp(RegionLogProb(p.Theta0, p.Tau, regions[j]))
		want := p.Eta[j] * numeric.PDF((x-p.Theta0)/p.Tau) / p.Tau / pj

		got, err := fam.Density(x, p)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12*math.Max(1, want), "x=%v", x)

		ld, err := fam.LogDensity(x, p)
		require.NoError(t, err)
		assert.InDelta(t, math.Log(want), ld, 1e-10)
	}
}

func TestPHackingMixture_BinProbabilityWeightsRecoverTheNormal(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	part := selection.MustPartition(alpha3)
	theta0, tau, sigma := 0.6, 1.1, 0.9
	lp := BinLogProbs(theta0, tau, part.Regions(sigma), nil)
	eta := make(selection.Weights, len(lp))
	var sum float64
	for j := range lp {
		eta[j] = math.Exp(lp[j])
		sum += eta[j]
	}
	eta[len(eta)-1] += 1 - sum

	p := Params{Theta0: theta0, Tau: tau, Sigma: sigma, Part: part, Eta: eta}
	e, err := fam.Expectation(p)
	require.NoError(t, err)
	assert.InDelta(t, theta0, e, 1e-9)

	for _, x := range []float64{-2, 0, 0.6, 1.8, 4} {
		d, err := fam.Density(x, p)
		require.NoError(t, err)
		assert.InDelta(t, numeric.PDF((x-theta0)/tau)/tau, d, 1e-9)
	}
}

func TestPHackingMixture_ExpectationMatchesFirstMoment(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	for _, p := range []Params{
		phmaParams(0, 1, 1, 0.5, 0.3, 0.2),
		phmaParams(0.8, 0.4, 0.3, 0.6, 0.2, 0.2),
	} {
		e, err := fam.Expectation(p)
		require.NoError(t, err)
		assert.InDelta(t, integrateDensity(t, fam, p, 1), e, 1e-6)
	}
}

func TestPHackingMixture_FarTailExpectation(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	// All mass on the bottom bin while N(theta0, tau) sits deep inside the
	// top bin: the component is a normal truncated 40 sds away.
	p := phmaParams(0, 0.05, 1, 1, 0, 0)
	e, err := fam.Expectation(p)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(e))
	// Symmetric tails cancel.
	assert.InDelta(t, 0.0, e, 1e-9)

	p = phmaParams(0.5, 0.05, 1, 1, 0, 0)
	e, err = fam.Expectation(p)
	require.NoError(t, err)
	c := p.Part.Thresholds(1)[1]
	assert.InDelta(t, c, e, 0.01, "mass piles up just past the threshold nearer the mean")
}

func TestPHackingMixture_SampleBinsAndMean(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	p := phmaParams(0.2, 1, 1, 0.5, 0.3, 0.2)
	draws, err := SampleParallel(context.Background(), fam, 7, 20000, p, 3)
	require.NoError(t, err)

	counts := make([]float64, 3)
	var mean float64
	for _, d := range draws {
		counts[p.Part.Bin(selection.PValue(d, p.Sigma))]++
		mean += d
	}
	mean /= float64(len(draws))
	for j := range counts {
		assert.InDelta(t, p.Eta[j], counts[j]/float64(len(draws)), 0.02, "bin %d", j)
	}
	e, err := fam.Expectation(p)
	require.NoError(t, err)
	assert.InDelta(t, e, mean, 0.05)
}

func TestTruncatedStandard(t *testing.T) {
	cases := []struct{ a, b float64 }{
		{-1, 1},
		{5, 6},
		{-6, -5},
		{40, math.Inf(1)},
		{math.Inf(-1), -40},
		{math.Inf(-1), math.Inf(1)},
		{0, 2},
	}
	for _, tc := range cases {
		for _, u := range []float64{1e-12, 0.1, 0.5, 0.9, 1 - 1e-12} {
			z := truncatedStandard(tc.a, tc.b, u)
			assert.False(t, math.IsNaN(z) || math.IsInf(z, 0), "a=%v b=%v u=%v", tc.a, tc.b, u)
			assert.GreaterOrEqual(t, z, tc.a)
			assert.LessOrEqual(t, z, tc.b)
		}
	}
	// Inversion is monotone in u.
	assert.Less(t, truncatedStandard(5, 6, 0.2), truncatedStandard(5, 6, 0.8))
}

func TestSampleParallel_IndependentOfWorkers(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	p := psmaParams(0, 1, 1, 3, 2, 1)
	n := 3*StreamSize + 17

	one, err := SampleParallel(context.Background(), fam, 11, n, p, 1)
	require.NoError(t, err)
	many, err := SampleParallel(context.Background(), fam, 11, n, p, 8)
	require.NoError(t, err)
	assert.Equal(t, one, many)

	head, err := fam.Sample(StreamRNG(11, 0), StreamSize, p)
	require.NoError(t, err)
	assert.Equal(t, head, one[:StreamSize])
}

type failingStreams struct{ at int }

func (f failingStreams) Stream(_ context.Context, seed uint64, k int) (*rand.Rand, error) {
	if k == f.at {
		return nil, errors.New("no stream")
	}
	return StreamRNG(seed, k), nil
}

func TestSampleStreams(t *testing.T) {
	fam := NewPHackingMixture(DefaultConfig())
	p := psmaParams(0.2, 1, 1, 0.5, 0.3, 0.2)
	n := StreamSize + 5

	want, err := SampleParallel(context.Background(), fam, 5, n, p, 2)
	require.NoError(t, err)
	got, err := SampleStreams(context.Background(), fam, failingStreams{at: -1}, 5, n, p, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = SampleStreams(context.Background(), fam, failingStreams{at: 1}, 5, n, p, 2)
	assert.EqualError(t, err, "no stream")

	_, err = SampleStreams(context.Background(), fam, nil, 5, n, p, 2)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestSampleParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SampleParallel(ctx, NewSelectedNormal(DefaultConfig()), 1, 10, psmaParams(0, 1, 1, 1, 1, 1), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDensityBatch_Broadcasts(t *testing.T) {
	fam := NewSelectedNormal(DefaultConfig())
	b := Batch{
		X:      []float64{-1, 0, 2.5},
		Theta0: []float64{0},
		Tau:    []float64{1, 0.5, 2},
		Sigma:  []float64{1},
		Part:   selection.MustPartition(alpha3),
		Eta:    selection.Weights{3, 2, 1},
	}
	got, err := DensityBatch(context.Background(), fam, b, true, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, x := range b.X {
		want, err := fam.LogDensity(x, Params{Theta0: 0, Tau: b.Tau[i], Sigma: 1, Part: b.Part, Eta: b.Eta})
		require.NoError(t, err)
		assert.Equal(t, want, got[i])
	}

	b.Sigma = []float64{1, 2}
	_, err = DensityBatch(context.Background(), fam, b, false, 2)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestWeightAndExpectationBatch(t *testing.T) {
	part := selection.MustPartition(alpha3)
	w, err := WeightBatch(context.Background(), Batch{
		X:     []float64{0, 3, -2.1},
		Sigma: []float64{1},
		Part:  part,
		Eta:   selection.Weights{3, 2, 1},
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 2}, w)

	fam := NewSelectedNormal(DefaultConfig())
	e, err := ExpectationBatch(context.Background(), fam, Batch{
		Theta0: []float64{-1, 0, 1},
		Tau:    []float64{1},
		Sigma:  []float64{1},
		Part:   part,
		Eta:    selection.Weights{1, 1, 1},
	}, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, e, 1e-8)

	z, err := NormalizerBatch(context.Background(), DefaultConfig(), Batch{
		Theta0: []float64{0},
		Tau:    []float64{1},
		Sigma:  []float64{1, 2},
		Part:   part,
		Eta:    selection.Weights{2, 2, 2},
	}, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 2}, z, 1e-9)
}

func TestForName(t *testing.T) {
	f, err := ForName("psma", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "psma", f.Name())
	f, err = ForName(" Mixture ", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "phma", f.Name())
	_, err = ForName("beta", DefaultConfig())
	assert.True(t, core.IsInvalidArgument(err))
}
