package main

import (
	"metabias/app"
	"metabias/domain/selection"

	"github.com/spf13/cobra"
)

// inputFlags binds the broadcastable vectors shared by the density commands.
func inputFlags(cmd *cobra.Command, in *app.Inputs, withX, withParams bool) {
	if withX {
		cmd.Flags().Float64SliceVar(&in.X, "x", nil, "Evaluation points")
	}
	if withParams {
		cmd.Flags().Float64SliceVar(&in.Theta0, "theta0", []float64{0}, "Mean of the underlying normal")
		cmd.Flags().Float64SliceVar(&in.Tau, "tau", []float64{1}, "Standard deviation of the underlying normal")
	}
	cmd.Flags().Float64SliceVar(&in.Sigma, "sigma", []float64{1}, "Standard error used to compute p-values")
	cmd.Flags().Float64SliceVar(&in.Alpha, "alpha", nil, "Significance cutoffs (default 0,0.025,0.05,1)")
	cmd.Flags().Float64SliceVar(&in.Eta, "eta", nil, "Per-bin weights")
}

func newWeightCmd() *cobra.Command {
	var in app.Inputs
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Evaluate the step selection weight at each x",
		Long: `Evaluate the step weight eta_j for the significance bin of each x.

Example: metabias weight --x 0,2.5,-3 --sigma 1 --eta 1,0.6,0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newDensityService()
			if err != nil {
				return err
			}
			out, err := svc.Weight(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeValues(cmd.OutOrStdout(), out, asJSON)
		},
	}
	inputFlags(cmd, &in, true, false)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	return cmd
}

func newNormalizerCmd() *cobra.Command {
	var in app.Inputs
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "normalizer",
		Short: "Evaluate the selected-normal normalizing constant by quadrature",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newDensityService()
			if err != nil {
				return err
			}
			out, err := svc.Normalizer(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeValues(cmd.OutOrStdout(), out, asJSON)
		},
	}
	inputFlags(cmd, &in, false, true)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	return cmd
}

func newDensityCmd() *cobra.Command {
	var in app.Inputs
	var family string
	var logScale, asJSON bool

	cmd := &cobra.Command{
		Use:   "density",
		Short: "Evaluate a selection-adjusted density",
		Long: `Evaluate the selected-normal (psma) or p-hacking mixture (phma) density.

Example: metabias density --family phma --x 0.5,2 --theta0 0.2 --eta 0.5,0.3,0.2 --log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newDensityService()
			if err != nil {
				return err
			}
			out, err := svc.Density(cmd.Context(), family, in, logScale)
			if err != nil {
				return err
			}
			return writeValues(cmd.OutOrStdout(), out, asJSON)
		},
	}
	inputFlags(cmd, &in, true, true)
	cmd.Flags().StringVar(&family, "family", "psma", "Density family: psma or phma")
	cmd.Flags().BoolVar(&logScale, "log", false, "Return log-density")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	return cmd
}

func newExpectCmd() *cobra.Command {
	var in app.Inputs
	var family string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "expect",
		Short: "Evaluate the mean of a selection-adjusted density",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newDensityService()
			if err != nil {
				return err
			}
			out, err := svc.Expectation(cmd.Context(), family, in)
			if err != nil {
				return err
			}
			return writeValues(cmd.OutOrStdout(), out, asJSON)
		},
	}
	inputFlags(cmd, &in, false, true)
	cmd.Flags().StringVar(&family, "family", "psma", "Density family: psma or phma")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	return cmd
}

func newSampleCmd() *cobra.Command {
	var in app.SampleInput
	var family string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw from a selection-adjusted density",
		Long: `Draw n values from one parameter tuple. The same seed gives the same draws.

Example: metabias sample --family psma --n 1000 --seed 42 --eta 1,0.5,0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newDensityService()
			if err != nil {
				return err
			}
			out, err := svc.Sample(cmd.Context(), family, in)
			if err != nil {
				return err
			}
			return writeValues(cmd.OutOrStdout(), out, asJSON)
		},
	}
	cmd.Flags().StringVar(&family, "family", "psma", "Density family: psma or phma")
	cmd.Flags().IntVar(&in.N, "n", 100, "Number of draws")
	cmd.Flags().Uint64Var(&in.Seed, "seed", 42, "Random seed for deterministic draws")
	cmd.Flags().Float64Var(&in.Theta0, "theta0", 0, "Mean of the underlying normal")
	cmd.Flags().Float64Var(&in.Tau, "tau", 1, "Standard deviation of the underlying normal")
	cmd.Flags().Float64Var(&in.Sigma, "sigma", 1, "Standard error used to compute p-values")
	cmd.Flags().Float64SliceVar(&in.Alpha, "alpha", nil, "Significance cutoffs (default 0,0.025,0.05,1)")
	cmd.Flags().Float64SliceVar(&in.Eta, "eta", nil, "Per-bin weights")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	return cmd
}

func newLogLikCmd() *cobra.Command {
	var in app.LogLikInput
	var regime string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "loglik",
		Short: "Evaluate the per-study log-likelihood under a bias regime",
		Long: `Evaluate the likelihood kernel for every study and print the values and their sum.

Example: metabias loglik --regime psma --yi 0.1,2.5 --vi 1,1 --theta 0 --eta 1,0.5,0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := selection.ParseRegime(regime)
			if err != nil {
				return err
			}
			in.Regime = r
			svc, _, err := newDensityService()
			if err != nil {
				return err
			}
			res, err := svc.LogLik(cmd.Context(), in)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if err := writeValues(cmd.OutOrStdout(), res.Pointwise, false); err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte("total " + formatFloat(res.Total) + "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&regime, "regime", "psma", "Bias regime: psma, phma or cma")
	cmd.Flags().Float64SliceVar(&in.Yi, "yi", nil, "Effect estimates")
	cmd.Flags().Float64SliceVar(&in.Vi, "vi", nil, "Sampling variances")
	cmd.Flags().Float64SliceVar(&in.Theta, "theta", []float64{0}, "Study-level means")
	cmd.Flags().Float64SliceVar(&in.Alpha, "alpha", nil, "Significance cutoffs (default 0,0.025,0.05,1)")
	cmd.Flags().Float64SliceVar(&in.Eta, "eta", nil, "Per-bin weights")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
