package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"metabias/adapters/excel"
	"metabias/adapters/report"
	"metabias/adapters/sampler"
	"metabias/app"
	"metabias/domain/model"
	"metabias/domain/selection"
	"metabias/internal/testkit"

	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var lit testkit.Literature
	var regime, out string
	var alpha, eta []float64
	var seed uint64

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic published literature",
		Long: `Generate studies whose estimates pass through a publication-selection or
p-hacking filter. Writes yi, vi and sei as CSV, or as a workbook when --out
ends in .xlsx.

Example: metabias simulate --studies 40 --regime psma --eta 1,0.4,0.1 --seed 7 --out studies.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := selection.ParseRegime(regime)
			if err != nil {
				return err
			}
			part, err := partitionFlag(alpha)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lit.Regime, lit.Part, lit.Eta = r, part, eta

			rng, err := (&testkit.RNGAdapter{}).SeededStream(cmd.Context(), "simulate", seed)
			if err != nil {
				return err
			}
			studies, err := lit.Generate(rng, cfg.Densities())
			if err != nil {
				return err
			}

			switch {
			case out == "" || out == "-":
				return excel.WriteStudiesCSV(cmd.OutOrStdout(), studies)
			case strings.EqualFold(filepath.Ext(out), ".xlsx"):
				err = excel.WriteStudiesXLSX(out, studies)
			default:
				var f *os.File
				if f, err = os.Create(out); err != nil {
					return err
				}
				if err = excel.WriteStudiesCSV(f, studies); err == nil {
					err = f.Close()
				} else {
					f.Close()
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d studies to %s\n", len(studies.Y), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&lit.Studies, "studies", 30, "Number of published studies")
	cmd.Flags().Float64Var(&lit.Theta0, "theta0", 0.2, "Mean true effect")
	cmd.Flags().Float64Var(&lit.Tau, "tau", 0.1, "Heterogeneity of true effects")
	cmd.Flags().Float64Var(&lit.SigmaMin, "sigma-min", 0.05, "Smallest standard error")
	cmd.Flags().Float64Var(&lit.SigmaMax, "sigma-max", 0.4, "Largest standard error")
	cmd.Flags().StringVar(&regime, "regime", "psma", "Bias regime: psma, phma or cma")
	cmd.Flags().Float64SliceVar(&alpha, "alpha", nil, "Significance cutoffs (default 0,0.025,0.05,1)")
	cmd.Flags().Float64SliceVar(&eta, "eta", nil, "Per-bin weights (required for psma and phma)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (.csv or .xlsx), stdout when empty")
	return cmd
}

func newFitCmd() *cobra.Command {
	var in app.FitInput
	var regime, priorsPath, samplerURL, format, out string
	var columns excel.StudyColumns

	cmd := &cobra.Command{
		Use:   "fit [studies.csv|studies.xlsx]",
		Short: "Fit a bias-corrected meta-analysis with the external sampler",
		Long: `Read studies, build the model for the chosen bias regime and send it to the
posterior sampler at --sampler-url (or SAMPLER_URL). Prints a report.

Example: metabias fit studies.csv --regime phma --priors priors.yaml --seed 1 --format html -o fit.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := selection.ParseRegime(regime)
			if err != nil {
				return err
			}
			in.Regime = r

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if samplerURL == "" {
				samplerURL = cfg.Sampler.URL
			}
			client, err := sampler.NewClient(samplerURL, cfg.Sampler.Timeout)
			if err != nil {
				return fmt.Errorf("sampler: %w (set --sampler-url or SAMPLER_URL)", err)
			}

			studies, err := excel.NewStudyReader(args[0], columns).ReadStudies(ctx)
			if err != nil {
				return err
			}
			in.Yi, in.Vi = studies.Y, studies.V

			if priorsPath != "" {
				part, err := partitionFlag(in.Alpha)
				if err != nil {
					return err
				}
				f, err := os.Open(priorsPath)
				if err != nil {
					return err
				}
				priors, err := model.LoadPriorsYAML(f, part.Bins())
				f.Close()
				if err != nil {
					return err
				}
				in.PriorSet = &priors
			}

			svc := app.NewMetaAnalysisService(client, nil, app.FitDefaults{
				Chains:     cfg.Fit.Chains,
				Iterations: cfg.Fit.Iterations,
				Workers:    cfg.Numerics.Workers,
				SimplexTol: cfg.Numerics.SimplexTol,
			}, cfg.Logger())

			start := time.Now()
			fit, err := svc.Fit(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "fit %s finished in %s\n", fit.ID, time.Since(start).Round(time.Millisecond))

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeFit(w, format, fit)
		},
	}
	cmd.Flags().StringVar(&regime, "regime", "psma", "Bias regime: psma, phma or cma")
	cmd.Flags().Float64SliceVar(&in.Alpha, "alpha", nil, "Significance cutoffs (default 0,0.025,0.05,1)")
	cmd.Flags().StringVar(&priorsPath, "priors", "", "YAML file with prior overrides")
	cmd.Flags().IntVar(&in.Chains, "chains", 0, "Chains (default DEFAULT_CHAINS)")
	cmd.Flags().IntVar(&in.Iterations, "iter", 0, "Iterations per chain (default DEFAULT_ITERATIONS)")
	cmd.Flags().IntVar(&in.Warmup, "warmup", 0, "Warmup iterations (default iter/2)")
	cmd.Flags().Uint64Var(&in.Seed, "seed", 42, "Sampler seed")
	cmd.Flags().StringVar(&samplerURL, "sampler-url", "", "Posterior sampler base URL")
	cmd.Flags().StringVar(&columns.Estimate, "yi-column", "", "Estimate column (detected when empty)")
	cmd.Flags().StringVar(&columns.Variance, "vi-column", "", "Variance column (detected when empty)")
	cmd.Flags().StringVar(&columns.StdError, "sei-column", "", "Standard error column, used when there is no variance column")
	cmd.Flags().StringVar(&format, "format", "md", "Output format: md, html or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, stdout when empty")
	return cmd
}

func writeFit(w io.Writer, format string, fit *model.FittedModel) error {
	switch strings.ToLower(format) {
	case "md", "markdown":
		_, err := io.WriteString(w, report.Markdown(fit))
		return err
	case "html":
		_, err := w.Write(report.HTML(fit))
		return err
	case "json":
		return writeJSON(w, fit)
	}
	return fmt.Errorf("unknown format %q (want md, html or json)", format)
}
