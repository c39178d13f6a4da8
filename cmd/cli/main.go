package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"metabias/app"
	"metabias/domain/selection"
	"metabias/internal/config"
	"metabias/internal/testkit"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "metabias",
		Short:         "Selection-adjusted densities and bias-corrected meta-analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newWeightCmd(),
		newNormalizerCmd(),
		newDensityCmd(),
		newExpectCmd(),
		newSampleCmd(),
		newLogLikCmd(),
		newSimulateCmd(),
		newFitCmd(),
	)
	return rootCmd
}

// loadConfig reads the environment configuration shared by every command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newDensityService() (*app.DensityService, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.NewDensityService(cfg.Densities(), &testkit.RNGAdapter{}, cfg.Logger())
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// partitionFlag resolves --alpha, empty meaning the default partition.
func partitionFlag(alpha []float64) (selection.Partition, error) {
	if len(alpha) == 0 {
		return selection.DefaultPartition(), nil
	}
	return selection.SortedPartition(alpha)
}

// writeValues prints one value per line, or a JSON array when asJSON.
func writeValues(w io.Writer, values []float64, asJSON bool) error {
	if asJSON {
		return writeJSON(w, values)
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(w, formatFloat(v)); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
