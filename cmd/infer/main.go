package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "infer <options_file> <output_directory>",
	Short:   "Reversible-jump MCMC inversion of airborne EM soundings",
	Long:    `infer runs a trans-dimensional Bayesian inversion over one or more airborne EM soundings, writing one result record per datapoint into <output_directory>.`,
	Version: version,
	Args:    cobra.ExactArgs(2),
	RunE:    runInfer,
}

func init() {
	rootCmd.Flags().Bool("skip-hdf5", false, "ignore save_hdf5 in the options file (no HDF5 output is written; records are always JSON)")
	rootCmd.Flags().Int64("seed", 0, "base PRNG seed (0 = derive from the current time)")
	rootCmd.Flags().Int("jump", 0, "offset added to each datapoint's PRNG stream index (serial mode only, for debugging)")
	rootCmd.Flags().Int("index", 0, "run only the datapoint at this position in the data CSV")
	rootCmd.Flags().Float64("fiducial", 0, "run only the datapoint with this fiducial")
	rootCmd.Flags().Float64("line", 0, "run only datapoints on this line number")
	rootCmd.Flags().Bool("mpi", false, "dispatch datapoints across MPI ranks instead of running serially")
	rootCmd.Flags().Bool("debug", false, "serve Prometheus metrics on :9090 for the duration of the run")
	rootCmd.Flags().Bool("verbose", false, "enable debug-level logging")
	rootCmd.Flags().String("stop-file", "", "cancel the run if this file appears (the in-flight datapoint stops early and is recorded as failed)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
