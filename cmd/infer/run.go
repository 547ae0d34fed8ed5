package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/geoinv/aem-rjmcmc/pkg/config"
	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
	"github.com/geoinv/aem-rjmcmc/pkg/driver"
	"github.com/geoinv/aem-rjmcmc/pkg/logging"
	"github.com/geoinv/aem-rjmcmc/pkg/metrics"
)

func runInfer(cmd *cobra.Command, args []string) error {
	optionsPath, outputDir := args[0], args[1]

	skipHDF5, _ := cmd.Flags().GetBool("skip-hdf5")
	seed, _ := cmd.Flags().GetInt64("seed")
	jump, _ := cmd.Flags().GetInt("jump")
	useMPI, _ := cmd.Flags().GetBool("mpi")
	debug, _ := cmd.Flags().GetBool("debug")
	verbose, _ := cmd.Flags().GetBool("verbose")
	stopFile, _ := cmd.Flags().GetString("stop-file")

	logLevel := logging.LevelInfo
	if verbose {
		logLevel = logging.LevelDebug
	}
	log := logging.New(logging.Config{Level: logLevel, Format: logging.FormatText, Output: os.Stdout})

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	parser := config.New()
	opts, err := parser.ParseFile(optionsPath)
	if err != nil {
		log.Error("failed to parse options file", "error", err.Error())
		return err
	}
	for _, w := range parser.Warnings {
		log.Warn(w)
	}
	if skipHDF5 && opts.SaveHDF5 {
		log.Info("--skip-hdf5 set; save_hdf5 in the options file is ignored (only JSON records are ever written)")
	}

	base := filepath.Dir(optionsPath)
	sys, err := config.ReadSystemFile(resolvePath(base, opts.SystemFilename))
	if err != nil {
		log.Error("failed to read system file", "error", err.Error())
		return err
	}

	dataFile, err := os.Open(resolvePath(base, opts.DataFilename))
	if err != nil {
		log.Error("failed to open data file", "error", err.Error())
		return err
	}
	defer dataFile.Close()

	points, err := datapoint.ReadCSV(dataFile, 2*len(sys.Frequencies), sys)
	if err != nil {
		log.Error("failed to read data CSV", "error", err.Error())
		return err
	}
	log.Info("loaded soundings", "count", len(points))

	filter := buildFilter(cmd)
	queue := driver.NewWorkQueue(points, filter)
	if queue.Len() == 0 {
		return fmt.Errorf("no datapoints selected by the given --index/--fiducial/--line filter")
	}

	driverCfg := buildDriverConfig(opts, outputDir, seed)
	driverCfg.Jump = jump

	var reg *metrics.Registry
	if debug {
		reg = metrics.NewRegistry()
		if err := reg.Serve(":9090"); err != nil {
			log.Warn("failed to start metrics server", "error", err.Error())
			reg = nil
		} else {
			log.Info("serving metrics", "addr", ":9090")
		}
	}

	ctx, _ := driver.NewCancellationController(cmd.Context(), driver.CancellationControllerConfig{
		StopFile:             stopFile,
		EnableSignalHandlers: true,
	}, log)

	var dispatcher driver.Dispatcher
	if useMPI {
		mpiDispatcher, err := driver.NewMPIDispatcher(driverCfg, log, reg)
		if err != nil {
			return err
		}
		defer mpiDispatcher.Close()
		dispatcher = mpiDispatcher
	} else {
		dispatcher, err = driver.NewSerialDispatcher(driverCfg, log, reg)
		if err != nil {
			return err
		}
	}

	manifest, err := dispatcher.Run(ctx, queue)
	if reg != nil {
		reg.Shutdown(ctx) //nolint:errcheck
	}
	if err != nil {
		log.Error("run failed", "error", err.Error())
		return err
	}

	failed := 0
	for _, entry := range manifest.Fiducials {
		if entry.Status == "failed" {
			failed++
		}
	}
	log.Info("run complete", "total", len(manifest.Fiducials), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d datapoints failed", failed, len(manifest.Fiducials))
	}
	return nil
}

// buildFilter reads --index/--fiducial/--line into a datapoint.Filter,
// leaving a field nil unless the user actually set that flag (so an
// unset --fiducial 0 doesn't accidentally select fiducial 0).
func buildFilter(cmd *cobra.Command) datapoint.Filter {
	var f datapoint.Filter
	if cmd.Flags().Changed("index") {
		v, _ := cmd.Flags().GetInt("index")
		f.Index = &v
	}
	if cmd.Flags().Changed("fiducial") {
		v, _ := cmd.Flags().GetFloat64("fiducial")
		f.Fiducial = &v
	}
	if cmd.Flags().Changed("line") {
		v, _ := cmd.Flags().GetFloat64("line")
		f.Line = &v
	}
	return f
}

// resolvePath joins a relative path against the options file's directory,
// the way original_source/geobipy resolves data_filename/system_filename
// relative to the parameter file that names them.
func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
