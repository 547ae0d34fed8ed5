package main

import (
	"math"

	"github.com/geoinv/aem-rjmcmc/pkg/config"
	"github.com/geoinv/aem-rjmcmc/pkg/driver"
	"github.com/geoinv/aem-rjmcmc/pkg/inference"
	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
)

// defaultMinimumThickness is used when the options file omits
// minimum_thickness (optional per spec.md §6); original_source/geobipy
// leaves this to the caller rather than hard-coding it, so a conservative
// 1.0 (model-depth units) is picked here.
const defaultMinimumThickness = 1.0

// conductivityLo/Hi bound ln(conductivity) (S/m) across the whole sampler:
// neither spec.md §6 nor original_source/geobipy's user_parameters names
// an options-file key for this, so it is fixed at a wide, geology-agnostic
// range (1e-5 to 10 S/m) rather than invented as another required key —
// see DESIGN.md's Open Question decisions.
const (
	conductivityLo = 1e-5
	conductivityHi = 10
)

// buildDriverConfig translates a parsed options file into the Config a
// driver.Dispatcher needs, filling in the sampler internals spec.md §6
// leaves unnamed (kernel proposal variances, K bounds) from the options
// that are present plus the fixed defaults above.
func buildDriverConfig(opts *config.Options, outputDir string, seed int64) driver.Config {
	windowSize := opts.UpdatePlotEvery
	if windowSize <= 0 {
		windowSize = 1000 // original_source/geobipy's Inference1D.py hardcoded rate window
	}

	minThickness := opts.MinimumThickness
	if minThickness <= 0 {
		minThickness = defaultMinimumThickness
	}

	return driver.Config{
		Inference: inference.Config{
			Kernel: model1d.KernelConfig{
				Bounds: model1d.Bounds{
					DMin:      opts.MinimumDepth,
					DMax:      opts.MaximumDepth,
					TauMin:    minThickness,
					KMin:      1,
					KMax:      opts.MaximumNumberOfLayers,
					PLo:       math.Log(conductivityLo),
					PHi:       math.Log(conductivityHi),
					SigmaGrad: opts.GradientStandardDeviation,
				},
				PBirth:    opts.ProbabilityOfBirth,
				PDeath:    opts.ProbabilityOfDeath,
				PPerturb:  opts.ProbabilityOfPerturb,
				PNoChange: opts.ProbabilityOfNoChange,
				VBirth:    opts.GradientStandardDeviation,
				VEdge:     opts.GradientStandardDeviation,
			},
			BurnIn:            inference.BurnInConfig{},
			NMarkovChains:     opts.NMarkovChains,
			WindowSize:        windowSize,
			CovarianceScaling: opts.CovarianceScaling,
			Lambda:            1.0 / (opts.Factor * opts.Factor),
			MultiplierStep:    0.01,
			PosteriorBins:     200,
		},
		Bounds: model1d.Bounds{
			DMin:      opts.MinimumDepth,
			DMax:      opts.MaximumDepth,
			TauMin:    minThickness,
			KMin:      1,
			KMax:      opts.MaximumNumberOfLayers,
			PLo:       math.Log(conductivityLo),
			PHi:       math.Log(conductivityHi),
			SigmaGrad: opts.GradientStandardDeviation,
		},
		Seed:                   seed,
		OutputDir:              outputDir,
		KeepLastN:              0,
		MaxHalfspaceIterations: 100,
	}
}
