package driver

import (
	"context"
	"math"
	"math/rand"

	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/forward"
	"github.com/geoinv/aem-rjmcmc/pkg/inference"
	"github.com/geoinv/aem-rjmcmc/pkg/logging"
	"github.com/geoinv/aem-rjmcmc/pkg/metrics"
	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
	"github.com/geoinv/aem-rjmcmc/pkg/record"
)

// Config bundles everything a dispatcher needs to drive one Inference3D
// run: the per-datapoint chain configuration, the seed each datapoint's
// independent PRNG stream is derived from, and where results land.
type Config struct {
	Inference inference.Config
	Bounds    model1d.Bounds

	Seed      int64
	Jump      int // PRNG stream offset (spec.md §6 --jump); serial-mode debugging aid only
	OutputDir string
	KeepLastN int

	MaxHalfspaceIterations int
}

// FiducialStatus is one line of the run manifest: what happened to one
// datapoint.
type FiducialStatus struct {
	Fiducial float64 `yaml:"fiducial"`
	Worker   int     `yaml:"worker"`
	Status   string  `yaml:"status"` // "ok", "failed" or "cancelled"
}

// Manifest is the per-run summary (not the per-datapoint record) that
// Dispatcher.Run returns, recording which fiducials were dispatched, to
// which worker, and their final status. It carries YAML tags but nothing
// in this module writes it to disk — recovered from
// original_source/geobipy's run_test_suite_parallel.py, which drives and
// audits a parallel test suite the same way.
type Manifest struct {
	Fiducials []FiducialStatus `yaml:"fiducials"`
}

// Dispatcher fans a WorkQueue out across one or more workers.
type Dispatcher interface {
	Run(ctx context.Context, queue *WorkQueue) (*Manifest, error)
}

// streamFor derives an independent PRNG stream per datapoint, mixing in
// the worker rank so MPI ranks never share a stream (spec.md §9 "MPI
// workers derive independent streams via
// rand.NewSource(seed ^ (rank<<32) ^ index)").
func streamFor(seed int64, rank, index, jump int) *rand.Rand {
	mixed := seed ^ (int64(rank) << 32) ^ int64(index+jump)
	return rand.New(rand.NewSource(mixed))
}

// runDatapoint drives one full Inference1D chain for dp: fits the best
// uniform half-space, builds the single-layer initial model from it, runs
// the chain, persists the record, and updates the fleet metrics.
func runDatapoint(ctx context.Context, cfg Config, dp *datapoint.Datapoint, rng *rand.Rand, log *logging.Logger, reg *metrics.Registry, store *record.Store) error {
	if reg != nil {
		reg.DatapointsInflight.Inc()
		defer reg.DatapointsInflight.Dec()
	}

	halfspace, err := bestHalfspace(dp, cfg.MaxHalfspaceIterations)
	if err != nil {
		if reg != nil {
			reg.DatapointsFailed.Inc()
		}
		return err
	}

	initial := &model1d.Model1D{Values: []float64{math.Log(halfspace)}}
	cfg.Inference.Kernel.Bounds = cfg.Bounds

	chain := inference.New(cfg.Inference, rng, log, initial, dp, halfspace)
	result, err := chain.Run(ctx)
	if err != nil {
		if reg != nil {
			reg.DatapointsFailed.Inc()
		}
		return err
	}

	if reg != nil {
		reg.IterationsTotal.Add(float64(result.Iteration))
		if len(result.AcceptanceRate) > 0 {
			reg.AcceptanceRate.Set(result.AcceptanceRate[len(result.AcceptanceRate)-1])
		}
	}

	rec := record.FromResult(result)
	if store != nil {
		if _, err := store.Save(dp.Fiducial, rec); err != nil {
			if reg != nil {
				reg.DatapointsFailed.Inc()
			}
			return err
		}
	}

	if result.Failed {
		if reg != nil {
			reg.DatapointsFailed.Inc()
		}
		return &errs.DataError{Fiducial: dp.Fiducial, Reason: "chain terminated with Failed=true"}
	}
	if reg != nil {
		reg.DatapointsCompleted.Inc()
	}
	return nil
}

// bestHalfspace fits forward.BestHalfspace against dp's active channels,
// giving inactive channels an infinite variance so they contribute zero
// misfit rather than a division-by-zero.
func bestHalfspace(dp *datapoint.Datapoint, maxIterations int) (float64, error) {
	variance := make([]float64, dp.NumChannels())
	for i, active := range dp.Active {
		if active {
			variance[i] = dp.Sigma[i] * dp.Sigma[i]
		} else {
			variance[i] = math.Inf(1)
		}
	}
	misfit := forward.NewUniformHalfspaceMisfit(dp.System, dp.Observed, variance, dp.HeightValue())
	return forward.BestHalfspace(misfit, maxIterations)
}
