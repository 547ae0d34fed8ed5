package driver

import (
	"context"

	"github.com/geoinv/aem-rjmcmc/pkg/logging"
	"github.com/geoinv/aem-rjmcmc/pkg/metrics"
	"github.com/geoinv/aem-rjmcmc/pkg/record"
)

// SerialDispatcher runs every queued datapoint on the calling goroutine,
// one after another (spec.md §4.I "Serial mode: iterate, call
// Inference1D.infer, append the serialised result").
type SerialDispatcher struct {
	Config Config
	Log    *logging.Logger
	Metrics *metrics.Registry
}

// NewSerialDispatcher builds a SerialDispatcher writing records to a Store
// rooted at cfg.OutputDir.
func NewSerialDispatcher(cfg Config, log *logging.Logger, reg *metrics.Registry) (*SerialDispatcher, error) {
	return &SerialDispatcher{Config: cfg, Log: log, Metrics: reg}, nil
}

func (d *SerialDispatcher) Run(ctx context.Context, queue *WorkQueue) (*Manifest, error) {
	store, err := record.NewStore(d.Config.OutputDir, d.Config.KeepLastN, d.Log)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{}
	for index, dp := range queue.All() {
		select {
		case <-ctx.Done():
			manifest.Fiducials = append(manifest.Fiducials, FiducialStatus{Fiducial: dp.Fiducial, Worker: 0, Status: "cancelled"})
			continue
		default:
		}

		rng := streamFor(d.Config.Seed, 0, index, d.Config.Jump)
		status := "ok"
		if err := runDatapoint(ctx, d.Config, dp, rng, d.Log, d.Metrics, store); err != nil {
			d.Log.Warn("datapoint failed", "fiducial", dp.Fiducial, "error", err.Error())
			status = "failed"
		}
		manifest.Fiducials = append(manifest.Fiducials, FiducialStatus{Fiducial: dp.Fiducial, Worker: 0, Status: status})
	}
	return manifest, nil
}
