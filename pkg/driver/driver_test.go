package driver_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
	"github.com/geoinv/aem-rjmcmc/pkg/driver"
	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
	"github.com/geoinv/aem-rjmcmc/pkg/forward"
	"github.com/geoinv/aem-rjmcmc/pkg/inference"
	"github.com/geoinv/aem-rjmcmc/pkg/logging"
	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
	"github.com/geoinv/aem-rjmcmc/pkg/record"
)

func testSystem(t *testing.T) *fdem.System {
	t.Helper()
	freqs := []float64{400, 1800, 8200}
	tx := make([]fdem.Loop, len(freqs))
	rx := make([]fdem.Loop, len(freqs))
	for i := range freqs {
		tx[i] = fdem.Loop{Orientation: fdem.OrientZ, Moment: 1}
		rx[i] = fdem.Loop{X: 8, Orientation: fdem.OrientZ, Moment: 1}
	}
	sys, err := fdem.NewSystem(freqs, tx, rx)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return sys
}

func testDatapoint(t *testing.T, sys *fdem.System, fiducial, line float64) *datapoint.Datapoint {
	t.Helper()
	truth := model1d.Model1D{Values: []float64{-3}}
	observed, err := forward.Forward(sys, truth.ToProfile(), 0)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	dp := &datapoint.Datapoint{
		Fiducial:   fiducial,
		LineNumber: line,
		Observed:   observed,
		Sigma:      make([]float64, len(observed)),
		Active:     make([]bool, len(observed)),
		Predicted:  make([]float64, len(observed)),
		System:     sys,
	}
	for i := range dp.Sigma {
		dp.Sigma[i] = 1.0
		dp.Active[i] = true
	}
	return dp
}

func TestWorkQueueFiltersByFiducial(t *testing.T) {
	sys := testSystem(t)
	all := []*datapoint.Datapoint{
		testDatapoint(t, sys, 1, 100),
		testDatapoint(t, sys, 2, 100),
		testDatapoint(t, sys, 3, 200),
	}

	fiducial := 2.0
	q := driver.NewWorkQueue(all, datapoint.Filter{Fiducial: &fiducial})
	if q.Len() != 1 {
		t.Fatalf("expected 1 datapoint after filtering, got %d", q.Len())
	}
	if got := q.All()[0].Fiducial; got != 2 {
		t.Fatalf("expected fiducial 2, got %v", got)
	}
}

func TestWorkQueueSliceClampsToBounds(t *testing.T) {
	sys := testSystem(t)
	all := []*datapoint.Datapoint{
		testDatapoint(t, sys, 1, 100),
		testDatapoint(t, sys, 2, 100),
	}
	q := driver.NewWorkQueue(all, datapoint.Filter{})
	if got := q.Slice(0, 10); len(got) != 2 {
		t.Fatalf("expected slice clamped to 2 items, got %d", len(got))
	}
	if got := q.Slice(5, 10); got != nil {
		t.Fatalf("expected nil for an out-of-range slice, got %v", got)
	}
}

func testConfig(outputDir string) driver.Config {
	return driver.Config{
		Inference: inference.Config{
			Kernel: model1d.KernelConfig{
				PBirth: 0.2, PDeath: 0.2, PPerturb: 0.2, PNoChange: 0.4,
				VBirth: 0.5, VEdge: 5,
			},
			BurnIn: inference.BurnInConfig{
				MinIterations:   5,
				L2Threshold:     100,
				ToleranceWindow: 5,
				RelTolerance:    5,
			},
			NMarkovChains:     20,
			WindowSize:        5,
			CovarianceScaling: 1,
			Lambda:            0.1,
			PosteriorBins:     20,
		},
		Bounds: model1d.Bounds{
			DMin: 0, DMax: 100, TauMin: 2,
			KMin: 1, KMax: 5,
			PLo: -9, PHi: 2,
		},
		Seed:                   42,
		OutputDir:              outputDir,
		MaxHalfspaceIterations: 50,
	}
}

func TestSerialDispatcherProducesOneRecordPerFiducial(t *testing.T) {
	sys := testSystem(t)
	all := []*datapoint.Datapoint{
		testDatapoint(t, sys, 1, 100),
		testDatapoint(t, sys, 2, 100),
	}
	q := driver.NewWorkQueue(all, datapoint.Filter{})

	dir := t.TempDir()
	log := logging.New(logging.Config{})
	dispatcher, err := driver.NewSerialDispatcher(testConfig(dir), log, nil)
	if err != nil {
		t.Fatalf("NewSerialDispatcher: %v", err)
	}

	manifest, err := dispatcher.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(manifest.Fiducials) != 2 {
		t.Fatalf("expected 2 manifest entries, got %d", len(manifest.Fiducials))
	}
	for _, entry := range manifest.Fiducials {
		if entry.Status != "ok" {
			t.Errorf("fiducial %v: expected status ok, got %s", entry.Fiducial, entry.Status)
		}
	}
}

func TestSerialDispatcherRespectsCancellation(t *testing.T) {
	sys := testSystem(t)
	all := []*datapoint.Datapoint{testDatapoint(t, sys, 1, 100)}
	q := driver.NewWorkQueue(all, datapoint.Filter{})

	dir := t.TempDir()
	log := logging.New(logging.Config{})
	dispatcher, err := driver.NewSerialDispatcher(testConfig(dir), log, nil)
	if err != nil {
		t.Fatalf("NewSerialDispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manifest, err := dispatcher.Run(ctx, q)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(manifest.Fiducials) != 1 || manifest.Fiducials[0].Status != "cancelled" {
		t.Fatalf("expected a single cancelled entry, got %+v", manifest.Fiducials)
	}
}

// TestSerialAndMPIDispatchersAgreeSingleRank pins down spec.md §9's PRNG
// stream contract: without a real MPI launcher, mpi.WorldSize()==1 and
// mpi.WorldRank()==0, so empi.AllocN hands rank 0 the entire queue starting
// at index 0. streamFor(seed, rank, index, jump) then draws the identical
// sequence SerialDispatcher would for the same datapoint, so the two
// dispatchers must produce bit-identical chain results given the same
// Config, seed, and queue — MPIDispatcher's single-rank behaviour is not
// merely "also correct", it is the same computation as SerialDispatcher.
func TestSerialAndMPIDispatchersAgreeSingleRank(t *testing.T) {
	sys := testSystem(t)
	queueFor := func() []*datapoint.Datapoint {
		return []*datapoint.Datapoint{
			testDatapoint(t, sys, 1, 100),
			testDatapoint(t, sys, 2, 100),
			testDatapoint(t, sys, 3, 200),
		}
	}

	log := logging.New(logging.Config{})

	serialDir := t.TempDir()
	serialQueue := driver.NewWorkQueue(queueFor(), datapoint.Filter{})
	serialDispatcher, err := driver.NewSerialDispatcher(testConfig(serialDir), log, nil)
	if err != nil {
		t.Fatalf("NewSerialDispatcher: %v", err)
	}
	serialManifest, err := serialDispatcher.Run(context.Background(), serialQueue)
	if err != nil {
		t.Fatalf("serial Run: %v", err)
	}

	mpiDir := t.TempDir()
	mpiQueue := driver.NewWorkQueue(queueFor(), datapoint.Filter{})
	mpiDispatcher, err := driver.NewMPIDispatcher(testConfig(mpiDir), log, nil)
	if err != nil {
		t.Fatalf("NewMPIDispatcher: %v", err)
	}
	defer mpiDispatcher.Close()
	mpiManifest, err := mpiDispatcher.Run(context.Background(), mpiQueue)
	if err != nil {
		t.Fatalf("mpi Run: %v", err)
	}

	if len(serialManifest.Fiducials) != len(mpiManifest.Fiducials) {
		t.Fatalf("manifest length mismatch: serial=%d mpi=%d", len(serialManifest.Fiducials), len(mpiManifest.Fiducials))
	}
	for i, entry := range serialManifest.Fiducials {
		other := mpiManifest.Fiducials[i]
		if entry.Fiducial != other.Fiducial || entry.Status != other.Status {
			t.Fatalf("fiducial %d: serial=%+v mpi=%+v", i, entry, other)
		}
	}

	serialStore, err := record.NewStore(serialDir, 0, log)
	if err != nil {
		t.Fatalf("NewStore(serial): %v", err)
	}
	mpiStore, err := record.NewStore(mpiDir, 0, log)
	if err != nil {
		t.Fatalf("NewStore(mpi): %v", err)
	}

	for _, fid := range []float64{1, 2, 3} {
		serialRec, err := serialStore.Load(fid)
		if err != nil {
			t.Fatalf("Load(serial, %v): %v", fid, err)
		}
		mpiRec, err := mpiStore.Load(fid)
		if err != nil {
			t.Fatalf("Load(mpi, %v): %v", fid, err)
		}
		if !reflect.DeepEqual(serialRec, mpiRec) {
			t.Fatalf("fiducial %v: serial and single-rank MPI records diverged:\nserial=%+v\nmpi=%+v", fid, serialRec, mpiRec)
		}
	}
}
