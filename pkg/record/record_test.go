package record_test

import (
	"encoding/json"
	"testing"

	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
	"github.com/geoinv/aem-rjmcmc/pkg/inference"
	"github.com/geoinv/aem-rjmcmc/pkg/logging"
	"github.com/geoinv/aem-rjmcmc/pkg/mesh"
	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
	"github.com/geoinv/aem-rjmcmc/pkg/record"
	"github.com/geoinv/aem-rjmcmc/pkg/statarray"
)

func testLogger() *logging.Logger { return logging.New(logging.Config{}) }

func testResult() *inference.Result {
	posteriorMesh := mesh.LinSpace(0, 10, 4)
	height := &statarray.Parameter{
		Value:     []float64{2.5},
		Posterior: mesh.NewHistogram1D(posteriorMesh),
	}
	height.Posterior.Update(3)

	return &inference.Result{
		Iteration:         150,
		BurnedInIteration: 100,
		BestIteration:     140,
		BurnedIn:          true,
		Multiplier:        1.2,
		AcceptanceRate:    []float64{0.4, 0.45},
		MisfitTrace:       []float64{12, 10, 9},
		Halfspace:         -3.2,
		BestModel:         &model1d.Model1D{Edges: []float64{20}, Values: []float64{-4, -2}},
		BestDatapoint: &datapoint.Datapoint{
			Fiducial:  7,
			Observed:  []float64{1, 2},
			Predicted: []float64{1.1, 2.1},
			Height:    height,
		},
		CurrentModel:     &model1d.Model1D{Edges: []float64{22}, Values: []float64{-4.1, -2.2}},
		CurrentDatapoint: &datapoint.Datapoint{Fiducial: 7, Observed: []float64{1, 2}, Predicted: []float64{1.05, 2.05}},
	}
}

func TestFromResultRoundTripsThroughJSON(t *testing.T) {
	rec := record.FromResult(testResult())

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded record.DatapointRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Iteration != rec.Iteration || decoded.BestIteration != rec.BestIteration {
		t.Fatalf("iteration fields did not round-trip: got %+v", decoded)
	}
	if decoded.BestModel == nil || len(decoded.BestModel.Values) != 2 {
		t.Fatalf("expected best model values to round-trip, got %+v", decoded.BestModel)
	}
	if decoded.BestDatapoint == nil || decoded.BestDatapoint.Height == nil {
		t.Fatal("expected best datapoint height posterior to round-trip")
	}
	if decoded.BestDatapoint.Height.PosteriorCounts[1] != 1 {
		t.Fatalf("expected posterior bin 1 to have one count, got %v", decoded.BestDatapoint.Height.PosteriorCounts)
	}
}

func TestFromResultRoundTripsModelPosterior(t *testing.T) {
	result := testResult()
	b := model1d.Bounds{DMin: 0, DMax: 100, KMin: 1, KMax: 5, PLo: -9, PHi: 2}
	result.BestModel.Posterior = model1d.NewPosterior(b, 4, 4)
	result.BestModel.Posterior.Update(result.BestModel, b)

	rec := record.FromResult(result)
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded record.DatapointRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.BestModel.Posterior == nil {
		t.Fatal("expected the model posterior to round-trip")
	}
	if decoded.BestModel.Posterior.Hitmap == nil || len(decoded.BestModel.Posterior.Hitmap.Counts) != 4 {
		t.Fatalf("expected a 4-row hitmap, got %+v", decoded.BestModel.Posterior.Hitmap)
	}
	total := 0.0
	for _, c := range decoded.BestModel.Posterior.KCounts {
		total += c
	}
	if total != 1 {
		t.Fatalf("expected exactly one K observation recorded, got %v", total)
	}
}

func TestStoreSaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	log := testLogger()
	store, err := record.NewStore(dir, 0, log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rec := record.FromResult(testResult())
	path, err := store.Save(7, rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path == "" {
		t.Fatal("expected a non-empty path")
	}

	loaded, err := store.Load(7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BestIteration != rec.BestIteration {
		t.Fatalf("expected BestIteration %d, got %d", rec.BestIteration, loaded.BestIteration)
	}
}

func TestStorePrunesOldestBeyondKeepLastN(t *testing.T) {
	dir := t.TempDir()
	log := testLogger()
	store, err := record.NewStore(dir, 1, log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rec := record.FromResult(testResult())
	for _, fid := range []float64{1, 2, 3} {
		if _, err := store.Save(fid, rec); err != nil {
			t.Fatalf("Save(%v): %v", fid, err)
		}
	}

	fiducials, err := store.ListFiducials()
	if err != nil {
		t.Fatalf("ListFiducials: %v", err)
	}
	if len(fiducials) != 1 {
		t.Fatalf("expected exactly 1 record retained, got %d: %v", len(fiducials), fiducials)
	}
	if fiducials[0] != 3 {
		t.Fatalf("expected the most recently written fiducial 3 to survive, got %v", fiducials[0])
	}
}
