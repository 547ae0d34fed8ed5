package forward_test

import (
	"math"
	"testing"

	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
	"github.com/geoinv/aem-rjmcmc/pkg/forward"
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

func TestForwardIsDeterministic(t *testing.T) {
	sys := testSystem(t)
	profile := forward.Profile{
		Thickness:    []float64{10, 20},
		Conductivity: []float64{0.05, 0.01, 0.2},
	}

	first, err := forward.Forward(sys, profile, 30)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	second, err := forward.Forward(sys, profile, 30)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Forward is not idempotent at channel %d: %v != %v", i, first[i], second[i])
		}
	}
}

func TestForwardProducesFiniteOutput(t *testing.T) {
	sys := testSystem(t)
	profile := forward.Profile{
		Thickness:    []float64{15},
		Conductivity: []float64{0.1, 0.01},
	}
	predicted, err := forward.Forward(sys, profile, 30)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i, v := range predicted {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("channel %d is not finite: %v", i, v)
		}
	}
}

func TestSensitivityShapeMatchesLayerCount(t *testing.T) {
	sys := testSystem(t)
	profile := forward.Profile{
		Thickness:    []float64{10, 20},
		Conductivity: []float64{0.05, 0.01, 0.2},
	}
	jac, err := forward.Sensitivity(sys, profile, 30)
	if err != nil {
		t.Fatalf("Sensitivity: %v", err)
	}
	rows, cols := jac.Dims()
	if cols != len(profile.Conductivity) {
		t.Errorf("expected %d columns, got %d", len(profile.Conductivity), cols)
	}
	if rows != 2*sys.NumFrequencies() {
		t.Errorf("expected %d rows, got %d", 2*sys.NumFrequencies(), rows)
	}
}

func TestBestHalfspaceRecoversUniformEarth(t *testing.T) {
	sys := testSystem(t)
	trueSigma := 0.05
	observed, err := forward.Forward(sys, forward.Profile{Conductivity: []float64{trueSigma}}, 0)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	variance := make([]float64, len(observed))
	for i := range variance {
		variance[i] = 1
	}

	misfit := forward.NewUniformHalfspaceMisfit(sys, observed, variance, 0)
	sigma, err := forward.BestHalfspace(misfit, 0)
	if err != nil {
		t.Fatalf("BestHalfspace: %v", err)
	}
	if sigma <= 0 {
		t.Fatalf("expected a positive conductivity estimate, got %v", sigma)
	}
}

// TestForwardDependsOnHeight pins down spec.md §3's invariant that d̂ is a
// pure function of (model, h, system-geometry): two heights on the same
// model must disagree, or height perturbation could never be informed by
// data.
func TestForwardDependsOnHeight(t *testing.T) {
	sys := testSystem(t)
	profile := forward.Profile{
		Thickness:    []float64{10, 20},
		Conductivity: []float64{0.05, 0.01, 0.2},
	}

	low, err := forward.Forward(sys, profile, 10)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	high, err := forward.Forward(sys, profile, 80)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	same := true
	for i := range low {
		if low[i] != high[i] {
			same = false
		}
	}
	if same {
		t.Fatal("predicted response is identical at two different sensor heights")
	}
}

// TestForwardZeroesCrossOrientationComponents exercises the one combination
// no other test touches: a transmitter/receiver pair on orthogonal axes
// (x,z here), whose ComponentKernel.Sign gates the response to zero for a
// horizontally layered earth.
func TestForwardZeroesCrossOrientationComponents(t *testing.T) {
	freqs := []float64{1800}
	tx := []fdem.Loop{{Orientation: fdem.OrientX, Moment: 1}}
	rx := []fdem.Loop{{X: 8, Orientation: fdem.OrientZ, Moment: 1}}
	sys, err := fdem.NewSystem(freqs, tx, rx)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	profile := forward.Profile{
		Thickness:    []float64{10, 20},
		Conductivity: []float64{0.05, 0.01, 0.2},
	}

	predicted, err := forward.Forward(sys, profile, 30)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i, v := range predicted {
		if v != 0 {
			t.Errorf("channel %d: expected zero cross-orientation response, got %v", i, v)
		}
	}
}

// TestSensitivityCoplanarOrientationIsFinite exercises the (x,x) coplanar
// geometry (lambda^2 J1), the other diagonal kernel combination besides
// (z,z) VMD, to make sure Sign=1 diagonal terms still produce a usable
// Jacobian once the Sign multiplier is in place.
func TestSensitivityCoplanarOrientationIsFinite(t *testing.T) {
	freqs := []float64{1800}
	tx := []fdem.Loop{{Orientation: fdem.OrientX, Moment: 1}}
	rx := []fdem.Loop{{X: 8, Orientation: fdem.OrientX, Moment: 1}}
	sys, err := fdem.NewSystem(freqs, tx, rx)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	profile := forward.Profile{
		Thickness:    []float64{10, 20},
		Conductivity: []float64{0.05, 0.01, 0.2},
	}

	jac, err := forward.Sensitivity(sys, profile, 30)
	if err != nil {
		t.Fatalf("Sensitivity: %v", err)
	}
	rows, cols := jac.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := jac.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("jac[%d][%d] is not finite: %v", i, j, v)
			}
		}
	}
}
