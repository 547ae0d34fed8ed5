package model1d_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/geoinv/aem-rjmcmc/pkg/model1d"
)

func testBounds() model1d.Bounds {
	return model1d.Bounds{
		DMin: 0, DMax: 100,
		TauMin: 2,
		KMin:   1, KMax: 10,
		PLo: -9, PHi: 2,
	}
}

func testModel() *model1d.Model1D {
	return &model1d.Model1D{
		Edges:  []float64{20, 50},
		Values: []float64{-4, -6, -2},
	}
}

func TestLogPriorFiniteWithinBounds(t *testing.T) {
	m := testModel()
	b := testBounds()
	lp, err := m.LogPrior(b)
	if err != nil {
		t.Fatalf("LogPrior: %v", err)
	}
	if math.IsInf(lp, -1) {
		t.Fatal("expected a finite log-prior for an in-bounds model")
	}
}

func TestLogPriorRejectsOutOfBoundsValue(t *testing.T) {
	m := testModel()
	m.Values[0] = 100 // far outside PHi
	b := testBounds()
	lp, err := m.LogPrior(b)
	if err != nil {
		t.Fatalf("LogPrior: %v", err)
	}
	if !math.IsInf(lp, -1) {
		t.Fatalf("expected -Inf log-prior for an out-of-bounds value, got %v", lp)
	}
}

func TestLogPriorRejectsLayerCountOutsideRange(t *testing.T) {
	m := &model1d.Model1D{Edges: nil, Values: []float64{-4}}
	b := testBounds()
	b.KMin = 2
	lp, err := m.LogPrior(b)
	if err != nil {
		t.Fatalf("LogPrior: %v", err)
	}
	if !math.IsInf(lp, -1) {
		t.Fatal("expected -Inf log-prior when K < KMin")
	}
}

func TestThicknessesSumToLastEdge(t *testing.T) {
	m := testModel()
	th := m.Thicknesses()
	sum := 0.0
	for _, t := range th {
		sum += t
	}
	if math.Abs(sum-m.Edges[len(m.Edges)-1]) > 1e-9 {
		t.Fatalf("thicknesses should sum to the last edge, got %v want %v", sum, m.Edges[len(m.Edges)-1])
	}
}

func TestToProfileExponentiatesValues(t *testing.T) {
	m := testModel()
	p := m.ToProfile()
	for i, v := range m.Values {
		want := math.Exp(v)
		if math.Abs(p.Conductivity[i]-want) > 1e-12 {
			t.Errorf("layer %d: expected conductivity %v, got %v", i, want, p.Conductivity[i])
		}
	}
}

func TestProposeBirthIncreasesLayerCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	current := testModel()
	b := testBounds()
	cfg := model1d.KernelConfig{Bounds: b, PBirth: 1, VBirth: 0.5, VEdge: 1}

	for attempt := 0; attempt < 200; attempt++ {
		candidate, action, _, _, ok, err := model1d.Propose(rng, current, cfg)
		if err != nil {
			t.Fatalf("Propose: %v", err)
		}
		if !ok {
			continue // birth edge landed within TauMin of an existing edge; retry
		}
		if action != model1d.ActionBirth {
			t.Fatalf("expected ActionBirth, got %v", action)
		}
		if candidate.NumLayers() != current.NumLayers()+1 {
			t.Fatalf("expected %d layers, got %d", current.NumLayers()+1, candidate.NumLayers())
		}
		return
	}
	t.Fatal("no valid birth proposal in 200 attempts")
}

func TestProposeDeathDecreasesLayerCount(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	current := testModel()
	b := testBounds()
	cfg := model1d.KernelConfig{Bounds: b, PDeath: 1, VBirth: 0.5, VEdge: 1}

	candidate, action, _, _, ok, err := model1d.Propose(rng, current, cfg)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if !ok {
		t.Fatal("expected a valid death proposal")
	}
	if action != model1d.ActionDeath {
		t.Fatalf("expected ActionDeath, got %v", action)
	}
	if candidate.NumLayers() != current.NumLayers()-1 {
		t.Fatalf("expected %d layers, got %d", current.NumLayers()-1, candidate.NumLayers())
	}
}

func TestProposeDeathUnavailableAtKMin(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	current := &model1d.Model1D{Edges: nil, Values: []float64{-4}}
	b := testBounds()
	b.KMin = 1
	cfg := model1d.KernelConfig{Bounds: b, PDeath: 1, PNoChange: 1, VBirth: 0.5, VEdge: 1}

	_, action, _, _, ok, err := model1d.Propose(rng, current, cfg)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if !ok {
		t.Fatal("expected a valid proposal")
	}
	if action == model1d.ActionDeath {
		t.Fatal("death should be unreachable when K == KMin")
	}
}

// TestProposeInvariantsHoldOverThousandsOfSteps walks the birth/death/
// perturb/no-change kernel for many steps, always moving to the latest
// valid proposal (an unweighted random walk over the trans-dimensional
// state space, not an MCMC acceptance test), and checks every invariant
// Bounds is supposed to enforce at every step: edges sorted and separated
// by at least TauMin, K within [KMin, KMax], and values within [PLo, PHi].
func TestProposeInvariantsHoldOverThousandsOfSteps(t *testing.T) {
	b := model1d.Bounds{
		DMin: 0, DMax: 100,
		TauMin: 2,
		KMin:   1, KMax: 8,
		PLo: -9, PHi: 2,
	}
	cfg := model1d.KernelConfig{
		Bounds:    b,
		PBirth:    0.3, PDeath: 0.3, PPerturb: 0.3, PNoChange: 0.1,
		VBirth: 0.5, VEdge: 5,
	}
	rng := rand.New(rand.NewSource(99))
	current := &model1d.Model1D{Values: []float64{-4}}

	const steps = 5000
	for i := 0; i < steps; i++ {
		candidate, _, _, _, ok, err := model1d.Propose(rng, current, cfg)
		if err != nil {
			t.Fatalf("step %d: Propose: %v", i, err)
		}
		if !ok {
			continue // geometry-invalid draw, rejected immediately; current unchanged
		}
		assertModelInvariants(t, i, candidate, b)
		current = candidate
	}
}

func TestPosteriorUpdateAccumulatesKAndHitmap(t *testing.T) {
	b := testBounds()
	p := model1d.NewPosterior(b, 10, 10)
	m := testModel()

	p.Update(m, b)

	if p.K.Total() != 1 {
		t.Fatalf("expected one K observation, got %v", p.K.Total())
	}
	if p.Hitmap.X.NBins() != 10 || p.Hitmap.Y.NBins() != 10 {
		t.Fatalf("expected a 10x10 hitmap, got %dx%d", p.Hitmap.X.NBins(), p.Hitmap.Y.NBins())
	}
	total := 0.0
	for _, col := range p.Hitmap.Counts {
		for _, c := range col {
			total += c
		}
	}
	if total != float64(p.Hitmap.X.NBins()) {
		t.Fatalf("expected one rasterized hit per depth bin, got %v", total)
	}

	p.Reset()
	if p.K.Total() != 0 {
		t.Fatalf("expected K histogram to be empty after Reset, got %v", p.K.Total())
	}
}

func assertModelInvariants(t *testing.T, step int, m *model1d.Model1D, b model1d.Bounds) {
	t.Helper()

	k := m.NumLayers()
	if k < b.KMin || k > b.KMax {
		t.Fatalf("step %d: K=%d outside [%d, %d]", step, k, b.KMin, b.KMax)
	}
	if len(m.Edges) != k-1 {
		t.Fatalf("step %d: expected %d edges for K=%d, got %d", step, k-1, k, len(m.Edges))
	}

	prev := b.DMin
	for i, e := range m.Edges {
		if e < b.DMin || e > b.DMax {
			t.Fatalf("step %d: edge %d=%v outside [%v, %v]", step, i, e, b.DMin, b.DMax)
		}
		if e-prev < b.TauMin-1e-9 {
			t.Fatalf("step %d: edge %d=%v is within TauMin=%v of the previous boundary %v", step, i, e, b.TauMin, prev)
		}
		prev = e
	}
	if len(m.Edges) > 0 && b.DMax-m.Edges[len(m.Edges)-1] < b.TauMin-1e-9 {
		t.Fatalf("step %d: last edge %v is within TauMin of DMax=%v", step, m.Edges[len(m.Edges)-1], b.DMax)
	}

	for i, v := range m.Values {
		if v < b.PLo || v > b.PHi {
			t.Fatalf("step %d: value %d=%v outside [%v, %v]", step, i, v, b.PLo, b.PHi)
		}
	}
}
