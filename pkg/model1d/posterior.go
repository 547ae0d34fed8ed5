package model1d

import "github.com/geoinv/aem-rjmcmc/pkg/mesh"

// Posterior accumulates the per-chain model statistics spec.md §4.H calls
// "update posteriors of model (depths, K, hitmap)": a histogram of the
// sampled layer count K, and a depth/log-conductivity hitmap built from
// mesh.Histogram2D.RasterizeModel. It mirrors statarray.Parameter's
// Value+Posterior split, except the "value" being summarised is the whole
// Model1D rather than a scalar.
type Posterior struct {
	K      *mesh.Histogram1D
	Hitmap *mesh.Histogram2D
}

// NewPosterior builds an empty Posterior sized from the trans-dimensional
// bounds: one K bin per integer in [KMin, KMax], and a depthBins x
// valueBins hitmap spanning [DMin, DMax] x [PLo, PHi].
func NewPosterior(b Bounds, depthBins, valueBins int) *Posterior {
	kEdges := make([]float64, b.KMax-b.KMin+2)
	for i := range kEdges {
		kEdges[i] = float64(b.KMin) + float64(i) - 0.5
	}
	kMesh, _ := mesh.NewRectilinearMesh1D(kEdges)
	kHist := mesh.NewHistogram1D(kMesh)
	kHist.Policy = mesh.Clamp

	depthMesh := mesh.LinSpace(b.DMin, b.DMax, depthBins)
	valueMesh := mesh.LinSpace(b.PLo, b.PHi, valueBins)

	return &Posterior{
		K:      kHist,
		Hitmap: mesh.NewHistogram2D(depthMesh, valueMesh),
	}
}

// Update rasterizes m onto the hitmap and tallies its layer count. bounds
// supplies the outer depth range RasterizeModel needs to close off m's K-1
// interior edges into K+1 full layer boundaries.
func (p *Posterior) Update(m *Model1D, bounds Bounds) {
	p.K.Update(float64(m.NumLayers()))

	edges := make([]float64, len(m.Edges)+2)
	edges[0] = bounds.DMin
	copy(edges[1:], m.Edges)
	edges[len(edges)-1] = bounds.DMax
	p.Hitmap.RasterizeModel(edges, m.Values)
}

// Reset zeroes both accumulators, called when the chain transitions into
// burn-in (spec.md §4.H): samples collected before burn-in don't belong in
// the posterior.
func (p *Posterior) Reset() {
	p.K.Reset()
	p.Hitmap.Reset()
}
