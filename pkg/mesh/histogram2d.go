package mesh

// Histogram2D accumulates counts over two independent rectilinear axes.
// It backs the hitmap: the (depth-bin x parameter-bin) accumulator built by
// rasterising a piecewise-constant Model1D profile onto the depth axis.
type Histogram2D struct {
	X, Y   *RectilinearMesh1D
	Counts [][]float64 // Counts[xi][yi]
}

// NewHistogram2D creates a zeroed 2-D histogram over the two axes.
func NewHistogram2D(x, y *RectilinearMesh1D) *Histogram2D {
	counts := make([][]float64, x.NBins())
	for i := range counts {
		counts[i] = make([]float64, y.NBins())
	}
	return &Histogram2D{X: x, Y: y, Counts: counts}
}

// Update increments the bin containing (xv, yv).
func (h *Histogram2D) Update(xv, yv float64) {
	xi := h.X.BinIndex(xv)
	yi := h.Y.BinIndex(yv)
	if xi < 0 || yi < 0 {
		return
	}
	h.Counts[xi][yi]++
}

// Reset zeroes all counts.
func (h *Histogram2D) Reset() {
	for i := range h.Counts {
		for j := range h.Counts[i] {
			h.Counts[i][j] = 0
		}
	}
}

// RasterizeModel accumulates one piecewise-constant profile (edges of
// length K+1, values of length K, in depth-then-value order) onto the
// hitmap: every depth bin whose centre falls within a layer increments the
// (depth-bin, value-bin) cell for that layer's value.
func (h *Histogram2D) RasterizeModel(edges []float64, values []float64) {
	depthCentres := h.X.Centres()
	layer := 0
	for _, d := range depthCentres {
		for layer < len(values)-1 && d >= edges[layer+1] {
			layer++
		}
		h.Update(d, values[layer])
	}
}

// ColumnMarginal sums counts across Y for each X bin (the depth marginal of
// the hitmap).
func (h *Histogram2D) ColumnMarginal() []float64 {
	out := make([]float64, len(h.Counts))
	for i, row := range h.Counts {
		s := 0.0
		for _, v := range row {
			s += v
		}
		out[i] = s
	}
	return out
}

// CredibleInterval returns the axis-Y percentile pair for the column
// containing xv (used to report a parameter credible interval at a given
// depth), or (0, 0) when xv is outside the X axis.
func (h *Histogram2D) CredibleInterval(xv float64, percent float64) (lo, hi float64) {
	xi := h.X.BinIndex(xv)
	if xi < 0 {
		return 0, 0
	}
	half := percent / 2.0
	return h.Y.Percentile(h.Counts[xi], half), h.Y.Percentile(h.Counts[xi], 100.0-half)
}
