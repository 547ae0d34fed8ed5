// Package mesh implements the binned posterior accumulators used by every
// sampled quantity in the inversion: a 1-D rectilinear axis, a 1-D
// histogram over it, and a 2-D histogram (the depth/parameter hitmap).
package mesh

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// RectilinearMesh1D is a strictly increasing sequence of bin edges.
// len(Edges) == nBins+1.
type RectilinearMesh1D struct {
	Edges []float64
}

// NewRectilinearMesh1D validates and wraps a strictly increasing edge slice.
func NewRectilinearMesh1D(edges []float64) (*RectilinearMesh1D, error) {
	if len(edges) < 2 {
		return nil, fmt.Errorf("mesh: need at least 2 edges, got %d", len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, fmt.Errorf("mesh: edges must be strictly increasing at index %d (%g <= %g)", i, edges[i], edges[i-1])
		}
	}
	cp := make([]float64, len(edges))
	copy(cp, edges)
	return &RectilinearMesh1D{Edges: cp}, nil
}

// LinSpace builds a mesh of n+1 edges evenly spaced over [lo, hi].
func LinSpace(lo, hi float64, n int) *RectilinearMesh1D {
	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[n] = hi
	return &RectilinearMesh1D{Edges: edges}
}

// NBins returns the number of bins in the mesh.
func (m *RectilinearMesh1D) NBins() int { return len(m.Edges) - 1 }

// Centres returns the midpoint of every bin.
func (m *RectilinearMesh1D) Centres() []float64 {
	c := make([]float64, m.NBins())
	for i := range c {
		c[i] = 0.5 * (m.Edges[i] + m.Edges[i+1])
	}
	return c
}

// BinIndex returns the index of the bin containing x, or -1 if x falls
// outside [Edges[0], Edges[len-1]].
func (m *RectilinearMesh1D) BinIndex(x float64) int {
	if x < m.Edges[0] || x > m.Edges[len(m.Edges)-1] {
		return -1
	}
	// sort.Search finds the first edge strictly greater than x.
	i := sort.Search(len(m.Edges), func(i int) bool { return m.Edges[i] > x })
	if i == 0 {
		i = 1
	}
	if i >= len(m.Edges) {
		i = len(m.Edges) - 1
	}
	return i - 1
}

// Percentile returns the value of x at which the cumulative sum of counts
// (normalised to 1) first reaches p/100, via a linear cumulative-sum scan.
// counts must have length NBins().
func (m *RectilinearMesh1D) Percentile(counts []float64, p float64) float64 {
	total := floats.Sum(counts)
	if total <= 0 {
		return m.Edges[0]
	}
	target := (p / 100.0) * total
	cum := 0.0
	for i, c := range counts {
		cum += c
		if cum >= target {
			// linear interpolation within the bin
			lo, hi := m.Edges[i], m.Edges[i+1]
			prev := cum - c
			if c <= 0 {
				return lo
			}
			frac := (target - prev) / c
			return lo + frac*(hi-lo)
		}
	}
	return m.Edges[len(m.Edges)-1]
}
