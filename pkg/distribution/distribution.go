// Package distribution implements the prior/proposal distribution variants
// used throughout the sampler: Uniform, Normal, LogNormal, MvNormal,
// MvLogNormal, ChiSquared and Categorical. Univariate members wrap
// gonum.org/v1/gonum/stat/distuv (the same package the retrieved
// jndunlap-gohypo repo uses for its statistical layer); multivariate
// members use gonum.org/v1/gonum/mat for the covariance Cholesky factor.
package distribution

import (
	"math"
	"math/rand"

	"github.com/geoinv/aem-rjmcmc/pkg/mesh"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is the capability set every variant implements. No
// inheritance hierarchy is required (spec.md §9 "Polymorphism") — a tagged
// union of small structs behind this interface is enough.
type Distribution interface {
	// LogPDF returns -Inf for x outside of support, never an error.
	LogPDF(x []float64) float64
	// Sample draws one value of the distribution's native shape.
	Sample(rng *rand.Rand) []float64
	// Bins returns n+1 edges spanning the (possibly truncated) support,
	// used to build a posterior mesh at attachment time.
	Bins(n int) *mesh.RectilinearMesh1D
}

// Uniform is a univariate uniform distribution on [Lo, Hi].
type Uniform struct {
	Lo, Hi float64
}

func (u Uniform) dist() distuv.Uniform { return distuv.Uniform{Min: u.Lo, Max: u.Hi} }

func (u Uniform) LogPDF(x []float64) float64 {
	if x[0] < u.Lo || x[0] > u.Hi {
		return math.Inf(-1)
	}
	return u.dist().LogProb(x[0])
}

func (u Uniform) Sample(rng *rand.Rand) []float64 {
	d := u.dist()
	d.Src = rng
	return []float64{d.Rand()}
}

func (u Uniform) Bins(n int) *mesh.RectilinearMesh1D { return mesh.LinSpace(u.Lo, u.Hi, n) }

// Normal is a univariate Gaussian with the given mean and standard deviation.
type Normal struct {
	Mean, Std float64
}

func (n Normal) dist() distuv.Normal { return distuv.Normal{Mu: n.Mean, Sigma: n.Std} }

func (n Normal) LogPDF(x []float64) float64 { return n.dist().LogProb(x[0]) }

func (n Normal) Sample(rng *rand.Rand) []float64 {
	d := n.dist()
	d.Src = rng
	return []float64{d.Rand()}
}

func (n Normal) Bins(bins int) *mesh.RectilinearMesh1D {
	// truncate at +/- 6 sigma, which is effectively the whole support for
	// any histogram with a sane number of bins.
	return mesh.LinSpace(n.Mean-6*n.Std, n.Mean+6*n.Std, bins)
}

// LogNormal is a distribution whose logarithm is Normal(Mean, Std).
type LogNormal struct {
	Mean, Std float64
}

func (l LogNormal) dist() distuv.LogNormal { return distuv.LogNormal{Mu: l.Mean, Sigma: l.Std} }

func (l LogNormal) LogPDF(x []float64) float64 {
	if x[0] <= 0 {
		return math.Inf(-1)
	}
	return l.dist().LogProb(x[0])
}

func (l LogNormal) Sample(rng *rand.Rand) []float64 {
	d := l.dist()
	d.Src = rng
	return []float64{d.Rand()}
}

func (l LogNormal) Bins(bins int) *mesh.RectilinearMesh1D {
	lo := math.Exp(l.Mean - 6*l.Std)
	hi := math.Exp(l.Mean + 6*l.Std)
	return mesh.LinSpace(lo, hi, bins)
}

// ChiSquared is a chi-squared distribution with DF degrees of freedom, used
// as the burn-in target for the misfit trace.
type ChiSquared struct {
	DF float64
}

func (c ChiSquared) dist() distuv.ChiSquared { return distuv.ChiSquared{K: c.DF} }

func (c ChiSquared) LogPDF(x []float64) float64 {
	if x[0] < 0 {
		return math.Inf(-1)
	}
	return c.dist().LogProb(x[0])
}

func (c ChiSquared) Sample(rng *rand.Rand) []float64 {
	d := c.dist()
	d.Src = rng
	return []float64{d.Rand()}
}

func (c ChiSquared) Bins(bins int) *mesh.RectilinearMesh1D {
	hi := c.DF + 8*math.Sqrt(2*c.DF) + 10
	return mesh.LinSpace(0, hi, bins)
}

// MvNormal is a multivariate Gaussian with mean Mu and covariance Sigma.
type MvNormal struct {
	Mu    []float64
	Sigma *mat.SymDense
}

func NewMvNormal(mu []float64, sigma *mat.SymDense) (*MvNormal, error) {
	return &MvNormal{Mu: mu, Sigma: sigma}, nil
}

func (m *MvNormal) LogPDF(x []float64) float64 {
	d, ok := newNormalDist(m.Mu, m.Sigma, nil)
	if !ok {
		return math.Inf(-1)
	}
	return d.LogProb(x)
}

func (m *MvNormal) Sample(rng *rand.Rand) []float64 {
	d, ok := newNormalDist(m.Mu, m.Sigma, rng)
	if !ok {
		out := make([]float64, len(m.Mu))
		copy(out, m.Mu)
		return out
	}
	dst := make([]float64, len(m.Mu))
	return d.Rand(dst)
}

func (m *MvNormal) Bins(n int) *mesh.RectilinearMesh1D {
	// Marginal bins over the first component — posterior meshes for
	// vector parameters are built per-component by the caller.
	std := math.Sqrt(m.Sigma.At(0, 0))
	return mesh.LinSpace(m.Mu[0]-6*std, m.Mu[0]+6*std, n)
}

// MvLogNormal is the distribution of exp(Z) where Z ~ MvNormal(Mu, Sigma).
// This is the Stochastic-Newton parameter proposal (spec.md §4.G): the
// layer-value vector is sampled in log-conductivity space with covariance
// c*Sigma, then exponentiated.
type MvLogNormal struct {
	Mu    []float64
	Sigma *mat.SymDense
}

func NewMvLogNormal(mu []float64, sigma *mat.SymDense) *MvLogNormal {
	return &MvLogNormal{Mu: mu, Sigma: sigma}
}

func (m *MvLogNormal) LogPDF(x []float64) float64 {
	logx := make([]float64, len(x))
	jac := 0.0
	for i, v := range x {
		if v <= 0 {
			return math.Inf(-1)
		}
		logx[i] = math.Log(v)
		jac -= logx[i]
	}
	d, ok := newNormalDist(m.Mu, m.Sigma, nil)
	if !ok {
		return math.Inf(-1)
	}
	return d.LogProb(logx) + jac
}

func (m *MvLogNormal) Sample(rng *rand.Rand) []float64 {
	d, ok := newNormalDist(m.Mu, m.Sigma, rng)
	if !ok {
		out := make([]float64, len(m.Mu))
		for i, v := range m.Mu {
			out[i] = math.Exp(v)
		}
		return out
	}
	dst := make([]float64, len(m.Mu))
	z := d.Rand(dst)
	for i := range z {
		z[i] = math.Exp(z[i])
	}
	return z
}

func (m *MvLogNormal) Bins(n int) *mesh.RectilinearMesh1D {
	std := math.Sqrt(m.Sigma.At(0, 0))
	return mesh.LinSpace(math.Exp(m.Mu[0]-6*std), math.Exp(m.Mu[0]+6*std), n)
}

// newNormalDist builds a gonum distmv.Normal; returns ok=false on a
// non-positive-definite covariance, in which case the callers above return
// -Inf from LogPDF and the mean (exp of the mean for MvLogNormal) from
// Sample.
func newNormalDist(mu []float64, sigma *mat.SymDense, rng *rand.Rand) (*distmv.Normal, bool) {
	return distmv.NewNormal(mu, sigma, rng)
}

// Categorical draws an index in [0, len(Weights)) with probability
// proportional to Weights[i]. Used for the birth/death/perturb/no-change
// action draw (spec.md §4.G) — grounded on the teacher's
// pkg/fuzz/precompile/fuzzer.go RunRound random-selection pattern,
// generalized from uniform Intn to weighted selection.
type Categorical struct {
	Weights []float64
}

func NewCategorical(weights []float64) Categorical {
	return Categorical{Weights: weights}
}

func (c Categorical) LogPDF(x []float64) float64 {
	idx := int(x[0])
	if idx < 0 || idx >= len(c.Weights) {
		return math.Inf(-1)
	}
	total := 0.0
	for _, w := range c.Weights {
		total += w
	}
	if total <= 0 || c.Weights[idx] <= 0 {
		return math.Inf(-1)
	}
	return math.Log(c.Weights[idx] / total)
}

func (c Categorical) Sample(rng *rand.Rand) []float64 {
	return []float64{float64(c.Draw(rng))}
}

// Draw returns the chosen index directly (avoids the []float64 boxing for
// the hot-loop action draw).
func (c Categorical) Draw(rng *rand.Rand) int {
	total := 0.0
	for _, w := range c.Weights {
		total += w
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range c.Weights {
		cum += w
		if r <= cum {
			return i
		}
	}
	return len(c.Weights) - 1
}

// Bins ignores n and returns one unit-wide bin per category, i.e.
// len(Weights)+1 edges.
func (c Categorical) Bins(n int) *mesh.RectilinearMesh1D {
	return mesh.LinSpace(0, float64(len(c.Weights)), len(c.Weights))
}
