// Package statarray implements the "sampled parameter" record design note
// from spec.md §9: a value bundled with an optional prior, proposal, and
// posterior histogram, kept separate from bulk numeric arrays (the model
// parameter vector and Jacobian stay plain []float64 elsewhere).
package statarray

import (
	"math"
	"math/rand"

	"github.com/geoinv/aem-rjmcmc/pkg/distribution"
	"github.com/geoinv/aem-rjmcmc/pkg/mesh"
)

// Parameter is a scalar or small vector quantity sampled by the chain:
// sensor height, relative error, additive error, and similar nuisance
// parameters all use this type. Model1D's own (edges, values) arrays are
// NOT Parameters — they are large and mutated every iteration, so they
// stay as bare slices with their own prior/proposal logic (pkg/model1d).
type Parameter struct {
	Value      []float64
	Prior      distribution.Distribution
	Proposal   distribution.Distribution
	Posterior  *mesh.Histogram1D
	PosteriorN int // bin count used when Posterior was built from Prior
}

// NewParameter creates a Parameter with the given initial value and prior.
// If prior is non-nil and posteriorBins > 0, a Posterior histogram is
// attached immediately, meshed from the prior's support.
func NewParameter(value []float64, prior, proposal distribution.Distribution, posteriorBins int) *Parameter {
	p := &Parameter{Value: value, Prior: prior, Proposal: proposal}
	if prior != nil && posteriorBins > 0 {
		p.Posterior = mesh.NewHistogram1D(prior.Bins(posteriorBins))
		p.PosteriorN = posteriorBins
	}
	return p
}

// SampleFromPrior replaces Value with one draw from Prior.
func (p *Parameter) SampleFromPrior(rng *rand.Rand) {
	if p.Prior == nil {
		return
	}
	p.Value = p.Prior.Sample(rng)
}

// LogPrior evaluates the log-density of the current value under Prior.
// Returns 0 if no prior is attached (an unconstrained nuisance parameter).
func (p *Parameter) LogPrior() float64 {
	if p.Prior == nil {
		return 0
	}
	return p.Prior.LogPDF(p.Value)
}

// Perturb draws a candidate value from Proposal, optionally reflecting it
// back into the prior's support (a standard trick for bounded random walks:
// reflect off the boundary instead of rejecting outright). It returns the
// new value without mutating Value — callers perturb a cloned candidate.
func (p *Parameter) Perturb(rng *rand.Rand, reflect bool) []float64 {
	if p.Proposal == nil {
		out := make([]float64, len(p.Value))
		copy(out, p.Value)
		return out
	}
	draw := p.Proposal.Sample(rng)
	if !reflect || p.Prior == nil {
		return draw
	}
	u, isUniform := p.Prior.(distribution.Uniform)
	if !isUniform {
		return draw
	}
	for i := range draw {
		draw[i] = reflectInto(draw[i], u.Lo, u.Hi)
	}
	return draw
}

// reflectInto folds x back into [lo, hi] by mirroring at the boundaries,
// repeating until it settles inside (bounded: the span can't shrink, so
// this always terminates quickly for any finite x).
func reflectInto(x, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return lo
	}
	for x < lo || x > hi {
		if x < lo {
			x = lo + (lo - x)
		}
		if x > hi {
			x = hi - (x - hi)
		}
	}
	return x
}

// UpdatePosterior appends the current value to the attached histogram. A
// no-op if no posterior is attached.
func (p *Parameter) UpdatePosterior() {
	if p.Posterior == nil {
		return
	}
	for _, v := range p.Value {
		p.Posterior.Update(v)
	}
}

// ResetPosterior zeroes the posterior counts (called once, on the burn-in
// transition).
func (p *Parameter) ResetPosterior() {
	if p.Posterior != nil {
		p.Posterior.Reset()
	}
}

// Clone returns a deep copy suitable for candidate perturbation — Prior,
// Proposal and Posterior are shared by reference (they are never mutated
// in place outside of UpdatePosterior/ResetPosterior, which only the
// current, not the candidate, ever calls).
func (p *Parameter) Clone() *Parameter {
	v := make([]float64, len(p.Value))
	copy(v, p.Value)
	return &Parameter{
		Value:      v,
		Prior:      p.Prior,
		Proposal:   p.Proposal,
		Posterior:  p.Posterior,
		PosteriorN: p.PosteriorN,
	}
}

// Scalar is a convenience accessor for single-valued parameters.
func (p *Parameter) Scalar() float64 {
	if len(p.Value) == 0 {
		return math.NaN()
	}
	return p.Value[0]
}
