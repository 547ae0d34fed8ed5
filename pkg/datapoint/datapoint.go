// Package datapoint implements a single airborne EM sounding: its observed
// channels, noise model, and the misfit/likelihood computations that feed
// the sampler (spec.md §4.F). The field-bag shape is adapted from the
// teacher's pkg/discovery.Service/ServiceFilter (a flat struct of identity
// plus measured attributes, with a companion filter type for CLI
// selection) — repurposed here from "discovered container" to "discovered
// sounding".
package datapoint

import (
	"math"
	"math/rand"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
	"github.com/geoinv/aem-rjmcmc/pkg/forward"
	"github.com/geoinv/aem-rjmcmc/pkg/statarray"
)

// Datapoint holds one sounding: its geometry, observed channels, noise
// model, and predicted response.
type Datapoint struct {
	LineNumber float64
	Fiducial   float64
	X, Y, Z    float64
	Elevation  float64

	Observed []float64 // length C
	Sigma    []float64 // length C, std dev per channel
	Active   []bool    // length C

	Predicted []float64 // length C, updated by Forward

	Height *statarray.Parameter // sensor height, length-1 Parameter
	RelErr *statarray.Parameter // rε, length S (subsystems)
	AddErr *statarray.Parameter // aε, length S

	System *fdem.System

	// subsystemOf maps each channel index to its subsystem index, for the
	// (rε·|d|)^2 + aε^2 recomputation; a single-subsystem sounding has all
	// zeros here.
	subsystemOf []int
}

// Filter selects datapoints by the spec.md §6 CLI contract
// (--index/--fiducial/--line).
type Filter struct {
	Index    *int
	Fiducial *float64
	Line     *float64
}

// Match reports whether index-th datapoint with this identity passes f.
func (f Filter) Match(index int, fiducial, line float64) bool {
	if f.Index != nil && *f.Index != index {
		return false
	}
	if f.Fiducial != nil && *f.Fiducial != fiducial {
		return false
	}
	if f.Line != nil && *f.Line != line {
		return false
	}
	return true
}

// NumChannels returns C, the number of observed/predicted channels.
func (d *Datapoint) NumChannels() int { return len(d.Observed) }

// validate enforces spec.md §4.B's invariant |d| = |σ| = |d̂| = C and σ > 0
// on active channels.
func (d *Datapoint) validate() error {
	c := len(d.Observed)
	if len(d.Sigma) != c || len(d.Predicted) != c || len(d.Active) != c {
		return &errs.DataError{Fiducial: d.Fiducial, Reason: "observed/sigma/predicted/active length mismatch"}
	}
	for i, active := range d.Active {
		if active && d.Sigma[i] <= 0 {
			return &errs.DataError{Fiducial: d.Fiducial, Reason: "non-positive sigma on an active channel"}
		}
	}
	return nil
}

// effectiveSigma returns the per-channel standard deviation used for this
// evaluation: the stored Sigma unless RelErr/AddErr are free parameters, in
// which case sigma^2 = (relErr*|d|)^2 + addErr^2 is recomputed (spec.md
// §4.F).
func (d *Datapoint) effectiveSigma() []float64 {
	if d.RelErr == nil && d.AddErr == nil {
		return d.Sigma
	}
	sigma := make([]float64, len(d.Observed))
	for i, obs := range d.Observed {
		sub := 0
		if d.subsystemOf != nil {
			sub = d.subsystemOf[i]
		}
		rel := 0.0
		if d.RelErr != nil && sub < len(d.RelErr.Value) {
			rel = d.RelErr.Value[sub]
		}
		add := 0.0
		if d.AddErr != nil && sub < len(d.AddErr.Value) {
			add = d.AddErr.Value[sub]
		}
		v := (rel*math.Abs(obs))*(rel*math.Abs(obs)) + add*add
		sigma[i] = math.Sqrt(v)
	}
	return sigma
}

// DataMisfit computes Σ_active ((d-d̂)/σ)^2.
func (d *Datapoint) DataMisfit() (float64, error) {
	if err := d.validate(); err != nil {
		return 0, err
	}
	sigma := d.effectiveSigma()
	sum := 0.0
	for i, active := range d.Active {
		if !active {
			continue
		}
		if sigma[i] <= 0 {
			return 0, &errs.DataError{Fiducial: d.Fiducial, Reason: "non-positive effective sigma"}
		}
		r := (d.Observed[i] - d.Predicted[i]) / sigma[i]
		sum += r * r
	}
	return sum, nil
}

// LogLikelihood computes -1/2*misfit - 1/2*Sum(log(2*pi*sigma^2)) over
// active channels.
func (d *Datapoint) LogLikelihood() (float64, error) {
	misfit, err := d.DataMisfit()
	if err != nil {
		return 0, err
	}
	sigma := d.effectiveSigma()
	norm := 0.0
	for i, active := range d.Active {
		if !active {
			continue
		}
		norm += math.Log(2 * math.Pi * sigma[i] * sigma[i])
	}
	return -0.5*misfit - 0.5*norm, nil
}

// LogProbability sums the log-priors over the free nuisance parameters
// (h, rε, aε).
func (d *Datapoint) LogProbability() float64 {
	total := 0.0
	if d.Height != nil {
		total += d.Height.LogPrior()
	}
	if d.RelErr != nil {
		total += d.RelErr.LogPrior()
	}
	if d.AddErr != nil {
		total += d.AddErr.LogPrior()
	}
	return total
}

// Perturb draws new (h, rε, aε) from their proposals, reflected back into
// their priors' support when the prior is Uniform, mutating the receiver's
// nuisance parameters in place.
func (d *Datapoint) Perturb(rng *rand.Rand) {
	if d.Height != nil {
		d.Height.Value = d.Height.Perturb(rng, true)
	}
	if d.RelErr != nil {
		d.RelErr.Value = d.RelErr.Perturb(rng, true)
	}
	if d.AddErr != nil {
		d.AddErr.Value = d.AddErr.Perturb(rng, true)
	}
}

// Calibrate re-expresses Observed/Sigma into the system's native response
// units before misfit evaluation. It is a no-op pass-through when scale is
// 1 or 0, keeping a named, tested seam for a future
// unit convention (ppm vs raw secondary field) without touching
// DataMisfit — recovered from original_source's FdemDataPoint.calibrate,
// which geobipy's rj-MCMC sampler always calls before the first
// iteration even when the scale factor is 1.
func (d *Datapoint) Calibrate(scale float64) {
	if scale == 1 || scale == 0 {
		return
	}
	for i := range d.Observed {
		d.Observed[i] *= scale
		d.Sigma[i] *= scale
	}
}

// HeightValue returns the sensor height used by the forward operator: the
// sampled Height parameter when it is a free nuisance parameter, otherwise
// the fixed Z (spec.md §3: "d̂ is a pure function of (model, h,
// system-geometry)" — h always has a value, free or not).
func (d *Datapoint) HeightValue() float64 {
	if d.Height != nil && len(d.Height.Value) > 0 {
		return d.Height.Value[0]
	}
	return d.Z
}

// UpdatePredicted runs the forward operator for profile and stores the
// result as Predicted.
func (d *Datapoint) UpdatePredicted(profile forward.Profile) error {
	predicted, err := forward.Forward(d.System, profile, d.HeightValue())
	if err != nil {
		return err
	}
	d.Predicted = predicted
	return nil
}

// Clone returns a deep copy suitable for the candidate-then-accept lifecycle
// used by the sampler: callers mutate the clone and swap it in only on
// acceptance, never mutating a datapoint that is still part of the current
// state.
func (d *Datapoint) Clone() *Datapoint {
	clone := *d
	clone.Observed = append([]float64(nil), d.Observed...)
	clone.Sigma = append([]float64(nil), d.Sigma...)
	clone.Active = append([]bool(nil), d.Active...)
	clone.Predicted = append([]float64(nil), d.Predicted...)
	if d.Height != nil {
		clone.Height = d.Height.Clone()
	}
	if d.RelErr != nil {
		clone.RelErr = d.RelErr.Clone()
	}
	if d.AddErr != nil {
		clone.AddErr = d.AddErr.Clone()
	}
	return &clone
}
