package model1d

import (
	"math"
	"math/rand"
	"sort"

	"github.com/geoinv/aem-rjmcmc/pkg/distribution"
	"github.com/geoinv/aem-rjmcmc/pkg/errs"
)

// Action identifies which of the four reversible-jump moves a Propose call
// took.
type Action int

const (
	ActionBirth Action = iota
	ActionDeath
	ActionPerturb
	ActionNoChange
)

func (a Action) String() string {
	switch a {
	case ActionBirth:
		return "birth"
	case ActionDeath:
		return "death"
	case ActionPerturb:
		return "perturb"
	default:
		return "no_change"
	}
}

// KernelConfig bundles the geometry bounds with the reversible-jump move
// probabilities and step sizes (spec.md §4.G).
type KernelConfig struct {
	Bounds

	PBirth, PDeath, PPerturb, PNoChange float64
	VBirth                              float64 // variance of q_b, the birth value proposal
	VEdge                               float64 // std dev of the perturb-edge Gaussian step
}

func (k KernelConfig) actionWeights(numLayers int) distribution.Categorical {
	weights := []float64{k.PBirth, k.PDeath, k.PPerturb, k.PNoChange}
	if numLayers <= k.KMin {
		weights[1] = 0 // death unavailable at K_min
	}
	if numLayers >= k.KMax {
		weights[0] = 0 // birth unavailable at K_max
	}
	return distribution.NewCategorical(weights)
}

// Propose draws one reversible-jump move from current and returns the
// candidate model along with the forward/backward proposal log-densities
// for the geometry change (the layer-value Stochastic-Newton step is
// applied separately by LocalVarianceProposal, per spec.md §4.G: "In all
// four actions the layer values are then additionally perturbed").
//
// ok is false when the draw was geometrically invalid (a birth edge within
// TauMin of an existing one) — the spec requires this to reject the whole
// step immediately rather than retry.
func Propose(rng *rand.Rand, current *Model1D, cfg KernelConfig) (candidate *Model1D, action Action, logQFwd, logQBwd float64, ok bool, err error) {
	weights := cfg.actionWeights(current.NumLayers())
	action = Action(weights.Draw(rng))

	switch action {
	case ActionBirth:
		return proposeBirth(rng, current, cfg)
	case ActionDeath:
		return proposeDeath(rng, current, cfg)
	case ActionPerturb:
		return proposePerturb(rng, current, cfg)
	default:
		return current.Clone(), ActionNoChange, 0, 0, true, nil
	}
}

func proposeBirth(rng *rand.Rand, current *Model1D, cfg KernelConfig) (*Model1D, Action, float64, float64, bool, error) {
	newEdge := cfg.DMin + rng.Float64()*(cfg.DMax-cfg.DMin)

	for _, e := range current.Edges {
		if math.Abs(e-newEdge) < cfg.TauMin {
			return nil, ActionBirth, 0, 0, false, nil
		}
	}
	if newEdge-cfg.DMin < cfg.TauMin || cfg.DMax-newEdge < cfg.TauMin {
		return nil, ActionBirth, 0, 0, false, nil
	}

	splitLayer := sort.SearchFloat64s(current.Edges, newEdge)

	candidate := &Model1D{
		Edges:  make([]float64, len(current.Edges)+1),
		Values: make([]float64, len(current.Values)+1),
	}
	copy(candidate.Edges, current.Edges[:splitLayer])
	candidate.Edges[splitLayer] = newEdge
	copy(candidate.Edges[splitLayer+1:], current.Edges[splitLayer:])

	copy(candidate.Values, current.Values[:splitLayer])
	splitValue := current.Values[splitLayer]
	proposalStd := math.Sqrt(cfg.VBirth)
	newValue := splitValue + proposalStd*rng.NormFloat64()
	candidate.Values[splitLayer] = splitValue   // shallower half keeps the old value
	candidate.Values[splitLayer+1] = newValue   // deeper half draws from q_b
	copy(candidate.Values[splitLayer+2:], current.Values[splitLayer+1:])

	normal := distribution.Normal{Mean: splitValue, Std: proposalStd}
	logQFwd := -math.Log(cfg.DMax-cfg.DMin) + normal.LogPDF([]float64{newValue})
	logQBwd := -math.Log(float64(len(candidate.Edges)))

	if err := candidate.validate(cfg.Bounds); err != nil {
		return nil, ActionBirth, 0, 0, false, err
	}
	return candidate, ActionBirth, logQFwd, logQBwd, true, nil
}

func proposeDeath(rng *rand.Rand, current *Model1D, cfg KernelConfig) (*Model1D, Action, float64, float64, bool, error) {
	if len(current.Edges) == 0 {
		return nil, ActionDeath, 0, 0, false, nil
	}
	doomed := rng.Intn(len(current.Edges))

	candidate := &Model1D{
		Edges:  make([]float64, len(current.Edges)-1),
		Values: make([]float64, len(current.Values)-1),
	}
	copy(candidate.Edges, current.Edges[:doomed])
	copy(candidate.Edges[doomed:], current.Edges[doomed+1:])

	th := current.Thicknesses()
	thUpper := th[doomed]
	// below the last edge lies the half-space; its weight runs to DMax.
	thLower := cfg.DMax - current.Edges[doomed]
	if doomed+1 < len(th) {
		thLower = th[doomed+1]
	}
	vUpper, vLower := current.Values[doomed], current.Values[doomed+1]
	merged := (thUpper*vUpper + thLower*vLower) / (thUpper + thLower)

	copy(candidate.Values, current.Values[:doomed])
	candidate.Values[doomed] = merged
	copy(candidate.Values[doomed+1:], current.Values[doomed+2:])

	proposalStd := math.Sqrt(cfg.VBirth)
	normal := distribution.Normal{Mean: merged, Std: proposalStd}
	logQFwd := -math.Log(float64(len(current.Edges)))
	logQBwd := -math.Log(cfg.DMax-cfg.DMin) + normal.LogPDF([]float64{vLower})

	if err := candidate.validate(cfg.Bounds); err != nil {
		return nil, ActionDeath, 0, 0, false, err
	}
	return candidate, ActionDeath, logQFwd, logQBwd, true, nil
}

func proposePerturb(rng *rand.Rand, current *Model1D, cfg KernelConfig) (*Model1D, Action, float64, float64, bool, error) {
	if len(current.Edges) == 0 {
		return current.Clone(), ActionNoChange, 0, 0, true, nil
	}
	idx := rng.Intn(len(current.Edges))
	step := cfg.VEdge * rng.NormFloat64()

	lo := cfg.DMin + cfg.TauMin
	hi := cfg.DMax - cfg.TauMin
	if idx > 0 {
		lo = current.Edges[idx-1] + cfg.TauMin
	}
	if idx < len(current.Edges)-1 {
		hi = current.Edges[idx+1] - cfg.TauMin
	}
	newPos := reflect(current.Edges[idx]+step, lo, hi)

	candidate := current.Clone()
	candidate.Edges[idx] = newPos

	if err := candidate.validate(cfg.Bounds); err != nil {
		return nil, ActionPerturb, 0, 0, false, err
	}
	// the Gaussian edge step is symmetric; forward and backward densities
	// cancel (the move is a random walk, not a birth/death jump).
	return candidate, ActionPerturb, 0, 0, true, nil
}

func reflect(x, lo, hi float64) float64 {
	if hi <= lo {
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

// errNonPositiveDefinite is returned by LocalVarianceProposal when Sigma^-1
// fails its Cholesky factorisation; callers treat it as a NumericError and
// reject the proposal rather than retrying (spec.md §7).
var errNonPositiveDefinite = &errs.NumericError{Reason: "Stochastic-Newton Sigma^-1 is not positive definite"}
