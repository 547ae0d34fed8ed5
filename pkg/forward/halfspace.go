package forward

import (
	"math"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
)

// HalfspaceMisfit evaluates the data misfit of a uniform half-space of
// conductivity sigma (S/m) against observed, weighted by 1/variance.
type HalfspaceMisfit func(sigma float64) (float64, error)

// NewUniformHalfspaceMisfit builds the misfit function BestHalfspace
// bisects on: a single-layer Profile's predicted response compared against
// observed under the supplied per-channel variance, at the given sensor
// height.
func NewUniformHalfspaceMisfit(sys *fdem.System, observed, variance []float64, height float64) HalfspaceMisfit {
	return func(sigma float64) (float64, error) {
		predicted, err := Forward(sys, Profile{Conductivity: []float64{sigma}}, height)
		if err != nil {
			return 0, err
		}
		sum := 0.0
		for i := range observed {
			d := predicted[i] - observed[i]
			sum += d * d / variance[i]
		}
		return sum, nil
	}
}

// BestHalfspace bisects on log10(conductivity) to find the best-fitting
// uniform half-space, matching the algorithm in
// original_source/geobipy's FdemDataPoint.FindBestHalfSpace: start from a
// wide conductivity bracket, at each step evaluate the misfit half a decade
// either side of the bracket midpoint (clamped to the bracket), and keep
// the half of the bracket on the side with the lower misfit, stopping
// once the relative misfit change between iterations drops below 1% or
// maxIterations is reached.
func BestHalfspace(misfit HalfspaceMisfit, maxIterations int) (float64, error) {
	if maxIterations <= 0 {
		maxIterations = 100
	}
	const (
		logLo = -6.0 // 1e-6 S/m
		logHi = 2.0  // 1e2 S/m
		step  = 0.5  // log10 half-step probed each side of the midpoint
	)

	mid := (logLo + logHi) / 2
	lastMisfit, err := misfit(math.Pow(10, mid))
	if err != nil {
		return 0, err
	}

	lo, hi := logLo, logHi
	for iter := 0; iter < maxIterations; iter++ {
		mid = (lo + hi) / 2
		left := math.Max(lo, mid-step)
		right := math.Min(hi, mid+step)

		mLeft, err := misfit(math.Pow(10, left))
		if err != nil {
			return 0, err
		}
		mRight, err := misfit(math.Pow(10, right))
		if err != nil {
			return 0, err
		}

		var current float64
		switch {
		case mLeft < mRight:
			hi = mid
			current = mLeft
		default:
			lo = mid
			current = mRight
		}

		if lastMisfit > 0 {
			relChange := math.Abs(current-lastMisfit) / lastMisfit
			if relChange < 0.01 {
				lastMisfit = current
				break
			}
		}
		lastMisfit = current
	}

	if math.IsNaN(lastMisfit) || math.IsInf(lastMisfit, 0) {
		return 0, &errs.NumericError{Reason: "best halfspace bisection diverged"}
	}
	return math.Pow(10, (lo+hi)/2), nil
}
