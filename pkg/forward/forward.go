// Package forward implements the frequency-domain EM forward operator and
// its Jacobian (spec.md §4.E): propagation constants, the reflection
// recursion, the digital-filter Hankel transform, and the closed-form
// sensitivity of the predicted response to each layer conductivity.
package forward

import (
	"math"
	"math/cmplx"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
	"gonum.org/v1/gonum/mat"
)

const mu0 = 4 * math.Pi * 1e-7

// Profile is the forward operator's view of a 1-D layered earth: K
// conductivities (S/m, linear space) and K-1 thicknesses (metres); the
// bottom layer is implicitly semi-infinite. Model1D builds a Profile from
// its own (edges, log-conductivity) representation before calling Forward
// or Sensitivity, keeping this package free of any trans-dimensional
// bookkeeping.
type Profile struct {
	Thickness    []float64 // length K-1
	Conductivity []float64 // length K, S/m
}

func (p Profile) numLayers() int { return len(p.Conductivity) }

// Forward computes the predicted in-phase/quadrature response for every
// frequency of sys, writing real parts to predicted[:F] and imaginary
// parts to predicted[F:2F], in parts-per-million of the primary field.
// height is the sensor's height above the ground surface (spec.md §3: d̂ is
// a pure function of (model, h, system-geometry)); both loops are assumed
// at this height, so the field attenuates going down to the layered earth
// and back up. Forward has no hidden state: two successive calls on the
// same inputs yield bit-identical output (spec.md §8 "Forward idempotence").
func Forward(sys *fdem.System, p Profile, height float64) ([]float64, error) {
	f := sys.NumFrequencies()
	predicted := make([]float64, 2*f)
	for i := 0; i < f; i++ {
		h, err := responseAtFrequency(sys, p, i, height, nil)
		if err != nil {
			return nil, err
		}
		predicted[i] = real(h)
		predicted[f+i] = imag(h)
	}
	return predicted, nil
}

// Sensitivity returns the C x K Jacobian d(predicted)/d(conductivity_k),
// computed by differentiating the reflection recursion analytically (not
// by finite differences, per spec.md §4.E). height enters only as a
// per-lambda multiplicative attenuation (see responseAtFrequency), so it
// does not itself appear in the returned derivatives.
func Sensitivity(sys *fdem.System, p Profile, height float64) (*mat.Dense, error) {
	f := sys.NumFrequencies()
	k := p.numLayers()
	jac := mat.NewDense(2*f, k, nil)
	for i := 0; i < f; i++ {
		partials := make([]complex128, k)
		h, err := responseAtFrequency(sys, p, i, height, partials)
		if err != nil {
			return nil, err
		}
		_ = h
		for layer := 0; layer < k; layer++ {
			jac.Set(i, layer, real(partials[layer]))
			jac.Set(f+i, layer, imag(partials[layer]))
		}
	}
	return jac, nil
}

// responseAtFrequency evaluates H_f for one frequency and, if dSigma is
// non-nil (length K), also fills it with dH_f/dsigma_k for every layer k.
func responseAtFrequency(sys *fdem.System, p Profile, freqIdx int, height float64, dSigma []complex128) (complex128, error) {
	omega := 2 * math.Pi * sys.Frequencies[freqIdx]
	kernel := sys.Kernel(freqIdx)
	r := sys.Separation(freqIdx)

	if kernel.Sign == 0 {
		// cross (off-diagonal) Tx/Rx orientation: a horizontally layered
		// earth has no coupling between orthogonal dipole moments, so the
		// component vanishes identically (spec.md §4.E step 3).
		if dSigma != nil {
			for layer := range dSigma {
				dSigma[layer] = 0
			}
		}
		return 0, nil
	}

	var lambdas []float64
	var weights []float64
	if kernel.UseJ1 {
		lambdas = sys.Lambda1[freqIdx][:]
		weights = j1FilterWeightsSlice()
	} else {
		lambdas = sys.Lambda0[freqIdx][:]
		weights = j0FilterWeightsSlice()
	}

	m := kernel.Exponent
	sum := complex(0, 0)
	var dsum []complex128
	if dSigma != nil {
		dsum = make([]complex128, len(p.Conductivity))
	}

	for j, lambda := range lambdas {
		kLambda, dk, err := reflectionKernel(p, omega, lambda, dSigma != nil)
		if err != nil {
			return 0, err
		}
		atten := math.Exp(-2 * lambda * height)
		weight := complex(weights[j]*math.Pow(lambda, m)*atten, 0)
		sum += weight * kLambda
		if dSigma != nil {
			for layer := range dsum {
				dsum[layer] += weight * dk[layer]
			}
		}
	}

	scale := kernel.Sign * 1.0e6 / math.Pow(r, m+1)
	moment := sys.Tx[freqIdx].Moment * sys.Rx[freqIdx].Moment
	h := sum * complex(scale*moment, 0)
	if dSigma != nil {
		for layer := range dsum {
			dSigma[layer] = dsum[layer] * complex(scale*moment, 0)
		}
	}
	return h, nil
}

// reflectionKernel propagates the surface impedance from the bottom
// (semi-infinite) layer upward via the standard recursion
//
//	R_k = (R_{k+1} + tanh(u_k t_k)/u_k) / (1 + u_k R_{k+1} tanh(u_k t_k))
//
// returning the top reflection R_1 (the kernel K(lambda) of spec.md
// §4.E step 2-3) and, if withDeriv, its partial derivative with respect to
// every layer's conductivity.
func reflectionKernel(p Profile, omega, lambda float64, withDeriv bool) (complex128, []complex128, error) {
	k := p.numLayers()
	u := make([]complex128, k)
	for i, sigma := range p.Conductivity {
		u[i] = cmplx.Sqrt(complex(lambda*lambda, omega*mu0*sigma))
		if cmplx.IsNaN(u[i]) {
			return 0, nil, &errs.NumericError{Reason: "Hankel propagation constant overflow"}
		}
	}

	// bottom half-space has no admittance reflected back into it.
	R := 1.0 / u[k-1]
	var dR []complex128
	if withDeriv {
		dR = make([]complex128, k)
		// dR_K/dsigma_K = d(1/u_K)/dsigma_K
		duK := complex(0, omega*mu0) / (2 * u[k-1])
		dR[k-1] = -duK / (u[k-1] * u[k-1])
	}

	for layer := k - 2; layer >= 0; layer-- {
		t := p.Thickness[layer]
		ut := u[layer] * complex(t, 0)
		th := cmplx.Tanh(ut)

		num := R + th/u[layer]
		den := 1 + u[layer]*R*th
		if cmplx.Abs(den) < 1e-300 {
			return 0, nil, &errs.NumericError{Reason: "reflection recursion singular denominator"}
		}
		newR := num / den

		if withDeriv {
			// df/dR = [ (1 + u R th) - (R + th/u) * u th ] / den^2   (evaluated at th, u held fixed)
			dfdR := (den - num*(u[layer]*th)) / (den * den)
			// df/du for the own-layer term, including th's dependence on u
			// through tanh(u t); combined with du/dsigma below for the direct term.
			dthdu := complex(t, 0) * (1 - th*th)
			dnumdu := -th/(u[layer]*u[layer]) + dthdu/u[layer]
			dtdendu := R*th + u[layer]*R*dthdu
			dfdu := (dnumdu*den - num*dtdendu) / (den * den)

			duOwn := complex(0, omega*mu0) / (2 * u[layer])

			newDR := make([]complex128, k)
			for m := layer + 1; m < k; m++ {
				newDR[m] = dfdR * dR[m]
			}
			newDR[layer] = dfdR*dR[layer] + dfdu*duOwn
			dR = newDR
		}
		R = newR
	}

	return R, dR, nil
}

func j0FilterWeightsSlice() []float64 {
	out := make([]float64, numJ0Points)
	copy(out, j0FilterWeights[:])
	return out
}

func j1FilterWeightsSlice() []float64 {
	out := make([]float64, numJ1Points)
	copy(out, j1FilterWeights[:])
	return out
}
