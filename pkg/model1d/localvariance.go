package model1d

import (
	"github.com/geoinv/aem-rjmcmc/pkg/distribution"
	"gonum.org/v1/gonum/mat"
)

// RemapJacobian maps a Jacobian computed on the pre-move model onto the
// candidate's layer count by piecewise-constant prolongation (birth:
// duplicate the split layer's column) or restriction (death: sum the two
// merged layers' columns), per spec.md §4.G: "For birth/death, J is
// remapped to the new layer count by piecewise-constant
// prolongation/restriction on the depth mesh before forming Sigma."
// layerIndex is the split layer (birth) or the upper of the two merged
// layers (death); Propose does not return it, so callers derive it from
// the before/after edge sets.
func RemapJacobian(j *mat.Dense, action Action, layerIndex int) *mat.Dense {
	rows, cols := j.Dims()
	switch action {
	case ActionBirth:
		out := mat.NewDense(rows, cols+1, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c <= layerIndex; c++ {
				out.Set(r, c, j.At(r, c))
			}
			out.Set(r, layerIndex+1, j.At(r, layerIndex))
			for c := layerIndex + 1; c < cols; c++ {
				out.Set(r, c+1, j.At(r, c))
			}
		}
		return out
	case ActionDeath:
		out := mat.NewDense(rows, cols-1, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c < layerIndex; c++ {
				out.Set(r, c, j.At(r, c))
			}
			out.Set(r, layerIndex, j.At(r, layerIndex)+j.At(r, layerIndex+1))
			for c := layerIndex + 2; c < cols; c++ {
				out.Set(r, c-1, j.At(r, c))
			}
		}
		return out
	default:
		return j
	}
}

// LocalVarianceProposal builds the Stochastic-Newton MvLogNormal proposal
// for the layer-value vector (spec.md §4.G "Local variance"):
//
//	Sigma^-1 = J^T W J + lambda * L
//
// W is diag(1/variance) over active channels, L is the first-difference
// operator weighted by 1/sigmaGrad^2 (zero if sigmaGrad is 0), and the
// proposal mean is the current ln-conductivity vector. c is the covariance
// scaling factor (default 1).
func LocalVarianceProposal(j *mat.Dense, variance []float64, lambda, sigmaGrad, c float64, current []float64) (*distribution.MvLogNormal, error) {
	rows, k := j.Dims()
	w := mat.NewDiagDense(rows, nil)
	for i := 0; i < rows; i++ {
		if variance[i] > 0 {
			w.SetDiag(i, 1/variance[i])
		}
	}

	var jtw mat.Dense
	jtw.Mul(j.T(), w)
	var jtwj mat.Dense
	jtwj.Mul(&jtw, j)

	precision := mat.NewSymDense(k, nil)
	for r := 0; r < k; r++ {
		for col := r; col < k; col++ {
			precision.SetSym(r, col, jtwj.At(r, col))
		}
	}

	if sigmaGrad > 0 && k > 1 {
		weight := lambda / (sigmaGrad * sigmaGrad)
		for i := 0; i < k; i++ {
			if i > 0 {
				precision.SetSym(i, i, precision.At(i, i)+weight)
			}
			if i < k-1 {
				precision.SetSym(i, i, precision.At(i, i)+weight)
			}
			if i+1 < k {
				precision.SetSym(i, i+1, precision.At(i, i+1)-weight)
			}
		}
	}

	var chol mat.Cholesky
	ok := chol.Factorize(precision)
	if !ok {
		return nil, errNonPositiveDefinite
	}

	var sigma mat.SymDense
	if err := chol.InverseTo(&sigma); err != nil {
		return nil, errNonPositiveDefinite
	}

	scaled := mat.NewSymDense(k, nil)
	for r := 0; r < k; r++ {
		for col := r; col < k; col++ {
			scaled.SetSym(r, col, c*sigma.At(r, col))
		}
	}

	mean := make([]float64, k)
	copy(mean, current)
	return distribution.NewMvLogNormal(mean, scaled), nil
}
