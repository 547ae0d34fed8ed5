// Package fdem implements the frequency-domain EM system model: a set of
// frequencies with per-frequency transmitter/receiver loop geometry, and
// the precomputed digital-filter Hankel abscissae and weights used by the
// forward kernel. Grounded on original_source/geobipy's FdemSystem.py and
// EmLoop.py (lamda0/lamda1/w0/w1 properties, loop field layout); the
// static-table style mirrors the teacher's pkg/fuzz/precompile/registry.go.
package fdem

import "math"

// Orientation is a loop dipole orientation.
type Orientation int

const (
	OrientX Orientation = iota
	OrientY
	OrientZ
)

func ParseOrientation(s string) Orientation {
	switch s {
	case "x", "X":
		return OrientX
	case "y", "Y":
		return OrientY
	default:
		return OrientZ
	}
}

// Loop describes one transmitter or receiver coil.
type Loop struct {
	X, Y, Z       float64
	Orientation   Orientation
	Moment        float64
	Pitch, Roll, Yaw float64
}

// System holds F frequencies and, per frequency, a transmitter and
// receiver loop, plus the precomputed Hankel-transform tables.
type System struct {
	Frequencies []float64
	Tx          []Loop
	Rx          []Loop

	separation []float64 // r_f, the Tx-Rx distance at frequency f

	// Lambda0[f][j], Lambda1[f][j] are the lagged Hankel abscissae;
	// Lambda0Sq/Lambda1Sq are their cached squares (spec.md §4.D).
	Lambda0   [][numJ0Points]float64
	Lambda1   [][numJ1Points]float64
	Lambda0Sq [][numJ0Points]float64
	Lambda1Sq [][numJ1Points]float64
}

// NewSystem builds a System and precomputes its Hankel tables. Tx and Rx
// must each have len(frequencies) entries.
func NewSystem(frequencies []float64, tx, rx []Loop) (*System, error) {
	s := &System{Frequencies: frequencies, Tx: tx, Rx: rx}
	s.separation = make([]float64, len(frequencies))
	for f := range frequencies {
		dx := tx[f].X - rx[f].X
		dy := tx[f].Y - rx[f].Y
		dz := tx[f].Z - rx[f].Z
		s.separation[f] = math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	s.precompute()
	return s, nil
}

func (s *System) precompute() {
	n := len(s.Frequencies)
	s.Lambda0 = make([][numJ0Points]float64, n)
	s.Lambda1 = make([][numJ1Points]float64, n)
	s.Lambda0Sq = make([][numJ0Points]float64, n)
	s.Lambda1Sq = make([][numJ1Points]float64, n)

	for f := 0; f < n; f++ {
		r := 1.0 / s.separation[f]
		for j := 0; j < numJ0Points; j++ {
			l := math.Pow(10.0, j0FilterAbscissaA+float64(j)*j0FilterAbscissaS) * r
			s.Lambda0[f][j] = l
			s.Lambda0Sq[f][j] = l * l
		}
		for j := 0; j < numJ1Points; j++ {
			l := math.Pow(10.0, j1FilterAbscissaA+float64(j)*j1FilterAbscissaS) * r
			s.Lambda1[f][j] = l
			s.Lambda1Sq[f][j] = l * l
		}
	}
}

// NumFrequencies returns F.
func (s *System) NumFrequencies() int { return len(s.Frequencies) }

// Separation returns r_f, the transmitter-receiver distance at frequency f.
func (s *System) Separation(f int) float64 { return s.separation[f] }

// ComponentKernel describes which Hankel-filter family, exponent, and
// weight-sign a given (Tx orientation, Rx orientation) pair requires. The
// full 3x3 table is implemented (spec.md §4.E "Supplemented") even though
// only the coaxial (z,z) VMD and the (x,x)/(y,y) coplanar combinations are
// exercised by any loop geometry in a real system file.
type ComponentKernel struct {
	UseJ1    bool // true: lambda^2 J1 (coplanar); false: lambda^3 J0 (VMD)
	Exponent float64
	Sign     float64
}

// orientationTable[tx][rx] indexed by Orientation (X=0,Y=1,Z=2).
var orientationTable = [3][3]ComponentKernel{
	{{UseJ1: true, Exponent: 2, Sign: 1}, {UseJ1: true, Exponent: 2, Sign: 0}, {UseJ1: false, Exponent: 3, Sign: 0}},
	{{UseJ1: true, Exponent: 2, Sign: 0}, {UseJ1: true, Exponent: 2, Sign: 1}, {UseJ1: false, Exponent: 3, Sign: 0}},
	{{UseJ1: false, Exponent: 3, Sign: 0}, {UseJ1: false, Exponent: 3, Sign: 0}, {UseJ1: false, Exponent: 3, Sign: 1}},
}

// Kernel returns the orientation-dependent kernel multiplier selector for
// the Tx/Rx pair at frequency f.
func (s *System) Kernel(f int) ComponentKernel {
	return orientationTable[s.Tx[f].Orientation][s.Rx[f].Orientation]
}
