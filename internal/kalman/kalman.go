// Package kalman implements the constant-velocity Kalman filter used for
// motion prediction of tracked bounding boxes.
package kalman

import (
	"gonum.org/v1/gonum/mat"
)

// Filter is a linear Kalman filter over a state of dimension dimX with
// measurements of dimension dimZ.
type Filter struct {
	dimX int
	dimZ int

	x *mat.Dense // state vector (dimX, 1)
	P *mat.Dense // state covariance (dimX, dimX)
	F *mat.Dense // state transition (dimX, dimX)
	H *mat.Dense // measurement matrix (dimZ, dimX)
	R *mat.Dense // measurement noise (dimZ, dimZ)
	Q *mat.Dense // process noise (dimX, dimX)

	// scratch space reused across steps
	xPrior *mat.Dense
	pPrior *mat.Dense
}

// New creates a filter initialized with identity matrices. Callers configure
// F, H, Q, R and the initial state before use.
func New(dimX, dimZ int) *Filter {
	kf := &Filter{
		dimX:   dimX,
		dimZ:   dimZ,
		x:      mat.NewDense(dimX, 1, nil),
		P:      mat.NewDense(dimX, dimX, nil),
		F:      mat.NewDense(dimX, dimX, nil),
		H:      mat.NewDense(dimZ, dimX, nil),
		R:      mat.NewDense(dimZ, dimZ, nil),
		Q:      mat.NewDense(dimX, dimX, nil),
		xPrior: mat.NewDense(dimX, 1, nil),
		pPrior: mat.NewDense(dimX, dimX, nil),
	}
	for i := 0; i < dimX; i++ {
		kf.F.Set(i, i, 1.0)
		kf.P.Set(i, i, 1.0)
		kf.Q.Set(i, i, 1.0)
	}
	for i := 0; i < dimZ; i++ {
		kf.H.Set(i, i, 1.0)
		kf.R.Set(i, i, 1.0)
	}
	return kf
}

// Predict advances the state: x = F·x, P = F·P·Fᵀ + Q.
func (kf *Filter) Predict() {
	kf.xPrior.Mul(kf.F, kf.x)
	kf.x.Copy(kf.xPrior)

	var temp mat.Dense
	temp.Mul(kf.F, kf.P)
	kf.pPrior.Mul(&temp, kf.F.T())
	kf.P.Add(kf.pPrior, kf.Q)
}

// Update folds a measurement z (dimZ, 1) into the state. A singular
// innovation covariance skips the update rather than corrupting the state.
func (kf *Filter) Update(z *mat.Dense) {
	// y = z - H·x
	var hx mat.Dense
	hx.Mul(kf.H, kf.x)
	var y mat.Dense
	y.Sub(z, &hx)

	// S = H·P·Hᵀ + R
	var temp1 mat.Dense
	temp1.Mul(kf.H, kf.P)
	var s mat.Dense
	s.Mul(&temp1, kf.H.T())
	s.Add(&s, kf.R)

	// K = P·Hᵀ·S⁻¹
	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return
	}
	var temp2 mat.Dense
	temp2.Mul(kf.P, kf.H.T())
	var k mat.Dense
	k.Mul(&temp2, &sInv)

	// x = x + K·y
	var kY mat.Dense
	kY.Mul(&k, &y)
	kf.x.Add(kf.x, &kY)

	// P = (I - K·H)·P
	identity := mat.NewDense(kf.dimX, kf.dimX, nil)
	for i := 0; i < kf.dimX; i++ {
		identity.Set(i, i, 1.0)
	}
	var kH mat.Dense
	kH.Mul(&k, kf.H)
	var iMinusKH mat.Dense
	iMinusKH.Sub(identity, &kH)
	var newP mat.Dense
	newP.Mul(&iMinusKH, kf.P)
	kf.P.Copy(&newP)
}

// State returns the state vector.
func (kf *Filter) State() *mat.Dense { return kf.x }

// TransitionMatrix returns F for configuration.
func (kf *Filter) TransitionMatrix() *mat.Dense { return kf.F }

// MeasurementMatrix returns H for configuration.
func (kf *Filter) MeasurementMatrix() *mat.Dense { return kf.H }

// MeasurementNoise returns R for configuration.
func (kf *Filter) MeasurementNoise() *mat.Dense { return kf.R }

// ProcessNoise returns Q for configuration.
func (kf *Filter) ProcessNoise() *mat.Dense { return kf.Q }

// Covariance returns P for configuration.
func (kf *Filter) Covariance() *mat.Dense { return kf.P }
