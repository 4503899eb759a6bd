package kalman

import (
	"gonum.org/v1/gonum/mat"

	"github.com/watchgrid/watchgrid/internal/packet"
)

// Measurement-noise and process-noise weights, scaled by box height so the
// filter tolerates more jitter on large (near) objects than small (far) ones.
const (
	stdWeightPosition = 1.0 / 20
	stdWeightVelocity = 1.0 / 160
)

// BoxFilter tracks one bounding box with a constant-velocity model over the
// measurement (cx, cy, aspect, h). State is 8-dimensional: measurement plus
// per-component velocity.
type BoxFilter struct {
	kf *Filter
}

// NewBoxFilter creates a filter centered on the initial box with zero
// velocity.
func NewBoxFilter(box packet.Box) *BoxFilter {
	const (
		dimZ = 4
		dimX = 8
	)
	kf := New(dimX, dimZ)

	// F = [[I, I], [0, I]] (dt = 1 frame)
	for i := 0; i < dimZ; i++ {
		kf.F.Set(i, dimZ+i, 1.0)
	}

	z := boxToMeasurement(box)
	for i := 0; i < dimZ; i++ {
		kf.x.Set(i, 0, z[i])
	}

	h := z[3]
	// Initial uncertainty: loose on position, looser on velocity.
	stds := []float64{
		2 * stdWeightPosition * h,
		2 * stdWeightPosition * h,
		1e-2,
		2 * stdWeightPosition * h,
		10 * stdWeightVelocity * h,
		10 * stdWeightVelocity * h,
		1e-5,
		10 * stdWeightVelocity * h,
	}
	for i, s := range stds {
		kf.P.Set(i, i, s*s)
	}

	bf := &BoxFilter{kf: kf}
	bf.refreshNoise()
	return bf
}

// Predict advances the box one frame under the constant-velocity model.
func (bf *BoxFilter) Predict() {
	bf.refreshNoise()
	bf.kf.Predict()
}

// Update folds an observed box into the state.
func (bf *BoxFilter) Update(box packet.Box) {
	bf.refreshNoise()
	z := boxToMeasurement(box)
	bf.kf.Update(mat.NewDense(4, 1, z))
}

// Current returns the filter's present box estimate.
func (bf *BoxFilter) Current() packet.Box {
	x := bf.kf.State()
	return measurementToBox([4]float64{x.At(0, 0), x.At(1, 0), x.At(2, 0), x.At(3, 0)})
}

// refreshNoise rescales Q and R to the current box height.
func (bf *BoxFilter) refreshNoise() {
	h := bf.kf.State().At(3, 0)
	if h < 1 {
		h = 1
	}
	qStds := []float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-2,
		stdWeightPosition * h,
		stdWeightVelocity * h,
		stdWeightVelocity * h,
		1e-5,
		stdWeightVelocity * h,
	}
	for i, s := range qStds {
		bf.kf.Q.Set(i, i, s*s)
	}
	rStds := []float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-1,
		stdWeightPosition * h,
	}
	for i, s := range rStds {
		bf.kf.R.Set(i, i, s*s)
	}
}

func boxToMeasurement(b packet.Box) []float64 {
	cx, cy := b.Center()
	w := float64(b.Width())
	h := float64(b.Height())
	if h == 0 {
		h = 1
	}
	return []float64{cx, cy, w / h, h}
}

func measurementToBox(z [4]float64) packet.Box {
	cx, cy, a, h := z[0], z[1], z[2], z[3]
	w := a * h
	return packet.Box{
		int(cx - w/2),
		int(cy - h/2),
		int(cx + w/2),
		int(cy + h/2),
	}
}
