package vertex

import "gonum.org/v1/gonum/spatial/r3"

// Weighting is the weight a single line carries into a candidate. Matrix
// is summed into the candidate's weight matrix, from which the position
// covariance is derived. Axis scales the x, y and z terms of the
// least-squares contribution.
type Weighting struct {
	Matrix Mat3
	Axis   r3.Vec
}

// WeightFunc chooses the weighting for a line at accumulation time.
type WeightFunc func(Line) Weighting

// unitAxis is the isotropic per-axis weight.
var unitAxis = r3.Vec{X: 1, Y: 1, Z: 1}

// IdentityWeighting gives every line the identity weight matrix and unit
// per-axis weights. It is the default for a VertexCandidate.
func IdentityWeighting(Line) Weighting {
	return Weighting{Matrix: Identity3(), Axis: unitAxis}
}

// AxisWeighting keeps the identity weight matrix but applies the given
// per-axis weights to every line.
func AxisWeighting(axis r3.Vec) WeightFunc {
	w := Weighting{Matrix: Identity3(), Axis: axis}
	return func(Line) Weighting { return w }
}
