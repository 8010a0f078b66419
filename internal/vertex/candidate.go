package vertex

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSingularSystem is returned when a solve meets a singular matrix. The
// candidate is left exactly as it was before the call.
var ErrSingularSystem = errors.New("could not invert weight matrix")

// VertexCandidate accumulates the least-squares point closest to a cluster
// of lines. Only running sums are kept, so memory does not grow with the
// cluster. The zero value is an empty candidate with identity weighting.
//
// A candidate is not safe for concurrent use.
type VertexCandidate struct {
	count     int
	weightSum Mat3   // Σ per-line weight matrices
	a         Sym3   // normal-equations matrix A
	b         r3.Vec // normal-equations vector B
	position  r3.Vec // solution of A·v = -B, valid after a successful solve
	weigh     WeightFunc
}

// NewVertexCandidate returns an empty candidate that weighs each added line
// with weigh. A nil weigh selects IdentityWeighting.
func NewVertexCandidate(weigh WeightFunc) *VertexCandidate {
	return &VertexCandidate{weigh: weigh}
}

// Add folds one line into the candidate.
//
// The contribution is not guarded: a line whose Denominator is zero makes
// the sums non-finite, which surfaces at the next solve.
func (c *VertexCandidate) Add(line Line) {
	w := IdentityWeighting(line)
	if c.weigh != nil {
		w = c.weigh(line)
	}
	p, cd, sq := line.Point, line.Direction, w.Axis

	c.count++
	c.weightSum = c.weightSum.Add(w.Matrix)

	d := 1 / (cd.Z*cd.Z*sq.X*sq.Y + cd.Y*cd.Y*sq.X*sq.Z + cd.X*cd.X*sq.Y*sq.Z)
	c.a.XX += (cd.Z*cd.Z*sq.Y + cd.Y*cd.Y*sq.Z) * d
	c.a.XY += -cd.X * cd.Y * sq.Z * d
	c.a.XZ += -cd.X * cd.Z * sq.Y * d
	c.a.YY += (cd.Z*cd.Z*sq.X + cd.X*cd.X*sq.Z) * d
	c.a.YZ += -cd.Y * cd.Z * sq.X * d
	c.a.ZZ += (cd.Y*cd.Y*sq.X + cd.X*cd.X*sq.Y) * d

	c.b.X += (cd.Y*sq.Z*(-cd.Y*p.X+cd.X*p.Y) + cd.Z*sq.Y*(-cd.Z*p.X+cd.X*p.Z)) * d
	c.b.Y += (cd.X*sq.Z*(-cd.X*p.Y+cd.Y*p.X) + cd.Z*sq.X*(-cd.Z*p.Y+cd.Y*p.Z)) * d
	c.b.Z += (cd.X*sq.Y*(-cd.X*p.Z+cd.Z*p.X) + cd.Y*sq.X*(-cd.Y*p.Z+cd.Z*p.Y)) * d
}

// Merge adds the sums of other into c, as if every line other holds had
// been added to c directly. other is read only and must not be written
// concurrently. Merging an empty candidate changes nothing.
func (c *VertexCandidate) Merge(other *VertexCandidate) {
	c.count += other.count
	c.weightSum = c.weightSum.Add(other.weightSum)
	c.a = c.a.Add(other.a)
	c.b = r3.Add(c.b, other.b)
}

// ComputeClusterCentroid solves A·v = -B for the vertex position.
//
// With fewer than two lines no fit is attempted and the position is the
// origin. When det(A)² < 1e-16 the system is singular: an error wrapping
// ErrSingularSystem is returned and the previous position is kept.
func (c *VertexCandidate) ComputeClusterCentroid() error {
	if c.count < 2 {
		c.position = r3.Vec{}
		return nil
	}
	a, b := c.a, c.b

	det := a.Det()
	if det*det < singularEpsilon {
		diagf("Could not invert weight matrix: det(A)=%g lines=%d", det, c.count)
		return fmt.Errorf("%w: det(A)=%g over %d lines", ErrSingularSystem, det, c.count)
	}
	det = 1 / det

	c.position = r3.Vec{
		X: -(b.X*(a.YY*a.ZZ-a.YZ*a.YZ) - a.XY*(b.Y*a.ZZ-a.YZ*b.Z) + a.XZ*(b.Y*a.YZ-b.Z*a.YY)) * det,
		Y: -(a.XX*(b.Y*a.ZZ-b.Z*a.YZ) - b.X*(a.XY*a.ZZ-a.YZ*a.XZ) + a.XZ*(a.XY*b.Z-a.XZ*b.Y)) * det,
		Z: -(a.XX*(a.YY*b.Z-b.Y*a.YZ) - a.XY*(a.XY*b.Z-b.Y*a.XZ) + b.X*(a.XY*a.YZ-a.XZ*a.YY)) * det,
	}
	tracef("centroid lines=%d v=(%.4f, %.4f, %.4f)", c.count, c.position.X, c.position.Y, c.position.Z)
	return nil
}

// CovMatrix returns the upper triangle of the inverse of the accumulated
// weight matrix, the covariance of the fitted position.
//
// Only an exactly zero determinant is rejected, with an error wrapping
// ErrSingularSystem and a zero Sym3.
func (c *VertexCandidate) CovMatrix() (Sym3, error) {
	w := c.weightSum
	den := w.Det()
	if den == 0 {
		diagf("Could not invert weight matrix: det(W)=0 lines=%d", c.count)
		return Sym3{}, fmt.Errorf("%w: det(W)=0 over %d lines", ErrSingularSystem, c.count)
	}
	den = 1 / den
	return Sym3{
		XX: (w.YY*w.ZZ - w.YZ*w.ZY) * den,
		XY: -(w.XY*w.ZZ - w.ZY*w.XZ) * den,
		XZ: (w.XY*w.YZ - w.YY*w.XZ) * den,
		YY: (w.XX*w.ZZ - w.ZX*w.XZ) * den,
		YZ: -(w.XX*w.YZ - w.YX*w.XZ) * den,
		ZZ: (w.XX*w.YY - w.XY*w.YX) * den,
	}, nil
}

// Position returns the last solved vertex. It is stale until
// ComputeClusterCentroid succeeds.
func (c *VertexCandidate) Position() r3.Vec { return c.position }

// Count returns the number of lines folded in, including merged ones.
func (c *VertexCandidate) Count() int { return c.count }

// NormalMatrix returns the accumulated matrix A.
func (c *VertexCandidate) NormalMatrix() Sym3 { return c.a }

// NormalVector returns the accumulated vector B.
func (c *VertexCandidate) NormalVector() r3.Vec { return c.b }

// WeightSum returns the accumulated weight matrix W.
func (c *VertexCandidate) WeightSum() Mat3 { return c.weightSum }
