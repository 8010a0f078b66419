package vertex

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// SolveDense solves the candidate's normal equations with a general LU
// solve instead of the cofactor formula. It is a cross-check for
// ComputeClusterCentroid and does not touch the candidate.
//
// An ill-conditioned system that still solves is logged on the ops stream
// and returned with a nil error.
func SolveDense(c *VertexCandidate) (r3.Vec, error) {
	if c.count < 2 {
		return r3.Vec{}, nil
	}
	rhs := mat.NewVecDense(3, []float64{-c.b.X, -c.b.Y, -c.b.Z})

	var x mat.VecDense
	if err := x.SolveVec(c.a.SymDense(), rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return r3.Vec{}, fmt.Errorf("%w: dense solve: %v", ErrSingularSystem, err)
		}
		opsf("dense solve ill-conditioned: lines=%d %v", c.count, err)
	}
	return r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}, nil
}
