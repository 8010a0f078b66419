package pipeline

import (
	"encoding/json"
	"math"
	"runtime"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vertexfit/internal/vertex"
)

// Status classifies the outcome of one cluster fit.
type Status string

const (
	// StatusFitted means the centroid solved to a finite position.
	StatusFitted Status = "fitted"
	// StatusUnderdetermined means the cluster had fewer than the minimum
	// number of lines. With fewer than two the position is the origin.
	StatusUnderdetermined Status = "underdetermined"
	// StatusSingular means the normal matrix could not be inverted.
	StatusSingular Status = "singular"
	// StatusNonFinite means degenerate input made the position non-finite.
	StatusNonFinite Status = "non_finite"
)

// defaultVerifyTolerance bounds the distance between the cofactor and the
// dense solution before a fit is reported on the ops stream.
const defaultVerifyTolerance = 1e-6

// Options configures how clusters are fitted.
type Options struct {
	// CylinderRadius is the radius used to project every line; 0 skips the
	// projection.
	CylinderRadius float64
	// Weighting is passed to every candidate; nil means identity.
	Weighting vertex.WeightFunc
	// MinLines flags clusters below this size as underdetermined. Values
	// below 2 are treated as 2.
	MinLines int
	// DiscardNonFinite drops non-finite cylinder intersections.
	DiscardNonFinite bool
	// Workers bounds concurrency; 0 means GOMAXPROCS.
	Workers int
	// Verify cross-checks each fitted vertex against a dense LU solve.
	Verify          bool
	VerifyTolerance float64
}

func (o Options) minLines() int {
	if o.MinLines < 2 {
		return 2
	}
	return o.MinLines
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

func (o Options) verifyTolerance() float64 {
	if o.VerifyTolerance <= 0 {
		return defaultVerifyTolerance
	}
	return o.VerifyTolerance
}

// Result is the outcome of fitting one cluster.
type Result struct {
	ClusterID string      `json:"cluster_id"`
	Count     int         `json:"count"`
	Status    Status      `json:"status"`
	Position  r3.Vec      `json:"position"`
	Cov       vertex.Sym3 `json:"cov"`
	// RMS is the root-mean-square perpendicular distance from the fitted
	// position to the cluster's lines. Set for fitted clusters only.
	RMS float64 `json:"rms"`
	// Intersections holds the z at which each line crosses the cylinder.
	Intersections  []float64 `json:"cylinder_z,omitempty"`
	DenseDeviation float64   `json:"dense_deviation,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// MarshalJSON writes non-finite values as null, which encoding/json cannot
// represent otherwise.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	zs := make([]*float64, len(r.Intersections))
	for i, z := range r.Intersections {
		zs[i] = finiteOrNil(z)
	}
	if len(zs) == 0 {
		zs = nil
	}
	var deviation *float64
	if r.DenseDeviation != 0 {
		deviation = finiteOrNil(r.DenseDeviation)
	}
	return json.Marshal(struct {
		alias
		Position       [3]*float64 `json:"position"`
		RMS            *float64    `json:"rms"`
		Intersections  []*float64  `json:"cylinder_z,omitempty"`
		DenseDeviation *float64    `json:"dense_deviation,omitempty"`
	}{
		alias:          alias(r),
		Position:       [3]*float64{finiteOrNil(r.Position.X), finiteOrNil(r.Position.Y), finiteOrNil(r.Position.Z)},
		RMS:            finiteOrNil(r.RMS),
		Intersections:  zs,
		DenseDeviation: deviation,
	})
}

func finiteOrNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// FitCluster fits one cluster on the calling goroutine. Lines are folded in
// GroupSize-sized groups and merged in order, so the sums are bit-identical
// to AccumulateParallel over the same lines.
func FitCluster(id string, lines []vertex.Line, opts Options) Result {
	return solve(id, accumulateGroups(lines, opts.Weighting), lines, opts)
}

// solve extracts a Result from an accumulated candidate.
func solve(id string, c *vertex.VertexCandidate, lines []vertex.Line, opts Options) Result {
	res := Result{ClusterID: id, Count: c.Count()}

	err := c.ComputeClusterCentroid()
	switch {
	case err != nil:
		res.Status = StatusSingular
		res.Error = err.Error()
	case c.Count() < opts.minLines():
		res.Status = StatusUnderdetermined
	case !vertex.IsFinite(c.Position()):
		res.Status = StatusNonFinite
	default:
		res.Status = StatusFitted
	}
	res.Position = c.Position()

	if cov, err := c.CovMatrix(); err == nil {
		res.Cov = cov
	} else if res.Error == "" {
		res.Error = err.Error()
	}

	if res.Status == StatusFitted {
		res.RMS = rms(lines, res.Position)
		if opts.Verify {
			verify(&res, c, opts.verifyTolerance())
		}
	}
	if opts.CylinderRadius > 0 {
		res.Intersections = intersections(lines, opts.CylinderRadius, opts.DiscardNonFinite)
	}
	return res
}

// Verify re-accumulates lines and cross-checks res.Position against a dense
// solve of the same system, refreshing RMS and DenseDeviation. It is a
// no-op for results that are not fitted.
func Verify(res *Result, lines []vertex.Line, opts Options) {
	if res.Status != StatusFitted {
		return
	}
	res.RMS = rms(lines, res.Position)
	verify(res, accumulateGroups(lines, opts.Weighting), opts.verifyTolerance())
}

// verify records how far the dense solution lies from the cofactor one.
func verify(res *Result, c *vertex.VertexCandidate, tol float64) {
	dense, err := vertex.SolveDense(c)
	if err != nil {
		opsf("cluster %s: dense cross-check failed: %v", res.ClusterID, err)
		res.DenseDeviation = math.Inf(1)
		res.Error = "dense cross-check: " + err.Error()
		return
	}
	res.DenseDeviation = r3.Norm(r3.Sub(dense, res.Position))
	if res.DenseDeviation > tol {
		opsf("cluster %s: cofactor and dense solutions differ by %g (tol %g)", res.ClusterID, res.DenseDeviation, tol)
	}
}

func rms(lines []vertex.Line, p r3.Vec) float64 {
	if len(lines) == 0 {
		return 0
	}
	d := make([]float64, len(lines))
	for i, l := range lines {
		d[i] = l.Distance(p)
	}
	return floats.Norm(d, 2) / math.Sqrt(float64(len(d)))
}

func intersections(lines []vertex.Line, r float64, discardNonFinite bool) []float64 {
	zs := make([]float64, 0, len(lines))
	for _, l := range lines {
		z := vertex.IntersectCylinder(l, r)
		if discardNonFinite && (math.IsNaN(z) || math.IsInf(z, 0)) {
			continue
		}
		zs = append(zs, z)
	}
	return zs
}
