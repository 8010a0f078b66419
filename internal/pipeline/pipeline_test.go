package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vertexfit/internal/lineio"
	"github.com/banshee-data/vertexfit/internal/testutil"
	"github.com/banshee-data/vertexfit/internal/vertex"
)

// tracksFrom returns n lines leaving v in random directions, each anchored
// a random distance along itself and displaced by up to noise.
func tracksFrom(v r3.Vec, n int, noise float64, seed uint64) []vertex.Line {
	rng := rand.New(rand.NewPCG(seed, 3))
	lines := make([]vertex.Line, n)
	for i := range lines {
		d := testutil.Unit(rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64())
		jitter := r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
		p := r3.Add(r3.Add(v, r3.Scale(rng.Float64()*10, d)), r3.Scale(noise, jitter))
		lines[i] = vertex.Line{Point: p, Direction: d}
	}
	return lines
}

func TestFitCluster_Statuses(t *testing.T) {
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	parallel := []vertex.Line{
		{Point: r3.Vec{}, Direction: r3.Vec{Z: 1}},
		{Point: r3.Vec{X: 1}, Direction: r3.Vec{Z: 1}},
	}
	zeroDir := []vertex.Line{
		{Point: r3.Vec{X: 1}, Direction: r3.Vec{}},
		{Point: r3.Vec{Y: 1}, Direction: r3.Vec{}},
	}

	tests := []struct {
		name   string
		lines  []vertex.Line
		opts   Options
		status Status
	}{
		{"fitted", tracksFrom(v, 5, 0, 1), Options{}, StatusFitted},
		{"single line", tracksFrom(v, 1, 0, 2), Options{}, StatusUnderdetermined},
		{"empty", nil, Options{}, StatusUnderdetermined},
		{"below min lines", tracksFrom(v, 3, 0, 3), Options{MinLines: 4}, StatusUnderdetermined},
		{"parallel", parallel, Options{}, StatusSingular},
		{"zero directions", zeroDir, Options{}, StatusNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FitCluster(tt.name, tt.lines, tt.opts)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, len(tt.lines), res.Count)
			assert.Equal(t, tt.name, res.ClusterID)
		})
	}
}

func TestFitCluster_RecoversVertex(t *testing.T) {
	v := r3.Vec{X: -4, Y: 0.5, Z: 12}
	res := FitCluster("c", tracksFrom(v, 40, 0, 5), Options{})

	require.Equal(t, StatusFitted, res.Status)
	testutil.AssertVecNear(t, "position", res.Position, v, 1e-9)
	assert.Less(t, res.RMS, 1e-9)
	assert.Positive(t, res.Cov.XX)
	assert.Empty(t, res.Error)
}

func TestFitCluster_UnderdeterminedIsOrigin(t *testing.T) {
	res := FitCluster("one", tracksFrom(r3.Vec{X: 5}, 1, 0, 9), Options{})
	assert.Equal(t, r3.Vec{}, res.Position)
	assert.Zero(t, res.RMS)
}

func TestFitCluster_SingularReportsError(t *testing.T) {
	lines := []vertex.Line{
		{Point: r3.Vec{}, Direction: r3.Vec{X: 1}},
		{Point: r3.Vec{Y: 2}, Direction: r3.Vec{X: -1}},
	}
	res := FitCluster("par", lines, Options{})
	assert.Equal(t, StatusSingular, res.Status)
	assert.Contains(t, res.Error, vertex.ErrSingularSystem.Error())
}

func TestFitCluster_CylinderIntersections(t *testing.T) {
	lines := []vertex.Line{
		{Point: r3.Vec{}, Direction: r3.Vec{X: 0.6, Z: 0.8}},
		{Point: r3.Vec{}, Direction: r3.Vec{Y: 1}},
		{Point: r3.Vec{}, Direction: r3.Vec{Z: 1}},
	}

	res := FitCluster("cyl", lines, Options{CylinderRadius: 3})
	require.Len(t, res.Intersections, 3)
	testutil.AssertNear(t, "z0", res.Intersections[0], 4, 1e-12)
	testutil.AssertNear(t, "z1", res.Intersections[1], 0, 1e-12)
	assert.True(t, math.IsNaN(res.Intersections[2]) || math.IsInf(res.Intersections[2], 0))

	res = FitCluster("cyl", lines, Options{CylinderRadius: 3, DiscardNonFinite: true})
	assert.Len(t, res.Intersections, 2)

	res = FitCluster("cyl", lines, Options{})
	assert.Nil(t, res.Intersections)
}

func TestFitCluster_Verify(t *testing.T) {
	res := FitCluster("v", tracksFrom(r3.Vec{X: 3, Y: -1, Z: 2}, 20, 0.1, 11), Options{Verify: true})
	require.Equal(t, StatusFitted, res.Status)
	assert.Less(t, res.DenseDeviation, 1e-9)
	assert.Empty(t, res.Error)
}

func TestAccumulateParallel_BitIdenticalToSequential(t *testing.T) {
	lines := tracksFrom(r3.Vec{X: 0.3, Y: -7, Z: 1}, 1000, 0.5, 42)

	want := accumulateGroups(lines, nil)
	for _, lanes := range []int{0, 1, 2, 3, 8, 64} {
		t.Run(fmt.Sprintf("lanes=%d", lanes), func(t *testing.T) {
			got, err := AccumulateParallel(context.Background(), lines, nil, lanes)
			require.NoError(t, err)
			assert.Equal(t, want.Count(), got.Count())
			if diff := cmp.Diff(want.NormalMatrix(), got.NormalMatrix()); diff != "" {
				t.Errorf("normal matrix mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.NormalVector(), got.NormalVector()); diff != "" {
				t.Errorf("normal vector mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.WeightSum(), got.WeightSum()); diff != "" {
				t.Errorf("weight sum mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAccumulateParallel_MatchesPlainAccumulation(t *testing.T) {
	lines := tracksFrom(r3.Vec{X: 2, Y: 2, Z: 2}, 100, 0, 8)

	plain := vertex.NewVertexCandidate(nil)
	for _, l := range lines {
		plain.Add(l)
	}
	got, err := AccumulateParallel(context.Background(), lines, nil, 4)
	require.NoError(t, err)

	require.NoError(t, plain.ComputeClusterCentroid())
	require.NoError(t, got.ComputeClusterCentroid())
	testutil.AssertVecNear(t, "position", got.Position(), plain.Position(), 1e-9)
}

func TestAccumulateParallel_Empty(t *testing.T) {
	c, err := AccumulateParallel(context.Background(), nil, nil, 4)
	require.NoError(t, err)
	assert.Zero(t, c.Count())
}

func TestAccumulateParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AccumulateParallel(ctx, tracksFrom(r3.Vec{}, 200, 0, 1), nil, 2)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestFitClusters_PreservesInputOrder(t *testing.T) {
	var clusters []lineio.Cluster
	for i := 0; i < 25; i++ {
		v := r3.Vec{X: float64(i), Y: float64(-i), Z: 1}
		clusters = append(clusters, lineio.Cluster{ID: fmt.Sprintf("c%02d", i), Lines: tracksFrom(v, 3+i, 0, uint64(i))})
	}

	results, err := FitClusters(context.Background(), clusters, Options{Workers: 4})
	require.NoError(t, err)
	require.Len(t, results, len(clusters))
	for i, r := range results {
		assert.Equal(t, clusters[i].ID, r.ClusterID)
		assert.Equal(t, StatusFitted, r.Status)
		testutil.AssertVecNear(t, r.ClusterID, r.Position, r3.Vec{X: float64(i), Y: float64(-i), Z: 1}, 1e-9)
	}
}

func TestFitClusters_LanesMatchFitCluster(t *testing.T) {
	lines := tracksFrom(r3.Vec{X: 1, Y: 1, Z: -1}, 500, 0.2, 99)
	clusters := []lineio.Cluster{{ID: "big", Lines: lines}}
	opts := Options{Workers: 8, CylinderRadius: 2}

	results, err := FitClusters(context.Background(), clusters, opts)
	require.NoError(t, err)
	require.Len(t, results, 1)

	want := FitCluster("big", lines, opts)
	if diff := cmp.Diff(want, results[0], cmp.Comparer(func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})); diff != "" {
		t.Errorf("parallel fit mismatch (-want +got):\n%s", diff)
	}
}

func TestFitClusters_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clusters := []lineio.Cluster{{ID: "a", Lines: tracksFrom(r3.Vec{}, 4, 0, 1)}}
	_, err := FitClusters(ctx, clusters, Options{Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitClusters_Empty(t *testing.T) {
	results, err := FitClusters(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFitClusters_LogsSingularOnOps(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(&ops, &diag, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	clusters := []lineio.Cluster{
		{ID: "good", Lines: tracksFrom(r3.Vec{X: 1}, 4, 0, 1)},
		{ID: "flat", Lines: []vertex.Line{
			{Point: r3.Vec{}, Direction: r3.Vec{Z: 1}},
			{Point: r3.Vec{Y: 1}, Direction: r3.Vec{Z: 1}},
		}},
	}
	_, err := FitClusters(context.Background(), clusters, Options{Workers: 1})
	require.NoError(t, err)

	assert.Contains(t, ops.String(), "[pipeline] ")
	assert.Contains(t, ops.String(), "cluster flat: singular")
	assert.NotContains(t, ops.String(), "cluster good")
	assert.Contains(t, diag.String(), "fitted=1")
	assert.Contains(t, diag.String(), "singular=1")
}

func TestResult_MarshalJSONNonFinite(t *testing.T) {
	res := Result{
		ClusterID:     "nan",
		Count:         2,
		Status:        StatusNonFinite,
		Position:      r3.Vec{X: math.NaN(), Y: 1, Z: math.Inf(-1)},
		RMS:           math.NaN(),
		Intersections: []float64{1.5, math.NaN()},
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, []any{nil, 1.0, nil}, got["position"])
	assert.Nil(t, got["rms"])
	assert.Equal(t, []any{1.5, nil}, got["cylinder_z"])
	assert.Equal(t, "non_finite", got["status"])
	assert.NotContains(t, got, "dense_deviation")
	assert.NotContains(t, got, "error")

	cov, ok := got["cov"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, cov, "xx")
}

func TestResult_MarshalJSONFitted(t *testing.T) {
	res := FitCluster("ok", tracksFrom(r3.Vec{X: 1, Y: 2, Z: 3}, 6, 0, 4), Options{})
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cluster_id":"ok"`)
	assert.Contains(t, string(b), `"status":"fitted"`)
	assert.NotContains(t, string(b), "null")
}

func TestVerify_AfterFit(t *testing.T) {
	lines := tracksFrom(r3.Vec{X: -2, Y: 5, Z: 0.5}, 12, 0.05, 21)
	res := FitCluster("late", lines, Options{})
	require.Zero(t, res.DenseDeviation)

	Verify(&res, lines, Options{VerifyTolerance: 1e-8})
	assert.Less(t, res.DenseDeviation, 1e-8)
	assert.Positive(t, res.RMS)
	assert.Empty(t, res.Error)
}

func TestVerify_SkipsUnfitted(t *testing.T) {
	res := Result{ClusterID: "u", Status: StatusUnderdetermined}
	Verify(&res, tracksFrom(r3.Vec{}, 1, 0, 1), Options{})
	assert.Zero(t, res.DenseDeviation)
	assert.Zero(t, res.RMS)
}
