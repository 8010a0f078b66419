// Package report summarises fitted vertices and renders them as PNG and
// HTML charts.
package report

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/vertexfit/internal/pipeline"
)

// ErrNoFittedVertices is returned when a chart has nothing to draw.
var ErrNoFittedVertices = errors.New("no fitted vertices to plot")

// Summary aggregates a batch of results.
type Summary struct {
	Total    int                     `json:"total"`
	ByStatus map[pipeline.Status]int `json:"by_status"`
	Lines    int                     `json:"lines"`

	// Statistics over fitted vertices with a finite position.
	Fitted  int     `json:"fitted"`
	MeanZ   float64 `json:"mean_z"`
	StdDevZ float64 `json:"stddev_z"`
	MinZ    float64 `json:"min_z"`
	MaxZ    float64 `json:"max_z"`
	MeanRMS float64 `json:"mean_rms"`
}

// Summarize counts results by status and computes the spread of fitted z.
// StdDevZ is the unbiased sample deviation and is 0 for fewer than two
// fitted vertices.
func Summarize(results []pipeline.Result) Summary {
	s := Summary{Total: len(results), ByStatus: make(map[pipeline.Status]int)}
	var zs, rms []float64
	for _, r := range results {
		s.ByStatus[r.Status]++
		s.Lines += r.Count
		if r.Status != pipeline.StatusFitted || !finite(r.Position.Z) {
			continue
		}
		zs = append(zs, r.Position.Z)
		if finite(r.RMS) {
			rms = append(rms, r.RMS)
		}
	}

	s.Fitted = len(zs)
	if len(zs) == 0 {
		return s
	}
	if len(zs) == 1 {
		s.MeanZ = zs[0]
	} else {
		s.MeanZ, s.StdDevZ = stat.MeanStdDev(zs, nil)
	}
	sort.Float64s(zs)
	s.MinZ, s.MaxZ = zs[0], zs[len(zs)-1]
	if len(rms) > 0 {
		s.MeanRMS = stat.Mean(rms, nil)
	}
	return s
}

// fittedPositions returns the fitted results whose position is finite.
func fittedPositions(results []pipeline.Result) []pipeline.Result {
	var out []pipeline.Result
	for _, r := range results {
		if r.Status == pipeline.StatusFitted && finite(r.Position.X) && finite(r.Position.Y) && finite(r.Position.Z) {
			out = append(out, r)
		}
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
