package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg" // png, jpg, tif
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/banshee-data/vertexfit/internal/pipeline"
)

// WritePNG saves a histogram of fitted vertex z to path. The image format
// follows the file extension: png, jpg, tif or svg.
func WritePNG(path string, results []pipeline.Result, bins int) error {
	fitted := fittedPositions(results)
	if len(fitted) == 0 {
		return ErrNoFittedVertices
	}
	if bins < 1 {
		bins = 1
	}

	zs := make(plotter.Values, len(fitted))
	for i, r := range fitted {
		zs[i] = r.Position.Z
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Vertex z (%d fitted)", len(fitted))
	p.X.Label.Text = "z (m)"
	p.Y.Label.Text = "Vertices"
	p.Add(plotter.NewGrid())

	h, err := plotter.NewHist(zs, bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
