package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/vertexfit/internal/pipeline"
)

// viridis is the colour ramp for the z visual map.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteHTML writes a chart page to path: fitted vertices in the x-y plane
// coloured by z, and the number of clusters per status.
func WriteHTML(path string, results []pipeline.Result) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := RenderHTML(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderHTML writes the chart page of WriteHTML to w.
func RenderHTML(w io.Writer, results []pipeline.Result) error {
	s := Summarize(results)

	page := components.NewPage()
	page.SetPageTitle("Vertex fit")
	page.AddCharts(vertexScatter(results, s), statusBar(s))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func vertexScatter(results []pipeline.Result, s Summary) *charts.Scatter {
	fitted := fittedPositions(results)
	data := make([]opts.ScatterData, 0, len(fitted))
	for _, r := range fitted {
		data = append(data, opts.ScatterData{
			Name:  r.ClusterID,
			Value: []interface{}{r.Position.X, r.Position.Y, r.Position.Z},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vertices", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fitted vertices", Subtitle: fmt.Sprintf("fitted=%d mean z=%.4g", s.Fitted, s.MeanZ)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			Min:        float32(s.MinZ),
			Max:        float32(s.MaxZ),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("vertices", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	return scatter
}

func statusBar(s Summary) *charts.Bar {
	statuses := make([]string, 0, len(s.ByStatus))
	for st := range s.ByStatus {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)

	y := make([]opts.BarData, len(statuses))
	for i, st := range statuses {
		y[i] = opts.BarData{Value: s.ByStatus[pipeline.Status(st)]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Clusters by status", Subtitle: fmt.Sprintf("total=%d lines=%d", s.Total, s.Lines)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(statuses).
		AddSeries("clusters", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
