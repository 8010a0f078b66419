// Command vertexfit fits a common vertex to each cluster of track lines.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/vertexfit/internal/config"
	"github.com/banshee-data/vertexfit/internal/lineio"
	"github.com/banshee-data/vertexfit/internal/monitoring"
	"github.com/banshee-data/vertexfit/internal/pipeline"
	"github.com/banshee-data/vertexfit/internal/report"
	"github.com/banshee-data/vertexfit/internal/store"
	"github.com/banshee-data/vertexfit/internal/version"
)

var (
	inputPath   = flag.String("input", "", "Clustered lines (.csv, .jsonl or .ndjson)")
	configPath  = flag.String("config", "", "Fit config JSON; built-in defaults when empty")
	dbPath      = flag.String("db", "", "SQLite database to record the run in")
	reportDir   = flag.String("report-dir", "", "Directory for the PNG and HTML reports")
	jsonPath    = flag.String("json", "", "Write results as JSON to this file")
	verifyFits  = flag.Bool("verify", false, "Cross-check every fit against a dense solve")
	verbose     = flag.Bool("verbose", false, "Log batch diagnostics to stderr")
	traceLog    = flag.Bool("trace", false, "Log every solve to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// runArgs is the resolved command line.
type runArgs struct {
	Input     string
	Config    string
	DB        string
	ReportDir string
	JSON      string
	Verify    bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *inputPath == "" {
		log.Fatal("-input is required")
	}

	monitoring.Configure(monitoring.StreamsFor(os.Stderr, *verbose, *traceLog))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := runArgs{
		Input:     *inputPath,
		Config:    *configPath,
		DB:        *dbPath,
		ReportDir: *reportDir,
		JSON:      *jsonPath,
		Verify:    *verifyFits,
	}
	if err := run(ctx, args, os.Stdout); err != nil {
		log.Fatalf("vertexfit: %v", err)
	}
}

func loadConfig(path string) (*config.FitConfig, error) {
	if path == "" {
		return config.DefaultFitConfig(), nil
	}
	return config.LoadFitConfig(path)
}

func run(ctx context.Context, args runArgs, out io.Writer) error {
	cfg, err := loadConfig(args.Config)
	if err != nil {
		return err
	}

	clusters, err := lineio.ReadFile(args.Input)
	if err != nil {
		return err
	}

	opts := cfg.Options()
	opts.Verify = args.Verify
	results, err := pipeline.FitClusters(ctx, clusters, opts)
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}

	summary := report.Summarize(results)
	printResults(out, results, summary)

	if args.JSON != "" {
		if err := writeJSON(args.JSON, summary, results); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", args.JSON)
	}

	if args.DB != "" {
		runID, err := persist(args.DB, args.Input, cfg, results)
		if err != nil {
			return err
		}
		monitoring.Logf("recorded run %s in %s", runID, args.DB)
	}

	if args.ReportDir != "" {
		if err := writeReports(args.ReportDir, results, cfg.GetReportBins()); err != nil {
			return err
		}
	}
	return nil
}

func printResults(w io.Writer, results []pipeline.Result, s report.Summary) {
	fmt.Fprintf(w, "%-16s %6s %-16s %12s %12s %12s %10s\n", "cluster", "lines", "status", "x", "y", "z", "rms")
	for _, r := range results {
		fmt.Fprintf(w, "%-16s %6d %-16s %12.5f %12.5f %12.5f %10.3g\n",
			r.ClusterID, r.Count, r.Status, r.Position.X, r.Position.Y, r.Position.Z, r.RMS)
	}
	fmt.Fprintf(w, "\n%d clusters, %d lines, %d fitted", s.Total, s.Lines, s.Fitted)
	if s.Fitted > 0 {
		fmt.Fprintf(w, ", z mean %.5f stddev %.5f", s.MeanZ, s.StdDevZ)
	}
	fmt.Fprintln(w)
}

func writeJSON(path string, s report.Summary, results []pipeline.Result) error {
	data, err := json.MarshalIndent(struct {
		Summary report.Summary    `json:"summary"`
		Results []pipeline.Result `json:"results"`
	}{s, results}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func persist(dbPath, source string, cfg *config.FitConfig, results []pipeline.Result) (string, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	params, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	vs := store.NewVertexStore(db)
	run := &store.Run{Source: source, ParamsJSON: params}
	if err := vs.CreateRun(run); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	if err := vs.InsertResults(run.RunID, results); err != nil {
		return "", fmt.Errorf("failed to store results: %w", err)
	}
	return run.RunID, nil
}

func writeReports(dir string, results []pipeline.Result, bins int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	png := filepath.Join(dir, "vertex_z.png")
	switch err := report.WritePNG(png, results, bins); {
	case errors.Is(err, report.ErrNoFittedVertices):
		monitoring.Logf("skipping %s: %v", png, err)
	case err != nil:
		return err
	default:
		monitoring.Logf("wrote %s", png)
	}

	html := filepath.Join(dir, "vertices.html")
	if err := report.WriteHTML(html, results); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", html)
	return nil
}
