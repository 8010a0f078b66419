package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vertexfit/internal/pipeline"
	"github.com/banshee-data/vertexfit/internal/vertex"
)

// Run is one invocation of the fitter over an input file.
type Run struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	CreatedAt  int64           `json:"created_at"` // unix nanoseconds
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
}

// VertexStore provides persistence for fitted vertices.
type VertexStore struct {
	db *sql.DB
}

// NewVertexStore creates a new VertexStore.
func NewVertexStore(db *sql.DB) *VertexStore {
	return &VertexStore{db: db}
}

// CreateRun persists run. If RunID is empty, a UUID is generated; if
// CreatedAt is zero, the current time is used.
func (s *VertexStore) CreateRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (run_id, source, created_at, params_json)
			VALUES (?, ?, ?, ?)`,
			run.RunID, run.Source, run.CreatedAt, params,
		)
		return err
	})
}

// GetRun returns a run by ID, or an error wrapping ErrNotFound.
func (s *VertexStore) GetRun(runID string) (*Run, error) {
	var r Run
	var params sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, source, created_at, params_json
		FROM runs
		WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.Source, &r.CreatedAt, &params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}

// InsertResults stores results under runID in a single transaction, keeping
// their order. Non-finite values are stored as NULL.
func (s *VertexStore) InsertResults(runID string, results []pipeline.Result) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO vertices (
				run_id, cluster_id, seq, line_count, x, y, z,
				cov_xx, cov_xy, cov_xz, cov_yy, cov_yz, cov_zz,
				status, rms, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range results {
			var errText interface{}
			if r.Error != "" {
				errText = r.Error
			}
			_, err := stmt.Exec(
				runID, r.ClusterID, i, r.Count,
				nullable(r.Position.X), nullable(r.Position.Y), nullable(r.Position.Z),
				nullable(r.Cov.XX), nullable(r.Cov.XY), nullable(r.Cov.XZ),
				nullable(r.Cov.YY), nullable(r.Cov.YZ), nullable(r.Cov.ZZ),
				string(r.Status), nullable(r.RMS), errText,
			)
			if err != nil {
				return fmt.Errorf("insert cluster %s: %w", r.ClusterID, err)
			}
		}
		return tx.Commit()
	})
}

// ListVertices returns the stored results of a run in insertion order.
// NULL values come back as NaN.
func (s *VertexStore) ListVertices(runID string) ([]pipeline.Result, error) {
	rows, err := s.db.Query(`
		SELECT cluster_id, line_count, x, y, z,
		       cov_xx, cov_xy, cov_xz, cov_yy, cov_yz, cov_zz,
		       status, rms, error
		FROM vertices
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query vertices: %w", err)
	}
	defer rows.Close()

	var results []pipeline.Result
	for rows.Next() {
		var (
			r       pipeline.Result
			f       [10]sql.NullFloat64
			status  string
			errText sql.NullString
		)
		if err := rows.Scan(
			&r.ClusterID, &r.Count, &f[0], &f[1], &f[2],
			&f[3], &f[4], &f[5], &f[6], &f[7], &f[8],
			&status, &f[9], &errText,
		); err != nil {
			return nil, fmt.Errorf("scan vertex: %w", err)
		}
		r.Position = r3.Vec{X: orNaN(f[0]), Y: orNaN(f[1]), Z: orNaN(f[2])}
		r.Cov = vertex.Sym3{
			XX: orNaN(f[3]), XY: orNaN(f[4]), XZ: orNaN(f[5]),
			YY: orNaN(f[6]), YZ: orNaN(f[7]), ZZ: orNaN(f[8]),
		}
		r.Status = pipeline.Status(status)
		r.RMS = orNaN(f[9])
		r.Error = errText.String
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullable(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func orNaN(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
