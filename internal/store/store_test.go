package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vertexfit/internal/pipeline"
	"github.com/banshee-data/vertexfit/internal/vertex"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "vertices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := MigrateVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// A second run is a no-op.
	require.NoError(t, Migrate(db))

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateVersion_FreshDatabase(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := MigrateVersion(db)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestVertexStore_CreateAndGetRun(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))

	run := &Run{Source: "tracks.csv", ParamsJSON: json.RawMessage(`{"min_lines":2}`)}
	require.NoError(t, s.CreateRun(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.CreatedAt)

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, "tracks.csv", got.Source)
	assert.Equal(t, run.CreatedAt, got.CreatedAt)
	assert.JSONEq(t, `{"min_lines":2}`, string(got.ParamsJSON))
}

func TestVertexStore_RunWithoutParams(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))

	run := &Run{RunID: "fixed-id", Source: "in.jsonl", CreatedAt: time.Unix(100, 0).UnixNano()}
	require.NoError(t, s.CreateRun(run))

	got, err := s.GetRun("fixed-id")
	require.NoError(t, err)
	assert.Nil(t, got.ParamsJSON)
	assert.Equal(t, time.Unix(100, 0).UnixNano(), got.CreatedAt)

	assert.Error(t, s.CreateRun(&Run{RunID: "fixed-id", Source: "dup"}))
}

func TestVertexStore_GetRunNotFound(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))

	_, err := s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestVertexStore_InsertAndListResults(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))
	run := &Run{Source: "t.csv"}
	require.NoError(t, s.CreateRun(run))

	results := []pipeline.Result{
		{
			ClusterID: "b", Count: 5, Status: pipeline.StatusFitted,
			Position: r3.Vec{X: 1, Y: 2, Z: 3},
			Cov:      vertex.Sym3{XX: 0.2, YY: 0.2, ZZ: 0.2},
			RMS:      0.01,
		},
		{
			ClusterID: "a", Count: 2, Status: pipeline.StatusSingular,
			Error: "could not invert weight matrix",
			Cov:   vertex.Sym3{XX: 0.5, YY: 0.5, ZZ: 0.5},
		},
		{
			ClusterID: "c", Count: 3, Status: pipeline.StatusNonFinite,
			Position: r3.Vec{X: math.NaN(), Y: math.Inf(1), Z: 0},
			RMS:      math.NaN(),
		},
	}
	require.NoError(t, s.InsertResults(run.RunID, results))

	got, err := s.ListVertices(run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].ClusterID, got[1].ClusterID, got[2].ClusterID})
	assert.Equal(t, results[0], got[0])
	assert.Equal(t, results[1].Error, got[1].Error)
	assert.Equal(t, pipeline.StatusSingular, got[1].Status)

	assert.True(t, math.IsNaN(got[2].Position.X))
	assert.True(t, math.IsNaN(got[2].Position.Y))
	assert.Zero(t, got[2].Position.Z)
	assert.True(t, math.IsNaN(got[2].RMS))
	assert.Equal(t, 3, got[2].Count)
}

func TestVertexStore_InsertResultsIsAtomic(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))
	run := &Run{Source: "t.csv"}
	require.NoError(t, s.CreateRun(run))

	dup := []pipeline.Result{
		{ClusterID: "x", Count: 2, Status: pipeline.StatusFitted},
		{ClusterID: "x", Count: 2, Status: pipeline.StatusFitted},
	}
	assert.Error(t, s.InsertResults(run.RunID, dup))

	got, err := s.ListVertices(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVertexStore_InsertResultsUnknownRun(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))

	err := s.InsertResults("nope", []pipeline.Result{{ClusterID: "x", Status: pipeline.StatusFitted}})
	assert.Error(t, err)
}

func TestVertexStore_ListVerticesEmptyRun(t *testing.T) {
	s := NewVertexStore(setupTestDB(t))

	got, err := s.ListVertices("unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked (5) (SQLITE_BUSY)")

	t.Run("success after retry", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		other := errors.New("some other error")
		err := retryOnBusy(func() error {
			calls++
			return other
		})
		assert.Same(t, other, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return busy
		})
		assert.ErrorIs(t, err, busy)
		assert.Equal(t, busyMaxAttempts, calls)
	})
}
