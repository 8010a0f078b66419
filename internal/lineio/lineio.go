// Package lineio reads clustered track lines for vertex fitting.
//
// Cluster membership is taken from the input as given; nothing here
// decides which lines belong together.
package lineio

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vertexfit/internal/vertex"
)

// ErrMalformedRecord is wrapped by every parse failure.
var ErrMalformedRecord = errors.New("malformed line record")

// maxRecordBytes bounds a single JSON Lines record.
const maxRecordBytes = 1024 * 1024

// csvHeader is the column layout of CSV input. The header row is optional.
var csvHeader = []string{"cluster", "px", "py", "pz", "cx", "cy", "cz"}

// Cluster is a named group of lines to be fitted to one vertex.
type Cluster struct {
	ID    string
	Lines []vertex.Line
}

// jsonRecord is one JSON Lines input record.
type jsonRecord struct {
	Cluster   string     `json:"cluster"`
	Point     []*float64 `json:"point"`
	Direction []*float64 `json:"direction"`
}

// vec3 converts a decoded [x, y, z] array. encoding/json would pad a short
// fixed-size array with zeros and turn null into 0, so the shape is checked
// here.
func vec3(field string, v []*float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("%s must have 3 components, got %d", field, len(v))
	}
	for i, c := range v {
		if c == nil {
			return r3.Vec{}, fmt.Errorf("%s[%d] is null", field, i)
		}
	}
	return r3.Vec{X: *v[0], Y: *v[1], Z: *v[2]}, nil
}

// ReadFile reads clusters from path, choosing the format by extension:
// .csv, or .jsonl / .ndjson.
func ReadFile(path string) ([]Cluster, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f)
	case ".jsonl", ".ndjson":
		return ReadJSONL(f)
	default:
		return nil, fmt.Errorf("unsupported input extension %q (want .csv, .jsonl or .ndjson)", ext)
	}
}

// ReadCSV reads cluster,px,py,pz,cx,cy,cz rows. Clusters are returned in
// the order their first line appears.
func ReadCSV(r io.Reader) ([]Cluster, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	g := newGrouper()
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		row, _ := cr.FieldPos(0)
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), csvHeader[0]) {
				continue
			}
		}

		var v [6]float64
		for i := range v {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrMalformedRecord, row, csvHeader[i+1], err)
			}
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, fmt.Errorf("%w: line %d: empty cluster id", ErrMalformedRecord, row)
		}
		g.add(id, vertex.Line{
			Point:     r3.Vec{X: v[0], Y: v[1], Z: v[2]},
			Direction: r3.Vec{X: v[3], Y: v[4], Z: v[5]},
		})
	}
	return g.clusters, nil
}

// ReadJSONL reads one {"cluster","point","direction"} object per line.
// Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Cluster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)

	g := newGrouper()
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec jsonRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, n, err)
		}
		if rec.Cluster == "" || rec.Point == nil || rec.Direction == nil {
			return nil, fmt.Errorf("%w: line %d: cluster, point and direction are required", ErrMalformedRecord, n)
		}
		p, err := vec3("point", rec.Point)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, n, err)
		}
		d, err := vec3("direction", rec.Direction)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, n, err)
		}
		g.add(rec.Cluster, vertex.Line{Point: p, Direction: d})
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, n+1, err)
		}
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return g.clusters, nil
}

// grouper collects lines by cluster id, keeping first-seen order.
type grouper struct {
	index    map[string]int
	clusters []Cluster
}

func newGrouper() *grouper {
	return &grouper{index: make(map[string]int)}
}

func (g *grouper) add(id string, l vertex.Line) {
	i, ok := g.index[id]
	if !ok {
		i = len(g.clusters)
		g.index[id] = i
		g.clusters = append(g.clusters, Cluster{ID: id})
	}
	g.clusters[i].Lines = append(g.clusters[i].Lines, l)
}
