// Package monitoring routes the log streams of the fitting packages.
package monitoring

import (
	"io"
	"log"

	"github.com/banshee-data/vertexfit/internal/pipeline"
	"github.com/banshee-data/vertexfit/internal/vertex"
)

// Logf is the application logger used by the command. It defaults to
// log.Printf but may be replaced by SetLogger or Configure.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the application logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Streams selects where each log stream goes. A nil writer disables it.
//
//   - Ops: actionable warnings, singular or non-finite clusters.
//   - Diag: batch summaries and singular solve context.
//   - Trace: one line per solve and per cluster.
type Streams struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// StreamsFor builds the stream set used by the command: ops always goes to
// w, diag when verbose, and trace when trace is set.
func StreamsFor(w io.Writer, verbose, trace bool) Streams {
	s := Streams{Ops: w}
	if verbose || trace {
		s.Diag = w
	}
	if trace {
		s.Trace = w
	}
	return s
}

// Configure applies s to the vertex and pipeline packages and points Logf
// at the ops stream.
func Configure(s Streams) {
	vertex.SetLogWriters(s.Ops, s.Diag, s.Trace)
	pipeline.SetLogWriters(s.Ops, s.Diag, s.Trace)
	if s.Ops == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(s.Ops, "[vertexfit] ", log.LstdFlags|log.Lmicroseconds).Printf)
}
