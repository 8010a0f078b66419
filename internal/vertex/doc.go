// Package vertex fits a 3-D point to a cluster of reconstructed track lines.
//
// Responsibilities: streaming least-squares accumulation of lines into a
// VertexCandidate, merging of independently accumulated candidates, the
// closed-form centroid and covariance solves, and projection of a line
// onto a cylinder about the z axis.
// Key types: Line, VertexCandidate, Sym3, Mat3.
//
// The package is pure arithmetic. It performs no I/O beyond its optional
// diagnostic log streams, never allocates after construction, and holds
// no shared mutable state, so the same code runs on the sequential path
// and on every lane of a parallel batch. A VertexCandidate belongs to one
// goroutine at a time; work done in parallel is combined with Merge after
// the caller has joined its workers.
//
// Degenerate input is not rejected. A line whose direction zeroes the
// accumulation denominator, or a cylinder projection with a negative
// discriminant, yields non-finite values that propagate into the results.
// Use Line.Degenerate before accumulation and IsFinite afterwards.
package vertex
