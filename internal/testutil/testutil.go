// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertNear checks that got is within tol of want, absolutely or relative
// to the larger magnitude.
func AssertNear(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if !scalar.EqualWithinAbsOrRel(got, want, tol, tol) {
		t.Errorf("%s = %.12g, want %.12g (tol %g)", name, got, want, tol)
	}
}

// AssertVecNear checks each component of got against want.
func AssertVecNear(t *testing.T, name string, got, want r3.Vec, tol float64) {
	t.Helper()
	AssertNear(t, name+".X", got.X, want.X, tol)
	AssertNear(t, name+".Y", got.Y, want.Y, tol)
	AssertNear(t, name+".Z", got.Z, want.Z, tol)
}

// Unit returns v scaled to unit length, for building direction cosines.
func Unit(x, y, z float64) r3.Vec {
	return r3.Unit(r3.Vec{X: x, Y: y, Z: z})
}
