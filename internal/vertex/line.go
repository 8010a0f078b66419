package vertex

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Line approximates a reconstructed trajectory by one point on it and its
// direction cosines. Lines are supplied by the caller and never modified
// here; Direction is used as given and is not re-normalised.
type Line struct {
	Point     r3.Vec `json:"point"`
	Direction r3.Vec `json:"direction"`
}

// At returns Point + t·Direction.
func (l Line) At(t float64) r3.Vec {
	return r3.Add(l.Point, r3.Scale(t, l.Direction))
}

// Denominator returns the per-line accumulation denominator
// cz²·wx·wy + cy²·wx·wz + cx²·wy·wz for the per-axis weights w.
func (l Line) Denominator(w r3.Vec) float64 {
	c := l.Direction
	return c.Z*c.Z*w.X*w.Y + c.Y*c.Y*w.X*w.Z + c.X*c.X*w.Y*w.Z
}

// Degenerate reports whether accumulating l with per-axis weights w would
// contribute non-finite sums. Add does not check this; callers filter.
func (l Line) Degenerate(w r3.Vec) bool {
	d := l.Denominator(w)
	return d == 0 || math.IsNaN(d) || math.IsInf(d, 0) || !IsFinite(l.Point)
}

// Distance returns the perpendicular distance from p to the line.
func (l Line) Distance(p r3.Vec) float64 {
	n := r3.Norm(l.Direction)
	if n == 0 {
		return r3.Norm(r3.Sub(p, l.Point))
	}
	return r3.Norm(r3.Cross(r3.Sub(p, l.Point), l.Direction)) / n
}

// IsFinite reports whether every component of v is neither NaN nor ±Inf.
// Non-finite output is how degenerate input surfaces.
func IsFinite(v r3.Vec) bool {
	for _, x := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
