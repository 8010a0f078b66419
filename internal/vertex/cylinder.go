package vertex

import "math"

// IntersectCylinder returns the z coordinate at which l crosses the
// cylinder of radius r about the z axis.
//
// It solves a·t² + 2b·t + c = 0 for the transverse distance and takes the
// root t = (√(b²−ac) − b)/a, the outgoing crossing for a line whose point
// lies inside the cylinder. A line that misses the cylinder gives a
// negative discriminant and NaN; a line parallel to the axis gives a
// division by zero. Neither is checked.
func IntersectCylinder(l Line, r float64) float64 {
	p, c := l.Point, l.Direction
	a := c.X*c.X + c.Y*c.Y
	b := c.X*p.X + c.Y*p.Y
	k := p.X*p.X + p.Y*p.Y - r*r
	t := (math.Sqrt(b*b-a*k) - b) / a
	return p.Z + c.Z*t
}
