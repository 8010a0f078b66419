package vertex

import "gonum.org/v1/gonum/mat"

// Mat3 is a general 3x3 matrix. Entries are named row then column, so the
// field order XX, XY, XZ, YX, ... ZZ is the row-major layout.
type Mat3 struct {
	XX, XY, XZ float64
	YX, YY, YZ float64
	ZX, ZY, ZZ float64
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{XX: 1, YY: 1, ZZ: 1}
}

// Add returns the element-wise sum m + o.
func (m Mat3) Add(o Mat3) Mat3 {
	return Mat3{
		XX: m.XX + o.XX, XY: m.XY + o.XY, XZ: m.XZ + o.XZ,
		YX: m.YX + o.YX, YY: m.YY + o.YY, YZ: m.YZ + o.YZ,
		ZX: m.ZX + o.ZX, ZY: m.ZY + o.ZY, ZZ: m.ZZ + o.ZZ,
	}
}

// Det returns the determinant by cofactor expansion along the first row.
func (m Mat3) Det() float64 {
	return m.XX*(m.YY*m.ZZ-m.YZ*m.ZY) -
		m.XY*(m.YX*m.ZZ-m.YZ*m.ZX) +
		m.XZ*(m.YX*m.ZY-m.YY*m.ZX)
}

// Elements returns the nine entries in row-major order.
func (m Mat3) Elements() [9]float64 {
	return [9]float64{m.XX, m.XY, m.XZ, m.YX, m.YY, m.YZ, m.ZX, m.ZY, m.ZZ}
}

// Dense copies m into a gonum dense matrix.
func (m Mat3) Dense() *mat.Dense {
	e := m.Elements()
	return mat.NewDense(3, 3, e[:])
}

// Sym3 is a symmetric 3x3 matrix stored as its upper triangle.
type Sym3 struct {
	XX float64 `json:"xx"`
	XY float64 `json:"xy"`
	XZ float64 `json:"xz"`
	YY float64 `json:"yy"`
	YZ float64 `json:"yz"`
	ZZ float64 `json:"zz"`
}

// Add returns the element-wise sum s + o.
func (s Sym3) Add(o Sym3) Sym3 {
	return Sym3{
		XX: s.XX + o.XX, XY: s.XY + o.XY, XZ: s.XZ + o.XZ,
		YY: s.YY + o.YY, YZ: s.YZ + o.YZ,
		ZZ: s.ZZ + o.ZZ,
	}
}

// Det returns the determinant by cofactor expansion along the first row.
func (s Sym3) Det() float64 {
	return s.XX*(s.YY*s.ZZ-s.YZ*s.YZ) -
		s.XY*(s.XY*s.ZZ-s.YZ*s.XZ) +
		s.XZ*(s.XY*s.YZ-s.XZ*s.YY)
}

// Elements returns the upper triangle as xx, xy, xz, yy, yz, zz.
func (s Sym3) Elements() [6]float64 {
	return [6]float64{s.XX, s.XY, s.XZ, s.YY, s.YZ, s.ZZ}
}

// Full expands s into a general matrix.
func (s Sym3) Full() Mat3 {
	return Mat3{
		XX: s.XX, XY: s.XY, XZ: s.XZ,
		YX: s.XY, YY: s.YY, YZ: s.YZ,
		ZX: s.XZ, ZY: s.YZ, ZZ: s.ZZ,
	}
}

// SymDense copies s into a gonum symmetric matrix.
func (s Sym3) SymDense() *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		s.XX, s.XY, s.XZ,
		s.XY, s.YY, s.YZ,
		s.XZ, s.YZ, s.ZZ,
	})
}
