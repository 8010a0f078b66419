package vertex

import "math"

// Shared geometry constants. The sequential and the parallel fitting paths
// both read these; they are never changed at runtime.
const (
	// TwoPi is a full turn in radians.
	TwoPi = 2 * math.Pi

	// NZ is the number of z bins of the tracking volume.
	NZ = 2
	// NPhi is the number of azimuthal bins around the z axis.
	NPhi = 256

	// GroupSize is the number of lines one parallel lane accumulates before
	// its partial candidate is merged.
	GroupSize = 32
)

// singularEpsilon is the threshold on det(A)² below which the normal
// matrix is treated as singular by the centroid solve.
const singularEpsilon = 1e-16

// PhiBin maps an azimuth in radians onto one of the NPhi bins covering
// [0, 2π). Angles outside that range are wrapped first. A non-finite
// angle maps to bin 0.
func PhiBin(phi float64) int {
	if math.IsNaN(phi) || math.IsInf(phi, 0) {
		return 0
	}
	phi = math.Mod(phi, TwoPi)
	if phi < 0 {
		phi += TwoPi
	}
	bin := int(phi / TwoPi * NPhi)
	if bin >= NPhi {
		bin = NPhi - 1
	}
	return bin
}
