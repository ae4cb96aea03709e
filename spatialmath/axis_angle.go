package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA is an axis-angle rotation: a unit axis (RX, RY, RZ) and a right-handed angle Theta in
// radians. A rotation vector is the same rotation with the angle folded into the axis length.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// R3ToR4 converts a rotation vector to axis-angle form. The zero vector maps to a zero angle
// about +z.
func R3ToR4(rv r3.Vector) R4AA {
	theta := rv.Norm()
	if theta < 1e-15 {
		return R4AA{Theta: 0, RZ: 1}
	}
	return R4AA{Theta: theta, RX: rv.X / theta, RY: rv.Y / theta, RZ: rv.Z / theta}
}

// ToR3 returns the rotation vector.
func (r4 R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// ToQuat converts to a unit quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 R4AA) ToQuat() quat.Number {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(r4.Theta/2) / norm
	return quat.Number{Real: math.Cos(r4.Theta / 2), Imag: r4.RX * sinA, Jmag: r4.RY * sinA, Kmag: r4.RZ * sinA}
}
