package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform taking points of a source frame into a target frame:
// p' = Rotation·p + Translation.
type Pose struct {
	Rotation    *RotationMatrix
	Translation r3.Vector
}

// NewPose returns a pose from a rotation and translation. A nil rotation is the identity.
func NewPose(rot *RotationMatrix, t r3.Vector) Pose {
	if rot == nil {
		rot = Identity()
	}
	return Pose{Rotation: rot, Translation: t}
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return NewPose(nil, r3.Vector{})
}

// NewPoseFromRotVec returns a pose from a rotation vector and translation.
func NewPoseFromRotVec(rv, t r3.Vector) Pose {
	return NewPose(NewRotationMatrixFromRotVec(rv), t)
}

// NewPoseFromVector reads the layout produced by Vector.
func NewPoseFromVector(v []float64) (Pose, error) {
	if len(v) != 6 {
		return Pose{}, NewDomainError("pose vector needs 6 values, got %d", len(v))
	}
	return NewPoseFromRotVec(r3.Vector{X: v[0], Y: v[1], Z: v[2]}, r3.Vector{X: v[3], Y: v[4], Z: v[5]}), nil
}

// Quaternion returns the rotation as a unit quaternion.
func (p Pose) Quaternion() quat.Number {
	return p.rot().Quaternion()
}

func (p Pose) rot() *RotationMatrix {
	if p.Rotation == nil {
		return Identity()
	}
	return p.Rotation
}

// Transform maps a single point.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return p.rot().Apply(v).Add(p.Translation)
}

// TransformAll maps every point.
func (p Pose) TransformAll(v Vxyz) Vxyz {
	out := make(Vxyz, len(v))
	for i, pt := range v {
		out[i] = p.Transform(pt)
	}
	return out
}

// Inverse returns the pose mapping the target frame back into the source frame.
func (p Pose) Inverse() Pose {
	rt := p.rot().Transpose()
	return Pose{Rotation: rt, Translation: rt.Apply(p.Translation).Mul(-1)}
}

// Compose returns the pose applying other first, then p.
func (p Pose) Compose(other Pose) Pose {
	return Pose{
		Rotation:    p.rot().Mul(other.rot()),
		Translation: p.Transform(other.Translation),
	}
}

// Origin returns the position of the target frame origin expressed in the source frame,
// e.g. the camera center in object coordinates for an object-to-camera pose.
func (p Pose) Origin() r3.Vector {
	return p.Inverse().Translation
}

// Vector returns the rotation vector followed by the translation.
func (p Pose) Vector() []float64 {
	rv := p.rot().RotVec()
	return []float64{rv.X, rv.Y, rv.Z, p.Translation.X, p.Translation.Y, p.Translation.Z}
}

// AlmostEqual reports whether rotation elements and translation components agree within tol.
func (p Pose) AlmostEqual(other Pose, tol float64) bool {
	d := p.Translation.Sub(other.Translation)
	if d.Norm() > tol {
		return false
	}
	return p.rot().AlmostEqual(other.rot(), tol)
}

func (p Pose) String() string {
	rv := p.rot().RotVec()
	return fmt.Sprintf("{rvec: [%.6f %.6f %.6f], tvec: [%.6f %.6f %.6f]}",
		rv.X, rv.Y, rv.Z, p.Translation.X, p.Translation.Y, p.Translation.Z)
}
