package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestRotVecRoundTrip(t *testing.T) {
	for _, rv := range []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: -0.2, Z: 0.3},
		{X: math.Pi / 2, Y: 0, Z: 0},
		{X: 0, Y: 3, Z: 0},
		{X: -1.2, Y: 0.4, Z: 2.1},
	} {
		rm := NewRotationMatrixFromRotVec(rv)
		back := rm.RotVec()
		test.That(t, back.X, test.ShouldAlmostEqual, rv.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, rv.Y, 1e-9)
		test.That(t, back.Z, test.ShouldAlmostEqual, rv.Z, 1e-9)

		fromQuat := NewRotationMatrixFromQuat(rm.Quaternion())
		test.That(t, fromQuat.AlmostEqual(rm, 1e-12), test.ShouldBeTrue)

		fromR4 := NewRotationMatrixFromQuat(R3ToR4(rv).ToQuat())
		test.That(t, fromR4.AlmostEqual(rm, 1e-12), test.ShouldBeTrue)
	}
}

func TestNewRotationMatrixValidation(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)

	_, err = NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)

	_, err = NewRotationMatrix([]float64{2, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)

	_, err = NewRotationMatrix([]float64{1, 0, 0})
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
}

func TestRotationComposition(t *testing.T) {
	a := NewRotationMatrixFromRotVec(r3.Vector{X: 0.3})
	b := NewRotationMatrixFromRotVec(r3.Vector{Y: -0.7})
	v := r3.Vector{X: 1, Y: 2, Z: 3}

	direct := a.Apply(b.Apply(v))
	composed := a.Mul(b).Apply(v)
	test.That(t, composed.Sub(direct).Norm(), test.ShouldBeLessThan, 1e-12)

	test.That(t, a.Mul(a.Transpose()).AlmostEqual(Identity(), 1e-12), test.ShouldBeTrue)
	test.That(t, a.AngleBetween(a), test.ShouldAlmostEqual, 0)

	axes, err := NewRotationFromAxes(a.Col(0), a.Col(1), a.Col(2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, axes.AlmostEqual(a, 1e-12), test.ShouldBeTrue)
}

func TestPose(t *testing.T) {
	p := NewPoseFromRotVec(r3.Vector{X: 0.1, Y: 0.2, Z: -0.3}, r3.Vector{X: 1, Y: -2, Z: 5})
	pt := r3.Vector{X: 0.5, Y: 0.25, Z: -1}

	back := p.Inverse().Transform(p.Transform(pt))
	test.That(t, back.Sub(pt).Norm(), test.ShouldBeLessThan, 1e-12)

	test.That(t, p.Compose(p.Inverse()).AlmostEqual(NewZeroPose(), 1e-12), test.ShouldBeTrue)

	fromVec, err := NewPoseFromVector(p.Vector())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromVec.AlmostEqual(p, 1e-12), test.ShouldBeTrue)

	// origin of the target frame seen from the source frame maps to zero
	test.That(t, p.Transform(p.Origin()).Norm(), test.ShouldBeLessThan, 1e-12)

	_, err = NewPoseFromVector([]float64{1, 2})
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
}

func TestRigidTransformFromPoints(t *testing.T) {
	src := Vxyz{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}}
	truth := NewPoseFromRotVec(r3.Vector{X: 0.2, Y: -0.4, Z: 1.1}, r3.Vector{X: 3, Y: -1, Z: 2})

	t.Run("rigid", func(t *testing.T) {
		dst := truth.TransformAll(src)
		pose, scale, err := RigidTransformFromPoints(src, dst, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, scale, test.ShouldEqual, 1.)
		test.That(t, pose.AlmostEqual(truth, 1e-9), test.ShouldBeTrue)
	})

	t.Run("similarity", func(t *testing.T) {
		dst := ApplySimilarity(truth, 2.5, src)
		pose, scale, err := RigidTransformFromPoints(src, dst, true)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, scale, test.ShouldAlmostEqual, 2.5, 1e-9)
		test.That(t, pose.AlmostEqual(truth, 1e-9), test.ShouldBeTrue)
	})

	t.Run("single point translates", func(t *testing.T) {
		pose, _, err := RigidTransformFromPoints(Vxyz{{X: 0, Y: 0, Z: 0}}, Vxyz{{X: 5, Y: 5, Z: 5}}, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pose.Translation, test.ShouldResemble, r3.Vector{X: 5, Y: 5, Z: 5})
		test.That(t, pose.Rotation.AlmostEqual(Identity(), 0), test.ShouldBeTrue)
	})

	t.Run("errors", func(t *testing.T) {
		_, _, err := RigidTransformFromPoints(src, src[:2], false)
		test.That(t, errors.Is(err, ErrInputMismatch), test.ShouldBeTrue)
		_, _, err = RigidTransformFromPoints(Vxyz{}, Vxyz{}, false)
		test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
	})
}

func TestPoseQuaternion(t *testing.T) {
	q := NewZeroPose().Quaternion()
	test.That(t, q.Real, test.ShouldAlmostEqual, 1, 1e-12)

	rv := r3.Vector{X: 0, Y: 0, Z: math.Pi / 2}
	q = NewPoseFromRotVec(rv, r3.Vector{}).Quaternion()
	test.That(t, q.Real, test.ShouldAlmostEqual, math.Sqrt2/2, 1e-12)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, math.Sqrt2/2, 1e-12)
	test.That(t, NewRotationMatrixFromQuat(q).AlmostEqual(NewRotationMatrixFromRotVec(rv), 1e-12), test.ShouldBeTrue)
}
