package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestVxyBroadcast(t *testing.T) {
	a := Vxy{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}
	b := Vxy{{X: 1, Y: 1}}

	sum, err := a.Add(b)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum, test.ShouldResemble, Vxy{{X: 2, Y: 3}, {X: 4, Y: 5}, {X: 6, Y: 7}})

	diff, err := b.Sub(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldResemble, Vxy{{X: 0, Y: -1}, {X: -2, Y: -3}, {X: -4, Y: -5}})

	_, err = a.Add(Vxy{{X: 1, Y: 1}, {X: 2, Y: 2}})
	test.That(t, errors.Is(err, ErrInputMismatch), test.ShouldBeTrue)

	// the receiver is untouched
	test.That(t, a, test.ShouldResemble, Vxy{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}})
}

func TestVxyNormalize(t *testing.T) {
	n, err := Vxy{{X: 3, Y: 4}, {X: 0, Y: -2}}.Normalize()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n[0].X, test.ShouldAlmostEqual, 0.6)
	test.That(t, n[0].Y, test.ShouldAlmostEqual, 0.8)
	test.That(t, n[1], test.ShouldResemble, r2.Point{X: 0, Y: -1})

	_, err = Vxy{{X: 1, Y: 0}, {X: 0, Y: 0}}.Normalize()
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
}

func TestVxyRotate(t *testing.T) {
	v := Vxy{{X: 1, Y: 0}}
	r, err := v.Rotate(Rotation2D(math.Pi / 2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r[0].X, test.ShouldAlmostEqual, 0)
	test.That(t, r[0].Y, test.ShouldAlmostEqual, 1)

	r, err = v.RotateAbout(Rotation2D(math.Pi), r2.Point{X: 2, Y: 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r[0].X, test.ShouldAlmostEqual, 3)
	test.That(t, r[0].Y, test.ShouldAlmostEqual, 0)

	_, err = v.Rotate(Identity().Dense())
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
}

func TestVxyDotCrossCentroid(t *testing.T) {
	a := Vxy{{X: 1, Y: 0}, {X: 0, Y: 1}}
	dots, err := a.Dot(Vxy{{X: 2, Y: 3}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dots, test.ShouldResemble, []float64{2, 3})

	crosses, err := a.Cross(Vxy{{X: 0, Y: 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, crosses, test.ShouldResemble, []float64{1, 0})

	c, err := a.Centroid()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, r2.Point{X: 0.5, Y: 0.5})

	_, err = Vxy{}.Centroid()
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)

	merged := MergeVxy([]Vxy{a, {{X: 9, Y: 9}}})
	test.That(t, merged, test.ShouldResemble, Vxy{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: 9, Y: 9}})
}

func TestVxyzOps(t *testing.T) {
	a := Vxyz{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	cross, err := a.Cross(Vxyz{{X: 0, Y: 0, Z: 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cross, test.ShouldResemble, Vxyz{{X: 0, Y: -1, Z: 0}, {X: 1, Y: 0, Z: 0}})

	prod, err := a.MulElem(Vxyz{{X: 2, Y: 3, Z: 4}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, prod, test.ShouldResemble, Vxyz{{X: 2, Y: 0, Z: 0}, {X: 0, Y: 3, Z: 0}})

	_, err = a.Sub(Vxyz{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}})
	test.That(t, errors.Is(err, ErrInputMismatch), test.ShouldBeTrue)

	rotated := a.Rotate(NewRotationMatrixFromRotVec(r3.Vector{Z: math.Pi / 2}))
	test.That(t, rotated[0].X, test.ShouldAlmostEqual, 0)
	test.That(t, rotated[0].Y, test.ShouldAlmostEqual, 1)

	about := Vxyz{{X: 2, Y: 0, Z: 0}}.RotateAbout(NewRotationMatrixFromRotVec(r3.Vector{Z: math.Pi}), r3.Vector{X: 1})
	test.That(t, about[0].X, test.ShouldAlmostEqual, 0)
	test.That(t, about[0].Y, test.ShouldAlmostEqual, 0)

	back, err := NewVxyzFromDense(a.Dense())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, a)

	_, err = Vxyz{{X: 0, Y: 0, Z: 0}}.Normalize()
	test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
}
