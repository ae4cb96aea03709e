package spatialmath

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestTriangleXY(t *testing.T) {
	tri, err := NewTriangleXY(r2.Point{X: 0, Y: 0}, r2.Point{X: 2, Y: 0}, r2.Point{X: 0, Y: 2})
	test.That(t, err, test.ShouldBeNil)

	lo, hi := tri.Bounds()
	test.That(t, lo, test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, hi, test.ShouldResemble, r2.Point{X: 2, Y: 2})

	for i, v := range tri.Vertices() {
		w := tri.Barycentric(v)
		for j := range w {
			want := 0.0
			if i == j {
				want = 1
			}
			test.That(t, w[j], test.ShouldAlmostEqual, want, 1e-12)
		}
	}

	w := tri.Barycentric(r2.Point{X: 0.5, Y: 0.5})
	test.That(t, w[0]+w[1]+w[2], test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, w[1], test.ShouldAlmostEqual, 0.25, 1e-12)
	test.That(t, w[2], test.ShouldAlmostEqual, 0.25, 1e-12)

	test.That(t, tri.Contains(r2.Point{X: 0.5, Y: 0.5}, 0), test.ShouldBeTrue)
	test.That(t, tri.Contains(r2.Point{X: 1, Y: 1}, 1e-12), test.ShouldBeTrue)
	test.That(t, tri.Contains(r2.Point{X: 1.5, Y: 1.5}, 1e-12), test.ShouldBeFalse)
	test.That(t, tri.Contains(r2.Point{X: -0.1, Y: 0.5}, 0), test.ShouldBeFalse)

	values := [3]r2.Point{{X: 10, Y: 0}, {X: 20, Y: 0}, {X: 10, Y: 30}}
	got := InterpolateXY(tri.Barycentric(r2.Point{X: 1, Y: 0.5}), values)
	test.That(t, got.X, test.ShouldAlmostEqual, 15, 1e-12)
	test.That(t, got.Y, test.ShouldAlmostEqual, 7.5, 1e-12)

	t.Run("clockwise", func(t *testing.T) {
		cw, err := NewTriangleXY(r2.Point{X: 0, Y: 0}, r2.Point{X: 0, Y: 2}, r2.Point{X: 2, Y: 0})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cw.Contains(r2.Point{X: 0.5, Y: 0.5}, 0), test.ShouldBeTrue)
	})

	t.Run("degenerate", func(t *testing.T) {
		_, err := NewTriangleXY(r2.Point{X: 0, Y: 0}, r2.Point{X: 1, Y: 1}, r2.Point{X: 2, Y: 2})
		test.That(t, errors.Is(err, ErrDomain), test.ShouldBeTrue)
	})
}
