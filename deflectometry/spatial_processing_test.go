package deflectometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/opencsp/opencsp-go/spatialmath"
)

func TestTFromDistance(t *testing.T) {
	f := newFacetFixture(t)
	centroid, err := f.cam.ProjectCameraFrame(f.truth.Translation)
	test.That(t, err, test.ShouldBeNil)

	v, err := TFromDistance(centroid, f.measDist, f.cam, f.screen)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Sub(f.truth.Translation).Norm(), test.ShouldBeLessThan, 1e-8)

	_, err = TFromDistance(centroid, 0, f.cam, f.screen)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)

	// a ray pointing away from a far screen point never gets close enough
	_, err = TFromDistance(r2.Point{X: 800, Y: 600}, 0.5, f.cam, r3.Vector{X: 10, Z: -5})
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
}

func TestRFromPosition(t *testing.T) {
	optic := r3.Vector{X: 0.1, Y: 0.2, Z: 5}
	screen := r3.Vector{X: 1, Y: 0, Z: 0}
	r, err := RFromPosition(optic, screen)
	test.That(t, err, test.ShouldBeNil)

	z := r.Col(2)
	toCam := optic.Mul(-1).Normalize()
	toScreen := screen.Sub(optic).Normalize()
	test.That(t, z.Dot(toCam), test.ShouldAlmostEqual, z.Dot(toScreen), 1e-12)
	test.That(t, r.Col(0).Dot(r3.Vector{X: 1}.Cross(z)), test.ShouldAlmostEqual, 0.0, 1e-12)
	test.That(t, r.Col(0).Dot(z), test.ShouldAlmostEqual, 0.0, 1e-12)
	test.That(t, r.Col(0).X, test.ShouldBeGreaterThan, 0)

	_, err = RFromPosition(r3.Vector{}, screen)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
	_, err = RFromPosition(r3.Vector{X: 1}, r3.Vector{X: 2})
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
}

func TestRefineVDistance(t *testing.T) {
	screen := r3.Vector{X: 0.5, Z: 0.2}
	meas := r3.Vector{X: 0.01, Y: 0.02}
	truth := r3.Vector{X: 0.1, Y: -0.1, Z: 3}
	dist := screen.Sub(truth.Add(meas)).Norm()

	// scaled guesses along the same ray come back to the truth
	for _, s := range []float64{0.9, 1.0, 1.07} {
		got := RefineVDistance(truth.Mul(s), dist, screen, meas)
		test.That(t, got.Sub(truth).Norm(), test.ShouldBeLessThan, 1e-9)
		test.That(t, DistanceError(screen, got.Add(meas), dist), test.ShouldAlmostEqual, 0.0, 1e-9)
	}

	// no real root falls back to the closest approach
	got := RefineVDistance(truth, 0.01, screen, meas)
	b := meas.Sub(screen)
	test.That(t, got.Add(b).Dot(truth), test.ShouldAlmostEqual, 0.0, 1e-9)
}

func TestReprojectionError(t *testing.T) {
	f := newFacetFixture(t)
	errR, err := ReprojectionError(f.cam, f.corners, f.imgPts, f.truth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errR, test.ShouldBeLessThan, 1e-9)

	shifted := f.imgPts.Copy()
	for i := range shifted {
		shifted[i] = shifted[i].Add(r2.Point{X: 3, Y: 4})
	}
	errR, err = ReprojectionError(f.cam, f.corners, shifted, f.truth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errR, test.ShouldAlmostEqual, 5.0, 1e-9)

	_, err = ReprojectionError(f.cam, f.corners, f.imgPts[:3], f.truth)
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)

	test.That(t, math.Abs(DistanceError(f.screen, f.truth.Translation, f.measDist)), test.ShouldBeLessThan, 1e-12)
}
