package transform

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/opencsp/opencsp-go/spatialmath"
)

func planarGrid(nx, ny int, spacing float64) spatialmath.Vxyz {
	var pts spatialmath.Vxyz
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			pts = append(pts, r3.Vector{X: float64(i) * spacing, Y: float64(j) * spacing})
		}
	}
	return pts
}

func TestSolvePnPPlanar(t *testing.T) {
	cam := testCamera(t)
	truth := spatialmath.NewPoseFromRotVec(r3.Vector{X: 0.1, Y: -0.2, Z: 0.05}, r3.Vector{X: -0.2, Y: -0.1, Z: 2})
	obj := planarGrid(5, 4, 0.1)
	img, err := cam.Project(obj, truth)
	test.That(t, err, test.ShouldBeNil)

	pose, err := SolvePnP(cam, obj, img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.AlmostEqual(truth, 1e-6), test.ShouldBeTrue)

	// a tilted plane that is not z = 0 in object coordinates
	tilt := spatialmath.NewPoseFromRotVec(r3.Vector{X: 0.7, Y: 0.3}, r3.Vector{X: 1, Y: 2, Z: 3})
	obj2 := tilt.TransformAll(obj)
	truth2 := truth.Compose(tilt.Inverse())
	img2, err := cam.Project(obj2, truth2)
	test.That(t, err, test.ShouldBeNil)
	pose2, err := SolvePnP(cam, obj2, img2, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose2.AlmostEqual(truth2, 1e-6), test.ShouldBeTrue)
}

func TestSolvePnPNonPlanar(t *testing.T) {
	cam := testCamera(t)
	truth := spatialmath.NewPoseFromRotVec(r3.Vector{X: -0.3, Y: 0.25, Z: 0.4}, r3.Vector{X: 0.05, Y: 0.1, Z: 3})
	obj := spatialmath.Vxyz{
		{X: 0, Y: 0, Z: 0}, {X: 0.5, Y: 0, Z: 0}, {X: 0, Y: 0.5, Z: 0}, {X: 0, Y: 0, Z: 0.5},
		{X: 0.5, Y: 0.5, Z: 0}, {X: 0.5, Y: 0, Z: 0.5}, {X: 0, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5},
		{X: 0.25, Y: 0.1, Z: 0.3},
	}
	img, err := cam.Project(obj, truth)
	test.That(t, err, test.ShouldBeNil)

	pose, err := SolvePnP(cam, obj, img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.AlmostEqual(truth, 1e-6), test.ShouldBeTrue)

	// warm start from a perturbed pose
	guess := spatialmath.NewPoseFromRotVec(r3.Vector{X: -0.25, Y: 0.2, Z: 0.45}, r3.Vector{X: 0, Y: 0.2, Z: 2.8})
	pose, err = SolvePnP(cam, obj, img, &guess)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.AlmostEqual(truth, 1e-6), test.ShouldBeTrue)
}

func TestSolvePnPDetailedNoisy(t *testing.T) {
	cam := testCamera(t)
	truth := spatialmath.NewPoseFromRotVec(r3.Vector{X: 0.1, Y: -0.2, Z: 0.05}, r3.Vector{X: -0.2, Y: -0.1, Z: 2})
	obj := planarGrid(5, 4, 0.1)
	img, err := cam.Project(obj, truth)
	test.That(t, err, test.ShouldBeNil)
	rng := rand.New(rand.NewSource(3))
	for i := range img {
		img[i].X += 0.8 * rng.NormFloat64()
		img[i].Y += 0.8 * rng.NormFloat64()
	}

	res, err := SolvePnPDetailed(cam, obj, img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	test.That(t, res.Iterations, test.ShouldBeGreaterThan, 0)
	test.That(t, res.Pose.Translation.Sub(truth.Translation).Norm(), test.ShouldBeLessThan, 0.05)

	pose, err := SolvePnP(cam, obj, img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.AlmostEqual(res.Pose, 1e-12), test.ShouldBeTrue)
}

func TestSolvePnPErrors(t *testing.T) {
	cam := testCamera(t)
	obj := planarGrid(2, 2, 0.1)
	img := spatialmath.Vxy{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	_, err := SolvePnP(cam, obj, img, nil)
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)

	_, err = SolvePnP(cam, obj[:3], img, nil)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)

	line := spatialmath.Vxyz{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 3, Y: 0, Z: 0}}
	_, err = SolvePnP(cam, line, spatialmath.Vxy{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}}, nil)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)

	// five non-coplanar points are too few for the DLT
	sparse := spatialmath.Vxyz{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}}
	_, err = SolvePnP(cam, sparse, spatialmath.Vxy{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 6}}, nil)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
}

func TestEstimateHomographyDLT(t *testing.T) {
	src := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0.5, Y: 0.3}}
	dst := make([]r2.Point, len(src))
	for i, p := range src {
		w := 0.1*p.X + 0.05*p.Y + 1
		dst[i] = r2.Point{X: (2*p.X + 0.3*p.Y + 5) / w, Y: (-0.2*p.X + 1.5*p.Y - 1) / w}
	}
	h, err := EstimateHomographyDLT(src, dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.At(0, 0), test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, h.At(1, 2), test.ShouldAlmostEqual, -1, 1e-9)
	test.That(t, h.At(2, 0), test.ShouldAlmostEqual, 0.1, 1e-9)
}
