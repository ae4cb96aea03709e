package deflectometry

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
)

type facetFixture struct {
	cam      *transform.Camera
	corners  spatialmath.Vxyz
	imgPts   spatialmath.Vxy
	truth    spatialmath.Pose
	screen   r3.Vector
	measPt   r3.Vector
	measDist float64
}

func newFacetFixture(t *testing.T) facetFixture {
	t.Helper()
	dist, err := transform.NewBrownConrady([]float64{-0.05, 0.01, 0.0005, -0.0002, 0})
	test.That(t, err, test.ShouldBeNil)
	cam, err := transform.NewCamera("facet", transform.PinholeCameraIntrinsics{
		Width: 1600, Height: 1200, Fx: 1800, Fy: 1800, Ppx: 800, Ppy: 600,
	}, dist)
	test.That(t, err, test.ShouldBeNil)

	screen := r3.Vector{X: 0.4, Y: 0.25, Z: 0.1}
	tTruth := r3.Vector{X: 0.08, Y: -0.05, Z: 4.0}
	rNominal, err := RFromPosition(tTruth, screen)
	test.That(t, err, test.ShouldBeNil)
	rTruth := spatialmath.NewRotationMatrixFromRotVec(r3.Vector{X: 0.03, Y: -0.02, Z: 0.01}).Mul(rNominal)
	truth := spatialmath.NewPose(rTruth, tTruth)

	corners := spatialmath.Vxyz{
		{X: -0.6, Y: -0.6}, {X: 0.6, Y: -0.6}, {X: 0.6, Y: 0.6}, {X: -0.6, Y: 0.6},
	}
	imgPts, err := cam.Project(corners, truth)
	test.That(t, err, test.ShouldBeNil)

	measPt := r3.Vector{}
	return facetFixture{
		cam:      cam,
		corners:  corners,
		imgPts:   imgPts,
		truth:    truth,
		screen:   screen,
		measPt:   measPt,
		measDist: screen.Sub(truth.Transform(measPt)).Norm(),
	}
}

func (f facetFixture) problem(t *testing.T) PoseProblem {
	t.Helper()
	centroid, err := f.cam.ProjectCameraFrame(f.truth.Translation)
	test.That(t, err, test.ShouldBeNil)
	return PoseProblem{
		Camera:        f.cam,
		CornersOptic:  f.corners,
		CornersImage:  f.imgPts,
		Centroid:      &centroid,
		Measurement:   &DistanceOpticScreen{MeasurePoint: f.measPt, Distance: f.measDist},
		VCamScreenCam: f.screen,
	}
}
