package testutils

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// SyntheticCamera is a 1600x1200 camera with mild Brown-Conrady distortion.
func SyntheticCamera(t *testing.T) *transform.Camera {
	t.Helper()
	dist, err := transform.NewBrownConrady([]float64{-0.04, 0.01, 0.0003, -0.0002, 0})
	test.That(t, err, test.ShouldBeNil)
	cam, err := transform.NewCamera("synthetic", transform.PinholeCameraIntrinsics{
		Width: 1600, Height: 1200, Fx: 1400, Fy: 1400, Ppx: 800, Ppy: 600,
	}, dist)
	test.That(t, err, test.ShouldBeNil)
	return cam
}

// LookAt returns the world-to-camera pose of a camera at eye looking at target with image
// y pointing along -up.
func LookAt(t *testing.T, eye, target, up r3.Vector) spatialmath.Pose {
	t.Helper()
	z := target.Sub(eye).Normalize()
	x := z.Cross(up).Normalize()
	y := z.Cross(x)
	// rows of the world-to-camera rotation are the camera axes in world coordinates
	camToWorld, err := spatialmath.NewRotationFromAxes(x, y, z)
	test.That(t, err, test.ShouldBeNil)
	rot := camToWorld.Transpose()
	return spatialmath.NewPose(rot, rot.Apply(eye).Mul(-1))
}

// MarkerCorners returns the four corners of a square marker of side size centered at center,
// lying in the plane spanned by the unit vectors right and down, in detection order.
func MarkerCorners(center, right, down r3.Vector, size float64) spatialmath.Vxyz {
	h := size / 2
	r := right.Mul(h)
	d := down.Mul(h)
	return spatialmath.Vxyz{
		center.Sub(r).Sub(d),
		center.Add(r).Sub(d),
		center.Add(r).Add(d),
		center.Sub(r).Add(d),
	}
}

// MarkerScene is a set of markers with known corners.
type MarkerScene struct {
	Markers map[int]spatialmath.Vxyz
}

// Points returns every corner keyed by point id.
func (s MarkerScene) Points() map[int]r3.Vector {
	out := map[int]r3.Vector{}
	for id, corners := range s.Markers {
		for c, p := range corners {
			out[aruco.PointID(id, c)] = p
		}
	}
	return out
}

// NewMarkerScene places nine 0.2 m markers on a floor, a back wall and a side wall.
func NewMarkerScene() MarkerScene {
	ex := r3.Vector{X: 1}
	ey := r3.Vector{Y: 1}
	ez := r3.Vector{Z: 1}
	markers := map[int]spatialmath.Vxyz{}
	id := 0
	for _, x := range []float64{-0.6, 0, 0.6} {
		markers[id] = MarkerCorners(r3.Vector{X: x, Y: 0.3}, ex, ey.Mul(-1), 0.2)
		id++
	}
	for _, x := range []float64{-0.6, 0, 0.6} {
		markers[id] = MarkerCorners(r3.Vector{X: x, Y: 1, Z: 0.5}, ex, ez.Mul(-1), 0.2)
		id++
	}
	for _, y := range []float64{0.2, 0.5, 0.8} {
		markers[id] = MarkerCorners(r3.Vector{X: 1, Y: y, Z: 0.4}, ey, ez.Mul(-1), 0.2)
		id++
	}
	return MarkerScene{Markers: markers}
}

// Observe projects every marker fully in front of and inside the camera.
func (s MarkerScene) Observe(t *testing.T, cam *transform.Camera, name string, worldToCam spatialmath.Pose) aruco.ImageObservations {
	t.Helper()
	img := aruco.ImageObservations{Name: name}
	for id := 0; id < len(s.Markers); id++ {
		corners, ok := s.Markers[id]
		if !ok {
			continue
		}
		px, err := cam.Project(corners, worldToCam)
		if err != nil {
			continue
		}
		obs := aruco.Observation{MarkerID: id}
		inside := true
		for c, p := range px {
			inside = inside && cam.InFrame(p)
			obs.Corners[c] = r2.Point{X: p.X, Y: p.Y}
		}
		if inside {
			img.Markers = append(img.Markers, obs)
		}
	}
	return img
}

// SceneViews are camera poses around NewMarkerScene that see most of its markers.
func SceneViews(t *testing.T) []spatialmath.Pose {
	t.Helper()
	target := r3.Vector{X: 0.1, Y: 0.5, Z: 0.3}
	up := r3.Vector{Z: 1}
	var out []spatialmath.Pose
	for _, eye := range []r3.Vector{
		{X: -1.5, Y: -2.5, Z: 1.6},
		{X: 0, Y: -3, Z: 1.8},
		{X: 1.2, Y: -2.4, Z: 2},
		{X: -0.8, Y: -2, Z: 2.4},
		{X: 0.6, Y: -2.8, Z: 1.2},
	} {
		out = append(out, LookAt(t, eye, target, up))
	}
	return out
}
