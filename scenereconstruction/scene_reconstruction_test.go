package scenereconstruction

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/opencsp/opencsp-go/logging"
	"github.com/opencsp/opencsp-go/pointcloud"
	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/testutils"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

type syntheticScene struct {
	scene  testutils.MarkerScene
	truth  map[int]r3.Vector
	known  map[int]r3.Vector
	images []aruco.ImageObservations
}

func newSyntheticScene(t *testing.T) syntheticScene {
	t.Helper()
	cam := testutils.SyntheticCamera(t)
	scene := testutils.NewMarkerScene()
	var images []aruco.ImageObservations
	for i, pose := range testutils.SceneViews(t) {
		img := scene.Observe(t, cam, filepath.Join("images", "img_"+string(rune('a'+i))+".png"), pose)
		test.That(t, len(img.Markers), test.ShouldBeGreaterThanOrEqualTo, 6)
		images = append(images, img)
	}
	truth := scene.Points()
	known := map[int]r3.Vector{}
	for c := 0; c < aruco.CornersPerMarker; c++ {
		id := aruco.PointID(0, c)
		known[id] = truth[id]
	}
	return syntheticScene{scene: scene, truth: truth, known: known, images: images}
}

func runScene(t *testing.T, s syntheticScene) *SceneReconstruction {
	t.Helper()
	sr, err := New(testutils.SyntheticCamera(t), s.known, s.images, DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sr.RunCalibration(context.Background()), test.ShouldBeNil)
	return sr
}

func TestRunCalibrationRecoversScene(t *testing.T) {
	s := newSyntheticScene(t)
	sr := runScene(t, s)

	data := sr.Data()
	test.That(t, len(data), test.ShouldEqual, len(s.truth))
	for i, loc := range data {
		if i > 0 {
			test.That(t, loc.PointID, test.ShouldBeGreaterThan, data[i-1].PointID)
		}
		test.That(t, loc.MarkerID, test.ShouldEqual, loc.PointID/4)
		test.That(t, loc.XYZ.Sub(s.truth[loc.PointID]).Norm(), test.ShouldBeLessThan, 1e-6)
	}
	test.That(t, sr.CameraPoses(), test.ShouldHaveLength, len(s.images))

	sum, err := sr.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.MeanError, test.ShouldBeLessThan, 1e-4)
	test.That(t, sum.Percentile95, test.ShouldBeLessThan, 1e-4)
	test.That(t, sum.UnlocatedPoints, test.ShouldBeEmpty)
	test.That(t, sum.Images[0].Located, test.ShouldBeTrue)

	// identical observations give identical results
	again := runScene(t, s)
	test.That(t, again.Data(), test.ShouldResemble, data)
}

func TestScaleAndAlign(t *testing.T) {
	s := newSyntheticScene(t)
	sr := runScene(t, s)

	// a cube-like reference: distances measured at twice the reconstructed size
	pairs := [][2]int{{0, 2}, {0, 20}, {4, 33}, {13, 30}}
	dists := make([]float64, len(pairs))
	for i, p := range pairs {
		dists[i] = 2 * s.truth[p[0]].Sub(s.truth[p[1]]).Norm()
	}
	scale, err := sr.ScalePoints(pairs, dists)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scale, test.ShouldAlmostEqual, 2.0, 1e-6)
	for _, loc := range sr.Data() {
		test.That(t, loc.XYZ.Sub(s.truth[loc.PointID].Mul(2)).Norm(), test.ShouldBeLessThan, 1e-5)
	}

	// poses stay consistent with the scaled points
	sum, err := sr.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.MeanError, test.ShouldBeLessThan, 1e-4)

	shift := r3.Vector{X: 5, Y: 5, Z: 5}
	ids := []int{0, 2, 4, 7}
	targets := make(spatialmath.Vxyz, len(ids))
	for i, id := range ids {
		targets[i] = s.truth[aruco.PointID(id, 0)].Mul(2).Add(shift)
	}
	test.That(t, sr.AlignPoints(ids, targets), test.ShouldBeNil)
	for _, loc := range sr.Data() {
		test.That(t, loc.XYZ.Sub(s.truth[loc.PointID].Mul(2).Add(shift)).Norm(), test.ShouldBeLessThan, 1e-5)
	}
	sum, err = sr.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.MeanError, test.ShouldBeLessThan, 1e-4)

	// similarity alignment back to the original frame
	targets = make(spatialmath.Vxyz, len(ids))
	for i, id := range ids {
		targets[i] = s.truth[aruco.PointID(id, 0)]
	}
	scale, err = sr.AlignPointsWithScale(ids, targets)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scale, test.ShouldAlmostEqual, 0.5, 1e-6)

	_, err = sr.ScalePoints(pairs, dists[:1])
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)
	_, err = sr.ScalePoints([][2]int{{0, 9999}}, []float64{1})
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
	test.That(t, errors.Is(sr.AlignPoints([]int{9999}, spatialmath.Vxyz{{}}), spatialmath.ErrDomain), test.ShouldBeTrue)
	test.That(t, errors.Is(sr.AlignPoints([]int{0, 1}, spatialmath.Vxyz{{}}), spatialmath.ErrInputMismatch), test.ShouldBeTrue)
}

// locatedScene is a reconstruction whose points are already located.
func locatedScene(t *testing.T, points map[int]r3.Vector) *SceneReconstruction {
	t.Helper()
	sr := &SceneReconstruction{logger: logging.NewTestLogger(t), known: map[int]r3.Vector{}, points: map[int]r3.Vector{}}
	for id, p := range points {
		sr.points[id] = p
	}
	return sr
}

func TestScaleUnitCube(t *testing.T) {
	cube := map[int]r3.Vector{}
	for i := 0; i < 8; i++ {
		cube[i] = r3.Vector{X: float64(i & 1), Y: float64((i >> 1) & 1), Z: float64((i >> 2) & 1)}
	}
	sr := locatedScene(t, cube)

	// edge 0-1 measures 1.0 and is known to be 2.0
	scale, err := sr.ScalePoints([][2]int{{0, 1}}, []float64{2.0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scale, test.ShouldEqual, 2.0)
	data := sr.Data()
	test.That(t, data, test.ShouldHaveLength, 8)
	for _, loc := range data {
		test.That(t, loc.XYZ, test.ShouldResemble, cube[loc.PointID].Mul(2))
	}
}

func TestAlignSingleMarker(t *testing.T) {
	points := map[int]r3.Vector{
		aruco.PointID(0, 0): {X: 2, Y: 0, Z: 0},
		aruco.PointID(0, 1): {X: 2, Y: 0.1, Z: 0},
		aruco.PointID(1, 0): {X: 0, Y: 0, Z: 0},
		aruco.PointID(1, 1): {X: 0.1, Y: 0, Z: 0},
		aruco.PointID(1, 2): {X: 0.1, Y: 0.1, Z: 0},
		aruco.PointID(2, 3): {X: -1, Y: 3, Z: 0.5},
	}
	sr := locatedScene(t, points)

	// marker 1 has its origin corner at (0, 0, 0)
	shift := r3.Vector{X: 5, Y: 5, Z: 5}
	test.That(t, sr.AlignPoints([]int{1}, spatialmath.Vxyz{shift}), test.ShouldBeNil)
	data := sr.Data()
	test.That(t, data, test.ShouldHaveLength, len(points))
	for _, loc := range data {
		test.That(t, loc.XYZ.Sub(points[loc.PointID].Add(shift)).Norm(), test.ShouldBeLessThan, 1e-9)
	}

	sr = locatedScene(t, map[int]r3.Vector{aruco.PointID(3, 2): {}})
	err := sr.AlignPoints([]int{3}, spatialmath.Vxyz{shift})
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
}

func TestUnreachableImages(t *testing.T) {
	s := newSyntheticScene(t)
	// an image that sees nothing known or triangulated stays unlocated
	lonely := aruco.ImageObservations{Name: "lonely.png", Markers: []aruco.Observation{{MarkerID: 99}}}
	s.images = append(s.images, lonely)
	sr := runScene(t, s)
	sum, err := sr.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.Images[len(sum.Images)-1].Located, test.ShouldBeFalse)
	test.That(t, sum.UnlocatedPoints, test.ShouldResemble, []int{396, 397, 398, 399})

	_, err = New(testutils.SyntheticCamera(t), nil, s.images, DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)

	unknown := map[int]r3.Vector{4000: {}}
	sr, err = New(testutils.SyntheticCamera(t), unknown, s.images, DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sr.RunCalibration(context.Background()), test.ShouldNotBeNil)
}

func TestCSVFiles(t *testing.T) {
	dir := t.TempDir()
	known := testutils.WriteFile(t, dir, "known_point_locations.csv", "Point ID,x,y,z\n0,0,0,0\n1,1.5,0,0\n# comment\n2,1.5,2,0.25\n")
	pts, err := LoadKnownPointLocations(known)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldHaveLength, 3)
	test.That(t, pts[2], test.ShouldResemble, r3.Vector{X: 1.5, Y: 2, Z: 0.25})

	pairsFile := testutils.WriteFile(t, dir, "point_pair_distances.csv", "id1,id2,distance\n0,1,1.5\n1, 2, 2.0\n")
	pairs, dists, err := LoadPointPairDistances(pairsFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pairs, test.ShouldResemble, [][2]int{{0, 1}, {1, 2}})
	test.That(t, dists, test.ShouldResemble, []float64{1.5, 2})

	alignFile := testutils.WriteFile(t, dir, "alignment_points.csv", "Marker ID,x,y,z\n3,1,2,3\n")
	ids, targets, err := LoadAlignmentPoints(alignFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldResemble, []int{3})
	test.That(t, targets, test.ShouldResemble, spatialmath.Vxyz{{X: 1, Y: 2, Z: 3}})

	screenFile := testutils.WriteFile(t, dir, "screen_cal_points.csv", "Point ID,x,y,z\n12,0,0,0\n13,0.5,0,0\n")
	ids, targets, err = LoadScreenCalPoints(screenFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldResemble, []int{12, 13})
	test.That(t, targets[1], test.ShouldResemble, r3.Vector{X: 0.5})

	bad := testutils.WriteFile(t, dir, "bad.csv", "id,x,y,z\n3,1,oops,3\n")
	_, err = LoadKnownPointLocations(bad)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = LoadKnownPointLocations(filepath.Join(dir, "missing.csv"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSaveOutputs(t *testing.T) {
	s := newSyntheticScene(t)
	sr := runScene(t, s)

	path := filepath.Join(t.TempDir(), "out", "point_locations.csv")
	test.That(t, sr.SaveCSV(path), test.ShouldBeNil)
	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasPrefix(string(raw), "Marker ID,Point ID,x,y,z\n0,0,"), test.ShouldBeTrue)

	locs, err := LoadPointLocations(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, locs, test.ShouldResemble, sr.Data())

	cloud, err := sr.Cloud()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, len(locs))
	test.That(t, pointcloud.Points(cloud)[5], test.ShouldResemble, locs[5].XYZ)
}

func TestDetectMarkersInImages(t *testing.T) {
	s := newSyntheticScene(t)
	dir := t.TempDir()
	var recorded []aruco.ImageObservations
	for _, img := range s.images {
		testutils.WriteFile(t, dir, filepath.Base(img.Name), "")
		recorded = append(recorded, img)
	}
	testutils.WriteFile(t, dir, "unrecorded.png", "")
	det := aruco.NewCSVDetector(recorded)

	got, err := DetectMarkersInImages(context.Background(), det, filepath.Join(dir, "*.png"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldHaveLength, len(s.images))
	test.That(t, got[0].Name, test.ShouldEqual, filepath.Join(dir, "img_a.png"))
	test.That(t, got[0].Markers, test.ShouldResemble, s.images[0].Markers)

	_, err = DetectMarkersInImages(context.Background(), det, filepath.Join(dir, "unrecorded.png"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
