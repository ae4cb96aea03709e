package aruco

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func square(id int, x, y float64) Observation {
	return Observation{MarkerID: id, Corners: [4]r2.Point{{X: x, Y: y}, {X: x + 10, Y: y}, {X: x + 10, Y: y + 10}, {X: x, Y: y + 10}}}
}

func TestPointIDs(t *testing.T) {
	test.That(t, PointID(3, 2), test.ShouldEqual, 14)
	test.That(t, MarkerID(14), test.ShouldEqual, 3)
	test.That(t, MarkerID(PointID(0, 3)), test.ShouldEqual, 0)

	img := ImageObservations{Name: "a.png", Markers: []Observation{square(5, 0, 0), square(1, 50, 50), square(5, 0, 0)}}
	pts := img.Points()
	test.That(t, pts, test.ShouldHaveLength, 8)
	test.That(t, pts[PointID(1, 2)], test.ShouldResemble, r2.Point{X: 60, Y: 60})
	test.That(t, img.MarkerIDs(), test.ShouldResemble, []int{1, 5})
}

func TestObservationsCSVRoundTrip(t *testing.T) {
	images := []ImageObservations{
		{Name: "img_b.png", Markers: []Observation{square(2, 1.5, 2.25), square(7, 100, 200)}},
		{Name: "img_a.png", Markers: []Observation{square(2, 3, 4)}},
	}
	var buf bytes.Buffer
	test.That(t, WriteObservationsCSV(&buf, images), test.ShouldBeNil)
	test.That(t, strings.HasPrefix(buf.String(), "Image,Marker ID,x0"), test.ShouldBeTrue)

	got, err := ReadObservationsCSV(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, images)

	_, err = ReadObservationsCSV(strings.NewReader("a.png,notanumber,0,0,0,0,0,0,0,0\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadObservationsCSV(strings.NewReader("a.png,1,0,0\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCSVDetector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obs.csv")
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, WriteObservationsCSV(f, []ImageObservations{{Name: "shots/img_0.png", Markers: []Observation{square(4, 0, 0)}}}), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	images, err := LoadObservationsCSV(path)
	test.That(t, err, test.ShouldBeNil)
	var det Detector = NewCSVDetector(images)

	obs, err := det.DetectFile(context.Background(), "/elsewhere/img_0.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs, test.ShouldHaveLength, 1)
	test.That(t, obs[0].MarkerID, test.ShouldEqual, 4)

	_, err = det.DetectFile(context.Background(), "img_1.png")
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = det.DetectFile(ctx, "img_0.png")
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestGlobImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.JPG", "c.txt"} {
		test.That(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600), test.ShouldBeNil)
	}
	files, err := GlobImages(filepath.Join(dir, "*.JPG"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldResemble, []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.JPG")})

	_, err = GlobImages(filepath.Join(dir, "*.png"))
	test.That(t, err, test.ShouldNotBeNil)

	var calls int
	det := DetectorFunc(func(ctx context.Context, path string) ([]Observation, error) {
		calls++
		return nil, nil
	})
	_, err = det.DetectFile(context.Background(), files[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
}
