//go:build opencv

package aruco

import (
	"context"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// GocvDetector finds 4x4_1000 ArUco markers with OpenCV.
type GocvDetector struct {
	mu       sync.Mutex
	detector gocv.ArucoDetector
}

// NewImageDetector returns an OpenCV ArUco detector. Close it when done.
func NewImageDetector() (*GocvDetector, error) {
	dict := gocv.GetPredefinedDictionary(gocv.ArucoDict4x4_1000)
	params := gocv.NewArucoDetectorParameters()
	return &GocvDetector{detector: gocv.NewArucoDetectorWithParams(dict, params)}, nil
}

// DetectFile reads path as grayscale and detects markers in it.
func (d *GocvDetector) DetectFile(ctx context.Context, path string) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Empty() {
		return nil, errors.Errorf("could not read image %q", path)
	}

	d.mu.Lock()
	corners, ids, _ := d.detector.DetectMarkers(img)
	d.mu.Unlock()

	out := make([]Observation, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != CornersPerMarker {
			continue
		}
		obs := Observation{MarkerID: id}
		for c, p := range corners[i] {
			obs.Corners[c] = r2.Point{X: float64(p.X), Y: float64(p.Y)}
		}
		out = append(out, obs)
	}
	return out, nil
}

// Close releases the OpenCV detector.
func (d *GocvDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detector.Close()
}
