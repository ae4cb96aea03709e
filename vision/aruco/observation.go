// Package aruco holds ArUco marker observations and the detectors that produce them.
package aruco

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// CornersPerMarker is the number of corners reported for each marker, in detection order
// starting top left and going clockwise.
const CornersPerMarker = 4

// PointID numbers the corner of a marker as 4*markerID + corner.
func PointID(markerID, corner int) int {
	return CornersPerMarker*markerID + corner
}

// MarkerID returns the marker that owns pointID.
func MarkerID(pointID int) int {
	return pointID / CornersPerMarker
}

// Observation is one detected marker in an image.
type Observation struct {
	MarkerID int
	Corners  [CornersPerMarker]r2.Point
}

// ImageObservations are the markers detected in one image.
type ImageObservations struct {
	Name    string
	Markers []Observation
}

// Points returns the observed corner pixels keyed by point id.
func (io ImageObservations) Points() map[int]r2.Point {
	out := make(map[int]r2.Point, len(io.Markers)*CornersPerMarker)
	for _, m := range io.Markers {
		for c, p := range m.Corners {
			out[PointID(m.MarkerID, c)] = p
		}
	}
	return out
}

// MarkerIDs returns the sorted unique marker ids.
func (io ImageObservations) MarkerIDs() []int {
	ids := lo.Uniq(lo.Map(io.Markers, func(m Observation, _ int) int { return m.MarkerID }))
	sort.Ints(ids)
	return ids
}

// A Detector finds markers in an image file.
type Detector interface {
	DetectFile(ctx context.Context, path string) ([]Observation, error)
}

// DetectorFunc adapts a function to a Detector.
type DetectorFunc func(ctx context.Context, path string) ([]Observation, error)

// DetectFile calls f.
func (f DetectorFunc) DetectFile(ctx context.Context, path string) ([]Observation, error) {
	return f(ctx, path)
}

// GlobImages returns the sorted files matching pattern. No match is an error.
func GlobImages(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "bad image pattern %q", pattern)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images match %q", pattern)
	}
	sort.Strings(files)
	return files, nil
}
