package scenereconstruction

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/opencsp/opencsp-go/logging"
	"github.com/opencsp/opencsp-go/pointcloud"
	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/utils"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// PointLocationsHeader is the header row of saved point locations.
var PointLocationsHeader = []string{"Marker ID", "Point ID", "x", "y", "z"}

// LoadKnownPointLocations reads "point id, x, y, z" rows.
func LoadKnownPointLocations(path string) (map[int]r3.Vector, error) {
	rows, err := utils.ReadNumericCSVFile(path, 4)
	if err != nil {
		return nil, err
	}
	out := make(map[int]r3.Vector, len(rows))
	for _, row := range rows {
		out[int(row[0])] = r3.Vector{X: row[1], Y: row[2], Z: row[3]}
	}
	return out, nil
}

// LoadPointPairDistances reads "point id, point id, distance" rows.
func LoadPointPairDistances(path string) ([][2]int, []float64, error) {
	rows, err := utils.ReadNumericCSVFile(path, 3)
	if err != nil {
		return nil, nil, err
	}
	pairs := make([][2]int, len(rows))
	dists := make([]float64, len(rows))
	for i, row := range rows {
		pairs[i] = [2]int{int(row[0]), int(row[1])}
		dists[i] = row[2]
	}
	return pairs, dists, nil
}

// LoadAlignmentPoints reads "marker id, x, y, z" rows in file order, as taken by
// AlignPoints.
func LoadAlignmentPoints(path string) ([]int, spatialmath.Vxyz, error) {
	return loadIDPoints(path)
}

// LoadScreenCalPoints reads "point id, x, y, z" rows in file order: located corners and
// where they sit in the screen frame.
func LoadScreenCalPoints(path string) ([]int, spatialmath.Vxyz, error) {
	return loadIDPoints(path)
}

func loadIDPoints(path string) ([]int, spatialmath.Vxyz, error) {
	rows, err := utils.ReadNumericCSVFile(path, 4)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int, len(rows))
	pts := make(spatialmath.Vxyz, len(rows))
	for i, row := range rows {
		ids[i] = int(row[0])
		pts[i] = r3.Vector{X: row[1], Y: row[2], Z: row[3]}
	}
	return ids, pts, nil
}

// WritePointLocations writes located points under PointLocationsHeader.
func WritePointLocations(w io.Writer, locs []PointLocation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PointLocationsHeader); err != nil {
		return err
	}
	for _, l := range locs {
		if err := cw.Write([]string{
			strconv.Itoa(l.MarkerID),
			strconv.Itoa(l.PointID),
			strconv.FormatFloat(l.XYZ.X, 'f', -1, 64),
			strconv.FormatFloat(l.XYZ.Y, 'f', -1, 64),
			strconv.FormatFloat(l.XYZ.Z, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadPointLocations reads a file written by SaveCSV.
func LoadPointLocations(path string) ([]PointLocation, error) {
	rows, err := utils.ReadNumericCSVFile(path, 5)
	if err != nil {
		return nil, err
	}
	out := make([]PointLocation, len(rows))
	for i, row := range rows {
		out[i] = PointLocation{MarkerID: int(row[0]), PointID: int(row[1]), XYZ: r3.Vector{X: row[2], Y: row[3], Z: row[4]}}
	}
	return out, nil
}

// SaveCSV writes the located points to path.
func (sr *SceneReconstruction) SaveCSV(path string) (err error) {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WritePointLocations(f, sr.Data())
}

// Cloud returns the located points labeled with their point ids.
func (sr *SceneReconstruction) Cloud() (pointcloud.PointCloud, error) {
	data := sr.Data()
	pts := make(spatialmath.Vxyz, len(data))
	labels := make([]int, len(data))
	for i, d := range data {
		pts[i] = d.XYZ
		labels[i] = d.PointID
	}
	return pointcloud.NewFromPoints(pts, labels)
}

// ImageSummary is the reprojection error of one image.
type ImageSummary struct {
	Name      string
	Located   bool
	NumPoints int
	MeanError float64
}

// Summary describes the reprojection errors of a finished reconstruction.
type Summary struct {
	Images          []ImageSummary
	NumPoints       int
	MeanError       float64
	MedianError     float64
	Percentile95    float64
	UnlocatedPoints []int
}

// Summary computes reprojection error statistics over every located image.
func (sr *SceneReconstruction) Summary() (*Summary, error) {
	if !sr.ran {
		return nil, errors.New("scene reconstruction has not run")
	}
	sum := &Summary{NumPoints: len(sr.points), UnlocatedPoints: sr.unlocatedPointIDs()}
	var all stats.Float64Data
	for i, img := range sr.images {
		errs, err := sr.imageErrors(i)
		if err != nil {
			return nil, err
		}
		is := ImageSummary{Name: img.Name, Located: sr.poses[i] != nil, NumPoints: len(errs)}
		if len(errs) > 0 {
			is.MeanError, _ = stats.Mean(errs)
		}
		sum.Images = append(sum.Images, is)
		all = append(all, errs...)
	}
	var err error
	if sum.MeanError, err = all.Mean(); err != nil {
		return nil, errors.Wrap(err, "no reprojection errors")
	}
	if sum.MedianError, err = all.Median(); err != nil {
		return nil, err
	}
	if sum.Percentile95, err = all.Percentile(95); err != nil {
		return nil, err
	}
	return sum, nil
}

// DetectMarkersInImages runs detector on every image matching pattern in parallel. Images
// that fail or show no markers are logged and left out; it fails only when no image has
// markers.
func DetectMarkersInImages(
	ctx context.Context, detector aruco.Detector, pattern string, logger logging.Logger,
) ([]aruco.ImageObservations, error) {
	files, err := aruco.GlobImages(pattern)
	if err != nil {
		return nil, err
	}
	results := make([]aruco.ImageObservations, len(files))
	var mu sync.Mutex
	var failures error
	fs := make([]utils.SimpleFunc, len(files))
	for i, file := range files {
		i, file := i, file
		fs[i] = func(ctx context.Context) error {
			obs, err := detector.DetectFile(ctx, file)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failures = multierr.Append(failures, errors.Wrapf(err, "detecting markers in %s", file))
				mu.Unlock()
				return nil
			}
			results[i] = aruco.ImageObservations{Name: file, Markers: obs}
			return nil
		}
	}
	if _, err := utils.RunInParallel(ctx, fs); err != nil {
		return nil, err
	}
	for _, failure := range multierr.Errors(failures) {
		logger.Warnw("skipping image", "error", failure)
	}

	var out []aruco.ImageObservations
	for _, r := range results {
		if len(r.Markers) == 0 {
			if r.Name != "" {
				logger.Warnw("no markers found", "image", r.Name)
			}
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no markers found in any image matching %q", pattern)
	}
	logger.Infow("detected markers", "images", len(out), "of", len(files))
	return out, nil
}
