// Package scenereconstruction locates ArUco marker corners in 3D from photographs taken by
// a calibrated camera, starting from a few known point locations.
package scenereconstruction

import (
	"context"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/opencsp/opencsp-go/logging"
	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// Options tune the reconstruction loop.
type Options struct {
	// MinPointsPerImage is the number of located points an image must see to be located.
	MinPointsPerImage int
	// RefineIterations bounds the alternating refinement passes.
	RefineIterations int
	// RefineTolerance stops refinement once the mean reprojection error improves by less.
	RefineTolerance float64
}

// DefaultOptions returns the default loop settings.
func DefaultOptions() Options {
	return Options{MinPointsPerImage: 4, RefineIterations: 10, RefineTolerance: 1e-6}
}

// PointLocation is a located marker corner.
type PointLocation struct {
	MarkerID int
	PointID  int
	XYZ      r3.Vector
}

// SceneReconstruction holds the state of one reconstruction.
type SceneReconstruction struct {
	cam    *transform.Camera
	opts   Options
	logger logging.Logger

	known  map[int]r3.Vector
	images []aruco.ImageObservations
	imgPts []map[int]r2.Point

	points map[int]r3.Vector
	// poses are world-to-camera; nil until the image is located.
	poses []*spatialmath.Pose
	ran   bool
}

// New prepares a reconstruction. known maps point ids to fixed world locations.
func New(
	cam *transform.Camera,
	known map[int]r3.Vector,
	images []aruco.ImageObservations,
	opts Options,
	logger logging.Logger,
) (*SceneReconstruction, error) {
	if cam == nil {
		return nil, spatialmath.NewDomainError("scene reconstruction needs a camera")
	}
	if len(known) == 0 {
		return nil, spatialmath.NewDomainError("scene reconstruction needs known point locations")
	}
	if len(images) == 0 {
		return nil, spatialmath.NewDomainError("scene reconstruction needs at least one image")
	}
	def := DefaultOptions()
	if opts.MinPointsPerImage < transform.MinPnPPoints {
		opts.MinPointsPerImage = def.MinPointsPerImage
	}
	if opts.RefineIterations < 0 {
		opts.RefineIterations = 0
	}
	sr := &SceneReconstruction{
		cam:    cam,
		opts:   opts,
		logger: logger,
		known:  make(map[int]r3.Vector, len(known)),
		images: images,
		imgPts: make([]map[int]r2.Point, len(images)),
		points: make(map[int]r3.Vector, len(known)),
		poses:  make([]*spatialmath.Pose, len(images)),
	}
	for id, p := range known {
		sr.known[id] = p
		sr.points[id] = p
	}
	for i, img := range images {
		sr.imgPts[i] = img.Points()
	}
	return sr, nil
}

// RunCalibration locates every image and point reachable from the known points, then
// refines them by alternating pose and point solves.
func (sr *SceneReconstruction) RunCalibration(ctx context.Context) error {
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		newImages, err := sr.locateImages()
		if err != nil {
			return err
		}
		newPoints := sr.triangulatePoints()
		sr.logger.CDebugf(ctx, "pass %d: located %d images and %d points", pass, newImages, newPoints)
		if newImages == 0 && newPoints == 0 {
			break
		}
	}

	located := lo.CountBy(sr.poses, func(p *spatialmath.Pose) bool { return p != nil })
	if located == 0 {
		return errors.Errorf("no image sees %d known points", sr.opts.MinPointsPerImage)
	}
	for i, p := range sr.poses {
		if p == nil {
			sr.logger.Warnw("image could not be located", "image", sr.images[i].Name)
		}
	}
	if missing := sr.unlocatedPointIDs(); len(missing) > 0 {
		sr.logger.Warnw("points could not be located", "point_ids", missing)
	}

	if err := sr.refine(ctx); err != nil {
		return err
	}
	sr.ran = true
	sr.logger.Infow("scene reconstruction complete",
		"images_located", located, "images", len(sr.images), "points", len(sr.points))
	return nil
}

func (sr *SceneReconstruction) visiblePoints(i int) ([]int, spatialmath.Vxyz, spatialmath.Vxy) {
	ids := lo.Filter(sortedKeys(sr.imgPts[i]), func(id, _ int) bool {
		_, ok := sr.points[id]
		return ok
	})
	obj := make(spatialmath.Vxyz, len(ids))
	img := make(spatialmath.Vxy, len(ids))
	for k, id := range ids {
		obj[k] = sr.points[id]
		img[k] = sr.imgPts[i][id]
	}
	return ids, obj, img
}

func (sr *SceneReconstruction) locateImages() (int, error) {
	var count int
	for i := range sr.images {
		if sr.poses[i] != nil {
			continue
		}
		ids, obj, img := sr.visiblePoints(i)
		if len(ids) < sr.opts.MinPointsPerImage {
			continue
		}
		pose, err := transform.SolvePnP(sr.cam, obj, img, nil)
		if err != nil {
			if errors.Is(err, spatialmath.ErrDomain) {
				sr.logger.Debugw("image pose failed", "image", sr.images[i].Name, "error", err)
				continue
			}
			return count, err
		}
		sr.poses[i] = &pose
		count++
	}
	return count, nil
}

// rays returns the rays from located images that see id.
func (sr *SceneReconstruction) rays(id int) []transform.Ray {
	var rays []transform.Ray
	for i, pose := range sr.poses {
		if pose == nil {
			continue
		}
		if px, ok := sr.imgPts[i][id]; ok {
			rays = append(rays, transform.RayFromPixel(sr.cam, *pose, px))
		}
	}
	return rays
}

func (sr *SceneReconstruction) allPointIDs() []int {
	ids := map[int]struct{}{}
	for _, pts := range sr.imgPts {
		for id := range pts {
			ids[id] = struct{}{}
		}
	}
	return sortedKeys(ids)
}

func (sr *SceneReconstruction) unlocatedPointIDs() []int {
	return lo.Filter(sr.allPointIDs(), func(id, _ int) bool {
		_, ok := sr.points[id]
		return !ok
	})
}

func (sr *SceneReconstruction) triangulatePoints() int {
	var count int
	for _, id := range sr.unlocatedPointIDs() {
		rays := sr.rays(id)
		if len(rays) < 2 {
			continue
		}
		p, err := transform.TriangulateRays(rays)
		if err != nil {
			continue
		}
		sr.points[id] = p
		count++
	}
	return count
}

func (sr *SceneReconstruction) refine(ctx context.Context) error {
	prev, err := sr.meanReprojectionError()
	if err != nil {
		return err
	}
	for iter := 1; iter <= sr.opts.RefineIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, pose := range sr.poses {
			if pose == nil {
				continue
			}
			_, obj, img := sr.visiblePoints(i)
			next, err := transform.RefinePose(sr.cam, obj, img, *pose)
			if err != nil {
				return errors.Wrapf(err, "refining pose of %s", sr.images[i].Name)
			}
			sr.poses[i] = &next
		}
		for _, id := range sortedKeys(sr.points) {
			if _, fixed := sr.known[id]; fixed {
				continue
			}
			rays := sr.rays(id)
			if len(rays) < 2 {
				continue
			}
			if p, err := transform.TriangulateRays(rays); err == nil {
				sr.points[id] = p
			}
		}
		cur, err := sr.meanReprojectionError()
		if err != nil {
			return err
		}
		sr.logger.CDebugf(ctx, "refinement %d: mean reprojection error %.5f px", iter, cur)
		if prev-cur < sr.opts.RefineTolerance {
			break
		}
		prev = cur
	}
	return nil
}

// imageErrors returns the pixel error of every located point seen in image i.
func (sr *SceneReconstruction) imageErrors(i int) ([]float64, error) {
	pose := sr.poses[i]
	if pose == nil {
		return nil, nil
	}
	_, obj, img := sr.visiblePoints(i)
	proj, err := sr.cam.Project(obj, *pose)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(proj))
	for k := range proj {
		out[k] = proj[k].Sub(img[k]).Norm()
	}
	return out, nil
}

func (sr *SceneReconstruction) meanReprojectionError() (float64, error) {
	var all []float64
	for i := range sr.images {
		errs, err := sr.imageErrors(i)
		if err != nil {
			return 0, err
		}
		all = append(all, errs...)
	}
	if len(all) == 0 {
		return math.Inf(1), nil
	}
	return stat.Mean(all, nil), nil
}

// ScalePoints rescales the scene so the distances between point pairs best match the
// measured distances in the least squares sense. It returns the scale applied.
func (sr *SceneReconstruction) ScalePoints(pairs [][2]int, distances []float64) (float64, error) {
	if len(pairs) != len(distances) {
		return 0, spatialmath.NewInputMismatchError("point pair and distance counts", len(pairs), len(distances))
	}
	if len(pairs) == 0 {
		return 0, spatialmath.NewDomainError("scaling needs at least one point pair")
	}
	var num, den float64
	for k, pair := range pairs {
		a, okA := sr.points[pair[0]]
		b, okB := sr.points[pair[1]]
		if !okA || !okB {
			return 0, spatialmath.NewDomainError("point pair %v is not located", pair)
		}
		m := a.Sub(b).Norm()
		num += m * distances[k]
		den += m * m
	}
	if den == 0 {
		return 0, spatialmath.NewDomainError("point pairs have zero length")
	}
	scale := num / den
	sr.applySimilarity(spatialmath.NewZeroPose(), scale)
	sr.logger.Infow("scaled points", "scale", scale)
	return scale, nil
}

// AlignPoints moves the scene rigidly so the given markers best match targets. Each marker
// is placed by its origin corner (corner 0).
func (sr *SceneReconstruction) AlignPoints(markerIDs []int, targets spatialmath.Vxyz) error {
	_, err := sr.align(markerIDs, targets, false)
	return err
}

// AlignPointsWithScale aligns markers like AlignPoints and also rescales. It returns the
// scale.
func (sr *SceneReconstruction) AlignPointsWithScale(markerIDs []int, targets spatialmath.Vxyz) (float64, error) {
	return sr.align(markerIDs, targets, true)
}

func (sr *SceneReconstruction) align(markerIDs []int, targets spatialmath.Vxyz, withScale bool) (float64, error) {
	if len(markerIDs) != len(targets) {
		return 0, spatialmath.NewInputMismatchError("alignment marker and target counts", len(markerIDs), len(targets))
	}
	src := make(spatialmath.Vxyz, len(markerIDs))
	for k, markerID := range markerIDs {
		p, ok := sr.points[aruco.PointID(markerID, 0)]
		if !ok {
			return 0, spatialmath.NewDomainError("origin corner of alignment marker %d is not located", markerID)
		}
		src[k] = p
	}
	pose, scale, err := spatialmath.RigidTransformFromPoints(src, targets, withScale)
	if err != nil {
		return 0, err
	}
	sr.applySimilarity(pose, scale)
	sr.logger.Infow("aligned points", "pose", pose.String(), "scale", scale)
	return scale, nil
}

// applySimilarity maps every point through scale·R·p + t and keeps the camera poses
// consistent with the moved points.
func (sr *SceneReconstruction) applySimilarity(pose spatialmath.Pose, scale float64) {
	rot := pose.Rotation
	if rot == nil {
		rot = spatialmath.Identity()
	}
	for id, p := range sr.points {
		sr.points[id] = rot.Apply(p).Mul(scale).Add(pose.Translation)
	}
	for id, p := range sr.known {
		sr.known[id] = rot.Apply(p).Mul(scale).Add(pose.Translation)
	}
	rt := rot.Transpose()
	for i, cp := range sr.poses {
		if cp == nil {
			continue
		}
		camRot := cp.Rotation.Mul(rt)
		next := spatialmath.NewPose(camRot, cp.Translation.Mul(scale).Sub(camRot.Apply(pose.Translation)))
		sr.poses[i] = &next
	}
}

// Data returns the located points sorted by point id.
func (sr *SceneReconstruction) Data() []PointLocation {
	ids := sortedKeys(sr.points)
	return lo.Map(ids, func(id, _ int) PointLocation {
		return PointLocation{MarkerID: aruco.MarkerID(id), PointID: id, XYZ: sr.points[id]}
	})
}

// ImagePose is the located world-to-camera pose of an image.
type ImagePose struct {
	Name string
	Pose spatialmath.Pose
}

// CameraPoses returns the poses of the located images in input order.
func (sr *SceneReconstruction) CameraPoses() []ImagePose {
	var out []ImagePose
	for i, p := range sr.poses {
		if p != nil {
			out = append(out, ImagePose{Name: sr.images[i].Name, Pose: *p})
		}
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return keys
}
