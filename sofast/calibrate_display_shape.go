// Package sofast calibrates the 3D shape of a display from photographs of fringe patterns
// shown on it.
package sofast

import (
	"context"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/opencsp/opencsp-go/deflectometry"
	"github.com/opencsp/opencsp-go/logging"
	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/utils"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// ScreenShapeCapture is one photograph session of the display from a fixed camera pose.
type ScreenShapeCapture struct {
	Name    string
	Markers []aruco.Observation
	Phase   *deflectometry.PhaseMap
}

// ScreenCalPointPair ties a located marker corner to its position in the screen frame.
type ScreenCalPointPair struct {
	PointID   int
	ScreenXYZ r3.Vector
}

// DataInput is everything a display calibration needs.
type DataInput struct {
	// PointIDs and PointsXYZ are the located marker corners in the world frame.
	PointIDs            []int
	PointsXYZ           spatialmath.Vxyz
	ScreenCalPointPairs []ScreenCalPointPair
	// ResolutionXY is the number of screen samples along x and y.
	ResolutionXY [2]int
	Camera       *transform.Camera
	Captures     []ScreenShapeCapture
	PoseSolver   deflectometry.PoseSolverOptions
	// MaxReprojectionError rejects captures whose pose fits worse, in pixels. Zero disables.
	MaxReprojectionError float64
}

// CaptureResult reports how a capture was used.
type CaptureResult struct {
	Name              string
	Used              bool
	Pose              spatialmath.Pose
	ReprojectionError float64
	Samples           int
	Reason            string
}

// CalibrateDisplayShape triangulates screen samples seen from several captures.
type CalibrateDisplayShape struct {
	in     DataInput
	logger logging.Logger
	points map[int]r3.Vector

	results   []CaptureResult
	fractions spatialmath.Vxy
	coords    spatialmath.Vxyz
}

// NewCalibrateDisplayShape checks in and prepares a calibration.
func NewCalibrateDisplayShape(in DataInput, logger logging.Logger) (*CalibrateDisplayShape, error) {
	if in.Camera == nil {
		return nil, spatialmath.NewDomainError("display calibration needs a camera")
	}
	if len(in.PointIDs) != len(in.PointsXYZ) {
		return nil, spatialmath.NewInputMismatchError("point id and location counts", len(in.PointIDs), len(in.PointsXYZ))
	}
	if in.ResolutionXY[0] < 2 || in.ResolutionXY[1] < 2 {
		return nil, spatialmath.NewDomainError("screen resolution must be at least 2x2, got %v", in.ResolutionXY)
	}
	if len(in.Captures) == 0 {
		return nil, spatialmath.NewDomainError("display calibration needs at least one capture")
	}
	for _, c := range in.Captures {
		if c.Phase == nil {
			return nil, spatialmath.NewDomainError("capture %q has no phase map", c.Name)
		}
	}
	points := make(map[int]r3.Vector, len(in.PointIDs))
	for i, id := range in.PointIDs {
		points[id] = in.PointsXYZ[i]
	}
	return &CalibrateDisplayShape{in: in, logger: logger, points: points}, nil
}

// barycentricTolerance keeps samples on shared triangle edges.
const barycentricTolerance = 1e-12

type captureRays struct {
	result CaptureResult
	rays   map[int]transform.Ray
}

// Run locates every capture and triangulates the screen samples seen by at least two.
func (c *CalibrateDisplayShape) Run(ctx context.Context) error {
	out := make([]captureRays, len(c.in.Captures))
	group, gctx := errgroup.WithContext(ctx)
	for i := range c.in.Captures {
		i := i
		group.Go(func() error {
			cr, err := c.processCapture(gctx, c.in.Captures[i])
			if err != nil {
				return errors.Wrapf(err, "capture %q", c.in.Captures[i].Name)
			}
			out[i] = cr
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// merged in capture order
	perSample := map[int][]transform.Ray{}
	c.results = make([]CaptureResult, len(out))
	for i, cr := range out {
		c.results[i] = cr.result
		if !cr.result.Used {
			c.logger.Warnw("skipping capture", "capture", cr.result.Name, "reason", cr.result.Reason)
			continue
		}
		for _, key := range sortedKeys(cr.rays) {
			perSample[key] = append(perSample[key], cr.rays[key])
		}
	}

	nx := c.in.ResolutionXY[0]
	xs := utils.Linspace(0, 1, nx)
	ys := utils.Linspace(0, 1, c.in.ResolutionXY[1])
	c.fractions, c.coords = nil, nil
	for _, key := range sortedKeys(perSample) {
		rays := perSample[key]
		if len(rays) < 2 {
			continue
		}
		p, err := transform.TriangulateRays(rays)
		if err != nil {
			continue
		}
		c.fractions = append(c.fractions, r2.Point{X: xs[key%nx], Y: ys[key/nx]})
		c.coords = append(c.coords, p)
	}
	if len(c.coords) == 0 {
		return errors.New("no screen sample was seen by two usable captures")
	}

	if len(c.in.ScreenCalPointPairs) > 0 {
		if err := c.alignToScreen(); err != nil {
			return err
		}
	}
	c.logger.Infow("display shape calibrated", "samples", len(c.coords),
		"captures_used", lo.CountBy(c.results, func(r CaptureResult) bool { return r.Used }))
	return nil
}

func (c *CalibrateDisplayShape) processCapture(ctx context.Context, capture ScreenShapeCapture) (captureRays, error) {
	res := captureRays{result: CaptureResult{Name: capture.Name}}
	var obj spatialmath.Vxyz
	var img spatialmath.Vxy
	for _, m := range capture.Markers {
		for corner, px := range m.Corners {
			if p, ok := c.points[aruco.PointID(m.MarkerID, corner)]; ok {
				obj = append(obj, p)
				img = append(img, px)
			}
		}
	}
	if len(obj) < transform.MinPnPPoints {
		res.result.Reason = "too few located markers"
		return res, nil
	}
	solver := deflectometry.NewPoseSolver(c.in.PoseSolver, c.logger.Sublogger(capture.Name))
	pose, err := solver.Solve(ctx, deflectometry.PoseProblem{Camera: c.in.Camera, CornersOptic: obj, CornersImage: img})
	if err != nil {
		if errors.Is(err, spatialmath.ErrDomain) {
			res.result.Reason = err.Error()
			return res, nil
		}
		return res, err
	}
	res.result.Pose = pose.Pose
	res.result.ReprojectionError = pose.ReprojectionError
	if !pose.Converged {
		res.result.Reason = "camera pose did not converge"
		return res, nil
	}
	if c.in.MaxReprojectionError > 0 && pose.ReprojectionError > c.in.MaxReprojectionError {
		res.result.Reason = "camera pose reprojection error too large"
		return res, nil
	}

	samples := InversePhaseMap(capture.Phase, c.in.ResolutionXY)
	res.rays = make(map[int]transform.Ray, len(samples))
	for key, px := range samples {
		res.rays[key] = transform.RayFromPixel(c.in.Camera, pose.Pose, px)
	}
	res.result.Used = true
	res.result.Samples = len(samples)
	return res, ctx.Err()
}

// InversePhaseMap finds the camera pixel showing each screen sample. Samples are keyed
// j*nx + i for the fractions (i/(nx-1), j/(ny-1)). Pixels are linearly interpolated inside
// triangles of neighboring valid pixels; a sample covered twice keeps the first triangle
// in raster order.
func InversePhaseMap(pm *deflectometry.PhaseMap, resolution [2]int) map[int]r2.Point {
	nx, ny := resolution[0], resolution[1]
	out := map[int]r2.Point{}
	vertex := func(x, y int) (r2.Point, r2.Point, bool) {
		if !pm.Valid(x, y) {
			return r2.Point{}, r2.Point{}, false
		}
		fx, fy := pm.Fraction(x, y)
		return r2.Point{X: fx, Y: fy}, r2.Point{X: float64(x), Y: float64(y)}, true
	}
	for y := 0; y+1 < pm.Height; y++ {
		for x := 0; x+1 < pm.Width; x++ {
			f00, p00, ok00 := vertex(x, y)
			f10, p10, ok10 := vertex(x+1, y)
			f01, p01, ok01 := vertex(x, y+1)
			f11, p11, ok11 := vertex(x+1, y+1)
			if ok00 && ok10 && ok01 {
				fillTriangle(out, nx, ny, [3]r2.Point{f00, f10, f01}, [3]r2.Point{p00, p10, p01})
			}
			if ok10 && ok11 && ok01 {
				fillTriangle(out, nx, ny, [3]r2.Point{f10, f11, f01}, [3]r2.Point{p10, p11, p01})
			}
		}
	}
	return out
}

func fillTriangle(out map[int]r2.Point, nx, ny int, f, px [3]r2.Point) {
	tri, err := spatialmath.NewTriangleXY(f[0], f[1], f[2])
	if err != nil {
		return
	}
	lo, hi := tri.Bounds()
	i0 := int(math.Max(0, math.Ceil(lo.X*float64(nx-1))))
	i1 := int(math.Min(float64(nx-1), math.Floor(hi.X*float64(nx-1))))
	j0 := int(math.Max(0, math.Ceil(lo.Y*float64(ny-1))))
	j1 := int(math.Min(float64(ny-1), math.Floor(hi.Y*float64(ny-1))))
	for j := j0; j <= j1; j++ {
		for i := i0; i <= i1; i++ {
			key := j*nx + i
			if _, done := out[key]; done {
				continue
			}
			s := r2.Point{X: float64(i) / float64(nx-1), Y: float64(j) / float64(ny-1)}
			if !tri.Contains(s, barycentricTolerance) {
				continue
			}
			out[key] = spatialmath.InterpolateXY(tri.Barycentric(s), px)
		}
	}
}

// alignToScreen moves the result from the world frame into the screen frame.
func (c *CalibrateDisplayShape) alignToScreen() error {
	src := make(spatialmath.Vxyz, len(c.in.ScreenCalPointPairs))
	dst := make(spatialmath.Vxyz, len(c.in.ScreenCalPointPairs))
	for k, pair := range c.in.ScreenCalPointPairs {
		p, ok := c.points[pair.PointID]
		if !ok {
			return spatialmath.NewDomainError("screen calibration point %d is not located", pair.PointID)
		}
		src[k] = p
		dst[k] = pair.ScreenXYZ
	}
	pose, _, err := spatialmath.RigidTransformFromPoints(src, dst, false)
	if err != nil {
		return errors.Wrap(err, "aligning to the screen frame")
	}
	c.coords = pose.TransformAll(c.coords)
	return nil
}

// Data returns the calibrated screen fractions and 3D points, ordered by sample.
func (c *CalibrateDisplayShape) Data() (spatialmath.Vxy, spatialmath.Vxyz) {
	return c.fractions.Copy(), c.coords.Copy()
}

// CaptureResults reports how each capture was used, in input order.
func (c *CalibrateDisplayShape) CaptureResults() []CaptureResult {
	return append([]CaptureResult(nil), c.results...)
}

// AsDisplayShape packages the result as a display shape artifact.
func (c *CalibrateDisplayShape) AsDisplayShape(name string) (*deflectometry.DisplayShape, error) {
	if len(c.coords) == 0 {
		return nil, errors.New("display calibration has not produced any points")
	}
	return deflectometry.NewDisplayShape(name, c.fractions, c.coords, c.in.ResolutionXY)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return keys
}
