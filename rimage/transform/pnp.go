package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/utils"
)

const (
	// MinPnPPoints is the fewest correspondences SolvePnP accepts.
	MinPnPPoints = 4
	// minDLTPoints is the fewest correspondences for a non-planar DLT initialization.
	minDLTPoints = 6
	// planarityTolerance is the ratio of smallest to largest spread below which a target is planar.
	planarityTolerance = 1e-6
)

// PnPResult is a refined pose and how the refinement ended.
type PnPResult struct {
	Pose spatialmath.Pose
	// Converged is false when refinement ran out of iterations before settling.
	Converged  bool
	Iterations int
}

// SolvePnP returns the object-to-camera pose that best reprojects obj onto img. When init is
// nil an initial guess comes from a homography (planar targets) or a DLT (non-planar targets);
// the guess is refined with Levenberg-Marquardt on the pixel residuals.
func SolvePnP(cam *Camera, obj spatialmath.Vxyz, img spatialmath.Vxy, init *spatialmath.Pose) (spatialmath.Pose, error) {
	res, err := SolvePnPDetailed(cam, obj, img, init)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return res.Pose, nil
}

// SolvePnPDetailed is SolvePnP that also reports whether the refinement converged.
func SolvePnPDetailed(cam *Camera, obj spatialmath.Vxyz, img spatialmath.Vxy, init *spatialmath.Pose) (PnPResult, error) {
	if len(obj) != len(img) {
		return PnPResult{}, spatialmath.NewInputMismatchError("object and image point counts", len(obj), len(img))
	}
	if len(obj) < MinPnPPoints {
		return PnPResult{}, spatialmath.NewDomainError("pose estimation needs at least %d points, got %d", MinPnPPoints, len(obj))
	}

	var guess spatialmath.Pose
	if init != nil {
		guess = *init
	} else {
		rays := make([]r2.Point, len(img))
		for i, px := range img {
			v := cam.VectorFromPixel(px)
			rays[i] = r2.Point{X: v.X / v.Z, Y: v.Y / v.Z}
		}
		var err error
		guess, err = InitialPose(obj, rays)
		if err != nil {
			return PnPResult{}, err
		}
	}
	return RefinePoseDetailed(cam, obj, img, guess)
}

// RefinePose minimizes the squared pixel reprojection error of the pose starting at guess.
func RefinePose(cam *Camera, obj spatialmath.Vxyz, img spatialmath.Vxy, guess spatialmath.Pose) (spatialmath.Pose, error) {
	res, err := RefinePoseDetailed(cam, obj, img, guess)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return res.Pose, nil
}

// RefinePoseDetailed is RefinePose that also reports whether the refinement converged.
func RefinePoseDetailed(cam *Camera, obj spatialmath.Vxyz, img spatialmath.Vxy, guess spatialmath.Pose) (PnPResult, error) {
	if len(obj) != len(img) {
		return PnPResult{}, spatialmath.NewInputMismatchError("object and image point counts", len(obj), len(img))
	}
	problem := utils.LeastSquaresProblem{
		NumResiduals: 2 * len(obj),
		Residuals: func(dst, x []float64) {
			pose := spatialmath.NewPoseFromRotVec(r3.Vector{X: x[0], Y: x[1], Z: x[2]}, r3.Vector{X: x[3], Y: x[4], Z: x[5]})
			for i, p := range obj {
				px := cam.projectNoCheck(pose.Transform(p))
				dst[2*i] = px.X - img[i].X
				dst[2*i+1] = px.Y - img[i].Y
			}
		},
	}
	res, err := utils.LevenbergMarquardt(problem, guess.Vector(), nil)
	if err != nil {
		return PnPResult{}, errors.Wrap(err, "pose refinement failed")
	}
	pose, err := spatialmath.NewPoseFromVector(res.X)
	if err != nil {
		return PnPResult{}, err
	}
	return PnPResult{Pose: pose, Converged: res.Converged, Iterations: res.Iterations}, nil
}

// InitialPose estimates the object-to-camera pose from object points and their undistorted
// normalized image coordinates.
func InitialPose(obj spatialmath.Vxyz, normalized []r2.Point) (spatialmath.Pose, error) {
	if len(obj) != len(normalized) {
		return spatialmath.Pose{}, spatialmath.NewInputMismatchError("object and image point counts", len(obj), len(normalized))
	}
	if len(obj) < MinPnPPoints {
		return spatialmath.Pose{}, spatialmath.NewDomainError("pose estimation needs at least %d points, got %d", MinPnPPoints, len(obj))
	}
	basis, centroid, planar, err := principalFrame(obj)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	if planar {
		return planarPose(obj, normalized, basis, centroid)
	}
	if len(obj) < minDLTPoints {
		return spatialmath.Pose{}, spatialmath.NewDomainError(
			"non-planar pose initialization needs at least %d points, got %d", minDLTPoints, len(obj))
	}
	return dltPose(obj, normalized)
}

// principalFrame returns the rotation whose columns are the principal axes of pts (largest
// spread first), their centroid, and whether the points lie on a plane.
func principalFrame(pts spatialmath.Vxyz) (*spatialmath.RotationMatrix, r3.Vector, bool, error) {
	centroid, err := pts.Centroid()
	if err != nil {
		return nil, r3.Vector{}, false, err
	}
	cov := mat.NewSymDense(3, nil)
	for _, p := range pts {
		d := []float64{p.X - centroid.X, p.Y - centroid.Y, p.Z - centroid.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+d[i]*d[j])
			}
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, r3.Vector{}, false, spatialmath.NewDomainError("eigen decomposition of target points failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// eigenvalues are ascending
	if vals[2] <= 0 || vals[1] <= planarityTolerance*vals[2] {
		return nil, r3.Vector{}, false, spatialmath.NewDomainError("target points are collinear or coincident")
	}
	x := r3.Vector{X: vecs.At(0, 2), Y: vecs.At(1, 2), Z: vecs.At(2, 2)}
	y := r3.Vector{X: vecs.At(0, 1), Y: vecs.At(1, 1), Z: vecs.At(2, 1)}
	z := x.Cross(y).Normalize()
	basis, err := spatialmath.NewRotationFromAxes(x, y, z)
	if err != nil {
		return nil, r3.Vector{}, false, err
	}
	return basis, centroid, math.Sqrt(math.Max(vals[0], 0)) <= planarityTolerance*math.Sqrt(vals[2]), nil
}

// planarPose decomposes the homography between the target plane and the normalized image.
func planarPose(
	obj spatialmath.Vxyz, normalized []r2.Point, basis *spatialmath.RotationMatrix, centroid r3.Vector,
) (spatialmath.Pose, error) {
	toPlane := spatialmath.NewPose(basis.Transpose(), basis.Transpose().Apply(centroid).Mul(-1))
	planePts := make([]r2.Point, len(obj))
	for i, p := range obj {
		q := toPlane.Transform(p)
		planePts[i] = r2.Point{X: q.X, Y: q.Y}
	}
	h, err := EstimateHomographyDLT(planePts, normalized)
	if err != nil {
		return spatialmath.Pose{}, err
	}

	h1 := r3.Vector{X: h.At(0, 0), Y: h.At(1, 0), Z: h.At(2, 0)}
	h2 := r3.Vector{X: h.At(0, 1), Y: h.At(1, 1), Z: h.At(2, 1)}
	h3 := r3.Vector{X: h.At(0, 2), Y: h.At(1, 2), Z: h.At(2, 2)}
	lambda := 2 / (h1.Norm() + h2.Norm())
	// the plane origin must be in front of the camera
	if h3.Z < 0 {
		lambda = -lambda
	}
	r1 := h1.Mul(lambda)
	r2v := h2.Mul(lambda)
	t := h3.Mul(lambda)
	r3v := r1.Cross(r2v)
	approx := mat.NewDense(3, 3, []float64{
		r1.X, r2v.X, r3v.X,
		r1.Y, r2v.Y, r3v.Y,
		r1.Z, r2v.Z, r3v.Z,
	})
	rot, err := spatialmath.NewRotationMatrixFromDense(approx)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.NewPose(rot, t).Compose(toPlane), nil
}

// EstimateHomographyDLT returns the 3x3 homography H with dst ~ H·src using the normalized
// direct linear transform. At least four pairs are needed.
func EstimateHomographyDLT(src, dst []r2.Point) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, spatialmath.NewInputMismatchError("homography point counts", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, spatialmath.NewDomainError("homography needs at least 4 points, got %d", len(src))
	}
	s, ts := normalizePoints(src)
	d, td := normalizePoints(dst)
	a := mat.NewDense(2*len(s), 9, nil)
	for i := range s {
		x, y := s[i].X, s[i].Y
		u, v := d[i].X, d[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	hv, ok := nullVector(a)
	if !ok {
		return nil, spatialmath.NewDomainError("failed to factorize homography system")
	}
	hn := mat.NewDense(3, 3, hv)
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return nil, spatialmath.NewDomainError("degenerate homography normalization")
	}
	var h mat.Dense
	h.Mul(&tdInv, hn)
	h.Mul(&h, ts)
	if hz := h.At(2, 2); hz != 0 {
		h.Scale(1/hz, &h)
	}
	return &h, nil
}

// dltPose estimates the 3x4 projection [R|t] of a non-planar target with the normalized DLT.
func dltPose(obj spatialmath.Vxyz, normalized []r2.Point) (spatialmath.Pose, error) {
	o, to := normalizePoints3D(obj)
	m, tm := normalizePoints(normalized)
	a := mat.NewDense(2*len(o), 12, nil)
	for i := range o {
		X, Y, Z := o[i].X, o[i].Y, o[i].Z
		u, v := m[i].X, m[i].Y
		a.SetRow(2*i, []float64{X, Y, Z, 1, 0, 0, 0, 0, -u * X, -u * Y, -u * Z, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, X, Y, Z, 1, -v * X, -v * Y, -v * Z, -v})
	}
	pv, ok := nullVector(a)
	if !ok {
		return spatialmath.Pose{}, spatialmath.NewDomainError("failed to factorize projection system")
	}
	pn := mat.NewDense(3, 4, pv)
	var tmInv mat.Dense
	if err := tmInv.Inverse(tm); err != nil {
		return spatialmath.Pose{}, spatialmath.NewDomainError("degenerate projection normalization")
	}
	var p mat.Dense
	p.Mul(&tmInv, pn)
	p.Mul(&p, to)

	rot3 := mat.DenseCopyOf(p.Slice(0, 3, 0, 3))
	det := mat.Det(rot3)
	if det == 0 {
		return spatialmath.Pose{}, spatialmath.NewDomainError("degenerate projection matrix")
	}
	scale := math.Cbrt(det)
	rot3.Scale(1/scale, rot3)
	rot, err := spatialmath.NewRotationMatrixFromDense(rot3)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	t := r3.Vector{X: p.At(0, 3) / scale, Y: p.At(1, 3) / scale, Z: p.At(2, 3) / scale}
	return spatialmath.NewPose(rot, t), nil
}
