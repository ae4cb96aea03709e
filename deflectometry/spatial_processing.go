// Package deflectometry holds the optic pose solver, the display shape artifact and fringe
// pattern decoding used by deflectometry measurements.
package deflectometry

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
)

// TFromDistance estimates the camera-to-optic vector in the camera frame. The optic lies on
// the ray through its image centroid, at the far point where its distance to the screen
// reference point is distOpticScreen.
func TFromDistance(
	centroid r2.Point, distOpticScreen float64, cam *transform.Camera, vCamScreenCam r3.Vector,
) (r3.Vector, error) {
	if distOpticScreen <= 0 {
		return r3.Vector{}, spatialmath.NewDomainError("optic to screen distance must be positive, got %f", distOpticScreen)
	}
	u := cam.VectorFromPixel(centroid)
	us := u.Dot(vCamScreenCam)
	disc := us*us - vCamScreenCam.Norm2() + distOpticScreen*distOpticScreen
	if disc < 0 {
		return r3.Vector{}, spatialmath.NewDomainError(
			"ray through %v never comes within %f of the screen", centroid, distOpticScreen)
	}
	t := us + math.Sqrt(disc)
	if t <= 0 {
		return r3.Vector{}, spatialmath.NewDomainError("optic would lie behind the camera")
	}
	return u.Mul(t), nil
}

// RFromPosition estimates the optic-to-camera rotation from the optic and screen positions.
// The optic z axis bisects the directions from the optic to the camera and to the screen; its
// x axis is the camera x axis made perpendicular to z.
func RFromPosition(vCamOpticCam, vCamScreenCam r3.Vector) (*spatialmath.RotationMatrix, error) {
	toCam := vCamOpticCam.Mul(-1)
	toScreen := vCamScreenCam.Sub(vCamOpticCam)
	if toCam.Norm() == 0 || toScreen.Norm() == 0 {
		return nil, spatialmath.NewDomainError("optic coincides with the camera or the screen")
	}
	bisector := toCam.Normalize().Add(toScreen.Normalize())
	if bisector.Norm() < 1e-12 {
		return nil, spatialmath.NewDomainError("optic lies between the camera and the screen")
	}
	z := bisector.Normalize()
	camX := r3.Vector{X: 1}
	x := camX.Sub(z.Mul(camX.Dot(z)))
	if x.Norm() < 1e-12 {
		return nil, spatialmath.NewDomainError("optic normal is parallel to the camera x axis")
	}
	x = x.Normalize()
	y := z.Cross(x)
	return spatialmath.NewRotationFromAxes(x, y, z)
}

// CalcRTFromImgPts solves the optic-to-camera pose from the imaged optic corners.
func CalcRTFromImgPts(
	imgPts spatialmath.Vxy, objPts spatialmath.Vxyz, cam *transform.Camera, init *spatialmath.Pose,
) (spatialmath.Pose, error) {
	return transform.SolvePnP(cam, objPts, imgPts, init)
}

// RefineVDistance rescales the camera-to-optic vector so the measure point lies exactly
// dist from the screen reference point. Of the two solutions the scale nearest 1 wins; when
// the ray never reaches dist, the closest approach is used.
func RefineVDistance(vCamOpticCam r3.Vector, dist float64, vCamScreenCam, vMeasPtOpticCam r3.Vector) r3.Vector {
	a := vCamOpticCam
	b := vMeasPtOpticCam.Sub(vCamScreenCam)
	qa := a.Norm2()
	if qa == 0 {
		return a
	}
	qb := 2 * a.Dot(b)
	qc := b.Norm2() - dist*dist
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return a.Mul(-a.Dot(b) / qa)
	}
	sq := math.Sqrt(disc)
	s1 := (-qb + sq) / (2 * qa)
	s2 := (-qb - sq) / (2 * qa)
	s := s1
	if math.Abs(s2-1) < math.Abs(s1-1) {
		s = s2
	}
	return a.Mul(s)
}

// ReprojectionError is the mean pixel distance between imgPts and objPts projected through
// the optic-to-camera pose.
func ReprojectionError(
	cam *transform.Camera, objPts spatialmath.Vxyz, imgPts spatialmath.Vxy, pose spatialmath.Pose,
) (float64, error) {
	if len(objPts) != len(imgPts) {
		return 0, spatialmath.NewInputMismatchError("object and image point counts", len(objPts), len(imgPts))
	}
	if len(objPts) == 0 {
		return 0, spatialmath.NewDomainError("reprojection error of no points")
	}
	proj, err := cam.Project(objPts, pose)
	if err != nil {
		return 0, err
	}
	diffs, err := proj.Sub(imgPts)
	if err != nil {
		return 0, err
	}
	return stat.Mean(diffs.Magnitude(), nil), nil
}

// DistanceError is the signed difference between the measured screen distance of the
// measure point and dist.
func DistanceError(vCamScreenCam, vCamMeasPtCam r3.Vector, dist float64) float64 {
	return vCamScreenCam.Sub(vCamMeasPtCam).Norm() - dist
}
