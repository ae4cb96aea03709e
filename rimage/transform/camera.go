package transform

import (
	"encoding/json"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/opencsp/opencsp-go/spatialmath"
)

// Camera is a calibrated pinhole camera with lens distortion. It is immutable once built.
type Camera struct {
	name        string
	intrinsics  PinholeCameraIntrinsics
	distortion  Distorter
	undistorter Distorter
}

// NewCamera validates the intrinsics and distortion and returns a Camera. A nil distortion is
// an ideal lens.
func NewCamera(name string, intrinsics PinholeCameraIntrinsics, distortion Distorter) (*Camera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if distortion == nil {
		distortion = &NoDistortion{}
	}
	if err := distortion.CheckValid(); err != nil {
		return nil, err
	}
	var undistorter Distorter
	switch d := distortion.(type) {
	case *NoDistortion:
		undistorter = d
	case *BrownConrady:
		undistorter = d.Inverse()
	default:
		return nil, InvalidDistortionError("camera distortion must be a forward model, got " + string(distortion.ModelType()))
	}
	return &Camera{
		name:        name,
		intrinsics:  intrinsics,
		distortion:  distortion,
		undistorter: undistorter,
	}, nil
}

// Name returns the camera name.
func (c *Camera) Name() string { return c.name }

// Intrinsics returns a copy of the intrinsics.
func (c *Camera) Intrinsics() PinholeCameraIntrinsics { return c.intrinsics }

// DistortionType returns the lens model name.
func (c *Camera) DistortionType() DistortionType { return c.distortion.ModelType() }

// DistortionParameters returns a copy of the lens coefficients.
func (c *Camera) DistortionParameters() []float64 { return c.distortion.Parameters() }

// projectNoCheck projects a camera-frame point without checking that it lies in front of the
// camera.
func (c *Camera) projectNoCheck(p r3.Vector) r2.Point {
	x, y := c.distortion.Transform(p.X/p.Z, p.Y/p.Z)
	u, v := c.intrinsics.NormalizedToPixel(x, y)
	return r2.Point{X: u, Y: v}
}

// ProjectCameraFrame projects a point expressed in the camera frame to a pixel.
func (c *Camera) ProjectCameraFrame(p r3.Vector) (r2.Point, error) {
	if p.Z <= 0 {
		return r2.Point{}, spatialmath.NewDomainError("point %v is not in front of the camera", p)
	}
	return c.projectNoCheck(p), nil
}

// Project maps object-frame points through the object-to-camera pose and onto the image.
func (c *Camera) Project(pts spatialmath.Vxyz, pose spatialmath.Pose) (spatialmath.Vxy, error) {
	out := make(spatialmath.Vxy, len(pts))
	for i, p := range pts {
		px, err := c.ProjectCameraFrame(pose.Transform(p))
		if err != nil {
			return nil, errors.Wrapf(err, "projecting point %d", i)
		}
		out[i] = px
	}
	return out, nil
}

// VectorFromPixel returns the unit ray in the camera frame through an image pixel.
func (c *Camera) VectorFromPixel(px r2.Point) r3.Vector {
	x, y := c.intrinsics.PixelToNormalized(px.X, px.Y)
	xu, yu := c.undistorter.Transform(x, y)
	return r3.Vector{X: xu, Y: yu, Z: 1}.Normalize()
}

// BackProjectWithDistance returns the camera-frame point at Euclidean distance d along the
// ray through px.
func (c *Camera) BackProjectWithDistance(px r2.Point, d float64) (r3.Vector, error) {
	if d <= 0 || math.IsNaN(d) {
		return r3.Vector{}, spatialmath.NewDomainError("back projection distance must be positive, got %f", d)
	}
	return c.VectorFromPixel(px).Mul(d), nil
}

// InFrame reports whether px lies on the sensor.
func (c *Camera) InFrame(px r2.Point) bool {
	return px.X >= 0 && px.Y >= 0 && px.X < float64(c.intrinsics.Width) && px.Y < float64(c.intrinsics.Height)
}

type cameraJSON struct {
	Name       string                  `json:"name"`
	Intrinsics PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion json.RawMessage         `json:"distortion,omitempty"`
}

// MarshalJSON writes the camera record.
func (c *Camera) MarshalJSON() ([]byte, error) {
	dist, err := marshalDistorter(c.distortion)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cameraJSON{Name: c.name, Intrinsics: c.intrinsics, Distortion: dist})
}

// UnmarshalJSON reads a camera record and validates it.
func (c *Camera) UnmarshalJSON(data []byte) error {
	var cj cameraJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return errors.Wrap(err, "error parsing camera")
	}
	var dist Distorter = &NoDistortion{}
	if len(cj.Distortion) > 0 && string(cj.Distortion) != "null" {
		var err error
		if dist, err = unmarshalDistorter(cj.Distortion); err != nil {
			return err
		}
	}
	built, err := NewCamera(cj.Name, cj.Intrinsics, dist)
	if err != nil {
		return err
	}
	*c = *built
	return nil
}

// NewCameraFromJSONFile loads a camera record.
func NewCameraFromJSONFile(jsonPath string) (*Camera, error) {
	//nolint:gosec
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening camera file")
	}
	c := &Camera{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "error parsing camera file %q", jsonPath)
	}
	return c, nil
}

// WriteJSONFile saves the camera record.
func (c *Camera) WriteJSONFile(jsonPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(jsonPath, data, 0o600), "error writing camera to %q", jsonPath)
}
