package transform

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// NoDistortionType is an ideal pinhole lens.
	NoDistortionType = DistortionType("no_distortion")
	// BrownConradyDistortionType is the radial and tangential lens model used by OpenCV.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// InverseBrownConradyDistortionType undoes BrownConradyDistortionType.
	InverseBrownConradyDistortionType = DistortionType("inverse_brown_conrady")
)

// Distorter maps normalized image coordinates through a lens model.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case "", NoDistortionType:
		return &NoDistortion{}, nil
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	case InverseBrownConradyDistortionType:
		return NewInverseBrownConrady(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

// NoDistortion is the identity lens model.
type NoDistortion struct{}

// ModelType returns the type of distortion model.
func (nd *NoDistortion) ModelType() DistortionType { return NoDistortionType }

// CheckValid always succeeds.
func (nd *NoDistortion) CheckValid() error { return nil }

// Parameters returns no parameters.
func (nd *NoDistortion) Parameters() []float64 { return []float64{} }

// Transform returns the input point.
func (nd *NoDistortion) Transform(x, y float64) (float64, float64) { return x, y }

// distortionJSON is the on-disk form of a Distorter.
type distortionJSON struct {
	Type       DistortionType `json:"type"`
	Parameters []float64      `json:"parameters"`
}

func marshalDistorter(d Distorter) ([]byte, error) {
	if d == nil {
		d = &NoDistortion{}
	}
	return json.Marshal(distortionJSON{Type: d.ModelType(), Parameters: d.Parameters()})
}

func unmarshalDistorter(data []byte) (Distorter, error) {
	var dj distortionJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return nil, errors.Wrap(err, "error parsing distortion")
	}
	return NewDistorter(dj.Type, dj.Parameters)
}
