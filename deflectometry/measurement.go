package deflectometry

import (
	"github.com/golang/geo/r3"

	"github.com/opencsp/opencsp-go/config"
)

// DistanceOpticScreen is a hand measurement from a point on the optic to the screen
// reference point.
type DistanceOpticScreen struct {
	// MeasurePoint is in the optic frame.
	MeasurePoint r3.Vector
	Distance     float64
}

// NewDistanceOpticScreenFromConfig converts a measurement config. A nil config yields nil.
func NewDistanceOpticScreenFromConfig(cfg *config.MeasurementConfig) *DistanceOpticScreen {
	if cfg == nil {
		return nil
	}
	return &DistanceOpticScreen{
		MeasurePoint: r3.Vector{X: cfg.MeasurePoint[0], Y: cfg.MeasurePoint[1], Z: cfg.MeasurePoint[2]},
		Distance:     cfg.Distance,
	}
}
