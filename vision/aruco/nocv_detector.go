//go:build !opencv

package aruco

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoOpenCV is returned when image detection is requested from a build without OpenCV.
var ErrNoOpenCV = errors.New("marker detection in images requires building with -tags opencv")

// GocvDetector is unavailable without OpenCV.
type GocvDetector struct{}

// NewImageDetector reports ErrNoOpenCV.
func NewImageDetector() (*GocvDetector, error) {
	return nil, ErrNoOpenCV
}

// DetectFile reports ErrNoOpenCV.
func (d *GocvDetector) DetectFile(ctx context.Context, path string) ([]Observation, error) {
	return nil, ErrNoOpenCV
}

// Close does nothing.
func (d *GocvDetector) Close() error {
	return nil
}
