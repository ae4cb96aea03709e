package testutils

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
)

// PlanarScreen is a flat display. Fraction (0, 0) is at Origin, x grows along Right and y
// along Down; Right and Down are orthogonal unit vectors.
type PlanarScreen struct {
	Origin, Right, Down r3.Vector
	Width, Height       float64
}

// NewPlanarScreen returns a 0.8 x 0.5 m screen centered on the world origin in the z=0 plane.
func NewPlanarScreen() PlanarScreen {
	return PlanarScreen{
		Origin: r3.Vector{X: -0.4, Y: -0.25},
		Right:  r3.Vector{X: 1},
		Down:   r3.Vector{Y: 1},
		Width:  0.8,
		Height: 0.5,
	}
}

// Point returns the world point shown at a screen fraction.
func (s PlanarScreen) Point(fraction r2.Point) r3.Vector {
	return s.Origin.Add(s.Right.Mul(fraction.X * s.Width)).Add(s.Down.Mul(fraction.Y * s.Height))
}

// CornerMarkers places one marker of side size just outside each screen corner.
func (s PlanarScreen) CornerMarkers(size float64) MarkerScene {
	markers := map[int]spatialmath.Vxyz{}
	gap := size
	for id, f := range []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}} {
		dx := (2*f.X - 1) * gap
		dy := (2*f.Y - 1) * gap
		center := s.Point(f).Add(s.Right.Mul(dx)).Add(s.Down.Mul(dy))
		markers[id] = MarkerCorners(center, s.Right, s.Down, size)
	}
	return MarkerScene{Markers: markers}
}

// Fractions returns the screen fraction every camera pixel sees, row major, with a mask of
// the pixels that hit the screen grown by margin (in fractions) on every side.
func (s PlanarScreen) Fractions(
	t *testing.T,
	cam *transform.Camera,
	worldToCam spatialmath.Pose,
	margin float64,
) ([]float64, []float64, []bool) {
	t.Helper()
	in := cam.Intrinsics()
	n := in.Width * in.Height
	xs := make([]float64, n)
	ys := make([]float64, n)
	mask := make([]bool, n)
	normal := s.Right.Cross(s.Down)
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			ray := transform.RayFromPixel(cam, worldToCam, r2.Point{X: float64(x), Y: float64(y)})
			denom := ray.Direction.Dot(normal)
			if denom == 0 {
				continue
			}
			d := s.Origin.Sub(ray.Origin).Dot(normal) / denom
			if d <= 0 {
				continue
			}
			rel := ray.Origin.Add(ray.Direction.Mul(d)).Sub(s.Origin)
			fx := rel.Dot(s.Right) / s.Width
			fy := rel.Dot(s.Down) / s.Height
			i := y*in.Width + x
			xs[i], ys[i] = fx, fy
			mask[i] = fx >= -margin && fx <= 1+margin && fy >= -margin && fy <= 1+margin
		}
	}
	return xs, ys, mask
}
