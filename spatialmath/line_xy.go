package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

const lineTolerance = 1e-10

// LineXY is a 2D line A·x + B·y + C = 0 with (A, B) a unit normal. C is the signed offset of
// the origin along that normal.
type LineXY struct {
	A, B, C float64
}

// NewLineXY normalizes the coefficients so that A²+B² = 1.
func NewLineXY(a, b, c float64) (*LineXY, error) {
	mag := math.Hypot(a, b)
	if mag == 0 {
		return nil, NewDomainError("line normal (A, B) must be non-zero")
	}
	return &LineXY{A: a / mag, B: b / mag, C: c / mag}, nil
}

// LineFromTwoPoints returns the line through p1 and p2. The normal is the direction p2-p1
// rotated 90 degrees clockwise.
func LineFromTwoPoints(p1, p2 r2.Point) (*LineXY, error) {
	d := p2.Sub(p1)
	if d.X == 0 && d.Y == 0 {
		return nil, NewDomainError("cannot build line from coincident points %v", p1)
	}
	ab := r2.Point{X: d.Y, Y: -d.X}
	return NewLineXY(ab.X, ab.Y, -p1.Dot(ab))
}

func (l *LineXY) String() string {
	return fmt.Sprintf("2D Line: %v, %v, %v", l.A, l.B, l.C)
}

// NormalVector returns the unit normal (A, B).
func (l *LineXY) NormalVector() r2.Point {
	return r2.Point{X: l.A, Y: l.B}
}

// ABC returns the coefficients.
func (l *LineXY) ABC() [3]float64 {
	return [3]float64{l.A, l.B, l.C}
}

// Slope returns -A/B, or +Inf for a vertical line.
func (l *LineXY) Slope() float64 {
	if math.Abs(l.B) < lineTolerance {
		return math.Inf(1)
	}
	return -l.A / l.B
}

// YFromX returns the y coordinate on the line at x.
func (l *LineXY) YFromX(x float64) float64 {
	return (-l.A*x - l.C) / l.B
}

// XFromY returns the x coordinate on the line at y.
func (l *LineXY) XFromY(y float64) float64 {
	return (-l.B*y - l.C) / l.A
}

// DistFromSigned returns perpendicular distances, positive on the side the normal points to.
func (l *LineXY) DistFromSigned(pts Vxy) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.X*l.A + p.Y*l.B + l.C
	}
	return out
}

// DistFrom returns unsigned perpendicular distances.
func (l *LineXY) DistFrom(pts Vxy) []float64 {
	out := l.DistFromSigned(pts)
	for i := range out {
		out[i] = math.Abs(out[i])
	}
	return out
}

// IntersectWith returns the intersection point. The boolean is false for parallel lines.
func (l *LineXY) IntersectWith(other *LineXY) (r2.Point, bool) {
	if (math.Abs(l.A) < lineTolerance && math.Abs(other.A) < lineTolerance) ||
		(math.Abs(l.B) < lineTolerance && math.Abs(other.B) < lineTolerance) ||
		math.Abs(l.Slope()-other.Slope()) < lineTolerance {
		return r2.Point{}, false
	}
	v := r3.Vector{X: l.A, Y: l.B, Z: l.C}.Cross(r3.Vector{X: other.A, Y: other.B, Z: other.C})
	if v.Z == 0 {
		return r2.Point{}, false
	}
	return r2.Point{X: v.X / v.Z, Y: v.Y / v.Z}, true
}

// Flip returns the same line with its normal reversed.
func (l *LineXY) Flip() *LineXY {
	return &LineXY{A: -l.A, B: -l.B, C: -l.C}
}
