package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// degenerateTriangleArea is the smallest doubled area accepted by NewTriangleXY.
const degenerateTriangleArea = 1e-18

// TriangleXY is a non-degenerate 2D triangle.
type TriangleXY struct {
	p0, p1, p2 r2.Point
	// det is twice the signed area.
	det float64
}

// NewTriangleXY returns the triangle p0, p1, p2. Collinear points are an ErrDomain.
func NewTriangleXY(p0, p1, p2 r2.Point) (*TriangleXY, error) {
	det := p1.Sub(p0).Cross(p2.Sub(p0))
	if math.Abs(det) < degenerateTriangleArea {
		return nil, NewDomainError("triangle %v %v %v is degenerate", p0, p1, p2)
	}
	return &TriangleXY{p0: p0, p1: p1, p2: p2, det: det}, nil
}

// Vertices returns the corners in construction order.
func (t *TriangleXY) Vertices() [3]r2.Point {
	return [3]r2.Point{t.p0, t.p1, t.p2}
}

// Bounds returns the axis aligned bounding box.
func (t *TriangleXY) Bounds() (r2.Point, r2.Point) {
	lo := r2.Point{X: math.Min(t.p0.X, math.Min(t.p1.X, t.p2.X)), Y: math.Min(t.p0.Y, math.Min(t.p1.Y, t.p2.Y))}
	hi := r2.Point{X: math.Max(t.p0.X, math.Max(t.p1.X, t.p2.X)), Y: math.Max(t.p0.Y, math.Max(t.p1.Y, t.p2.Y))}
	return lo, hi
}

// Barycentric returns the weights of p0, p1 and p2 that reproduce pt. They sum to one.
func (t *TriangleXY) Barycentric(pt r2.Point) [3]float64 {
	s := pt.Sub(t.p0)
	u := s.Cross(t.p2.Sub(t.p0)) / t.det
	v := t.p1.Sub(t.p0).Cross(s) / t.det
	return [3]float64{1 - u - v, u, v}
}

// Contains reports whether pt is inside or within tol (in barycentric units) of the edges.
func (t *TriangleXY) Contains(pt r2.Point, tol float64) bool {
	w := t.Barycentric(pt)
	return w[0] >= -tol && w[1] >= -tol && w[2] >= -tol
}

// InterpolateXY blends three values with barycentric weights.
func InterpolateXY(weights [3]float64, values [3]r2.Point) r2.Point {
	return values[0].Mul(weights[0]).Add(values[1].Mul(weights[1])).Add(values[2].Mul(weights[2]))
}
