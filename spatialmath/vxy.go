package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Vxy is an ordered set of 2D vectors. Operations never modify the receiver.
type Vxy []r2.Point

// NewVxy builds a Vxy from parallel x and y slices.
func NewVxy(x, y []float64) (Vxy, error) {
	if len(x) != len(y) {
		return nil, NewInputMismatchError("x and y lengths", len(x), len(y))
	}
	out := make(Vxy, len(x))
	for i := range x {
		out[i] = r2.Point{X: x[i], Y: y[i]}
	}
	return out, nil
}

// Len returns the number of vectors.
func (v Vxy) Len() int { return len(v) }

// At returns the i-th vector.
func (v Vxy) At(i int) r2.Point { return v[i] }

// X returns the x components.
func (v Vxy) X() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.X
	}
	return out
}

// Y returns the y components.
func (v Vxy) Y() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.Y
	}
	return out
}

// Copy returns a deep copy.
func (v Vxy) Copy() Vxy {
	out := make(Vxy, len(v))
	copy(out, v)
	return out
}

// broadcastLen returns the output length of an elementwise operation between containers of
// length a and b, where a length of one broadcasts.
func broadcastLen(a, b int) (int, error) {
	switch {
	case a == b:
		return a, nil
	case a == 1:
		return b, nil
	case b == 1:
		return a, nil
	}
	return 0, NewInputMismatchError("vector counts", a, b)
}

func pick(i, n int) int {
	if n == 1 {
		return 0
	}
	return i
}

func (v Vxy) zip(o Vxy, f func(a, b r2.Point) r2.Point) (Vxy, error) {
	n, err := broadcastLen(len(v), len(o))
	if err != nil {
		return nil, err
	}
	out := make(Vxy, n)
	for i := range out {
		out[i] = f(v[pick(i, len(v))], o[pick(i, len(o))])
	}
	return out, nil
}

// Add returns the elementwise sum.
func (v Vxy) Add(o Vxy) (Vxy, error) {
	return v.zip(o, func(a, b r2.Point) r2.Point { return a.Add(b) })
}

// Sub returns the elementwise difference.
func (v Vxy) Sub(o Vxy) (Vxy, error) {
	return v.zip(o, func(a, b r2.Point) r2.Point { return a.Sub(b) })
}

// MulElem returns the elementwise product.
func (v Vxy) MulElem(o Vxy) (Vxy, error) {
	return v.zip(o, func(a, b r2.Point) r2.Point { return r2.Point{X: a.X * b.X, Y: a.Y * b.Y} })
}

// Scale multiplies every vector by s.
func (v Vxy) Scale(s float64) Vxy {
	out := make(Vxy, len(v))
	for i, p := range v {
		out[i] = p.Mul(s)
	}
	return out
}

// Neg negates every vector.
func (v Vxy) Neg() Vxy {
	return v.Scale(-1)
}

// Magnitude returns the Euclidean norm of each vector.
func (v Vxy) Magnitude() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.Norm()
	}
	return out
}

// Normalize returns unit vectors. A zero-length vector is a domain error.
func (v Vxy) Normalize() (Vxy, error) {
	out := make(Vxy, len(v))
	for i, p := range v {
		n := p.Norm()
		if n == 0 {
			return nil, NewDomainError("cannot normalize zero vector at index %d", i)
		}
		out[i] = p.Mul(1 / n)
	}
	return out, nil
}

// Dot returns the elementwise dot products.
func (v Vxy) Dot(o Vxy) ([]float64, error) {
	n, err := broadcastLen(len(v), len(o))
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v[pick(i, len(v))].Dot(o[pick(i, len(o))])
	}
	return out, nil
}

// Cross returns the z component of the elementwise cross products.
func (v Vxy) Cross(o Vxy) ([]float64, error) {
	n, err := broadcastLen(len(v), len(o))
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v[pick(i, len(v))].Cross(o[pick(i, len(o))])
	}
	return out, nil
}

// Rotate applies a 2x2 rotation matrix about the origin.
func (v Vxy) Rotate(r mat.Matrix) (Vxy, error) {
	if rows, cols := r.Dims(); rows != 2 || cols != 2 {
		return nil, NewDomainError("rotation must be 2x2, got %dx%d", rows, cols)
	}
	out := make(Vxy, len(v))
	for i, p := range v {
		out[i] = r2.Point{
			X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y,
			Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y,
		}
	}
	return out, nil
}

// RotateAbout applies a 2x2 rotation matrix about pivot.
func (v Vxy) RotateAbout(r mat.Matrix, pivot r2.Point) (Vxy, error) {
	shifted, err := v.Sub(Vxy{pivot})
	if err != nil {
		return nil, err
	}
	rotated, err := shifted.Rotate(r)
	if err != nil {
		return nil, err
	}
	return rotated.Add(Vxy{pivot})
}

// Rotation2D returns the 2x2 counter-clockwise rotation matrix for theta radians.
func Rotation2D(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)
	return mat.NewDense(2, 2, []float64{c, -s, s, c})
}

// Concatenate appends o after v.
func (v Vxy) Concatenate(o Vxy) Vxy {
	out := make(Vxy, 0, len(v)+len(o))
	out = append(out, v...)
	return append(out, o...)
}

// MergeVxy concatenates all containers in order.
func MergeVxy(vs []Vxy) Vxy {
	var out Vxy
	for _, v := range vs {
		out = out.Concatenate(v)
	}
	return out
}

// Centroid returns the mean vector. An empty container is a domain error.
func (v Vxy) Centroid() (r2.Point, error) {
	if len(v) == 0 {
		return r2.Point{}, NewDomainError("centroid of empty set")
	}
	return r2.Point{X: stat.Mean(v.X(), nil), Y: stat.Mean(v.Y(), nil)}, nil
}
