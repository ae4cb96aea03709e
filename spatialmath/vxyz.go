package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Vxyz is an ordered set of 3D vectors. Operations never modify the receiver.
type Vxyz []r3.Vector

// NewVxyz builds a Vxyz from parallel component slices.
func NewVxyz(x, y, z []float64) (Vxyz, error) {
	if len(x) != len(y) {
		return nil, NewInputMismatchError("x and y lengths", len(x), len(y))
	}
	if len(x) != len(z) {
		return nil, NewInputMismatchError("x and z lengths", len(x), len(z))
	}
	out := make(Vxyz, len(x))
	for i := range x {
		out[i] = r3.Vector{X: x[i], Y: y[i], Z: z[i]}
	}
	return out, nil
}

// NewVxyzFromDense reads a 3xN matrix, one vector per column.
func NewVxyzFromDense(m mat.Matrix) (Vxyz, error) {
	rows, cols := m.Dims()
	if rows != 3 {
		return nil, NewDomainError("expected 3 rows, got %d", rows)
	}
	out := make(Vxyz, cols)
	for j := range out {
		out[j] = r3.Vector{X: m.At(0, j), Y: m.At(1, j), Z: m.At(2, j)}
	}
	return out, nil
}

// Dense returns the vectors as a 3xN matrix.
func (v Vxyz) Dense() *mat.Dense {
	if len(v) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(3, len(v), nil)
	for j, p := range v {
		m.Set(0, j, p.X)
		m.Set(1, j, p.Y)
		m.Set(2, j, p.Z)
	}
	return m
}

// Len returns the number of vectors.
func (v Vxyz) Len() int { return len(v) }

// At returns the i-th vector.
func (v Vxyz) At(i int) r3.Vector { return v[i] }

// X returns the x components.
func (v Vxyz) X() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.X
	}
	return out
}

// Y returns the y components.
func (v Vxyz) Y() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.Y
	}
	return out
}

// Z returns the z components.
func (v Vxyz) Z() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.Z
	}
	return out
}

// Copy returns a deep copy.
func (v Vxyz) Copy() Vxyz {
	out := make(Vxyz, len(v))
	copy(out, v)
	return out
}

func (v Vxyz) zip(o Vxyz, f func(a, b r3.Vector) r3.Vector) (Vxyz, error) {
	n, err := broadcastLen(len(v), len(o))
	if err != nil {
		return nil, err
	}
	out := make(Vxyz, n)
	for i := range out {
		out[i] = f(v[pick(i, len(v))], o[pick(i, len(o))])
	}
	return out, nil
}

// Add returns the elementwise sum.
func (v Vxyz) Add(o Vxyz) (Vxyz, error) {
	return v.zip(o, func(a, b r3.Vector) r3.Vector { return a.Add(b) })
}

// Sub returns the elementwise difference.
func (v Vxyz) Sub(o Vxyz) (Vxyz, error) {
	return v.zip(o, func(a, b r3.Vector) r3.Vector { return a.Sub(b) })
}

// MulElem returns the elementwise product.
func (v Vxyz) MulElem(o Vxyz) (Vxyz, error) {
	return v.zip(o, func(a, b r3.Vector) r3.Vector { return r3.Vector{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z} })
}

// Cross returns the elementwise cross products.
func (v Vxyz) Cross(o Vxyz) (Vxyz, error) {
	return v.zip(o, func(a, b r3.Vector) r3.Vector { return a.Cross(b) })
}

// Dot returns the elementwise dot products.
func (v Vxyz) Dot(o Vxyz) ([]float64, error) {
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

// Scale multiplies every vector by s.
func (v Vxyz) Scale(s float64) Vxyz {
	out := make(Vxyz, len(v))
	for i, p := range v {
		out[i] = p.Mul(s)
	}
	return out
}

// Neg negates every vector.
func (v Vxyz) Neg() Vxyz {
	return v.Scale(-1)
}

// Magnitude returns the Euclidean norm of each vector.
func (v Vxyz) Magnitude() []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = p.Norm()
	}
	return out
}

// Normalize returns unit vectors. A zero-length vector is a domain error.
func (v Vxyz) Normalize() (Vxyz, error) {
	out := make(Vxyz, len(v))
	for i, p := range v {
		n := p.Norm()
		if n == 0 {
			return nil, NewDomainError("cannot normalize zero vector at index %d", i)
		}
		out[i] = p.Mul(1 / n)
	}
	return out, nil
}

// Rotate applies r about the origin.
func (v Vxyz) Rotate(r *RotationMatrix) Vxyz {
	out := make(Vxyz, len(v))
	for i, p := range v {
		out[i] = r.Apply(p)
	}
	return out
}

// RotateAbout applies r about pivot.
func (v Vxyz) RotateAbout(r *RotationMatrix, pivot r3.Vector) Vxyz {
	out := make(Vxyz, len(v))
	for i, p := range v {
		out[i] = r.Apply(p.Sub(pivot)).Add(pivot)
	}
	return out
}

// Concatenate appends o after v.
func (v Vxyz) Concatenate(o Vxyz) Vxyz {
	out := make(Vxyz, 0, len(v)+len(o))
	out = append(out, v...)
	return append(out, o...)
}

// MergeVxyz concatenates all containers in order.
func MergeVxyz(vs []Vxyz) Vxyz {
	var out Vxyz
	for _, v := range vs {
		out = out.Concatenate(v)
	}
	return out
}

// Centroid returns the mean vector. An empty container is a domain error.
func (v Vxyz) Centroid() (r3.Vector, error) {
	if len(v) == 0 {
		return r3.Vector{}, NewDomainError("centroid of empty set")
	}
	return r3.Vector{X: stat.Mean(v.X(), nil), Y: stat.Mean(v.Y(), nil), Z: stat.Mean(v.Z(), nil)}, nil
}
