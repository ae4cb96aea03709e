package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

const orthonormalTolerance = 1e-6

// RotationMatrix is a 3x3 proper orthonormal matrix stored row-major.
type RotationMatrix struct {
	mat [9]float64
}

// Identity returns the identity rotation.
func Identity() *RotationMatrix {
	return &RotationMatrix{mat: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// NewRotationMatrix builds a rotation from nine row-major values. The values must form an
// orthonormal matrix with determinant +1.
func NewRotationMatrix(data []float64) (*RotationMatrix, error) {
	if len(data) != 9 {
		return nil, NewDomainError("rotation matrix needs 9 values, got %d", len(data))
	}
	rm := &RotationMatrix{}
	copy(rm.mat[:], data)
	var prod mat.Dense
	d := rm.Dense()
	prod.Mul(d, d.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = 1
			}
			if math.Abs(prod.At(i, j)-want) > orthonormalTolerance {
				return nil, NewDomainError("matrix is not orthonormal")
			}
		}
	}
	if det := mat.Det(d); math.Abs(det-1) > orthonormalTolerance {
		return nil, NewDomainError("rotation determinant must be +1, got %f", det)
	}
	return rm, nil
}

// NewRotationMatrixFromDense projects an arbitrary 3x3 matrix onto the nearest rotation using
// its singular value decomposition.
func NewRotationMatrixFromDense(m mat.Matrix) (*RotationMatrix, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, NewDomainError("rotation must be 3x3, got %dx%d", r, c)
	}
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return nil, NewDomainError("svd failed to factorize rotation")
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	rm := &RotationMatrix{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm.mat[3*i+j] = r.At(i, j)
		}
	}
	return rm, nil
}

// NewRotationFromAxes builds the rotation whose columns are the given frame axes. The axes
// must be orthonormal and right handed.
func NewRotationFromAxes(x, y, z r3.Vector) (*RotationMatrix, error) {
	return NewRotationMatrix([]float64{
		x.X, y.X, z.X,
		x.Y, y.Y, z.Y,
		x.Z, y.Z, z.Z,
	})
}

// NewRotationMatrixFromRotVec converts a rotation vector using Rodrigues' formula.
func NewRotationMatrixFromRotVec(rv r3.Vector) *RotationMatrix {
	aa := R3ToR4(rv)
	s, c := math.Sincos(aa.Theta)
	t := 1 - c
	x, y, z := aa.RX, aa.RY, aa.RZ
	return &RotationMatrix{mat: [9]float64{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c,
	}}
}

// NewRotationMatrixFromQuat converts a quaternion. The quaternion need not be unit length.
func NewRotationMatrixFromQuat(q quat.Number) *RotationMatrix {
	n := quat.Abs(q)
	if n == 0 {
		return Identity()
	}
	q = quat.Scale(1/n, q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// At returns the element at row i and column j.
func (rm *RotationMatrix) At(i, j int) float64 {
	return rm.mat[3*i+j]
}

// Row returns row i.
func (rm *RotationMatrix) Row(i int) r3.Vector {
	return r3.Vector{X: rm.mat[3*i], Y: rm.mat[3*i+1], Z: rm.mat[3*i+2]}
}

// Col returns column j.
func (rm *RotationMatrix) Col(j int) r3.Vector {
	return r3.Vector{X: rm.mat[j], Y: rm.mat[j+3], Z: rm.mat[j+6]}
}

// Data returns the row-major values.
func (rm *RotationMatrix) Data() []float64 {
	out := make([]float64, 9)
	copy(out, rm.mat[:])
	return out
}

// Dense returns the rotation as a gonum matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, rm.Data())
}

// Apply rotates v.
func (rm *RotationMatrix) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.mat[0]*v.X + rm.mat[1]*v.Y + rm.mat[2]*v.Z,
		Y: rm.mat[3]*v.X + rm.mat[4]*v.Y + rm.mat[5]*v.Z,
		Z: rm.mat[6]*v.X + rm.mat[7]*v.Y + rm.mat[8]*v.Z,
	}
}

// Mul returns rm·other, the rotation that applies other first.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	out := &RotationMatrix{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rm.mat[3*i+k] * other.mat[3*k+j]
			}
			out.mat[3*i+j] = sum
		}
	}
	return out
}

// Transpose returns the inverse rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	out := &RotationMatrix{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*j+i] = rm.mat[3*i+j]
		}
	}
	return out
}

// Quaternion returns the unit quaternion with non-negative real part.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/matrixToQuaternion/
func (rm *RotationMatrix) Quaternion() quat.Number {
	m := rm.mat
	var q quat.Number
	tr := m[0] + m[4] + m[8]
	switch {
	case tr > 0:
		s := 0.5 / math.Sqrt(tr+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m[7] - m[5]) * s, Jmag: (m[2] - m[6]) * s, Kmag: (m[3] - m[1]) * s}
	case m[0] > m[4] && m[0] > m[8]:
		s := 2 * math.Sqrt(1+m[0]-m[4]-m[8])
		q = quat.Number{Real: (m[7] - m[5]) / s, Imag: 0.25 * s, Jmag: (m[1] + m[3]) / s, Kmag: (m[2] + m[6]) / s}
	case m[4] > m[8]:
		s := 2 * math.Sqrt(1+m[4]-m[0]-m[8])
		q = quat.Number{Real: (m[2] - m[6]) / s, Imag: (m[1] + m[3]) / s, Jmag: 0.25 * s, Kmag: (m[5] + m[7]) / s}
	default:
		s := 2 * math.Sqrt(1+m[8]-m[0]-m[4])
		q = quat.Number{Real: (m[3] - m[1]) / s, Imag: (m[2] + m[6]) / s, Jmag: (m[5] + m[7]) / s, Kmag: 0.25 * s}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return quat.Scale(1/quat.Abs(q), q)
}

// AxisAngles returns the rotation in axis-angle form with Theta in [0, pi].
func (rm *RotationMatrix) AxisAngles() R4AA {
	q := rm.Quaternion()
	sinHalf := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if sinHalf < 1e-15 {
		return R4AA{Theta: 0, RZ: 1}
	}
	theta := 2 * math.Atan2(sinHalf, q.Real)
	return R4AA{Theta: theta, RX: q.Imag / sinHalf, RY: q.Jmag / sinHalf, RZ: q.Kmag / sinHalf}
}

// RotVec returns the rotation vector.
func (rm *RotationMatrix) RotVec() r3.Vector {
	return rm.AxisAngles().ToR3()
}

// AlmostEqual reports whether every element differs by at most tol.
func (rm *RotationMatrix) AlmostEqual(other *RotationMatrix, tol float64) bool {
	for i := range rm.mat {
		if math.Abs(rm.mat[i]-other.mat[i]) > tol {
			return false
		}
	}
	return true
}

// AngleBetween returns the angle in radians of the rotation taking rm to other.
func (rm *RotationMatrix) AngleBetween(other *RotationMatrix) float64 {
	return rm.Transpose().Mul(other).AxisAngles().Theta
}
