package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/opencsp/opencsp-go/spatialmath"
)

// parallelRayTolerance is the smallest acceptable ratio of the weakest to strongest
// direction of the normal equations.
const parallelRayTolerance = 1e-10

// Ray is a half line in world coordinates.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// RayFromPixel returns the world ray seen through px by a camera with the given
// world-to-camera pose.
func RayFromPixel(cam *Camera, worldToCam spatialmath.Pose, px r2.Point) Ray {
	rt := worldToCam.Rotation.Transpose()
	return Ray{
		Origin:    worldToCam.Origin(),
		Direction: rt.Apply(cam.VectorFromPixel(px)),
	}
}

// TriangulateRays returns the point minimizing the summed squared perpendicular distance to
// every ray, solving Σ(I - d·dᵀ)·x = Σ(I - d·dᵀ)·o.
func TriangulateRays(rays []Ray) (r3.Vector, error) {
	if len(rays) < 2 {
		return r3.Vector{}, spatialmath.NewDomainError("triangulation needs at least 2 rays, got %d", len(rays))
	}
	a := mat.NewSymDense(3, nil)
	b := mat.NewVecDense(3, nil)
	for i, ray := range rays {
		n := ray.Direction.Norm()
		if n == 0 {
			return r3.Vector{}, spatialmath.NewDomainError("ray %d has no direction", i)
		}
		d := ray.Direction.Mul(1 / n)
		dv := []float64{d.X, d.Y, d.Z}
		ov := []float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
		for r := 0; r < 3; r++ {
			var proj float64
			for c := 0; c < 3; c++ {
				m := -dv[r] * dv[c]
				if r == c {
					m++
				}
				if c >= r {
					a.SetSym(r, c, a.At(r, c)+m)
				}
				proj += m * ov[c]
			}
			b.SetVec(r, b.AtVec(r)+proj)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return r3.Vector{}, spatialmath.NewDomainError("triangulation system could not be factorized")
	}
	vals := eig.Values(nil)
	if vals[2] <= 0 || vals[0] < parallelRayTolerance*vals[2] {
		return r3.Vector{}, spatialmath.NewDomainError("rays are parallel")
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return r3.Vector{}, spatialmath.NewDomainError("triangulation solve failed: %v", err)
	}
	return r3.Vector{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}, nil
}

// RayDistance returns the perpendicular distance of p from the ray's line.
func RayDistance(ray Ray, p r3.Vector) float64 {
	d := ray.Direction.Normalize()
	v := p.Sub(ray.Origin)
	return v.Sub(d.Mul(v.Dot(d))).Norm()
}
