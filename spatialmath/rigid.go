package spatialmath

import (
	"gonum.org/v1/gonum/mat"
)

// RigidTransformFromPoints returns the pose (and scale, when withScale is set) that best maps
// src onto dst in the least squares sense: dst ≈ scale·R·src + t. A single pair yields a pure
// translation.
func RigidTransformFromPoints(src, dst Vxyz, withScale bool) (Pose, float64, error) {
	if len(src) != len(dst) {
		return Pose{}, 0, NewInputMismatchError("source and destination point counts", len(src), len(dst))
	}
	if len(src) == 0 {
		return Pose{}, 0, NewDomainError("cannot align empty point sets")
	}
	if len(src) == 1 {
		return NewPose(nil, dst[0].Sub(src[0])), 1, nil
	}

	cs, _ := src.Centroid()
	cd, _ := dst.Centroid()

	n := float64(len(src))
	cov := mat.NewDense(3, 3, nil)
	var srcVar float64
	for i := range src {
		a := src[i].Sub(cs)
		b := dst[i].Sub(cd)
		srcVar += a.Norm2()
		av := []float64{a.X, a.Y, a.Z}
		bv := []float64{b.X, b.Y, b.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				cov.Set(r, c, cov.At(r, c)+bv[r]*av[c]/n)
			}
		}
	}
	srcVar /= n
	if srcVar == 0 {
		return Pose{}, 0, NewDomainError("source points are coincident")
	}

	var svd mat.SVD
	if !svd.Factorize(cov, mat.SVDFull) {
		return Pose{}, 0, NewDomainError("svd failed on point covariance")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	// reflection guard
	d := []float64{1, 1, 1}
	var uvt mat.Dense
	uvt.Mul(&u, v.T())
	if mat.Det(&uvt) < 0 {
		d[2] = -1
	}
	var r mat.Dense
	r.Mul(&u, mat.NewDiagDense(3, d))
	r.Mul(&r, v.T())
	rot, err := NewRotationMatrixFromDense(&r)
	if err != nil {
		return Pose{}, 0, err
	}

	scale := 1.
	if withScale {
		scale = (sv[0]*d[0] + sv[1]*d[1] + sv[2]*d[2]) / srcVar
	}
	t := cd.Sub(rot.Apply(cs).Mul(scale))
	return NewPose(rot, t), scale, nil
}

// ApplySimilarity maps every point through scale·R·p + t.
func ApplySimilarity(pose Pose, scale float64, pts Vxyz) Vxyz {
	out := make(Vxyz, len(pts))
	for i, p := range pts {
		out[i] = pose.rot().Apply(p).Mul(scale).Add(pose.Translation)
	}
	return out
}
