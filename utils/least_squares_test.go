package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestLevenbergMarquardtRosenbrock(t *testing.T) {
	problem := LeastSquaresProblem{
		Residuals: func(dst, x []float64) {
			dst[0] = 10 * (x[1] - x[0]*x[0])
			dst[1] = 1 - x[0]
		},
		NumResiduals: 2,
	}
	res, err := LevenbergMarquardt(problem, []float64{-1.2, 1}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 1, 1e-6)
	test.That(t, res.X[1], test.ShouldAlmostEqual, 1, 1e-6)
	test.That(t, res.Cost, test.ShouldBeLessThan, 1e-12)
}

func TestLevenbergMarquardtCurveFit(t *testing.T) {
	// y = a·exp(b·t)
	ts := Linspace(0, 2, 20)
	ys := make([]float64, len(ts))
	for i, tt := range ts {
		ys[i] = 2.5 * math.Exp(-1.3*tt)
	}
	problem := LeastSquaresProblem{
		Residuals: func(dst, x []float64) {
			for i, tt := range ts {
				dst[i] = x[0]*math.Exp(x[1]*tt) - ys[i]
			}
		},
		NumResiduals: len(ts),
	}
	res, err := LevenbergMarquardt(problem, []float64{1, 0}, &LMSettings{MaxIterations: 100})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 2.5, 1e-6)
	test.That(t, res.X[1], test.ShouldAlmostEqual, -1.3, 1e-6)
}

func TestLevenbergMarquardtErrors(t *testing.T) {
	_, err := LevenbergMarquardt(LeastSquaresProblem{NumResiduals: 1}, []float64{1}, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LevenbergMarquardt(LeastSquaresProblem{
		Residuals:    func(dst, x []float64) { dst[0] = x[0] },
		NumResiduals: 1,
	}, []float64{1, 2}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLinspace(t *testing.T) {
	test.That(t, Linspace(0, 1, 5), test.ShouldResemble, []float64{0, 0.25, 0.5, 0.75, 1})
	test.That(t, Linspace(3, 4, 1), test.ShouldResemble, []float64{3})
	test.That(t, Linspace(0, 1, 0), test.ShouldBeNil)
	test.That(t, WrapToPi(3*math.Pi/2), test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, WrapToPi(math.Pi), test.ShouldAlmostEqual, math.Pi)
}
