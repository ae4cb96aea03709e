package utils

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ResidualFunc writes the residuals at x into dst.
type ResidualFunc func(dst, x []float64)

// LeastSquaresProblem is a nonlinear least squares problem min ½·Σ r(x)².
type LeastSquaresProblem struct {
	Residuals    ResidualFunc
	NumResiduals int
}

// LMSettings tunes LevenbergMarquardt. Zero values select defaults.
type LMSettings struct {
	MaxIterations int
	// InitialLambda is the starting Marquardt damping.
	InitialLambda float64
	// CostTolerance stops when an accepted step changes the cost by less than this relative
	// amount.
	CostTolerance float64
	// StepTolerance stops when the step is this small relative to x.
	StepTolerance float64
}

// DefaultLMSettings are used when LevenbergMarquardt is given nil settings.
var DefaultLMSettings = LMSettings{
	MaxIterations: 200,
	InitialLambda: 1e-3,
	CostTolerance: 1e-15,
	StepTolerance: 1e-15,
}

// LMResult is the outcome of LevenbergMarquardt.
type LMResult struct {
	X          []float64
	Cost       float64
	Iterations int
	Converged  bool
}

// LevenbergMarquardt minimizes the problem from x0. Jacobians are taken numerically with
// central differences.
func LevenbergMarquardt(problem LeastSquaresProblem, x0 []float64, settings *LMSettings) (*LMResult, error) {
	if problem.Residuals == nil {
		return nil, errors.New("least squares problem has no residual function")
	}
	n, m := len(x0), problem.NumResiduals
	if n == 0 || m < n {
		return nil, errors.Errorf("least squares needs at least as many residuals (%d) as parameters (%d)", m, n)
	}
	s := DefaultLMSettings
	if settings != nil {
		if settings.MaxIterations > 0 {
			s.MaxIterations = settings.MaxIterations
		}
		if settings.InitialLambda > 0 {
			s.InitialLambda = settings.InitialLambda
		}
		if settings.CostTolerance > 0 {
			s.CostTolerance = settings.CostTolerance
		}
		if settings.StepTolerance > 0 {
			s.StepTolerance = settings.StepTolerance
		}
	}

	x := make([]float64, n)
	copy(x, x0)
	r := make([]float64, m)
	problem.Residuals(r, x)
	cost := halfSquaredNorm(r)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, errors.New("least squares residuals are not finite at the initial guess")
	}

	jac := mat.NewDense(m, n, nil)
	jtj := mat.NewSymDense(n, nil)
	jtr := mat.NewVecDense(n, nil)
	damped := mat.NewSymDense(n, nil)
	var chol mat.Cholesky
	delta := mat.NewVecDense(n, nil)
	xNew := make([]float64, n)
	rNew := make([]float64, m)

	lambda := s.InitialLambda
	res := &LMResult{}
	for res.Iterations < s.MaxIterations {
		res.Iterations++
		fd.Jacobian(jac, func(y, p []float64) { problem.Residuals(y, p) }, x, &fd.JacobianSettings{
			Formula:     fd.Central,
			OriginValue: r,
		})
		jtj.SymOuterK(1, jac.T())
		jtr.MulVec(jac.T(), mat.NewVecDense(m, r))

		accepted := false
		for tries := 0; tries < 30; tries++ {
			damped.CopySym(jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				if d < 1e-12 {
					d = 1e-12
				}
				damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
			}
			if !chol.Factorize(damped) {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(delta, jtr); err != nil {
				lambda *= 10
				continue
			}
			for i := range xNew {
				xNew[i] = x[i] - delta.AtVec(i)
			}
			problem.Residuals(rNew, xNew)
			newCost := halfSquaredNorm(rNew)
			if newCost < cost {
				stepNorm := floats.Norm(delta.RawVector().Data, 2)
				rel := (cost - newCost) / math.Max(cost, math.SmallestNonzeroFloat64)
				copy(x, xNew)
				copy(r, rNew)
				cost = newCost
				lambda /= 10
				accepted = true
				if rel < s.CostTolerance || stepNorm < s.StepTolerance*(floats.Norm(x, 2)+s.StepTolerance) || cost == 0 {
					res.Converged = true
				}
				break
			}
			lambda *= 10
		}
		if !accepted {
			// no descent direction left: x is a local minimum to working precision
			res.Converged = true
		}
		if res.Converged {
			break
		}
	}
	res.X = x
	res.Cost = cost
	return res, nil
}

func halfSquaredNorm(r []float64) float64 {
	var sum float64
	for _, v := range r {
		sum += v * v
	}
	return sum / 2
}
