package segmentation

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"github.com/opencsp/opencsp-go/spatialmath"
)

const (
	// MinLineFitPoints is the fewest points FitLine accepts.
	MinLineFitPoints = 16
	// LineFitTrials is the number of RANSAC hypotheses drawn.
	LineFitTrials = 1000
	// lineFitEarlyExit is the inlier fraction above which sampling stops.
	lineFitEarlyExit = 0.99
)

// LineFitResult is a fitted line with the consensus set used to refine it.
type LineFitResult struct {
	Line        *spatialmath.LineXY
	Inliers     []bool
	InlierCount int
	// RMS is the root mean square perpendicular distance of the inliers to Line.
	RMS float64
}

// FitLineWithSeed fits a line with a generator seeded from seed.
func FitLineWithSeed(pts spatialmath.Vxy, seed int64, neighborDist float64) (*spatialmath.LineXY, error) {
	return FitLine(pts, rand.New(rand.NewSource(seed)), neighborDist)
}

// FitLine fits a line to pts with RANSAC. Hypotheses are lines through two random points;
// the one with the most points closer than neighborDist wins, and its consensus set is
// refined by minimizing the mean squared perpendicular distance.
func FitLine(pts spatialmath.Vxy, rng *rand.Rand, neighborDist float64) (*spatialmath.LineXY, error) {
	res, err := FitLineDetailed(pts, rng, neighborDist)
	if err != nil {
		return nil, err
	}
	return res.Line, nil
}

// FitLineDetailed is FitLine returning the consensus mask and residual.
func FitLineDetailed(pts spatialmath.Vxy, rng *rand.Rand, neighborDist float64) (*LineFitResult, error) {
	n := len(pts)
	if n < MinLineFitPoints {
		return nil, spatialmath.NewDomainError("line fit needs at least %d points, got %d", MinLineFitPoints, n)
	}
	if allCoincident(pts) {
		return nil, spatialmath.NewDomainError("line fit points are all coincident")
	}
	if rng == nil {
		return nil, spatialmath.NewDomainError("line fit needs a random source")
	}

	thresh := int(lineFitEarlyExit * float64(n))
	var best *spatialmath.LineXY
	var bestMask []bool
	bestCount := 0

	for i := 0; i < LineFitTrials; i++ {
		i1 := rng.Intn(n)
		i2 := rng.Intn(n)
		for pts[i1] == pts[i2] {
			i2 = rng.Intn(n)
		}
		candidate, err := spatialmath.LineFromTwoPoints(pts[i1], pts[i2])
		if err != nil {
			return nil, err
		}

		mask := make([]bool, n)
		count := 0
		for j, d := range candidate.DistFrom(pts) {
			if d < neighborDist {
				mask[j] = true
				count++
			}
		}
		if count > bestCount {
			best, bestMask, bestCount = candidate, mask, count
		}
		if count > thresh {
			break
		}
	}
	if best == nil {
		return nil, spatialmath.NewDomainError("no line hypothesis had any point within %f", neighborDist)
	}

	inliers := make(spatialmath.Vxy, 0, bestCount)
	for j, in := range bestMask {
		if in {
			inliers = append(inliers, pts[j])
		}
	}

	line, err := refineLine(best, inliers)
	if err != nil {
		return nil, err
	}

	var sq float64
	for _, d := range line.DistFrom(inliers) {
		sq += d * d
	}
	return &LineFitResult{
		Line:        line,
		Inliers:     bestMask,
		InlierCount: bestCount,
		RMS:         math.Sqrt(sq / float64(len(inliers))),
	}, nil
}

// refineLine minimizes the mean squared distance over (theta, C) with A = sin(theta),
// B = cos(theta), starting from the RANSAC candidate.
func refineLine(init *spatialmath.LineXY, inliers spatialmath.Vxy) (*spatialmath.LineXY, error) {
	meanSq := func(x []float64) float64 {
		s, c := math.Sincos(x[0])
		var sum float64
		for _, p := range inliers {
			d := s*p.X + c*p.Y + x[1]
			sum += d * d
		}
		return sum / float64(len(inliers))
	}

	x0 := []float64{math.Atan2(init.A, init.B), init.C}
	problem := optimize.Problem{Func: meanSq}
	settings := &optimize.Settings{
		FuncEvaluations: 20000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-14,
			Iterations: 100,
		},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		if err != nil {
			return nil, err
		}
		return init, nil
	}
	x := result.X
	if meanSq(x) > meanSq(x0) {
		x = x0
	}
	s, c := math.Sincos(x[0])
	return spatialmath.NewLineXY(s, c, x[1])
}

func allCoincident(pts spatialmath.Vxy) bool {
	first := pts[0]
	for _, p := range pts[1:] {
		if p != first {
			return false
		}
	}
	return true
}
