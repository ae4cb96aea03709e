package deflectometry

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/logging"
	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
)

// SolverState is a stage of the pose solver.
type SolverState int

// The pose solver moves Initial -> DistanceEstimate -> (ReprojectionRefine -> DistanceRefine)*
// and stops in one of the terminal states.
const (
	StateInitial SolverState = iota
	StateDistanceEstimate
	StateReprojectionRefine
	StateDistanceRefine
	StateConverged
	StateStalled
	StateMaxIterations
)

func (s SolverState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateDistanceEstimate:
		return "distance_estimate"
	case StateReprojectionRefine:
		return "reprojection_refine"
	case StateDistanceRefine:
		return "distance_refine"
	case StateConverged:
		return "converged"
	case StateStalled:
		return "stalled"
	case StateMaxIterations:
		return "max_iterations"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Terminal reports whether the solver stops in s.
func (s SolverState) Terminal() bool {
	return s == StateConverged || s == StateStalled || s == StateMaxIterations
}

// PoseSolverOptions bound the refinement loop.
type PoseSolverOptions struct {
	MaxIterations int
	// ReprojectionTolerance is the mean pixel error at or below which a pose constrained by a
	// measured distance is accepted. Corner-only solves converge with the refinement instead.
	ReprojectionTolerance float64
	// DistanceTolerance is the absolute distance error at or below which the pose is accepted.
	DistanceTolerance float64
	// MinImprovement is the smallest reprojection error decrease that keeps the loop going.
	MinImprovement float64
}

// DefaultPoseSolverOptions returns the default loop bounds.
func DefaultPoseSolverOptions() PoseSolverOptions {
	return PoseSolverOptions{
		MaxIterations:         10,
		ReprojectionTolerance: 0.5,
		DistanceTolerance:     1e-3,
		MinImprovement:        1e-9,
	}
}

// NewPoseSolverOptions overlays a config onto the defaults.
func NewPoseSolverOptions(cfg *config.PoseSolverConfig) PoseSolverOptions {
	opts := DefaultPoseSolverOptions()
	if cfg == nil {
		return opts
	}
	if cfg.MaxIterations > 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if cfg.ReprojectionTolerance > 0 {
		opts.ReprojectionTolerance = cfg.ReprojectionTolerance
	}
	if cfg.DistanceTolerance > 0 {
		opts.DistanceTolerance = cfg.DistanceTolerance
	}
	if cfg.MinImprovement > 0 {
		opts.MinImprovement = cfg.MinImprovement
	}
	return opts
}

// PoseProblem is everything needed to locate an optic in front of a camera.
type PoseProblem struct {
	Camera *transform.Camera
	// CornersOptic are the optic corners in the optic frame.
	CornersOptic spatialmath.Vxyz
	// CornersImage are the pixels of CornersOptic.
	CornersImage spatialmath.Vxy
	// Centroid is the optic centroid in the image. The mean of CornersImage is used when nil.
	Centroid *r2.Point
	// Measurement is optional; without it the pose comes from the corners alone.
	Measurement   *DistanceOpticScreen
	VCamScreenCam r3.Vector
}

// IterationRecord is one accepted step of the solver.
type IterationRecord struct {
	Iteration         int
	State             SolverState
	Pose              spatialmath.Pose
	ReprojectionError float64
	DistanceError     float64
}

// PoseResult is the solver outcome. Not converging is reported here, not as an error.
type PoseResult struct {
	// Pose maps optic-frame points into the camera frame.
	Pose              spatialmath.Pose
	ReprojectionError float64
	DistanceError     float64
	Iterations        int
	State             SolverState
	Converged         bool
	History           []IterationRecord
}

// VCamOpticCam is the optic origin in the camera frame.
func (r *PoseResult) VCamOpticCam() r3.Vector {
	return r.Pose.Translation
}

// PoseSolver refines optic poses. It holds no per-problem state and may be shared.
type PoseSolver struct {
	opts   PoseSolverOptions
	logger logging.Logger
}

// NewPoseSolver returns a solver with the given bounds.
func NewPoseSolver(opts PoseSolverOptions, logger logging.Logger) *PoseSolver {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultPoseSolverOptions().MaxIterations
	}
	return &PoseSolver{opts: opts, logger: logger}
}

// Options returns the solver bounds.
func (ps *PoseSolver) Options() PoseSolverOptions {
	return ps.opts
}

func (ps *PoseSolver) validate(problem PoseProblem) error {
	if problem.Camera == nil {
		return spatialmath.NewDomainError("pose problem has no camera")
	}
	if len(problem.CornersOptic) != len(problem.CornersImage) {
		return spatialmath.NewInputMismatchError("optic corner and image point counts",
			len(problem.CornersOptic), len(problem.CornersImage))
	}
	if len(problem.CornersOptic) < transform.MinPnPPoints {
		return spatialmath.NewDomainError("pose problem needs at least %d corners, got %d",
			transform.MinPnPPoints, len(problem.CornersOptic))
	}
	if m := problem.Measurement; m != nil && (m.Distance <= 0 || math.IsNaN(m.Distance)) {
		return spatialmath.NewDomainError("measured distance must be positive, got %f", m.Distance)
	}
	return nil
}

// Solve runs the state machine on problem.
func (ps *PoseSolver) Solve(ctx context.Context, problem PoseProblem) (*PoseResult, error) {
	if err := ps.validate(problem); err != nil {
		return nil, err
	}
	if problem.Measurement == nil {
		return ps.solveCornersOnly(ctx, problem)
	}

	cam := problem.Camera
	meas := problem.Measurement
	centroid, err := problem.imageCentroid()
	if err != nil {
		return nil, err
	}

	// distance estimate
	tInit, err := TFromDistance(centroid, meas.Distance, cam, problem.VCamScreenCam)
	if err != nil {
		return nil, errors.Wrap(err, "initial distance estimate")
	}
	rInit, err := RFromPosition(tInit, problem.VCamScreenCam)
	if err != nil {
		return nil, errors.Wrap(err, "initial orientation estimate")
	}
	current := spatialmath.NewPose(rInit, tInit)
	errR, err := ReprojectionError(cam, problem.CornersOptic, problem.CornersImage, current)
	if err != nil {
		// the estimate may put corners behind the camera; refinement starts from it anyway
		errR = math.Inf(1)
	}
	errD := DistanceError(problem.VCamScreenCam, current.Transform(meas.MeasurePoint), meas.Distance)

	res := &PoseResult{State: StateDistanceEstimate}
	res.accept(IterationRecord{State: StateDistanceEstimate, Pose: current, ReprojectionError: errR, DistanceError: errD})
	ps.logger.CDebugf(ctx, "distance estimate: reprojection %.4f px, distance error %.6f", errR, errD)

	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// reprojection refine
		res.State = StateReprojectionRefine
		guess := current
		next, err := CalcRTFromImgPts(problem.CornersImage, problem.CornersOptic, cam, &guess)
		if err != nil {
			return nil, errors.Wrapf(err, "reprojection refine at iteration %d", iter)
		}

		// distance refine
		res.State = StateDistanceRefine
		vMeas := next.Rotation.Apply(meas.MeasurePoint)
		next.Translation = RefineVDistance(next.Translation, meas.Distance, problem.VCamScreenCam, vMeas)

		nextErrR, projErr := ReprojectionError(cam, problem.CornersOptic, problem.CornersImage, next)
		nextErrD := DistanceError(problem.VCamScreenCam, next.Translation.Add(vMeas), meas.Distance)
		if projErr != nil || nextErrR > errR {
			ps.logger.CDebugf(ctx, "iteration %d rejected: reprojection %.4f px > %.4f px", iter, nextErrR, errR)
			res.State = StateStalled
			break
		}
		improvement := errR - nextErrR
		current, errR, errD = next, nextErrR, nextErrD
		res.accept(IterationRecord{Iteration: iter, State: StateDistanceRefine, Pose: current, ReprojectionError: errR, DistanceError: errD})
		ps.logger.CDebugf(ctx, "iteration %d: reprojection %.4f px, distance error %.6f", iter, errR, errD)

		if errR <= ps.opts.ReprojectionTolerance && math.Abs(errD) <= ps.opts.DistanceTolerance {
			res.State = StateConverged
			break
		}
		if improvement < ps.opts.MinImprovement {
			res.State = StateStalled
			break
		}
		if iter >= ps.opts.MaxIterations {
			res.State = StateMaxIterations
			break
		}
	}
	res.finish()
	if !res.Converged {
		ps.logger.Warnw("optic pose did not converge", "state", res.State.String(),
			"reprojection_error_px", res.ReprojectionError, "distance_error", res.DistanceError)
	}
	return res, nil
}

// solveCornersOnly estimates the pose from the corners alone.
func (ps *PoseSolver) solveCornersOnly(ctx context.Context, problem PoseProblem) (*PoseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &PoseResult{State: StateReprojectionRefine}
	pnp, err := transform.SolvePnPDetailed(problem.Camera, problem.CornersOptic, problem.CornersImage, nil)
	if err != nil {
		return nil, err
	}
	errR, err := ReprojectionError(problem.Camera, problem.CornersOptic, problem.CornersImage, pnp.Pose)
	if err != nil {
		return nil, err
	}
	res.accept(IterationRecord{Iteration: 1, State: StateReprojectionRefine, Pose: pnp.Pose, ReprojectionError: errR})
	ps.logger.CDebugf(ctx, "corner pose: reprojection %.4f px after %d iterations", errR, pnp.Iterations)
	// with no distance constraint the residual is noise; callers gate it themselves
	if pnp.Converged {
		res.State = StateConverged
	} else {
		res.State = StateMaxIterations
	}
	res.finish()
	if !res.Converged {
		ps.logger.Warnw("corner pose did not converge", "iterations", pnp.Iterations, "reprojection_error_px", errR)
	}
	return res, nil
}

func (problem PoseProblem) imageCentroid() (r2.Point, error) {
	if problem.Centroid != nil {
		return *problem.Centroid, nil
	}
	return problem.CornersImage.Centroid()
}

func (r *PoseResult) accept(rec IterationRecord) {
	r.History = append(r.History, rec)
	r.Pose = rec.Pose
	r.ReprojectionError = rec.ReprojectionError
	r.DistanceError = rec.DistanceError
	r.Iterations = rec.Iteration
}

func (r *PoseResult) finish() {
	r.Converged = r.State == StateConverged
}
