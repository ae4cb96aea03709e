package cli

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/deflectometry"
	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/spatialmath"
	rutils "github.com/opencsp/opencsp-go/utils"
)

// SolvePoseAction locates an optic and prints the pose, residuals and solver state.
func SolvePoseAction(c *cli.Context) error {
	logger := newLogger(c, "solve-pose")
	defer utils.UncheckedErrorFunc(logger.Sync)

	var cfg config.SolvePoseConfig
	if err := readConfig(c, &cfg); err != nil {
		return err
	}
	cam, err := transform.NewCameraFromJSONFile(cfg.CameraFile)
	if err != nil {
		return err
	}
	rows, err := rutils.ReadNumericCSVFile(cfg.CornersFile, 5)
	if err != nil {
		return err
	}
	problem := deflectometry.PoseProblem{
		Camera:        cam,
		CornersOptic:  make(spatialmath.Vxyz, len(rows)),
		CornersImage:  make(spatialmath.Vxy, len(rows)),
		Measurement:   deflectometry.NewDistanceOpticScreenFromConfig(cfg.Measurement),
		VCamScreenCam: r3.Vector{X: cfg.VCamScreenCam[0], Y: cfg.VCamScreenCam[1], Z: cfg.VCamScreenCam[2]},
	}
	for i, row := range rows {
		problem.CornersOptic[i] = r3.Vector{X: row[0], Y: row[1], Z: row[2]}
		problem.CornersImage[i] = r2.Point{X: row[3], Y: row[4]}
	}
	if cfg.Centroid != nil {
		problem.Centroid = &r2.Point{X: cfg.Centroid[0], Y: cfg.Centroid[1]}
	}

	solver := deflectometry.NewPoseSolver(deflectometry.NewPoseSolverOptions(cfg.PoseSolver), logger)
	res, err := solver.Solve(c.Context, problem)
	if err != nil {
		return err
	}
	q := res.Pose.Quaternion()
	printf(c.App.Writer, "state: %s", res.State)
	printf(c.App.Writer, "converged: %t", res.Converged)
	printf(c.App.Writer, "iterations: %d", res.Iterations)
	printf(c.App.Writer, "pose: %s", res.Pose)
	printf(c.App.Writer, "quaternion (w x y z): %.9f %.9f %.9f %.9f", q.Real, q.Imag, q.Jmag, q.Kmag)
	printf(c.App.Writer, "reprojection error: %.6f px", res.ReprojectionError)
	if problem.Measurement != nil {
		printf(c.App.Writer, "distance error: %.6g", res.DistanceError)
	}
	if !res.Converged {
		warningf(c.App.ErrWriter, "pose solver stopped with state %s", res.State)
	}
	return nil
}
