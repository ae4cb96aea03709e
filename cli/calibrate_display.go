package cli

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/deflectometry"
	"github.com/opencsp/opencsp-go/pointcloud"
	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/scenereconstruction"
	"github.com/opencsp/opencsp-go/sofast"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// CalibrateDisplayAction measures a display shape and writes it as JSON and PCD.
func CalibrateDisplayAction(c *cli.Context) error {
	logger := newLogger(c, "calibrate-display")
	defer utils.UncheckedErrorFunc(logger.Sync)

	var cfg config.DisplayCalibrationConfig
	if err := readConfig(c, &cfg); err != nil {
		return err
	}
	cam, err := transform.NewCameraFromJSONFile(cfg.CameraFile)
	if err != nil {
		return err
	}
	locs, err := scenereconstruction.LoadPointLocations(cfg.PointLocationsFile)
	if err != nil {
		return err
	}
	in := sofast.DataInput{
		PointIDs:             lo.Map(locs, func(l scenereconstruction.PointLocation, _ int) int { return l.PointID }),
		ResolutionXY:         cfg.ResolutionXY,
		Camera:               cam,
		PoseSolver:           deflectometry.NewPoseSolverOptions(cfg.PoseSolver),
		MaxReprojectionError: cfg.MaxReprojectionError,
	}
	for _, l := range locs {
		in.PointsXYZ = append(in.PointsXYZ, l.XYZ)
	}
	if cfg.ScreenCalPointsFile != "" {
		ids, pts, err := scenereconstruction.LoadScreenCalPoints(cfg.ScreenCalPointsFile)
		if err != nil {
			return err
		}
		for i, id := range ids {
			in.ScreenCalPointPairs = append(in.ScreenCalPointPairs, sofast.ScreenCalPointPair{PointID: id, ScreenXYZ: pts[i]})
		}
	}

	progress := NewProgressManager(c.App.ErrWriter, c.Bool(flagProgress),
		&Step{ID: "load", Message: "loading captures"},
		&Step{ID: "calibrate", Message: "calibrating display shape"},
	)
	defer progress.Stop()

	fringes := deflectometry.NewFringesFromConfig(&cfg.Fringes)
	var imageDetector *aruco.GocvDetector
	defer func() {
		if imageDetector != nil {
			utils.UncheckedError(imageDetector.Close())
		}
	}()
	if err := progress.Run("load", func() error {
		for _, cc := range cfg.Captures {
			var detector aruco.Detector
			if cc.MarkersFile != "" {
				images, err := aruco.LoadObservationsCSV(cc.MarkersFile)
				if err != nil {
					return err
				}
				if len(images) == 1 {
					// a single recording belongs to the white frame whatever image it names
					images[0].Name = sofast.WhiteFrameName
				}
				detector = aruco.NewCSVDetector(images)
			} else {
				if imageDetector == nil {
					var err error
					if imageDetector, err = aruco.NewImageDetector(); err != nil {
						return err
					}
				}
				detector = imageDetector
			}
			capture, err := sofast.LoadCapture(c.Context, cc.Name, cc.Dir, fringes, cfg.MaskThreshold, detector)
			if err != nil {
				return err
			}
			in.Captures = append(in.Captures, capture)
		}
		return nil
	}); err != nil {
		return err
	}

	cal, err := sofast.NewCalibrateDisplayShape(in, logger)
	if err != nil {
		return err
	}
	if err := progress.Run("calibrate", func() error { return cal.Run(c.Context) }); err != nil {
		return errors.Wrap(err, "calibrating display")
	}
	for _, res := range cal.CaptureResults() {
		if res.Used {
			printf(c.App.Writer, "capture %s: %d samples, reprojection error %.4f px", res.Name, res.Samples, res.ReprojectionError)
		} else {
			warningf(c.App.ErrWriter, "capture %s skipped: %s", res.Name, res.Reason)
		}
	}

	shape, err := cal.AsDisplayShape(cfg.Name)
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(cfg.OutputDir, cfg.Name+".json")
	if err := shape.WriteJSONFile(jsonPath); err != nil {
		return err
	}
	cloud, err := pointcloud.NewFromPoints(shape.XYZScreenCoords, nil)
	if err != nil {
		return err
	}
	pcdPath := filepath.Join(cfg.OutputDir, cfg.Name+".pcd")
	if err := pointcloud.WriteToPCDFile(cloud, pcdPath, pointcloud.PCDBinary); err != nil {
		return err
	}
	printf(c.App.Writer, "display shape %s: %d points", cfg.Name, len(shape.XYZScreenCoords))
	printf(c.App.Writer, "wrote %s", jsonPath)
	printf(c.App.Writer, "wrote %s", pcdPath)
	return nil
}
