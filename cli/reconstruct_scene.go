package cli

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/logging"
	"github.com/opencsp/opencsp-go/pointcloud"
	"github.com/opencsp/opencsp-go/rimage/transform"
	"github.com/opencsp/opencsp-go/scenereconstruction"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// Output file names of reconstruct-scene.
const (
	PointLocationsFile = "point_locations.csv"
	PointLocationsPCD  = "point_locations.pcd"
	ReprojectionFigure = "reprojection_errors.png"
	sceneFigureTitle   = "Mean reprojection error per image"
)

// ReconstructSceneAction locates marker corners and writes them to the output directory.
func ReconstructSceneAction(c *cli.Context) error {
	logger := newLogger(c, "reconstruct-scene")
	defer utils.UncheckedErrorFunc(logger.Sync)

	var cfg config.SceneReconstructionConfig
	if err := readConfig(c, &cfg); err != nil {
		return err
	}
	cam, err := transform.NewCameraFromJSONFile(cfg.CameraFile)
	if err != nil {
		return err
	}
	known, err := scenereconstruction.LoadKnownPointLocations(cfg.KnownPointsFile)
	if err != nil {
		return err
	}
	progress := NewProgressManager(c.App.ErrWriter, c.Bool(flagProgress),
		&Step{ID: "observe", Message: "loading marker observations"},
		&Step{ID: "reconstruct", Message: "reconstructing scene"},
	)
	defer progress.Stop()

	var images []aruco.ImageObservations
	if err := progress.Run("observe", func() error {
		var err error
		images, err = loadObservations(c, &cfg, logger)
		return err
	}); err != nil {
		return err
	}

	opts := scenereconstruction.DefaultOptions()
	if cfg.MinPointsPerImage > 0 {
		opts.MinPointsPerImage = cfg.MinPointsPerImage
	}
	if cfg.RefineIterations > 0 {
		opts.RefineIterations = cfg.RefineIterations
	}
	if cfg.RefineTolerance > 0 {
		opts.RefineTolerance = cfg.RefineTolerance
	}
	sr, err := scenereconstruction.New(cam, known, images, opts, logger)
	if err != nil {
		return err
	}
	if err := progress.Run("reconstruct", func() error { return sr.RunCalibration(c.Context) }); err != nil {
		return err
	}

	if cfg.PointPairDistances != "" {
		pairs, dists, err := scenereconstruction.LoadPointPairDistances(cfg.PointPairDistances)
		if err != nil {
			return err
		}
		scale, err := sr.ScalePoints(pairs, dists)
		if err != nil {
			return errors.Wrap(err, "scaling points")
		}
		printf(c.App.Writer, "scale: %.9g", scale)
	}
	if cfg.AlignmentPoints != "" {
		ids, targets, err := scenereconstruction.LoadAlignmentPoints(cfg.AlignmentPoints)
		if err != nil {
			return err
		}
		if err := sr.AlignPoints(ids, targets); err != nil {
			return errors.Wrap(err, "aligning points")
		}
	}

	outPath := filepath.Join(cfg.OutputDir, PointLocationsFile)
	if err := sr.SaveCSV(outPath); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %s", outPath)
	if cfg.WritePCD {
		cloud, err := sr.Cloud()
		if err != nil {
			return err
		}
		pcdPath := filepath.Join(cfg.OutputDir, PointLocationsPCD)
		if err := pointcloud.WriteToPCDFile(cloud, pcdPath, pointcloud.PCDAscii); err != nil {
			return err
		}
		printf(c.App.Writer, "wrote %s", pcdPath)
	}

	sum, err := sr.Summary()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "points located: %d", sum.NumPoints)
	printf(c.App.Writer, "reprojection error px: mean %.4f, median %.4f, 95%% %.4f",
		sum.MeanError, sum.MedianError, sum.Percentile95)
	for _, img := range sum.Images {
		if !img.Located {
			warningf(c.App.ErrWriter, "image %s could not be located", img.Name)
		}
	}
	if len(sum.UnlocatedPoints) > 0 {
		warningf(c.App.ErrWriter, "%d points could not be located", len(sum.UnlocatedPoints))
	}

	if cfg.Figures || c.Bool(flagFigures) {
		located := lo.Filter(sum.Images, func(img scenereconstruction.ImageSummary, _ int) bool { return img.Located })
		figPath := filepath.Join(cfg.OutputDir, ReprojectionFigure)
		if err := writeBarFigure(figPath, sceneFigureTitle, "pixels",
			lo.Map(located, func(img scenereconstruction.ImageSummary, _ int) string { return filepath.Base(img.Name) }),
			lo.Map(located, func(img scenereconstruction.ImageSummary, _ int) float64 { return img.MeanError }),
		); err != nil {
			return err
		}
		printf(c.App.Writer, "wrote %s", figPath)
	}
	return nil
}

// loadObservations reads the observation CSV or detects markers in the image glob.
func loadObservations(
	c *cli.Context, cfg *config.SceneReconstructionConfig, logger logging.Logger,
) ([]aruco.ImageObservations, error) {
	if cfg.ObservationsFile != "" {
		return aruco.LoadObservationsCSV(cfg.ObservationsFile)
	}
	detector, err := aruco.NewImageDetector()
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(detector.Close)
	return scenereconstruction.DetectMarkersInImages(c.Context, detector, cfg.ImageGlob, logger)
}
