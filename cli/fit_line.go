package cli

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/spatialmath"
	rutils "github.com/opencsp/opencsp-go/utils"
	"github.com/opencsp/opencsp-go/vision/segmentation"
)

// FitLineAction fits a line to the "x, y" rows of the configured points file.
func FitLineAction(c *cli.Context) error {
	logger := newLogger(c, "fit-line")
	defer utils.UncheckedErrorFunc(logger.Sync)

	var cfg config.LineFitConfig
	if err := readConfig(c, &cfg); err != nil {
		return err
	}
	rows, err := rutils.ReadNumericCSVFile(cfg.PointsFile, 2)
	if err != nil {
		return err
	}
	pts := make(spatialmath.Vxy, len(rows))
	for i, row := range rows {
		pts[i] = r2.Point{X: row[0], Y: row[1]}
	}
	logger.Debugw("fitting line", "points", len(pts), "seed", cfg.Seed, "neighbor_dist", cfg.NeighborDist)

	res, err := segmentation.FitLineDetailed(pts, rand.New(rand.NewSource(cfg.Seed)), cfg.NeighborDist) //nolint:gosec
	if err != nil {
		return err
	}
	abc := res.Line.ABC()
	printf(c.App.Writer, "line: %.9g %.9g %.9g", abc[0], abc[1], abc[2])
	printf(c.App.Writer, "inliers: %d/%d", res.InlierCount, len(pts))
	printf(c.App.Writer, "rms: %.6g", res.RMS)
	return nil
}
