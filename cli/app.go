// Package cli contains the opencsp command line surface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/opencsp/opencsp-go/logging"
)

// Flags.
const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagFigures  = "figures"
	flagLogLevel = "log-level"
	flagProgress = "progress"
	flagTrace    = "trace"
)

var configFlag = &cli.PathFlag{
	Name:     flagConfig,
	Aliases:  []string{"c"},
	Required: true,
	Usage:    "load configuration from `FILE` (.yaml, .yml or .json)",
}

var app = &cli.App{
	Name:            "opencsp",
	Usage:           "calibrate deflectometry cameras, scenes and displays",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Value: "info",
			Usage: "minimum `LEVEL` logged: debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  flagTrace,
			Usage: "log solver iterations while keeping other output at info level",
		},
		&cli.BoolFlag{
			Name:  flagProgress,
			Usage: "show a spinner for each stage of long running commands",
		},
	},
	Before: func(c *cli.Context) error {
		if _, err := logging.LevelFromString(c.String(flagLogLevel)); err != nil {
			return err
		}
		if c.Bool(flagTrace) {
			c.Context = logging.EnableDebugMode(c.Context, "")
		}
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:      "fit-line",
			Usage:     "fit a line to 2D points with RANSAC",
			UsageText: "opencsp fit-line --config FILE",
			Flags:     []cli.Flag{configFlag},
			Action:    FitLineAction,
		},
		{
			Name:      "solve-pose",
			Usage:     "locate an optic from its corners and a measured screen distance",
			UsageText: "opencsp solve-pose --config FILE",
			Flags:     []cli.Flag{configFlag},
			Action:    SolvePoseAction,
		},
		{
			Name:      "reconstruct-scene",
			Usage:     "locate markers from photographs and known points",
			UsageText: "opencsp reconstruct-scene --config FILE [--figures]",
			Flags: []cli.Flag{
				configFlag,
				&cli.BoolFlag{
					Name:  flagFigures,
					Usage: "write reprojection error figures to the output directory",
				},
			},
			Action: ReconstructSceneAction,
		},
		{
			Name:      "calibrate-display",
			Usage:     "measure the 3D shape of a display from fringe captures",
			UsageText: "opencsp calibrate-display --config FILE",
			Flags:     []cli.Flag{configFlag},
			Action:    CalibrateDisplayAction,
		},
		{
			Name:      "decode-fringes",
			Usage:     "decode one fringe capture into a screen fraction preview",
			UsageText: "opencsp decode-fringes --config FILE",
			Flags:     []cli.Flag{configFlag},
			Action:    DecodeFringesAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
