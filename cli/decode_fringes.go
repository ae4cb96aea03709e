package cli

import (
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/deflectometry"
	"github.com/opencsp/opencsp-go/sofast"
)

// DecodeFringesAction decodes one capture directory and saves a preview of the phase map.
func DecodeFringesAction(c *cli.Context) error {
	logger := newLogger(c, "decode-fringes")
	defer utils.UncheckedErrorFunc(logger.Sync)

	var cfg config.FringeDecodeConfig
	if err := readConfig(c, &cfg); err != nil {
		return err
	}
	fringes := deflectometry.NewFringesFromConfig(&cfg.Fringes)
	pm, err := sofast.DecodeCaptureDir(c.Context, cfg.CaptureDir, fringes, cfg.MaskThreshold)
	if err != nil {
		return err
	}
	valid := lo.Count(pm.Mask, true)
	logger.Debugw("decoded capture", "dir", cfg.CaptureDir, "valid_pixels", valid)
	if valid == 0 {
		warningf(c.App.ErrWriter, "no pixel passed the mask threshold %g", cfg.MaskThreshold)
	}
	if err := sofast.SavePhaseMapPreview(cfg.OutputFile, pm); err != nil {
		return err
	}
	printf(c.App.Writer, "valid pixels: %d/%d", valid, pm.Width*pm.Height)
	printf(c.App.Writer, "wrote %s", cfg.OutputFile)
	return nil
}
