package cli

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	rutils "github.com/opencsp/opencsp-go/utils"
)

// writeBarFigure saves one bar per name to a PNG at path.
func writeBarFigure(path, title, yLabel string, names []string, values []float64) error {
	if len(names) != len(values) {
		return errors.Errorf("figure %q has %d names and %d values", title, len(names), len(values))
	}
	if len(values) == 0 {
		return errors.Errorf("figure %q has no values", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(12))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)

	if err := rutils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	width := vg.Length(len(values))*vg.Points(24) + 2*vg.Inch
	return p.Save(width, 4*vg.Inch, path)
}
