package deflectometry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/opencsp/opencsp-go/spatialmath"
)

// Distorted3DModel is the display model whose screen points carry full 3D positions.
const Distorted3DModel = "distorted3D"

// DisplayShape maps screen fractions to measured 3D screen points.
type DisplayShape struct {
	Name string
	// Model is always Distorted3DModel.
	Model            string
	XYScreenFraction spatialmath.Vxy
	XYZScreenCoords  spatialmath.Vxyz
	ResolutionXY     [2]int

	grid *shapeGrid
}

type displayShapeJSON struct {
	Name             string       `json:"name"`
	Model            string       `json:"model"`
	XYScreenFraction [][2]float64 `json:"xy_screen_fraction"`
	XYZScreenCoords  [][3]float64 `json:"xyz_screen_coords"`
	ResolutionXY     [2]int       `json:"resolution_xy"`
}

// NewDisplayShape builds a display shape from paired fractions and screen points.
func NewDisplayShape(name string, fractions spatialmath.Vxy, coords spatialmath.Vxyz, resolution [2]int) (*DisplayShape, error) {
	if len(fractions) != len(coords) {
		return nil, spatialmath.NewInputMismatchError("screen fraction and coordinate counts", len(fractions), len(coords))
	}
	if len(fractions) == 0 {
		return nil, spatialmath.NewDomainError("display shape %q has no points", name)
	}
	ds := &DisplayShape{
		Name:             name,
		Model:            Distorted3DModel,
		XYScreenFraction: fractions.Copy(),
		XYZScreenCoords:  coords.Copy(),
		ResolutionXY:     resolution,
	}
	ds.grid = ds.buildGrid()
	return ds, nil
}

// MarshalJSON writes the display shape artifact.
func (ds *DisplayShape) MarshalJSON() ([]byte, error) {
	out := displayShapeJSON{
		Name:         ds.Name,
		Model:        ds.Model,
		ResolutionXY: ds.ResolutionXY,
		XYScreenFraction: lo.Map(ds.XYScreenFraction, func(p r2.Point, _ int) [2]float64 {
			return [2]float64{p.X, p.Y}
		}),
		XYZScreenCoords: lo.Map(ds.XYZScreenCoords, func(p r3.Vector, _ int) [3]float64 {
			return [3]float64{p.X, p.Y, p.Z}
		}),
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the display shape artifact.
func (ds *DisplayShape) UnmarshalJSON(data []byte) error {
	var in displayShapeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "error parsing display shape")
	}
	if in.Model != Distorted3DModel {
		return errors.Errorf("unsupported display model %q", in.Model)
	}
	shape, err := NewDisplayShape(in.Name,
		lo.Map(in.XYScreenFraction, func(p [2]float64, _ int) r2.Point { return r2.Point{X: p[0], Y: p[1]} }),
		lo.Map(in.XYZScreenCoords, func(p [3]float64, _ int) r3.Vector { return r3.Vector{X: p[0], Y: p[1], Z: p[2]} }),
		in.ResolutionXY)
	if err != nil {
		return err
	}
	*ds = *shape
	return nil
}

// WriteJSONFile saves the display shape to path.
func (ds *DisplayShape) WriteJSONFile(path string) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// NewDisplayShapeFromJSONFile loads a display shape saved by WriteJSONFile.
func NewDisplayShapeFromJSONFile(path string) (*DisplayShape, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading display shape %q", path)
	}
	ds := &DisplayShape{}
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

type gridKey struct{ i, j int }

type shapeGrid struct {
	xs, ys []float64
	points map[gridKey]r3.Vector
}

func (ds *DisplayShape) buildGrid() *shapeGrid {
	xs := lo.Uniq(ds.XYScreenFraction.X())
	ys := lo.Uniq(ds.XYScreenFraction.Y())
	sort.Float64s(xs)
	sort.Float64s(ys)
	g := &shapeGrid{xs: xs, ys: ys, points: make(map[gridKey]r3.Vector, len(ds.XYScreenFraction))}
	for k, f := range ds.XYScreenFraction {
		key := gridKey{sort.SearchFloat64s(xs, f.X), sort.SearchFloat64s(ys, f.Y)}
		g.points[key] = ds.XYZScreenCoords[k]
	}
	return g
}

// cell returns the lower grid index bracketing v and the fraction through the cell.
func cell(axis []float64, v float64) (int, float64, bool) {
	if len(axis) < 2 || v < axis[0] || v > axis[len(axis)-1] {
		return 0, 0, false
	}
	i := sort.SearchFloat64s(axis, v)
	if i == len(axis)-1 || (i < len(axis) && axis[i] > v) {
		i--
	}
	if i < 0 {
		i = 0
	}
	return i, (v - axis[i]) / (axis[i+1] - axis[i]), true
}

// Interpolate returns the 3D screen point at fraction by bilinear interpolation. It reports
// false outside the measured grid or where a neighboring sample is missing.
func (ds *DisplayShape) Interpolate(fraction r2.Point) (r3.Vector, bool) {
	g := ds.grid
	if g == nil {
		g = ds.buildGrid()
	}
	i, tx, okX := cell(g.xs, fraction.X)
	j, ty, okY := cell(g.ys, fraction.Y)
	if !okX || !okY {
		return r3.Vector{}, false
	}
	p00, ok00 := g.points[gridKey{i, j}]
	p10, ok10 := g.points[gridKey{i + 1, j}]
	p01, ok01 := g.points[gridKey{i, j + 1}]
	p11, ok11 := g.points[gridKey{i + 1, j + 1}]
	if !ok00 || !ok10 || !ok01 || !ok11 {
		return r3.Vector{}, false
	}
	bottom := p00.Mul(1 - tx).Add(p10.Mul(tx))
	top := p01.Mul(1 - tx).Add(p11.Mul(tx))
	return bottom.Mul(1 - ty).Add(top.Mul(ty)), true
}
