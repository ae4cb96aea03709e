package deflectometry

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/spatialmath"
	"github.com/opencsp/opencsp-go/utils"
)

// DefaultPhaseShifts is the number of phase-shifted frames per fringe period.
const DefaultPhaseShifts = 4

// Axis selects the screen direction a fringe pattern varies along.
type Axis int

// Fringe axes.
const (
	AxisX Axis = iota
	AxisY
)

// Fringes describes a set of sinusoidal fringe patterns. Periods are in cycles per screen
// and the first period of each axis must not exceed one so its phase is unambiguous.
type Fringes struct {
	PeriodsX    []float64
	PeriodsY    []float64
	PhaseShifts int
}

// NewFringesFromNumPeriods returns nx and ny periods growing by a factor of four, the first
// just under one cycle per screen.
func NewFringesFromNumPeriods(nx, ny int) (*Fringes, error) {
	if nx < 1 || ny < 1 {
		return nil, spatialmath.NewDomainError("need at least one fringe period per axis, got %d and %d", nx, ny)
	}
	periods := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Pow(4, float64(i))
		}
		out[0] -= 0.1
		return out
	}
	return &Fringes{PeriodsX: periods(nx), PeriodsY: periods(ny), PhaseShifts: DefaultPhaseShifts}, nil
}

// NewFringesFromConfig converts a validated fringe config.
func NewFringesFromConfig(cfg *config.FringeConfig) *Fringes {
	shifts := cfg.PhaseShifts
	if shifts == 0 {
		shifts = DefaultPhaseShifts
	}
	return &Fringes{
		PeriodsX:    append([]float64(nil), cfg.PeriodsX...),
		PeriodsY:    append([]float64(nil), cfg.PeriodsY...),
		PhaseShifts: shifts,
	}
}

// NumFrames is the number of fringe frames in one capture, X periods first.
func (f *Fringes) NumFrames() int {
	return f.PhaseShifts * (len(f.PeriodsX) + len(f.PeriodsY))
}

func (f *Fringes) check() error {
	if f.PhaseShifts < 3 {
		return spatialmath.NewDomainError("need at least 3 phase shifts, got %d", f.PhaseShifts)
	}
	for _, periods := range [][]float64{f.PeriodsX, f.PeriodsY} {
		if len(periods) == 0 {
			return spatialmath.NewDomainError("fringe axis has no periods")
		}
		if periods[0] <= 0 || periods[0] > 1 {
			return spatialmath.NewDomainError("coarsest period must be in (0, 1], got %f", periods[0])
		}
	}
	return nil
}

// Frame is a single-channel image with values in [0, 1], stored row major.
type Frame struct {
	Width, Height int
	Data          []float64
}

// NewFrame returns a black frame.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the value at pixel (x, y).
func (fr *Frame) At(x, y int) float64 {
	return fr.Data[y*fr.Width+x]
}

// Set sets the value at pixel (x, y).
func (fr *Frame) Set(x, y int, v float64) {
	fr.Data[y*fr.Width+x] = v
}

func (fr *Frame) size() image.Point {
	return image.Point{X: fr.Width, Y: fr.Height}
}

func shiftAngle(shift, n int) float64 {
	return 2 * math.Pi * float64(shift) / float64(n)
}

// Pattern renders the fringe with the given period and phase shift on a width by height
// screen.
func (f *Fringes) Pattern(axis Axis, period float64, shift, width, height int) *Frame {
	fr := NewFrame(width, height)
	delta := shiftAngle(shift, f.PhaseShifts)
	utils.ParallelForEachPixel(fr.size(), func(x, y int) {
		frac := (float64(x) + 0.5) / float64(width)
		if axis == AxisY {
			frac = (float64(y) + 0.5) / float64(height)
		}
		fr.Set(x, y, 0.5+0.5*math.Cos(2*math.Pi*period*frac+delta))
	})
	return fr
}

// Patterns renders every frame of a capture in display order.
func (f *Fringes) Patterns(width, height int) []*Frame {
	out := make([]*Frame, 0, f.NumFrames())
	for _, ax := range []struct {
		axis    Axis
		periods []float64
	}{{AxisX, f.PeriodsX}, {AxisY, f.PeriodsY}} {
		for _, p := range ax.periods {
			for k := 0; k < f.PhaseShifts; k++ {
				out = append(out, f.Pattern(ax.axis, p, k, width, height))
			}
		}
	}
	return out
}

// PhaseMap holds the decoded screen fraction seen by every camera pixel.
type PhaseMap struct {
	Width, Height int
	X, Y          []float64
	Mask          []bool
}

// Valid reports whether pixel (x, y) decoded.
func (pm *PhaseMap) Valid(x, y int) bool {
	if x < 0 || y < 0 || x >= pm.Width || y >= pm.Height {
		return false
	}
	return pm.Mask[y*pm.Width+x]
}

// Fraction returns the screen fraction at pixel (x, y).
func (pm *PhaseMap) Fraction(x, y int) (float64, float64) {
	i := y*pm.Width + x
	return pm.X[i], pm.Y[i]
}

// CalcMask marks pixels whose white minus black response exceeds threshold.
func CalcMask(black, white *Frame, threshold float64) ([]bool, error) {
	if black.Width != white.Width || black.Height != white.Height {
		return nil, spatialmath.NewInputMismatchError("mask frame pixel counts",
			black.Width*black.Height, white.Width*white.Height)
	}
	mask := make([]bool, len(black.Data))
	for i := range mask {
		mask[i] = white.Data[i]-black.Data[i] > threshold
	}
	return mask, nil
}

// Decode recovers screen fractions from captured fringe frames ordered as Patterns renders
// them. A nil mask decodes every pixel.
func (f *Fringes) Decode(frames []*Frame, mask []bool) (*PhaseMap, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if len(frames) != f.NumFrames() {
		return nil, spatialmath.NewInputMismatchError("fringe frame count", len(frames), f.NumFrames())
	}
	w, h := frames[0].Width, frames[0].Height
	for i, fr := range frames {
		if fr.Width != w || fr.Height != h {
			return nil, errors.Wrapf(spatialmath.ErrInputMismatch, "frame %d is %dx%d, expected %dx%d", i, fr.Width, fr.Height, w, h)
		}
	}
	n := w * h
	if mask == nil {
		mask = make([]bool, n)
		for i := range mask {
			mask[i] = true
		}
	} else if len(mask) != n {
		return nil, spatialmath.NewInputMismatchError("mask and frame pixel counts", len(mask), n)
	}

	pm := &PhaseMap{
		Width:  w,
		Height: h,
		X:      make([]float64, n),
		Y:      make([]float64, n),
		Mask:   append([]bool(nil), mask...),
	}
	xFrames := frames[:f.PhaseShifts*len(f.PeriodsX)]
	yFrames := frames[f.PhaseShifts*len(f.PeriodsX):]
	utils.ParallelForEachPixel(image.Point{X: w, Y: h}, func(x, y int) {
		i := y*w + x
		if !mask[i] {
			return
		}
		pm.X[i] = f.unwrap(f.PeriodsX, xFrames, i)
		pm.Y[i] = f.unwrap(f.PeriodsY, yFrames, i)
		if math.IsNaN(pm.X[i]) || math.IsNaN(pm.Y[i]) {
			pm.Mask[i] = false
		}
	})
	return pm, nil
}

// wrappedPhase returns the phase in [0, 2pi) of the shifted frames at pixel i, or NaN when
// the pixel shows no modulation.
func (f *Fringes) wrappedPhase(frames []*Frame, i int) float64 {
	var s, c float64
	for k, fr := range frames {
		delta := shiftAngle(k, f.PhaseShifts)
		s += fr.Data[i] * math.Sin(delta)
		c += fr.Data[i] * math.Cos(delta)
	}
	if s == 0 && c == 0 {
		return math.NaN()
	}
	phi := math.Atan2(-s, c)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}

// unwrap refines the screen fraction period by period, coarse to fine.
func (f *Fringes) unwrap(periods []float64, frames []*Frame, i int) float64 {
	frac := math.NaN()
	for p, period := range periods {
		phi := f.wrappedPhase(frames[p*f.PhaseShifts:(p+1)*f.PhaseShifts], i)
		if math.IsNaN(phi) {
			return math.NaN()
		}
		if p == 0 {
			frac = phi / (2 * math.Pi * period)
			continue
		}
		expected := 2 * math.Pi * period * frac
		cycles := math.Round((expected - phi) / (2 * math.Pi))
		frac = (phi + 2*math.Pi*cycles) / (2 * math.Pi * period)
	}
	return frac
}
