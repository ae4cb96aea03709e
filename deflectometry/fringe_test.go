package deflectometry

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/spatialmath"
)

func TestNewFringesFromNumPeriods(t *testing.T) {
	f, err := NewFringesFromNumPeriods(4, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.PeriodsX, test.ShouldResemble, []float64{0.9, 4, 16, 64})
	test.That(t, f.PeriodsY, test.ShouldResemble, []float64{0.9, 4, 16})
	test.That(t, f.NumFrames(), test.ShouldEqual, 28)

	_, err = NewFringesFromNumPeriods(0, 1)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)

	f = NewFringesFromConfig(&config.FringeConfig{PeriodsX: []float64{0.9, 8}, PeriodsY: []float64{1}})
	test.That(t, f.PhaseShifts, test.ShouldEqual, DefaultPhaseShifts)
	test.That(t, f.NumFrames(), test.ShouldEqual, 12)
}

func TestFringeDecodeRoundTrip(t *testing.T) {
	const w, h = 64, 40
	f, err := NewFringesFromNumPeriods(3, 3)
	test.That(t, err, test.ShouldBeNil)

	// the camera sees the screen one to one with a dim, low contrast response
	frames := f.Patterns(w, h)
	for _, fr := range frames {
		for i, v := range fr.Data {
			fr.Data[i] = 0.1 + 0.6*v
		}
	}
	black := NewFrame(w, h)
	white := NewFrame(w, h)
	for i := range white.Data {
		black.Data[i] = 0.1
		white.Data[i] = 0.7
	}
	// an occluded corner
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			white.Set(x, y, 0.1)
		}
	}
	mask, err := CalcMask(black, white, 0.2)
	test.That(t, err, test.ShouldBeNil)

	pm, err := f.Decode(frames, mask)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pm.Valid(0, 0), test.ShouldBeFalse)
	test.That(t, pm.Valid(w, 0), test.ShouldBeFalse)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < 5 && y < 5 {
				continue
			}
			test.That(t, pm.Valid(x, y), test.ShouldBeTrue)
			fx, fy := pm.Fraction(x, y)
			test.That(t, fx, test.ShouldAlmostEqual, (float64(x)+0.5)/w, 1e-9)
			test.That(t, fy, test.ShouldAlmostEqual, (float64(y)+0.5)/h, 1e-9)
		}
	}
}

func TestFringeDecodeErrors(t *testing.T) {
	f, err := NewFringesFromNumPeriods(2, 2)
	test.That(t, err, test.ShouldBeNil)
	frames := f.Patterns(8, 8)

	_, err = f.Decode(frames[1:], nil)
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)

	_, err = f.Decode(frames, make([]bool, 3))
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)

	frames[3] = NewFrame(4, 4)
	_, err = f.Decode(frames, nil)
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)

	_, err = CalcMask(NewFrame(2, 2), NewFrame(3, 2), 0.1)
	test.That(t, errors.Is(err, spatialmath.ErrInputMismatch), test.ShouldBeTrue)

	bad := &Fringes{PeriodsX: []float64{4}, PeriodsY: []float64{0.9}, PhaseShifts: 4}
	_, err = bad.Decode(bad.Patterns(4, 4), nil)
	test.That(t, errors.Is(err, spatialmath.ErrDomain), test.ShouldBeTrue)
}
