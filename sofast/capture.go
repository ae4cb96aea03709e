package sofast

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"golang.org/x/image/tiff"

	"github.com/opencsp/opencsp-go/deflectometry"
	rutils "github.com/opencsp/opencsp-go/utils"
	"github.com/opencsp/opencsp-go/vision/aruco"
)

// Capture directory file names. Fringe frames are numbered in display order.
const (
	BlackFrameName = "black.tiff"
	WhiteFrameName = "white.tiff"
	fringeFrameFmt = "fringe_%03d.tiff"
)

// FringeFrameName returns the file name of the i'th fringe frame.
func FringeFrameName(i int) string {
	return fmt.Sprintf(fringeFrameFmt, i)
}

// FrameSource is a camera that can be asked for single frames.
type FrameSource interface {
	GetFrame(ctx context.Context) (*deflectometry.Frame, error)
	ExposureTime() time.Duration
	Close(ctx context.Context) error
}

// DirFrameSource replays frames stored in a directory, in the given order.
type DirFrameSource struct {
	paths    []string
	next     int
	exposure time.Duration
}

// NewDirFrameSource returns a frame source over the named files in dir.
func NewDirFrameSource(dir string, names []string, exposure time.Duration) *DirFrameSource {
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return &DirFrameSource{paths: paths, exposure: exposure}
}

// GetFrame returns the next stored frame.
func (s *DirFrameSource) GetFrame(ctx context.Context) (*deflectometry.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.paths) {
		return nil, errors.New("no frames left")
	}
	fr, err := ReadFrame(s.paths[s.next])
	if err != nil {
		return nil, err
	}
	s.next++
	return fr, nil
}

// ExposureTime returns the exposure the frames were taken with.
func (s *DirFrameSource) ExposureTime() time.Duration {
	return s.exposure
}

// Close does nothing.
func (s *DirFrameSource) Close(ctx context.Context) error {
	return nil
}

// ReadFrame loads an image as a grayscale frame scaled to [0, 1].
func ReadFrame(path string) (*deflectometry.Frame, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading frame %q", path)
	}
	return FrameFromImage(img), nil
}

// FrameFromImage converts img to a grayscale frame scaled to [0, 1].
func FrameFromImage(img image.Image) *deflectometry.Frame {
	b := img.Bounds()
	fr := deflectometry.NewFrame(b.Dx(), b.Dy())
	gray, ok := img.(*image.Gray16)
	rutils.ParallelForEachPixel(image.Point{X: b.Dx(), Y: b.Dy()}, func(x, y int) {
		var g color.Gray16
		if ok {
			g = gray.Gray16At(b.Min.X+x, b.Min.Y+y)
		} else {
			g = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
		}
		fr.Set(x, y, float64(g.Y)/0xffff)
	})
	return fr
}

// ImageFromFrame quantizes a frame to 16-bit grayscale, clamping to [0, 1].
func ImageFromFrame(fr *deflectometry.Frame) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, fr.Width, fr.Height))
	for y := 0; y < fr.Height; y++ {
		for x := 0; x < fr.Width; x++ {
			v := rutils.Clamp(fr.At(x, y), 0, 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v*0xffff + 0.5)})
		}
	}
	return img
}

// WriteFrameTIFF writes a frame as a 16-bit grayscale TIFF.
func WriteFrameTIFF(path string, fr *deflectometry.Frame) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return tiff.Encode(f, ImageFromFrame(fr), &tiff.Options{Compression: tiff.Deflate})
}

// WriteCaptureDir stores black, white and fringe frames in the layout LoadCapture reads.
func WriteCaptureDir(dir string, black, white *deflectometry.Frame, fringes []*deflectometry.Frame) error {
	if err := rutils.EnsureDir(dir); err != nil {
		return err
	}
	if err := WriteFrameTIFF(filepath.Join(dir, BlackFrameName), black); err != nil {
		return err
	}
	if err := WriteFrameTIFF(filepath.Join(dir, WhiteFrameName), white); err != nil {
		return err
	}
	for i, fr := range fringes {
		if err := WriteFrameTIFF(filepath.Join(dir, FringeFrameName(i)), fr); err != nil {
			return err
		}
	}
	return nil
}

// CaptureFrameNames lists the files of a capture directory in display order.
func CaptureFrameNames(f *deflectometry.Fringes) []string {
	names := []string{BlackFrameName, WhiteFrameName}
	for i := 0; i < f.NumFrames(); i++ {
		names = append(names, FringeFrameName(i))
	}
	return names
}

// DecodeCaptureDir reads a capture directory and decodes its phase map.
func DecodeCaptureDir(ctx context.Context, dir string, f *deflectometry.Fringes, threshold float64) (*deflectometry.PhaseMap, error) {
	src := NewDirFrameSource(dir, CaptureFrameNames(f), 0)
	defer utils.UncheckedErrorFunc(func() error { return src.Close(ctx) })

	frames := make([]*deflectometry.Frame, 0, f.NumFrames()+2)
	for range CaptureFrameNames(f) {
		fr, err := src.GetFrame(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "capture %q", dir)
		}
		frames = append(frames, fr)
	}
	mask, err := deflectometry.CalcMask(frames[0], frames[1], threshold)
	if err != nil {
		return nil, errors.Wrapf(err, "capture %q", dir)
	}
	pm, err := f.Decode(frames[2:], mask)
	if err != nil {
		return nil, errors.Wrapf(err, "capture %q", dir)
	}
	return pm, nil
}

// LoadCapture decodes a capture directory and finds the markers in its white frame.
func LoadCapture(
	ctx context.Context,
	name, dir string,
	f *deflectometry.Fringes,
	threshold float64,
	detector aruco.Detector,
) (ScreenShapeCapture, error) {
	pm, err := DecodeCaptureDir(ctx, dir, f, threshold)
	if err != nil {
		return ScreenShapeCapture{}, err
	}
	markers, err := detector.DetectFile(ctx, filepath.Join(dir, WhiteFrameName))
	if err != nil {
		return ScreenShapeCapture{}, errors.Wrapf(err, "detecting markers in capture %q", name)
	}
	return ScreenShapeCapture{Name: name, Markers: markers, Phase: pm}, nil
}

// PhaseMapPreview renders the screen fractions as red (x) and green (y), black where masked.
func PhaseMapPreview(pm *deflectometry.PhaseMap) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, pm.Width, pm.Height))
	for y := 0; y < pm.Height; y++ {
		for x := 0; x < pm.Width; x++ {
			if !pm.Valid(x, y) {
				img.SetNRGBA(x, y, color.NRGBA{A: 0xff})
				continue
			}
			fx, fy := pm.Fraction(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: unitByte(fx), G: unitByte(fy), A: 0xff})
		}
	}
	return img
}

// SavePhaseMapPreview writes PhaseMapPreview to path; the format follows the extension.
func SavePhaseMapPreview(path string, pm *deflectometry.PhaseMap) error {
	if err := rutils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return imaging.Save(PhaseMapPreview(pm), path)
}

func unitByte(v float64) uint8 {
	return uint8(rutils.Clamp(v, 0, 1)*0xff + 0.5)
}
