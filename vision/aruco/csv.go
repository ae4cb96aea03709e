package aruco

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

var observationHeader = []string{
	"Image", "Marker ID", "x0", "y0", "x1", "y1", "x2", "y2", "x3", "y3",
}

// ReadObservationsCSV parses observations, one marker per row, grouped by image in order
// of first appearance.
func ReadObservationsCSV(r io.Reader) ([]ImageObservations, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(observationHeader)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "error reading observations")
	}
	var out []ImageObservations
	index := map[string]int{}
	for row, rec := range records {
		if row == 0 && rec[0] == observationHeader[0] {
			continue
		}
		obs, err := parseObservation(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "observation row %d", row+1)
		}
		i, ok := index[rec[0]]
		if !ok {
			i = len(out)
			index[rec[0]] = i
			out = append(out, ImageObservations{Name: rec[0]})
		}
		out[i].Markers = append(out[i].Markers, obs)
	}
	return out, nil
}

func parseObservation(rec []string) (Observation, error) {
	id, err := strconv.Atoi(rec[1])
	if err != nil {
		return Observation{}, err
	}
	obs := Observation{MarkerID: id}
	for c := 0; c < CornersPerMarker; c++ {
		x, err := strconv.ParseFloat(rec[2+2*c], 64)
		if err != nil {
			return Observation{}, err
		}
		y, err := strconv.ParseFloat(rec[3+2*c], 64)
		if err != nil {
			return Observation{}, err
		}
		obs.Corners[c] = r2.Point{X: x, Y: y}
	}
	return obs, nil
}

// LoadObservationsCSV reads an observation file.
func LoadObservationsCSV(path string) ([]ImageObservations, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return ReadObservationsCSV(f)
}

// WriteObservationsCSV writes observations in the layout ReadObservationsCSV reads.
func WriteObservationsCSV(w io.Writer, images []ImageObservations) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(observationHeader); err != nil {
		return err
	}
	for _, img := range images {
		for _, m := range img.Markers {
			rec := []string{img.Name, strconv.Itoa(m.MarkerID)}
			for _, p := range m.Corners {
				rec = append(rec, fmt.Sprint(p.X), fmt.Sprint(p.Y))
			}
			if err := writer.Write(rec); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVDetector answers detections from previously recorded observations keyed by image
// base name.
type CSVDetector struct {
	byImage map[string][]Observation
}

// NewCSVDetector indexes recorded observations.
func NewCSVDetector(images []ImageObservations) *CSVDetector {
	d := &CSVDetector{byImage: make(map[string][]Observation, len(images))}
	for _, img := range images {
		d.byImage[filepath.Base(img.Name)] = img.Markers
	}
	return d
}

// DetectFile returns the recorded markers of the image at path.
func (d *CSVDetector) DetectFile(ctx context.Context, path string) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs, ok := d.byImage[filepath.Base(path)]
	if !ok {
		return nil, errors.Errorf("no recorded observations for %q", path)
	}
	return obs, nil
}
