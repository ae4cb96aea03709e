package utils

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadNumericCSV parses a CSV of numbers with a header row and exactly cols columns. Lines
// starting with '#' are skipped.
func ReadNumericCSV(r io.Reader, cols int) ([][]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = cols
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}
	out := make([][]float64, 0, len(records)-1)
	for row, rec := range records[1:] {
		vals := make([]float64, cols)
		for c, s := range rec {
			vals[c], err = strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %d", row+2, c+1)
			}
		}
		out = append(out, vals)
	}
	return out, nil
}

// ReadNumericCSVFile is ReadNumericCSV on the file at path.
func ReadNumericCSVFile(path string, cols int) ([][]float64, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	rows, err := ReadNumericCSV(f, cols)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %q", path)
	}
	return rows, nil
}
