package pointcloud

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = iota
	// PCDBinary binary format for pcd.
	PCDBinary
	// PCDCompressed binary format for pcd.
	PCDCompressed
)

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

// pcdField is one column of a pcd file.
type pcdField struct {
	name string
	size int
	typ  string
}

var (
	fieldX     = pcdField{"x", 8, "F"}
	fieldY     = pcdField{"y", 8, "F"}
	fieldZ     = pcdField{"z", 8, "F"}
	fieldRGB   = pcdField{"rgb", 4, "U"}
	fieldLabel = pcdField{"label", 4, "I"}
)

func fieldsFor(meta MetaData) []pcdField {
	fields := []pcdField{fieldX, fieldY, fieldZ}
	if meta.HasColor {
		fields = append(fields, fieldRGB)
	}
	if meta.HasValue {
		fields = append(fields, fieldLabel)
	}
	return fields
}

func colorToPCDInt(d Data) uint32 {
	if d == nil || !d.HasColor() {
		return 0
	}
	r, g, b := d.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func pcdIntToColor(c uint32) color.NRGBA {
	return color.NRGBA{R: uint8(0xFF & (c >> 16)), G: uint8(0xFF & (c >> 8)), B: uint8(0xFF & c), A: 255}
}

func labelOf(d Data) int {
	if d == nil || !d.HasValue() {
		return -1
	}
	return d.Value()
}

// ToPCD writes the cloud in pcd format.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	if outputType == PCDCompressed {
		return errors.New("compressed PCD not yet implemented")
	}
	fields := fieldsFor(cloud.MetaData())
	var names, sizes, types, counts []string
	for _, f := range fields {
		names = append(names, f.name)
		sizes = append(sizes, strconv.Itoa(f.size))
		types = append(types, f.typ)
		counts = append(counts, "1")
	}
	data := "ascii"
	if outputType == PCDBinary {
		data = "binary"
	}
	bw := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(bw, "VERSION .7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT %s\n"+
		"WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		strings.Join(names, " "), strings.Join(sizes, " "), strings.Join(types, " "), strings.Join(counts, " "),
		cloud.Size(), cloud.Size(), data); err != nil {
		return err
	}

	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		switch outputType {
		case PCDBinary:
			buf := make([]byte, 0, 32)
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.X))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Y))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Z))
			for _, f := range fields[3:] {
				switch f {
				case fieldRGB:
					buf = binary.LittleEndian.AppendUint32(buf, colorToPCDInt(d))
				case fieldLabel:
					buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(labelOf(d))))
				}
			}
			_, err = bw.Write(buf)
		default:
			line := []string{
				strconv.FormatFloat(p.X, 'g', -1, 64),
				strconv.FormatFloat(p.Y, 'g', -1, 64),
				strconv.FormatFloat(p.Z, 'g', -1, 64),
			}
			for _, f := range fields[3:] {
				switch f {
				case fieldRGB:
					line = append(line, strconv.FormatUint(uint64(colorToPCDInt(d)), 10))
				case fieldLabel:
					line = append(line, strconv.Itoa(labelOf(d)))
				}
			}
			_, err = fmt.Fprintln(bw, strings.Join(line, " "))
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// WriteToPCDFile writes the cloud to path, creating parent directories as needed.
func WriteToPCDFile(cloud PointCloud, path string, outputType PCDType) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ToPCD(cloud, f, outputType)
}

type pcdHeader struct {
	fields []pcdField
	width  uint64
	height uint64
	points uint64
	data   PCDType
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		if len(tokens) < 3 || tokens[0] != "x" || tokens[1] != "y" || tokens[2] != "z" {
			return errors.Errorf("unsupported pcd fields %s", value)
		}
		header.fields = make([]pcdField, len(tokens))
		for i, tok := range tokens {
			header.fields[i] = pcdField{name: tok}
		}
	case "SIZE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in SIZE line")
		}
		for i, token := range tokens {
			header.fields[i].size, err = strconv.Atoi(token)
			if err != nil || (header.fields[i].size != 4 && header.fields[i].size != 8) {
				return errors.Errorf("invalid SIZE field %s", token)
			}
		}
	case "TYPE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		for i, token := range tokens {
			header.fields[i].typ = token
		}
	case "COUNT":
		for _, token := range tokens {
			if token != "1" {
				return errors.Errorf("unsupported COUNT %s", token)
			}
		}
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid WIDTH field %s", value)
		}
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid HEIGHT field %s", value)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		header.points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid POINTS field %s", value)
		}
		if header.points != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", header.points, header.width*header.height)
		}
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}
	return nil
}

// ReadPCD reads a cloud written by ToPCD or another tool using x y z [rgb] [label] fields.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.New("compressed pcd not yet supported")
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != len(header.fields) {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		vals := make([]float64, len(tokens))
		for j, token := range tokens {
			vals[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Errorf("invalid point %d field %s", i, token)
			}
		}
		if err := setFromSlice(pc, vals, header); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		vals := make([]float64, len(header.fields))
		for j, f := range header.fields {
			buf := make([]byte, f.size)
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			vals[j] = decodeBinary(buf, f)
		}
		if err := setFromSlice(pc, vals, header); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func decodeBinary(buf []byte, f pcdField) float64 {
	if f.size == 8 {
		bits := binary.LittleEndian.Uint64(buf)
		switch f.typ {
		case "F":
			return math.Float64frombits(bits)
		case "I":
			return float64(int64(bits))
		default:
			return float64(bits)
		}
	}
	bits := binary.LittleEndian.Uint32(buf)
	switch f.typ {
	case "F":
		return float64(math.Float32frombits(bits))
	case "I":
		return float64(int32(bits))
	default:
		return float64(bits)
	}
}

func setFromSlice(pc PointCloud, vals []float64, header pcdHeader) error {
	d := NewBasicData()
	for j, f := range header.fields[3:] {
		switch f.name {
		case fieldRGB.name:
			d.SetColor(pcdIntToColor(uint32(vals[3+j])))
		case fieldLabel.name:
			if v := int(vals[3+j]); v >= 0 {
				d.SetValue(v)
			}
		}
	}
	return pc.Set(r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, d)
}

// WriteCSV writes one row per point: label (when the cloud has labels), x, y, z.
func WriteCSV(cloud PointCloud, out io.Writer, header []string) error {
	w := csv.NewWriter(out)
	if header != nil {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	hasValue := cloud.MetaData().HasValue
	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		var rec []string
		if hasValue {
			rec = append(rec, strconv.Itoa(labelOf(d)))
		}
		rec = append(rec,
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
			strconv.FormatFloat(p.Z, 'f', -1, 64))
		err = w.Write(rec)
		return err == nil
	})
	if err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
