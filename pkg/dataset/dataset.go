package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/biofloc/wqmodel/pkg/quality"
	"gonum.org/v1/gonum/mat"
)

const (
	ColumnTimestamp = "timestamp"
	ColumnLabel     = "quality_label"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmpty         = errors.New("dataset has no rows")
)

// Row is a single parsed input record. Line is the 1-based line number in
// the source, header included.
type Row struct {
	Line      int             `json:"line" yaml:"line"`
	Timestamp string          `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Reading   quality.Reading `json:"reading" yaml:"reading"`
	Label     quality.Label   `json:"label" yaml:"label"`
}

// Dataset is a loaded table of sensor readings. Labeled is true when the
// source carried a quality_label column, in which case every Row.Label is
// taken from it.
type Dataset struct {
	Rows    []Row
	Labeled bool
}

// RequiredColumns returns the columns every input must carry.
func RequiredColumns() []string {
	return append([]string{ColumnTimestamp}, quality.FeatureNames()...)
}

// LoadFile reads a CSV dataset from path.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening dataset %s: %w", path, err)
	}
	defer f.Close()

	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("error loading dataset %s: %w", path, err)
	}
	return d, nil
}

// Load reads a CSV dataset. The header must contain all required columns
// (case-insensitive); other columns are ignored. Any malformed row aborts
// the load.
func Load(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	// spreadsheet exports prefix the header with a byte order mark
	headers[0] = strings.TrimPrefix(headers[0], "\ufeff")

	headerMap := make(map[string]int, len(headers))
	for i, h := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for _, col := range RequiredColumns() {
		if _, ok := headerMap[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	_, labeled := headerMap[ColumnLabel]
	d := &Dataset{Labeled: labeled}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error at line %d: %w", line, err)
		}

		row, err := parseRecord(record, headerMap, labeled)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row.Line = line
		d.Rows = append(d.Rows, row)
	}

	if len(d.Rows) == 0 {
		return nil, ErrEmpty
	}

	slog.Debug("dataset loaded", "rows", len(d.Rows), "labeled", labeled)
	return d, nil
}

func parseRecord(record []string, headerMap map[string]int, labeled bool) (Row, error) {
	get := func(col string) string {
		if idx, ok := headerMap[col]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	row := Row{Timestamp: get(ColumnTimestamp)}

	for _, name := range quality.FeatureNames() {
		raw := get(name)
		if raw == "" {
			return Row{}, fmt.Errorf("%w: %s", quality.ErrMissingFeature, name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
		}
		if err := row.Reading.Set(name, v); err != nil {
			return Row{}, err
		}
	}

	if err := row.Reading.Validate(); err != nil {
		return Row{}, err
	}

	if labeled {
		l, err := quality.ParseLabel(get(ColumnLabel))
		if err != nil {
			return Row{}, err
		}
		row.Label = l
	}

	return row, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Readings returns the readings in row order.
func (d *Dataset) Readings() []quality.Reading {
	out := make([]quality.Reading, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row.Reading
	}
	return out
}

// Matrix returns the rows x features matrix with columns in
// quality.FeatureNames order.
func (d *Dataset) Matrix() *mat.Dense {
	cols := len(quality.FeatureNames())
	data := make([]float64, 0, len(d.Rows)*cols)
	for _, row := range d.Rows {
		data = append(data, row.Reading.Vector()...)
	}
	return mat.NewDense(len(d.Rows), cols, data)
}

// Synthesize replaces every row label with the heuristic label.
func (d *Dataset) Synthesize() {
	for i := range d.Rows {
		d.Rows[i].Label = quality.SynthesizeLabel(d.Rows[i].Reading)
	}
	d.Labeled = false
}

// Labels returns one label per row. Rows of an unlabeled dataset are labeled
// with the synthesis heuristic; synthesized reports whether that happened.
func (d *Dataset) Labels() (labels []quality.Label, synthesized bool) {
	labels = make([]quality.Label, len(d.Rows))
	for i, row := range d.Rows {
		if d.Labeled {
			labels[i] = row.Label
			continue
		}
		labels[i] = quality.SynthesizeLabel(row.Reading)
	}
	return labels, !d.Labeled
}

// SynthesizedLabels returns the heuristic label of every row, ignoring any
// provided labels. d is not modified.
func (d *Dataset) SynthesizedLabels() []quality.Label {
	labels := make([]quality.Label, len(d.Rows))
	for i, row := range d.Rows {
		labels[i] = quality.SynthesizeLabel(row.Reading)
	}
	return labels
}
