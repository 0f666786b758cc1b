package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrZeroVariance      = errors.New("feature has zero variance")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Stats holds the per-feature standardization parameters. Scale is the
// population standard deviation of the column it was fitted on.
type Stats struct {
	Features []string  `json:"features" yaml:"features"`
	Mean     []float64 `json:"mean" yaml:"mean"`
	Scale    []float64 `json:"scale" yaml:"scale"`
}

// Fit computes mean and scale for every column of x. Column j is named
// features[j]. Constant columns cannot be standardized and are rejected.
func Fit(x mat.Matrix, features []string) (*Stats, error) {
	rows, cols := x.Dims()
	if cols != len(features) {
		return nil, fmt.Errorf("%w: %d columns, %d feature names", ErrDimensionMismatch, cols, len(features))
	}
	if rows == 0 {
		return nil, errors.New("cannot fit statistics on an empty matrix")
	}

	s := &Stats{
		Features: append([]string(nil), features...),
		Mean:     make([]float64, cols),
		Scale:    make([]float64, cols),
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			return nil, fmt.Errorf("%w: %s", ErrZeroVariance, features[j])
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}

	return s, nil
}

// Validate checks that the statistics are complete and usable.
func (s *Stats) Validate() error {
	if s == nil {
		return errors.New("statistics required")
	}
	n := len(s.Features)
	if n == 0 {
		return errors.New("statistics have no features")
	}
	if len(s.Mean) != n || len(s.Scale) != n {
		return fmt.Errorf("%w: %d features, %d means, %d scales", ErrDimensionMismatch, n, len(s.Mean), len(s.Scale))
	}
	for j, sc := range s.Scale {
		if !(sc > 0) {
			return fmt.Errorf("%w: %s", ErrZeroVariance, s.Features[j])
		}
	}
	return nil
}

// Transform returns a standardized copy of x.
func (s *Stats) Transform(x mat.Matrix) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != len(s.Features) {
		return nil, fmt.Errorf("%w: %d columns, %d features", ErrDimensionMismatch, cols, len(s.Features))
	}

	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out, nil
}

// Standardize returns a standardized copy of a single feature vector.
func (s *Stats) Standardize(v []float64) ([]float64, error) {
	if len(v) != len(s.Features) {
		return nil, fmt.Errorf("%w: %d values, %d features", ErrDimensionMismatch, len(v), len(s.Features))
	}
	out := make([]float64, len(v))
	for j := range v {
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}
