// Package testutil generates deterministic sensor datasets for tests.
package testutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/biofloc/wqmodel/pkg/dataset"
	"github.com/biofloc/wqmodel/pkg/quality"
)

// featureRanges are the uniform sampling bounds per feature. They straddle
// every penalty boundary so all three labels show up in a few hundred rows.
var featureRanges = map[string][2]float64{
	quality.FeaturePH:              {6.5, 9.0},
	quality.FeatureTemperature:     {24, 32},
	quality.FeatureDissolvedOxygen: {3, 8},
	quality.FeatureTDS:             {500, 2500},
	quality.FeatureSalinity:        {0, 10},
	quality.FeatureAmmonia:         {0, 1},
	quality.FeatureNitrite:         {0, 0.5},
	quality.FeatureNitrate:         {10, 70},
	quality.FeatureAlkalinity:      {90, 200},
}

// Readings returns n pseudo-random readings for seed.
func Readings(n int, seed uint64) []quality.Reading {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]quality.Reading, n)
	for i := range out {
		for _, name := range quality.FeatureNames() {
			r := featureRanges[name]
			v := r[0] + rng.Float64()*(r[1]-r[0])
			_ = out[i].Set(name, v)
		}
	}
	return out
}

// Dataset returns an unlabeled dataset of n generated readings.
func Dataset(n int, seed uint64) *dataset.Dataset {
	d := &dataset.Dataset{}
	for i, r := range Readings(n, seed) {
		d.Rows = append(d.Rows, dataset.Row{
			Line:      i + 2,
			Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Reading:   r,
		})
	}
	return d
}

// WriteCSV writes d in the input format. Labels are written only when
// d.Labeled is set.
func WriteCSV(w io.Writer, d *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	header := dataset.RequiredColumns()
	if d.Labeled {
		header = append(header, dataset.ColumnLabel)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	for _, row := range d.Rows {
		rec := []string{row.Timestamp}
		for _, v := range row.Reading.Vector() {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if d.Labeled {
			rec = append(rec, row.Label.String())
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("error writing row %d: %w", row.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Nominal returns a reading inside every safe band.
func Nominal() quality.Reading {
	return quality.Reading{
		PH:              7.5,
		TemperatureC:    28,
		DissolvedOxygen: 6,
		TDS:             1000,
		Salinity:        5,
		Ammonia:         0.1,
		Nitrite:         0.1,
		Nitrate:         10,
		Alkalinity:      150,
	}
}

// RequireLabels fails t unless labels contains every class in want.
func RequireLabels(t *testing.T, labels []quality.Label, want ...quality.Label) {
	t.Helper()
	seen := make(map[quality.Label]bool)
	for _, l := range labels {
		seen[l] = true
	}
	for _, l := range want {
		if !seen[l] {
			t.Fatalf("generated labels do not contain %s", l)
		}
	}
}
