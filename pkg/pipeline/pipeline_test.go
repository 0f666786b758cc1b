package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/biofloc/wqmodel/internal/testutil"
	"github.com/biofloc/wqmodel/pkg/dataset"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/quality"
	"github.com/biofloc/wqmodel/pkg/stats"
	"github.com/biofloc/wqmodel/pkg/train"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func defaultOptions() Options {
	return Options{Version: "0.2.0", Train: train.DefaultOptions()}
}

func TestRun_Synthesized(t *testing.T) {
	d := testutil.Dataset(300, 11)

	res, err := Run(context.Background(), d, defaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)

	a := res.Artifact
	assert.Equal(t, "0.2.0", a.Version)
	assert.Equal(t, quality.FeatureNames(), a.Features)
	assert.Equal(t, quality.DefaultThresholds, a.Thresholds)
	assert.NoError(t, a.Validate())

	r := res.Report
	assert.Equal(t, 300, r.Rows)
	assert.True(t, r.Synthesized)
	assert.Equal(t, 300, r.LabelCounts["good"]+r.LabelCounts["warning"]+r.LabelCounts["critical"])
	assert.Equal(t, train.OneVsRest, r.Strategy)
	assert.Greater(t, r.Accuracy, 0.5)
	assert.Greater(t, r.ReducedAccuracy, 0.65)
}

func TestRun_Reproducible(t *testing.T) {
	a, err := Run(context.Background(), testutil.Dataset(200, 5), defaultOptions())
	require.NoError(t, err)
	b, err := Run(context.Background(), testutil.Dataset(200, 5), defaultOptions())
	require.NoError(t, err)

	if diff := cmp.Diff(a.Artifact, b.Artifact); diff != "" {
		t.Errorf("artifacts differ (-first +second):\n%s", diff)
	}
	da, err := a.Artifact.Digest()
	require.NoError(t, err)
	db, err := b.Artifact.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestRun_StatsMatchData(t *testing.T) {
	d := testutil.Dataset(150, 9)
	res, err := Run(context.Background(), d, defaultOptions())
	require.NoError(t, err)

	st, err := stats.Fit(d.Matrix(), quality.FeatureNames())
	require.NoError(t, err)
	for j, f := range st.Features {
		assert.Equal(t, model.Round6(st.Mean[j]), res.Artifact.Mean[f])
		assert.Equal(t, model.Round6(st.Scale[j]), res.Artifact.Std[f])
	}
}

func TestRun_NoGoodLabels(t *testing.T) {
	d := testutil.Dataset(100, 3)
	d.Labeled = true
	for i := range d.Rows {
		d.Rows[i].Label = quality.Label(i % 2)
	}

	res, err := Run(context.Background(), d, defaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGoodClassMissing))
	assert.Nil(t, res)
}

func TestRun_NoGoodAfterSynthesis(t *testing.T) {
	d := testutil.Dataset(60, 4)
	for i := range d.Rows {
		// every row loses at least 45 points
		d.Rows[i].Reading.Ammonia = 0.6 + float64(i)/100
		d.Rows[i].Reading.DissolvedOxygen = 3 + float64(i)/100
	}

	_, err := Run(context.Background(), d, defaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGoodClassMissing))
}

func TestRun_SingleClass(t *testing.T) {
	d := testutil.Dataset(20, 4)
	d.Labeled = true
	for i := range d.Rows {
		d.Rows[i].Label = quality.Good
	}

	_, err := Run(context.Background(), d, defaultOptions())
	assert.True(t, errors.Is(err, train.ErrSingleClass))
}

func TestRun_SynthesizeOverridesLabels(t *testing.T) {
	d := testutil.Dataset(200, 8)
	d.Labeled = true
	for i := range d.Rows {
		d.Rows[i].Label = quality.Critical
	}

	opts := defaultOptions()
	opts.Synthesize = true
	res, err := Run(context.Background(), d, opts)
	require.NoError(t, err)
	assert.True(t, res.Report.Synthesized)
	assert.Greater(t, res.Report.LabelCounts["good"], 0)

	assert.True(t, d.Labeled, "input dataset is left untouched")
	for _, row := range d.Rows {
		assert.Equal(t, quality.Critical, row.Label)
	}
}

func TestRun_ZeroVariance(t *testing.T) {
	d := testutil.Dataset(50, 2)
	for i := range d.Rows {
		d.Rows[i].Reading.Salinity = 5
	}

	_, err := Run(context.Background(), d, defaultOptions())
	assert.True(t, errors.Is(err, stats.ErrZeroVariance))
}

func TestRun_Empty(t *testing.T) {
	_, err := Run(context.Background(), &dataset.Dataset{}, defaultOptions())
	assert.True(t, errors.Is(err, dataset.ErrEmpty))

	_, err = Run(context.Background(), nil, defaultOptions())
	assert.Error(t, err)
}

func TestRun_Multinomial(t *testing.T) {
	opts := defaultOptions()
	opts.Train.Strategy = train.Multinomial

	res, err := Run(context.Background(), testutil.Dataset(300, 12), opts)
	require.NoError(t, err)
	assert.Equal(t, train.Multinomial, res.Report.Strategy)
	assert.NoError(t, res.Artifact.Validate())
}

func TestReport_YAMLKeys(t *testing.T) {
	b, err := yaml.Marshal(&Report{Rows: 3, LabelCounts: map[string]int{"good": 3}, ReducedAccuracy: 1})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(b, &raw))
	assert.Contains(t, raw, "label_counts")
	assert.Contains(t, raw, "reduced_accuracy")
}
