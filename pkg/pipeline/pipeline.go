package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/biofloc/wqmodel/pkg/dataset"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/quality"
	"github.com/biofloc/wqmodel/pkg/stats"
	"github.com/biofloc/wqmodel/pkg/train"
)

// Options configures a training run.
type Options struct {
	// Version is stamped into the artifact. Defaults to model.DefaultVersion.
	Version string
	// Synthesize ignores any quality_label column and labels every row with
	// the heuristic.
	Synthesize bool
	Train      train.Options
}

// Report summarizes a training run.
type Report struct {
	Rows            int            `json:"rows" yaml:"rows"`
	Synthesized     bool           `json:"synthesized" yaml:"synthesized"`
	LabelCounts     map[string]int `json:"label_counts" yaml:"label_counts"`
	Strategy        train.Strategy `json:"strategy" yaml:"strategy"`
	Accuracy        float64        `json:"accuracy" yaml:"accuracy"`
	ReducedAccuracy float64        `json:"reduced_accuracy" yaml:"reduced_accuracy"`
	Duration        string         `json:"duration" yaml:"duration"`
}

// Result is the outcome of a successful run.
type Result struct {
	Artifact *model.Artifact
	Report   *Report
}

// Run labels (when needed), standardizes, fits and reduces d into an
// artifact. Any failure aborts the run; no artifact is returned with an error.
func Run(ctx context.Context, d *dataset.Dataset, opts Options) (*Result, error) {
	start := time.Now()

	if d == nil || d.Len() == 0 {
		return nil, dataset.ErrEmpty
	}
	labels, synthesized := d.Labels()
	if opts.Synthesize && d.Labeled {
		slog.Info("ignoring provided labels, synthesizing from readings")
		labels, synthesized = d.SynthesizedLabels(), true
	}
	counts := quality.CountLabels(labels)
	slog.Info("labels ready", "rows", d.Len(), "synthesized", synthesized,
		"good", counts[quality.Good.String()],
		"warning", counts[quality.Warning.String()],
		"critical", counts[quality.Critical.String()])

	y := make([]int, len(labels))
	for i, l := range labels {
		y[i] = int(l)
	}

	x := d.Matrix()
	st, err := stats.Fit(x, quality.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("error computing feature statistics: %w", err)
	}

	xs, err := st.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("error standardizing features: %w", err)
	}

	clf, err := train.Fit(ctx, xs, y, opts.Train)
	if err != nil {
		return nil, fmt.Errorf("error training classifier: %w", err)
	}

	a, err := model.Export(clf, st, opts.Version)
	if err != nil {
		return nil, fmt.Errorf("error exporting model: %w", err)
	}

	acc, err := clf.Accuracy(xs, y)
	if err != nil {
		return nil, fmt.Errorf("error scoring classifier: %w", err)
	}

	reduced, err := reducedAccuracy(a, d.Readings(), labels)
	if err != nil {
		return nil, fmt.Errorf("error scoring reduced model: %w", err)
	}

	r := &Report{
		Rows:            d.Len(),
		Synthesized:     synthesized,
		LabelCounts:     counts,
		Strategy:        clf.Strategy(),
		Accuracy:        model.Round6(acc),
		ReducedAccuracy: model.Round6(reduced),
		Duration:        time.Since(start).String(),
	}
	slog.Info("model trained", "accuracy", r.Accuracy, "reduced_accuracy", r.ReducedAccuracy, "duration", r.Duration)

	return &Result{Artifact: a, Report: r}, nil
}

// reducedAccuracy is the share of readings the exported good-vs-rest form
// puts on the right side of p=0.5.
func reducedAccuracy(a *model.Artifact, readings []quality.Reading, labels []quality.Label) (float64, error) {
	var hits int
	for i, r := range readings {
		p, err := a.Predict(r)
		if err != nil {
			return 0, err
		}
		if (p.Probability >= 0.5) == (labels[i] == quality.Good) {
			hits++
		}
	}
	return float64(hits) / float64(len(readings)), nil
}
