package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/biofloc/wqmodel/pkg/quality"
	"github.com/biofloc/wqmodel/pkg/stats"
)

var (
	// ErrGoodClassMissing means the classifier never saw a "good" example, so
	// no good-vs-rest discriminant exists to export.
	ErrGoodClassMissing = errors.New("classifier has no good class")

	ErrFeatureMismatch = errors.New("classifier and statistics disagree on features")
)

// LinearClassifier is a fitted multiclass linear model that exposes one
// coefficient vector and intercept per learned class label.
type LinearClassifier interface {
	Classes() []int
	Coefficients(class int) ([]float64, float64, error)
}

// ReduceGoodVsRest collapses a multiclass model to the linear discriminant of
// the good class alone. The result separates good from not-good; the
// warning-vs-critical distinction the multiclass model carries is dropped.
func ReduceGoodVsRest(clf LinearClassifier) (weights []float64, bias float64, err error) {
	if clf == nil {
		return nil, 0, errors.New("classifier required")
	}

	classes := clf.Classes()
	if !slices.Contains(classes, int(quality.Good)) {
		return nil, 0, fmt.Errorf("%w: learned classes %v", ErrGoodClassMissing, classes)
	}

	w, b, err := clf.Coefficients(int(quality.Good))
	if err != nil {
		return nil, 0, fmt.Errorf("error reading good class coefficients: %w", err)
	}
	return slices.Clone(w), b, nil
}

// Export reduces clf to its good-vs-rest form and packages it with the
// standardization statistics st into a versioned artifact. st must describe
// the same columns, in the same order, the classifier was trained on. All
// numeric fields are rounded with Round6.
func Export(clf LinearClassifier, st *stats.Stats, version string) (*Artifact, error) {
	if version == "" {
		version = DefaultVersion
	}
	if !ValidVersion(version) {
		return nil, fmt.Errorf("invalid artifact version %q", version)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statistics: %w", err)
	}

	weights, bias, err := ReduceGoodVsRest(clf)
	if err != nil {
		return nil, err
	}
	if len(weights) != len(st.Features) {
		return nil, fmt.Errorf("%w: %d weights, %d features", ErrFeatureMismatch, len(weights), len(st.Features))
	}

	a := &Artifact{
		Version:    version,
		Type:       Type,
		Features:   slices.Clone(st.Features),
		Mean:       make(map[string]float64, len(st.Features)),
		Std:        make(map[string]float64, len(st.Features)),
		Weights:    make(map[string]float64, len(st.Features)),
		Bias:       Round6(bias),
		Thresholds: quality.DefaultThresholds,
	}
	for j, f := range st.Features {
		a.Mean[f] = Round6(st.Mean[j])
		a.Std[f] = Round6(st.Scale[j])
		a.Weights[f] = Round6(weights[j])
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
