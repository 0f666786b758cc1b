package model

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"

	"github.com/biofloc/wqmodel/pkg/quality"
)

const (
	// Type is the only artifact type produced and accepted.
	Type = "logistic"

	// DefaultVersion is the artifact version used when none is configured.
	DefaultVersion = "0.1.0"

	roundingScale = 1e6
)

var (
	ErrInvalidArtifact = errors.New("invalid model artifact")

	semverRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)
)

// Artifact is the portable, self-describing linear model consumed by the
// inference runtime. Field names are part of the runtime contract.
type Artifact struct {
	Version    string             `json:"version" yaml:"version"`
	Type       string             `json:"type" yaml:"type"`
	Features   []string           `json:"features" yaml:"features"`
	Mean       map[string]float64 `json:"mean" yaml:"mean"`
	Std        map[string]float64 `json:"std" yaml:"std"`
	Weights    map[string]float64 `json:"weights" yaml:"weights"`
	Bias       float64            `json:"bias" yaml:"bias"`
	Thresholds quality.Thresholds `json:"thresholds" yaml:"thresholds"`
}

// Round6 rounds v to 6 decimal places, half away from zero. Negative zero
// is normalized so equal artifacts encode identically. Rounding an already
// rounded value returns it unchanged.
func Round6(v float64) float64 {
	r := math.Round(v*roundingScale) / roundingScale
	if r == 0 {
		return 0
	}
	return r
}

// ValidVersion reports whether v is a semantic version without a "v" prefix.
func ValidVersion(v string) bool {
	return semverRegex.MatchString(v)
}

// Validate checks the artifact is complete and internally consistent.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil", ErrInvalidArtifact)
	}
	if !ValidVersion(a.Version) {
		return fmt.Errorf("%w: version %q is not a semantic version", ErrInvalidArtifact, a.Version)
	}
	if a.Type != Type {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidArtifact, a.Type)
	}
	if len(a.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidArtifact)
	}

	seen := make(map[string]bool, len(a.Features))
	for _, f := range a.Features {
		if seen[f] {
			return fmt.Errorf("%w: duplicate feature %s", ErrInvalidArtifact, f)
		}
		seen[f] = true

		for name, m := range map[string]map[string]float64{"mean": a.Mean, "std": a.Std, "weights": a.Weights} {
			v, ok := m[f]
			if !ok {
				return fmt.Errorf("%w: %s has no entry for %s", ErrInvalidArtifact, name, f)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s of %s is not finite", ErrInvalidArtifact, name, f)
			}
		}
	}

	if len(a.Mean) != len(a.Features) || len(a.Std) != len(a.Features) || len(a.Weights) != len(a.Features) {
		return fmt.Errorf("%w: mean, std and weights must be keyed by exactly the listed features", ErrInvalidArtifact)
	}
	if math.IsNaN(a.Bias) || math.IsInf(a.Bias, 0) {
		return fmt.Errorf("%w: bias is not finite", ErrInvalidArtifact)
	}
	if err := a.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	return nil
}

// Ordered returns weights, means and standard deviations as vectors in
// Features order, for runtimes that expect positional parameters.
func (a *Artifact) Ordered() (weights, mean, std []float64) {
	weights = make([]float64, len(a.Features))
	mean = make([]float64, len(a.Features))
	std = make([]float64, len(a.Features))
	for i, f := range a.Features {
		weights[i] = a.Weights[f]
		mean[i] = a.Mean[f]
		std[i] = a.Std[f]
	}
	return weights, mean, std
}

// Equal reports whether two artifacts carry identical parameters.
func (a *Artifact) Equal(b *Artifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Version == b.Version &&
		a.Type == b.Type &&
		slices.Equal(a.Features, b.Features) &&
		maps.Equal(a.Mean, b.Mean) &&
		maps.Equal(a.Std, b.Std) &&
		maps.Equal(a.Weights, b.Weights) &&
		a.Bias == b.Bias &&
		a.Thresholds == b.Thresholds
}
