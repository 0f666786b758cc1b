package model

import (
	"fmt"
	"math"

	"github.com/biofloc/wqmodel/pkg/quality"
)

// Prediction is the reference scoring of a reading with an artifact.
type Prediction struct {
	Logit       float64       `json:"logit" yaml:"logit"`
	Probability float64       `json:"probability" yaml:"probability"`
	Score       int           `json:"score" yaml:"score"`
	Label       quality.Label `json:"label" yaml:"label"`
}

// Predict scores r the way the inference runtime does: standardize each
// feature (0 when std is not positive), take the linear sum plus bias, apply
// the sigmoid and scale it to 0-100, then classify with the artifact's
// thresholds.
//
// The thresholds were chosen for the heuristic penalty score, not for a
// scaled good-vs-rest probability. They are applied here unchanged to stay
// consistent with the runtime; the two scales are not calibrated to each
// other.
func (a *Artifact) Predict(r quality.Reading) (*Prediction, error) {
	lin := a.Bias
	for _, f := range a.Features {
		x, ok := r.Value(f)
		if !ok {
			return nil, fmt.Errorf("%w: artifact feature %s", quality.ErrUnknownFeature, f)
		}
		lin += a.Weights[f] * zScore(x, a.Mean[f], a.Std[f])
	}

	p := sigmoid(lin)
	score := int(math.Round(p * 100))
	return &Prediction{
		Logit:       lin,
		Probability: p,
		Score:       score,
		Label:       a.Thresholds.Classify(score),
	}, nil
}

func zScore(x, mean, std float64) float64 {
	if std > 0 {
		return (x - mean) / std
	}
	return 0
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
