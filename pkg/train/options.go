package train

import (
	"fmt"
	"strings"
)

// Strategy selects how the multiclass problem is decomposed.
type Strategy string

const (
	// OneVsRest fits one independent binary logistic regression per class.
	OneVsRest Strategy = "ovr"
	// Multinomial fits a single softmax regression over all classes.
	Multinomial Strategy = "multinomial"

	defaultC         = 1.0
	defaultMaxIter   = 1000
	defaultTolerance = 1e-4
)

// Strategies lists the supported decomposition strategies.
var Strategies = []Strategy{OneVsRest, Multinomial}

// Options configures the logistic regression fit. C is the inverse of the L2
// regularization strength; intercepts are not regularized.
type Options struct {
	C         float64  `json:"c" yaml:"c"`
	MaxIter   int      `json:"max_iter" yaml:"max_iter"`
	Tolerance float64  `json:"tolerance" yaml:"tolerance"`
	Strategy  Strategy `json:"strategy" yaml:"strategy"`
}

// DefaultOptions returns C=1, 1000 iterations, one-vs-rest.
func DefaultOptions() Options {
	return Options{
		C:         defaultC,
		MaxIter:   defaultMaxIter,
		Tolerance: defaultTolerance,
		Strategy:  OneVsRest,
	}
}

// ParseStrategy converts a strategy name (any case) to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	v := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Strategies {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("unsupported strategy %q (want one of %v)", s, Strategies)
}

func (o Options) Validate() error {
	if !(o.C > 0) {
		return fmt.Errorf("regularization C must be positive: %v", o.C)
	}
	if o.MaxIter <= 0 {
		return fmt.Errorf("max iterations must be positive: %d", o.MaxIter)
	}
	if !(o.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive: %v", o.Tolerance)
	}
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	return nil
}
