package quality

import (
	"errors"
	"fmt"
)

// BaselineScore is the heuristic score of a reading that violates no rule.
const BaselineScore = 100

// Rule is a single entry of the penalty table. Violated is evaluated against
// the original reading, never against the outcome of other rules.
type Rule struct {
	Name     string
	Penalty  int
	Violated func(Reading) bool
}

// DefaultRules returns the penalty table used to synthesize training labels.
// Penalties are plain subtractions so evaluation order does not change the
// score; the order is kept stable for reporting.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "low-dissolved-oxygen",
			Penalty:  20,
			Violated: func(r Reading) bool { return r.DissolvedOxygen < 5 },
		},
		{
			Name:     "high-ammonia",
			Penalty:  25,
			Violated: func(r Reading) bool { return r.Ammonia > 0.5 },
		},
		{
			Name:     "high-nitrite",
			Penalty:  20,
			Violated: func(r Reading) bool { return r.Nitrite > 0.3 },
		},
		{
			Name:     "high-nitrate",
			Penalty:  10,
			Violated: func(r Reading) bool { return r.Nitrate > 50 },
		},
		{
			Name:     "ph-out-of-range",
			Penalty:  10,
			Violated: func(r Reading) bool { return r.PH < 7.0 || r.PH > 8.5 },
		},
		{
			Name:     "low-alkalinity",
			Penalty:  10,
			Violated: func(r Reading) bool { return r.Alkalinity < 120 },
		},
		{
			Name:     "temperature-out-of-range",
			Penalty:  5,
			Violated: func(r Reading) bool { return r.TemperatureC < 26 || r.TemperatureC > 30 },
		},
		{
			Name:     "high-tds",
			Penalty:  5,
			Violated: func(r Reading) bool { return r.TDS > 2000 },
		},
	}
}

// Thresholds are the cut points of the 0-100 quality score. They are
// exported verbatim into model artifacts.
type Thresholds struct {
	Good    int `json:"good" yaml:"good"`
	Warning int `json:"warning" yaml:"warning"`
}

// DefaultThresholds are the cut points the training labels are synthesized with.
var DefaultThresholds = Thresholds{Good: 70, Warning: 45}

// Classify maps a score to a label: score >= Good is good, score >= Warning
// is warning, anything lower is critical.
func (t Thresholds) Classify(score int) Label {
	switch {
	case score >= t.Good:
		return Good
	case score >= t.Warning:
		return Warning
	default:
		return Critical
	}
}

func (t Thresholds) Validate() error {
	if t.Good <= t.Warning {
		return fmt.Errorf("good threshold (%d) must be greater than warning threshold (%d)", t.Good, t.Warning)
	}
	return nil
}

// Assessment is the outcome of scoring a reading against a rule table.
type Assessment struct {
	Score      int      `json:"score" yaml:"score"`
	Label      Label    `json:"label" yaml:"label"`
	Violations []string `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// Evaluate scores r against rules and classifies the result with t.
func Evaluate(r Reading, rules []Rule, t Thresholds) Assessment {
	a := Assessment{Score: BaselineScore}
	for _, rule := range rules {
		if rule.Violated(r) {
			a.Score -= rule.Penalty
			a.Violations = append(a.Violations, rule.Name)
		}
	}
	a.Label = t.Classify(a.Score)
	return a
}

// Assess evaluates r with the default rules and thresholds.
func Assess(r Reading) Assessment {
	return Evaluate(r, DefaultRules(), DefaultThresholds)
}

// SynthesizeLabel derives a training label for a reading that has none.
func SynthesizeLabel(r Reading) Label {
	return Assess(r).Label
}

// ScoreRange returns the lowest and highest score reachable with rules.
func ScoreRange(rules []Rule) (lo, hi int) {
	lo = BaselineScore
	for _, rule := range rules {
		lo -= rule.Penalty
	}
	return lo, BaselineScore
}

// ValidateRules rejects tables with unnamed, duplicate, predicate-less or
// non-positive entries.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("rule table is empty")
	}
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d has no name", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("duplicate rule: %s", rule.Name)
		}
		seen[rule.Name] = true
		if rule.Violated == nil {
			return fmt.Errorf("rule %s has no predicate", rule.Name)
		}
		if rule.Penalty <= 0 {
			return fmt.Errorf("rule %s has non-positive penalty: %d", rule.Name, rule.Penalty)
		}
	}
	return nil
}
