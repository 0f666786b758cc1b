package quality

import (
	"errors"
	"fmt"
	"strings"
)

// Label is the ordinal water-quality category. Higher is better.
type Label int

const (
	Critical Label = iota
	Warning
	Good
)

var ErrUnknownLabel = errors.New("unknown quality label")

var labelNames = map[Label]string{
	Critical: "critical",
	Warning:  "warning",
	Good:     "good",
}

// Labels returns all labels in ordinal order.
func Labels() []Label {
	return []Label{Critical, Warning, Good}
}

func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// Valid reports whether l is one of the three known categories.
func (l Label) Valid() bool {
	_, ok := labelNames[l]
	return ok
}

// ParseLabel converts "good", "warning" or "critical" (any case) to a Label.
func ParseLabel(s string) (Label, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for l, name := range labelNames {
		if name == v {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLabel, int(l))
	}
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	v, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// CountLabels returns the number of occurrences of each label keyed by name.
// Every known label is present in the result, zero counts included.
func CountLabels(labels []Label) map[string]int {
	counts := make(map[string]int, len(labelNames))
	for _, name := range labelNames {
		counts[name] = 0
	}
	for _, l := range labels {
		counts[l.String()]++
	}
	return counts
}
