package train

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownClass      = errors.New("class not learned by classifier")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Classifier is a fitted multiclass linear model: one coefficient vector and
// one intercept per learned class, indexed in the order of Classes.
type Classifier struct {
	classes   []int
	coef      [][]float64
	intercept []float64
	strategy  Strategy
}

// NewClassifier builds a classifier from known parameters. classes must be
// unique and every coefficient vector must have the same width. Classes are
// stored in ascending order with their parameters.
func NewClassifier(classes []int, coef [][]float64, intercept []float64) (*Classifier, error) {
	if len(classes) == 0 {
		return nil, errors.New("at least one class required")
	}
	if len(coef) != len(classes) || len(intercept) != len(classes) {
		return nil, fmt.Errorf("%w: %d classes, %d coefficient vectors, %d intercepts",
			ErrDimensionMismatch, len(classes), len(coef), len(intercept))
	}

	seen := make(map[int]bool, len(classes))
	for k, class := range classes {
		if seen[class] {
			return nil, fmt.Errorf("duplicate class: %d", class)
		}
		seen[class] = true
		if len(coef[k]) != len(coef[0]) {
			return nil, fmt.Errorf("%w: class %d has %d coefficients, want %d",
				ErrDimensionMismatch, class, len(coef[k]), len(coef[0]))
		}
	}

	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	slices.SortFunc(order, func(a, b int) int { return classes[a] - classes[b] })

	c := &Classifier{
		classes:   make([]int, len(classes)),
		coef:      make([][]float64, len(coef)),
		intercept: make([]float64, len(intercept)),
	}
	for i, k := range order {
		c.classes[i] = classes[k]
		c.coef[i] = slices.Clone(coef[k])
		c.intercept[i] = intercept[k]
	}
	return c, nil
}

// Classes returns the learned class labels in ascending order.
func (c *Classifier) Classes() []int {
	return slices.Clone(c.classes)
}

// Strategy returns the strategy the classifier was fitted with, if any.
func (c *Classifier) Strategy() Strategy {
	return c.strategy
}

// Features returns the number of input features.
func (c *Classifier) Features() int {
	return len(c.coef[0])
}

// Coefficients returns a copy of the coefficient vector and the intercept
// of class.
func (c *Classifier) Coefficients(class int) ([]float64, float64, error) {
	k := slices.Index(c.classes, class)
	if k < 0 {
		return nil, 0, fmt.Errorf("%w: %d (learned %v)", ErrUnknownClass, class, c.classes)
	}
	return slices.Clone(c.coef[k]), c.intercept[k], nil
}

// Decision returns the per-class linear scores of x in Classes order.
func (c *Classifier) Decision(x []float64) ([]float64, error) {
	if len(x) != c.Features() {
		return nil, fmt.Errorf("%w: %d values, %d features", ErrDimensionMismatch, len(x), c.Features())
	}
	out := make([]float64, len(c.classes))
	for k := range c.classes {
		out[k] = floats.Dot(c.coef[k], x) + c.intercept[k]
	}
	return out, nil
}

// Predict returns the class with the highest decision score.
func (c *Classifier) Predict(x []float64) (int, error) {
	d, err := c.Decision(x)
	if err != nil {
		return 0, err
	}
	return c.classes[floats.MaxIdx(d)], nil
}

// Accuracy returns the share of rows of x predicted as the matching y.
func (c *Classifier) Accuracy(x mat.Matrix, y []int) (float64, error) {
	rows, _ := x.Dims()
	if rows != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, rows, len(y))
	}
	if rows == 0 {
		return 0, nil
	}

	var hits int
	for i := 0; i < rows; i++ {
		p, err := c.Predict(mat.Row(nil, i, x))
		if err != nil {
			return 0, err
		}
		if p == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(rows), nil
}
