package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

var ErrSingleClass = errors.New("training data has fewer than two classes")

// Fit trains an L2-regularized logistic regression on x (rows are samples,
// expected to be standardized) with integer class labels y.
//
// With OneVsRest and exactly two classes a single binary problem is solved
// for the higher class and the lower class gets the negated parameters.
func Fit(ctx context.Context, x mat.Matrix, y []int, opts Options) (*Classifier, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training options: %w", err)
	}

	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, rows, len(y))
	}

	classes := slices.Compact(slices.Sorted(slices.Values(y)))
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: %v", ErrSingleClass, classes)
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, x)
	}

	slog.Debug("fitting classifier",
		"rows", rows, "features", cols, "classes", classes,
		"strategy", opts.Strategy, "c", opts.C, "max_iter", opts.MaxIter)

	var (
		clf *Classifier
		err error
	)
	switch opts.Strategy {
	case Multinomial:
		clf, err = fitMultinomial(ctx, data, y, classes, opts)
	default:
		clf, err = fitOneVsRest(ctx, data, y, classes, opts)
	}
	if err != nil {
		return nil, err
	}
	clf.strategy = opts.Strategy
	return clf, nil
}

func fitOneVsRest(ctx context.Context, data [][]float64, y, classes []int, opts Options) (*Classifier, error) {
	positives := classes
	if len(classes) == 2 {
		positives = classes[1:]
	}

	coef := make([][]float64, len(positives))
	intercept := make([]float64, len(positives))

	g, gctx := errgroup.WithContext(ctx)
	for k, class := range positives {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target := make([]float64, len(y))
			for i, v := range y {
				target[i] = -1
				if v == class {
					target[i] = 1
				}
			}
			w, b, err := fitBinary(data, target, opts)
			if err != nil {
				return fmt.Errorf("error fitting class %d: %w", class, err)
			}
			coef[k], intercept[k] = w, b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(classes) == 2 {
		neg := slices.Clone(coef[0])
		floats.Scale(-1, neg)
		coef = [][]float64{neg, coef[0]}
		intercept = []float64{-intercept[0], intercept[0]}
	}

	return NewClassifier(classes, coef, intercept)
}

func fitBinary(data [][]float64, target []float64, opts Options) ([]float64, float64, error) {
	n := len(data[0])
	p := optimize.Problem{
		Func: func(params []float64) float64 {
			return binaryObjective(data, target, opts.C, params, nil)
		},
		Grad: func(grad, params []float64) {
			binaryObjective(data, target, opts.C, params, grad)
		},
	}

	params, err := minimize(p, n+1, opts)
	if err != nil {
		return nil, 0, err
	}
	return params[:n], params[n], nil
}

// binaryObjective is 0.5*|w|^2 + C*sum(log(1+exp(-t*z))) with t in {-1,1}.
// grad is filled when non-nil.
func binaryObjective(data [][]float64, target []float64, c float64, params, grad []float64) float64 {
	n := len(params) - 1
	w, b := params[:n], params[n]

	if grad != nil {
		copy(grad[:n], w)
		grad[n] = 0
	}

	f := 0.5 * floats.Dot(w, w)
	for i, row := range data {
		m := target[i] * (floats.Dot(w, row) + b)
		f += c * logOnePlusExp(-m)
		if grad != nil {
			g := -c * target[i] * sigmoid(-m)
			floats.AddScaled(grad[:n], g, row)
			grad[n] += g
		}
	}
	return f
}

func fitMultinomial(ctx context.Context, data [][]float64, y, classes []int, opts Options) (*Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := make([]int, len(y))
	for i, v := range y {
		index[i] = slices.Index(classes, v)
	}

	n := len(data[0])
	k := len(classes)
	p := optimize.Problem{
		Func: func(params []float64) float64 {
			return multinomialObjective(data, index, k, opts.C, params, nil)
		},
		Grad: func(grad, params []float64) {
			multinomialObjective(data, index, k, opts.C, params, grad)
		},
	}

	params, err := minimize(p, k*(n+1), opts)
	if err != nil {
		return nil, fmt.Errorf("error fitting multinomial model: %w", err)
	}

	coef := make([][]float64, k)
	intercept := make([]float64, k)
	for j := 0; j < k; j++ {
		block := params[j*(n+1) : (j+1)*(n+1)]
		coef[j] = slices.Clone(block[:n])
		intercept[j] = block[n]
	}
	return NewClassifier(classes, coef, intercept)
}

// multinomialObjective is 0.5*sum|W_k|^2 + C*sum(logsumexp(z) - z_y). params
// holds k consecutive blocks of n weights followed by one intercept.
func multinomialObjective(data [][]float64, index []int, k int, c float64, params, grad []float64) float64 {
	stride := len(params) / k
	n := stride - 1

	if grad != nil {
		for i := range grad {
			grad[i] = 0
		}
	}

	var f float64
	for j := 0; j < k; j++ {
		w := params[j*stride : j*stride+n]
		f += 0.5 * floats.Dot(w, w)
		if grad != nil {
			copy(grad[j*stride:j*stride+n], w)
		}
	}

	z := make([]float64, k)
	for i, row := range data {
		for j := 0; j < k; j++ {
			z[j] = floats.Dot(params[j*stride:j*stride+n], row) + params[j*stride+n]
		}
		lse := floats.LogSumExp(z)
		f += c * (lse - z[index[i]])
		if grad == nil {
			continue
		}
		for j := 0; j < k; j++ {
			pj := math.Exp(z[j] - lse)
			if j == index[i] {
				pj--
			}
			g := c * pj
			floats.AddScaled(grad[j*stride:j*stride+n], g, row)
			grad[j*stride+n] += g
		}
	}
	return f
}

func minimize(p optimize.Problem, size int, opts Options) ([]float64, error) {
	settings := &optimize.Settings{
		GradientThreshold: opts.Tolerance,
		MajorIterations:   opts.MaxIter,
	}

	result, err := optimize.Minimize(p, make([]float64, size), settings, &optimize.LBFGS{})
	if err != nil {
		// a stalled line search still leaves the best point found
		if result == nil || !stalled(err) {
			return nil, fmt.Errorf("optimizer failed: %w", err)
		}
		slog.Warn("solver stopped before reaching tolerance", "error", err, "loss", result.F)
	}

	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("optimizer produced non-finite parameters")
		}
	}

	if result.Status == optimize.IterationLimit {
		slog.Warn("solver reached iteration limit before converging", "max_iter", opts.MaxIter, "loss", result.F)
	} else {
		slog.Debug("solver finished", "status", result.Status.String(), "iterations", result.Stats.MajorIterations, "loss", result.F)
	}
	return result.X, nil
}

func stalled(err error) bool {
	return errors.Is(err, optimize.ErrNoProgress) || errors.Is(err, optimize.ErrLinesearcherFailure)
}

func logOnePlusExp(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}
	return math.Log1p(math.Exp(t))
}

func sigmoid(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}
	e := math.Exp(t)
	return e / (1 + e)
}
