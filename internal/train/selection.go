package train

import (
	"context"
	"math"
	"net/http"
	"runtime"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// SelectionFolds is the number of contiguous folds used to score a single
// feature.
const SelectionFolds = 3

// Selection records which encoded columns survived feature selection.
type Selection struct {
	Kept              []string           `json:"kept"`
	DroppedCorrelated []string           `json:"dropped_correlated"`
	DroppedWeak       []string           `json:"dropped_weak"`
	Scores            map[string]float64 `json:"scores"`
}

// SelectFeatures drops correlated columns, keeping the best single-feature
// performer of each correlated group, then drops columns whose
// cross-validated single-feature R² does not exceed perfThreshold. A
// non-positive corrThreshold disables the correlation step.
func SelectFeatures(ctx context.Context, X *transform.Matrix, y []float64, corrThreshold, perfThreshold float64) (*Selection, error) {
	if X.Len() < SelectionFolds {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity,
			"feature selection needs at least %d rows, got %d", SelectionFolds, X.Len())
	}
	d := len(X.Columns)
	cols := make([][]float64, d)
	for j := range cols {
		cols[j] = X.Col(j)
	}

	scores := make([]float64, d)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for j := range cols {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores[j] = singleFeatureR2(cols[j], y, SelectionFolds)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sel := &Selection{Scores: make(map[string]float64, d)}
	for j, c := range X.Columns {
		sel.Scores[c] = scores[j]
	}

	order := make([]int, d)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	dropped := make([]bool, d)
	if corrThreshold > 0 {
		for a, j := range order {
			if dropped[j] {
				continue
			}
			for _, k := range order[a+1:] {
				if dropped[k] {
					continue
				}
				if r := stat.Correlation(cols[j], cols[k], nil); !math.IsNaN(r) && math.Abs(r) > corrThreshold {
					dropped[k] = true
				}
			}
		}
	}

	for j, c := range X.Columns {
		switch {
		case dropped[j]:
			sel.DroppedCorrelated = append(sel.DroppedCorrelated, c)
		case scores[j] > perfThreshold:
			sel.Kept = append(sel.Kept, c)
		default:
			sel.DroppedWeak = append(sel.DroppedWeak, c)
		}
	}
	if len(sel.Kept) == 0 {
		return sel, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity,
			"no feature scored above the selection threshold %v", perfThreshold)
	}
	return sel, nil
}

// singleFeatureR2 is the mean held-out R² of an unbounded regression tree
// on one column over contiguous folds.
func singleFeatureR2(x, y []float64, folds int) float64 {
	n := len(y)
	var total float64
	start := 0
	for k := 0; k < folds; k++ {
		size := n / folds
		if k < n%folds {
			size++
		}
		end := start + size

		trX := make([][]float64, 0, n-size)
		trY := make([]float64, 0, n-size)
		for i := 0; i < n; i++ {
			if i < start || i >= end {
				trX = append(trX, []float64{x[i]})
				trY = append(trY, y[i])
			}
		}
		tree := &DecisionTree{MinSamplesLeaf: 1}
		_ = tree.fit(trX, trY)

		pred := make([]float64, size)
		for i := range pred {
			pred[i] = tree.predict([]float64{x[start+i]})
		}
		r2 := stat.RSquaredFrom(pred, y[start:end], nil)
		if math.IsNaN(r2) || math.IsInf(r2, 0) {
			r2 = 0
		}
		total += r2
		start = end
	}
	return total / float64(folds)
}
