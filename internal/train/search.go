package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
)

// Trial is one sampled hyperparameter set and its validation error.
type Trial struct {
	Params Params  `json:"params"`
	ValMAE float64 `json:"val_mae"`
}

// SearchSpec describes one random search.
type SearchSpec struct {
	Kind            Kind
	TargetTransform TargetTransform
	Base            Params
	Space           map[string][]float64
	Budget          int
	Seed            int64
	ModelSeed       int64
	Features        []string
}

// SearchSpecFrom builds a search over the configured space.
func SearchSpecFrom(cfg config.TrainingConfig, kind Kind, tt TargetTransform, features []string) SearchSpec {
	return SearchSpec{
		Kind:            kind,
		TargetTransform: tt,
		Base:            Params(cfg.Hyperparams),
		Space:           cfg.Search.Space,
		Budget:          cfg.Search.Budget,
		Seed:            cfg.Search.Seed,
		ModelSeed:       cfg.Seed,
		Features:        features,
	}
}

// RandomSearch samples Budget parameter sets from the space, fits each on
// the training partition and keeps the one with the lowest validation MAE.
// The returned model is the winning trial, already fitted on train.
func RandomSearch(ctx context.Context, spec SearchSpec, train *transform.Matrix, yTrain []float64, val *transform.Matrix, yVal []float64) (*Model, []Trial, error) {
	if spec.Budget < 1 {
		return nil, nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"search budget must be positive, got %d", spec.Budget)
	}
	if val == nil || val.Len() == 0 {
		return nil, nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity,
			"search needs a non-empty validation partition")
	}
	rng := rand.New(rand.NewSource(spec.Seed))
	names := make([]string, 0, len(spec.Space))
	for k, vals := range spec.Space {
		if len(vals) > 0 {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	var (
		best    *Model
		bestMAE = math.Inf(1)
		trials  = make([]Trial, 0, spec.Budget)
	)
	for i := 0; i < spec.Budget; i++ {
		if err := ctx.Err(); err != nil {
			return nil, trials, err
		}
		params := make(Params, len(spec.Base)+len(names))
		for k, v := range spec.Base {
			params[k] = v
		}
		for _, k := range names {
			vals := spec.Space[k]
			params[k] = vals[rng.Intn(len(vals))]
		}

		m, err := NewModel(spec.Kind, spec.TargetTransform, params, spec.ModelSeed)
		if err != nil {
			return nil, trials, err
		}
		if err := m.Fit(train, yTrain, spec.Features); err != nil {
			return nil, trials, fmt.Errorf("search trial %d: %w", i, err)
		}
		pred, err := m.Predict(val)
		if err != nil {
			return nil, trials, fmt.Errorf("search trial %d: %w", i, err)
		}
		mae, err := MAE(yVal, pred)
		if err != nil {
			return nil, trials, fmt.Errorf("search trial %d: %w", i, err)
		}
		trials = append(trials, Trial{Params: params, ValMAE: mae})
		if mae < bestMAE {
			best, bestMAE = m, mae
		}
	}
	return best, trials, nil
}
