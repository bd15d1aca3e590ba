// Package train fits and evaluates price regressors on encoded matrices.
//
// The regressor set is closed: a Model carries a Kind tag and exactly one
// populated variant, which keeps persisted models self-describing. The
// optional target transform is applied to y before fitting and inverted on
// every prediction.
package train

import (
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
)

// Kind names a regressor variant.
type Kind string

const (
	KindLinear        Kind = "LinearRegression"
	KindRidge         Kind = "Ridge"
	KindLasso         Kind = "Lasso"
	KindKNN           Kind = "KNeighborsRegressor"
	KindDecisionTree  Kind = "DecisionTreeRegressor"
	KindRandomForest  Kind = "RandomForestRegressor"
	KindGradientBoost Kind = "GradientBoostingRegressor"
	KindAdaBoost      Kind = "AdaBoostRegressor"
	KindXGB           Kind = "XGBRegressor"
)

// Kinds lists every supported regressor.
var Kinds = []Kind{
	KindLinear, KindRidge, KindLasso, KindKNN, KindDecisionTree,
	KindRandomForest, KindGradientBoost, KindAdaBoost, KindXGB,
}

// ParseKind resolves a configured regressor name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown regressor %q", s)
}

// regressor is the capability every variant implements.
type regressor interface {
	fit(X [][]float64, y []float64) error
	predict(x []float64) float64
}

// Params are regressor hyperparameters keyed by their conventional names
// (n_estimators, max_depth, learning_rate, alpha, ...).
type Params map[string]float64

func (p Params) getFloat(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func (p Params) getInt(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(math.Round(v))
	}
	return def
}

func (p Params) getInt64(key string, def int64) int64 {
	if v, ok := p[key]; ok {
		return int64(math.Round(v))
	}
	return def
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Model is a fitted regressor with its target transform and the encoded
// columns it consumes, in order.
type Model struct {
	Kind            Kind            `json:"kind"`
	TargetTransform TargetTransform `json:"target_transform"`
	Params          Params          `json:"params"`
	Features        []string        `json:"features"`

	Linear   *Linear       `json:"linear,omitempty"`
	KNN      *KNN          `json:"knn,omitempty"`
	Tree     *DecisionTree `json:"tree,omitempty"`
	Forest   *RandomForest `json:"forest,omitempty"`
	Boosting *Boosting     `json:"boosting,omitempty"`
	Ada      *AdaBoost     `json:"ada,omitempty"`
}

// NewModel builds an unfitted model of the given kind.
func NewModel(kind Kind, tt TargetTransform, params Params, seed int64) (*Model, error) {
	if _, err := ParseTargetTransform(string(tt)); err != nil {
		return nil, err
	}
	if params == nil {
		params = Params{}
	}
	m := &Model{Kind: kind, TargetTransform: tt, Params: params}
	switch kind {
	case KindLinear, KindRidge, KindLasso:
		m.Linear = newLinear(kind, params)
	case KindKNN:
		m.KNN = newKNN(params)
	case KindDecisionTree:
		m.Tree = newDecisionTree(params)
	case KindRandomForest:
		m.Forest = newRandomForest(params, seed)
	case KindGradientBoost:
		m.Boosting = newGradientBoosting(params, seed)
	case KindXGB:
		m.Boosting = newXGB(params, seed)
	case KindAdaBoost:
		m.Ada = newAdaBoost(params)
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown regressor %q", kind)
	}
	return m, nil
}

func (m *Model) variant() (regressor, error) {
	var r regressor
	switch m.Kind {
	case KindLinear, KindRidge, KindLasso:
		if m.Linear != nil {
			r = m.Linear
		}
	case KindKNN:
		if m.KNN != nil {
			r = m.KNN
		}
	case KindDecisionTree:
		if m.Tree != nil {
			r = m.Tree
		}
	case KindRandomForest:
		if m.Forest != nil {
			r = m.Forest
		}
	case KindGradientBoost, KindXGB:
		if m.Boosting != nil {
			r = m.Boosting
		}
	case KindAdaBoost:
		if m.Ada != nil {
			r = m.Ada
		}
	}
	if r == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFitted, http.StatusInternalServerError,
			"model of kind %q has no fitted parameters", m.Kind)
	}
	return r, nil
}

// Fit trains on the listed feature columns of X. An empty feature list
// uses every column.
func (m *Model) Fit(X *transform.Matrix, y []float64, features []string) error {
	if X.Len() == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "cannot fit model on no rows")
	}
	if X.Len() != len(y) {
		return fmt.Errorf("model fit: %d rows but %d targets", X.Len(), len(y))
	}
	if len(features) == 0 {
		features = X.Columns
	}
	sel, err := X.Select(features)
	if err != nil {
		return err
	}
	yt := make([]float64, len(y))
	for i, v := range y {
		if yt[i], err = m.TargetTransform.Forward(v); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	r, err := m.variant()
	if err != nil {
		return err
	}
	if err := r.fit(sel.Rows, yt); err != nil {
		return fmt.Errorf("fitting %s: %w", m.Kind, err)
	}
	m.Features = append([]string(nil), features...)
	return nil
}

// Predict returns predictions on the original target scale. X must contain
// every column the model was fitted on.
func (m *Model) Predict(X *transform.Matrix) ([]float64, error) {
	if len(m.Features) == 0 {
		return nil, apperrors.New(apperrors.ErrNotFitted, http.StatusInternalServerError, "model is not fitted")
	}
	r, err := m.variant()
	if err != nil {
		return nil, err
	}
	sel, err := X.Select(m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, sel.Len())
	for i, row := range sel.Rows {
		out[i] = m.TargetTransform.Inverse(r.predict(row))
	}
	return out, nil
}
