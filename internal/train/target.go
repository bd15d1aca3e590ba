package train

import (
	"fmt"
	"math"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TargetTransform is applied to the price before fitting and inverted on
// prediction.
type TargetTransform string

const (
	TransformSame TargetTransform = "same"
	TransformLog  TargetTransform = "log"
	TransformSqrt TargetTransform = "sqrt"
	TransformCbrt TargetTransform = "cbrt"
)

// ParseTargetTransform resolves a configured transform name. The empty
// string means identity.
func ParseTargetTransform(s string) (TargetTransform, error) {
	switch TargetTransform(s) {
	case "":
		return TransformSame, nil
	case TransformSame, TransformLog, TransformSqrt, TransformCbrt:
		return TargetTransform(s), nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown target transform %q", s)
}

// Forward maps a price onto the fitting scale.
func (t TargetTransform) Forward(y float64) (float64, error) {
	switch t {
	case TransformLog:
		if y <= 0 {
			return 0, fmt.Errorf("log transform needs a positive target, got %v", y)
		}
		return math.Log(y), nil
	case TransformSqrt:
		if y < 0 {
			return 0, fmt.Errorf("sqrt transform needs a non-negative target, got %v", y)
		}
		return math.Sqrt(y), nil
	case TransformCbrt:
		return math.Cbrt(y), nil
	default:
		return y, nil
	}
}

// Inverse maps a fitted-scale value back to a price.
func (t TargetTransform) Inverse(v float64) float64 {
	switch t {
	case TransformLog:
		return math.Exp(v)
	case TransformSqrt:
		return v * v
	case TransformCbrt:
		return v * v * v
	default:
		return v
	}
}

// Scores are the regression metrics logged for every split.
type Scores struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Evaluate scores predictions against the true targets.
func Evaluate(yTrue, yPred []float64) (Scores, error) {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return Scores{}, fmt.Errorf("evaluate: %d targets and %d predictions", len(yTrue), len(yPred))
	}
	n := float64(len(yTrue))
	return Scores{
		MAE:  floats.Distance(yTrue, yPred, 1) / n,
		RMSE: floats.Distance(yTrue, yPred, 2) / math.Sqrt(n),
		R2:   stat.RSquaredFrom(yPred, yTrue, nil),
	}, nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) (float64, error) {
	s, err := Evaluate(yTrue, yPred)
	return s.MAE, err
}
