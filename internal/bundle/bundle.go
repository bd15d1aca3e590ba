// Package bundle is the persisted model artifact: imputation statistics,
// the fitted column transformer and the fitted model, versioned together.
// It owns the end-to-end predict path shared by model selection and the
// prediction API, so both score records the same way.
package bundle

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/impute"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Bundle is immutable once built or loaded.
type Bundle struct {
	Version     string                       `json:"version"`
	RunID       string                       `json:"run_id"`
	CreatedAt   time.Time                    `json:"created_at"`
	Metrics     map[string]float64           `json:"metrics,omitempty"`
	Imputation  *impute.Statistics           `json:"imputation"`
	Transformer *transform.ColumnTransformer `json:"transformer"`
	Model       *train.Model                 `json:"model"`
}

// New assembles a bundle under a fresh version id and validates it.
func New(runID string, stats *impute.Statistics, ct *transform.ColumnTransformer, model *train.Model, metrics map[string]float64) (*Bundle, error) {
	b := &Bundle{
		Version:     uuid.NewString(),
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		Metrics:     metrics,
		Imputation:  stats,
		Transformer: ct,
		Model:       model,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that all three parts are present and that every model
// feature is produced by the transformer.
func (b *Bundle) Validate() error {
	switch {
	case b.Imputation == nil:
		return missing("imputation statistics")
	case b.Transformer == nil || !b.Transformer.Fitted:
		return missing("column transformer")
	case b.Model == nil || len(b.Model.Features) == 0:
		return missing("model")
	}
	produced := make(map[string]struct{}, len(b.Transformer.Columns))
	for _, c := range b.Transformer.Columns {
		produced[c] = struct{}{}
	}
	for _, f := range b.Model.Features {
		if _, ok := produced[f]; !ok {
			return apperrors.Newf(apperrors.ErrSchemaMismatch, http.StatusInternalServerError,
				"model feature %q is not produced by the column transformer", f)
		}
	}
	return nil
}

func missing(part string) error {
	return apperrors.Newf(apperrors.ErrArtifactMissing, http.StatusInternalServerError, "bundle has no fitted %s", part)
}

// Encode serializes the bundle.
func Encode(b *Bundle) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return data, nil
}

// Decode parses and validates a bundle.
func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Features imputes r and derives its engineered features.
func (b *Bundle) Features(r listing.Record) (features.Row, error) {
	imp, err := b.Imputation.Transform(r)
	if err != nil {
		return features.Row{}, err
	}
	return features.Build(imp), nil
}

// PredictRecord runs impute, build, encode and predict for one record.
func (b *Bundle) PredictRecord(r listing.Record) (float64, error) {
	out, err := b.PredictRecords([]listing.Record{r})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// PredictRecords is PredictRecord for a batch.
func (b *Bundle) PredictRecords(rs []listing.Record) ([]float64, error) {
	imps, err := b.Imputation.TransformAll(rs)
	if err != nil {
		return nil, err
	}
	m, err := b.Transformer.Transform(features.BuildAll(imps))
	if err != nil {
		return nil, err
	}
	return b.Model.Predict(m)
}
