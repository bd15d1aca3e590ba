package train

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
)

// Run is what a Tracker records for one training run.
type Run struct {
	ID              string             `json:"id"`
	Regressor       string             `json:"regressor"`
	TargetTransform string             `json:"target_transformer"`
	Params          map[string]float64 `json:"params"`
	Metrics         map[string]float64 `json:"metrics"`
	Features        []string           `json:"features"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
}

// Tracker stores training parameters and metrics.
type Tracker interface {
	LogRun(ctx context.Context, run Run) error
}

// NopTracker discards every run.
type NopTracker struct{}

// LogRun implements Tracker.
func (NopTracker) LogRun(context.Context, Run) error { return nil }

// Data bundles the encoded partitions a training run consumes.
type Data struct {
	Train  *transform.Matrix
	YTrain []float64
	Val    *transform.Matrix
	YVal   []float64
	Test   *transform.Matrix
	YTest  []float64
}

// Result is the outcome of a successful training run.
type Result struct {
	Model     *Model     `json:"model"`
	Selection *Selection `json:"selection"`
	Train     Scores     `json:"train"`
	Test      Scores     `json:"test"`
	Trials    []Trial    `json:"trials,omitempty"`
}

// Trainer runs feature selection, fitting and evaluation for one configured
// regressor.
type Trainer struct {
	cfg     config.TrainingConfig
	tracker Tracker
}

// NewTrainer creates a Trainer. A nil tracker disables tracking.
func NewTrainer(cfg config.TrainingConfig, tracker Tracker) *Trainer {
	if tracker == nil {
		tracker = NopTracker{}
	}
	return &Trainer{cfg: cfg, tracker: tracker}
}

// Train fits the configured regressor on d.Train and scores it on the
// train and test partitions.
func (t *Trainer) Train(ctx context.Context, runID string, d Data) (*Result, error) {
	log := logger.FromContext(ctx).With("component", "trainer")
	started := time.Now()

	kind, err := ParseKind(t.cfg.Regressor)
	if err != nil {
		return nil, err
	}
	tt, err := ParseTargetTransform(t.cfg.TargetTransform)
	if err != nil {
		return nil, err
	}

	sel, err := SelectFeatures(ctx, d.Train, d.YTrain, t.cfg.DropCorrelatedThreshold, t.cfg.FeatureSelectorThreshold)
	if err != nil {
		return nil, fmt.Errorf("selecting features: %w", err)
	}
	log.Info("features selected",
		"kept", len(sel.Kept),
		"dropped_correlated", len(sel.DroppedCorrelated),
		"dropped_weak", len(sel.DroppedWeak),
	)

	res := &Result{Selection: sel}
	if t.cfg.Search.Enabled {
		spec := SearchSpecFrom(t.cfg, kind, tt, sel.Kept)
		res.Model, res.Trials, err = RandomSearch(ctx, spec, d.Train, d.YTrain, d.Val, d.YVal)
		if err != nil {
			return nil, fmt.Errorf("hyperparameter search: %w", err)
		}
		log.Info("hyperparameter search finished", "trials", len(res.Trials), "params", res.Model.Params)
	} else {
		res.Model, err = NewModel(kind, tt, Params(t.cfg.Hyperparams), t.cfg.Seed)
		if err != nil {
			return nil, err
		}
		if err := res.Model.Fit(d.Train, d.YTrain, sel.Kept); err != nil {
			return nil, err
		}
	}

	if res.Train, err = score(res.Model, d.Train, d.YTrain); err != nil {
		return nil, fmt.Errorf("scoring train: %w", err)
	}
	if res.Test, err = score(res.Model, d.Test, d.YTest); err != nil {
		return nil, fmt.Errorf("scoring test: %w", err)
	}
	log.Info("model trained",
		"regressor", kind,
		"target_transform", tt,
		"train_mae", res.Train.MAE,
		"test_mae", res.Test.MAE,
		"test_r2", res.Test.R2,
		"duration", time.Since(started),
	)

	run := Run{
		ID:              runID,
		Regressor:       string(kind),
		TargetTransform: string(tt),
		Params:          t.runParams(res.Model.Params),
		Metrics:         res.Metrics(),
		Features:        sel.Kept,
		StartedAt:       started,
		FinishedAt:      time.Now(),
	}
	if err := t.tracker.LogRun(ctx, run); err != nil {
		log.Warn("tracking run failed", "run_id", runID, "error", err)
	}
	return res, nil
}

func (t *Trainer) runParams(p Params) map[string]float64 {
	out := map[string]float64{
		"drop_correlated_threshold":  t.cfg.DropCorrelatedThreshold,
		"feature_selector_threshold": t.cfg.FeatureSelectorThreshold,
	}
	for _, k := range p.Keys() {
		out[k] = p[k]
	}
	return out
}

// Metrics flattens the scores under the train_/test_ names.
func (r *Result) Metrics() map[string]float64 {
	return map[string]float64{
		"train_mae":  r.Train.MAE,
		"train_rmse": r.Train.RMSE,
		"train_r2":   r.Train.R2,
		"test_mae":   r.Test.MAE,
		"test_rmse":  r.Test.RMSE,
		"test_r2":    r.Test.R2,
	}
}

func score(m *Model, X *transform.Matrix, y []float64) (Scores, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return Scores{}, err
	}
	return Evaluate(y, pred)
}
