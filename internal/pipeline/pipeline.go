// Package pipeline runs the offline training pipeline: etl, split, validate,
// transform, train and promote. Every stage reads its inputs from and writes
// its outputs to the artifact store and returns an explicit StageResult, so a
// caller always knows which stages completed.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/selector"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/tracing"
	"github.com/google/uuid"
)

// Stage names a pipeline step.
type Stage string

const (
	StageETL       Stage = "etl"
	StageSplit     Stage = "split"
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StageTrain     Stage = "train"
	StagePromote   Stage = "promote"
)

// Stages is the execution order used by Run.
var Stages = []Stage{StageETL, StageSplit, StageValidate, StageTransform, StageTrain, StagePromote}

// Status is the outcome of one stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StageResult reports one stage execution.
type StageResult struct {
	Stage    Stage          `json:"stage"`
	Status   Status         `json:"status"`
	Rows     int            `json:"rows"`
	Duration time.Duration  `json:"duration"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// RunResult reports a full pipeline run.
type RunResult struct {
	RunID         string             `json:"run_id"`
	Stages        []StageResult      `json:"stages"`
	Decision      *selector.Decision `json:"decision,omitempty"`
	BundleVersion string             `json:"bundle_version,omitempty"`
	Trace         *tracing.Summary   `json:"trace,omitempty"`
}

// OK reports whether every stage succeeded.
func (r RunResult) OK() bool {
	for _, s := range r.Stages {
		if s.Status != StatusOK {
			return false
		}
	}
	return len(r.Stages) == len(Stages)
}

// PromotionLogger records champion/challenger decisions.
// *tracking.Tracker satisfies it.
type PromotionLogger interface {
	LogPromotion(ctx context.Context, runID, version string, d selector.Decision) error
}

// Pipeline wires the stages to an artifact store.
type Pipeline struct {
	cfg        *config.Config
	store      artifact.Store
	trainer    *train.Trainer
	notifier   *events.Notifier
	promotions PromotionLogger
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithTracker records training runs and promotion decisions.
func WithTracker(t interface {
	train.Tracker
	PromotionLogger
}) Option {
	return func(p *Pipeline) {
		p.trainer = train.NewTrainer(p.cfg.Training, t)
		p.promotions = t
	}
}

// WithNotifier publishes lifecycle events.
func WithNotifier(n *events.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithMetrics records stage durations, row counts and model scores.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline over store.
func New(cfg *config.Config, store artifact.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		trainer:  train.NewTrainer(cfg.Training, nil),
		notifier: events.NewNotifier(nil, nil),
		logger:   slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest stores the raw listings CSV under the raw data key.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading raw data: %w", err)
	}
	return p.store.Put(ctx, p.cfg.Artifacts.RawPath, data)
}

// Run executes every stage in order and stops at the first failure. The
// returned error is the failing stage's error; the RunResult lists every
// stage with its status either way.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, root := tracing.StartSpan(ctx, "pipeline.run", runID)
	root.SetAttr("run_id", runID)

	result := RunResult{RunID: runID}
	finish := func() {
		root.End()
		if p.cfg.Tracing.Enabled {
			root.Log(p.logger)
			sum := root.Summary()
			result.Trace = &sum
		}
	}
	steps := map[Stage]func(context.Context) (StageResult, error){
		StageETL:       p.ETL,
		StageSplit:     p.Split,
		StageValidate:  p.Validate,
		StageTransform: p.Transform,
		StageTrain: func(ctx context.Context) (StageResult, error) {
			return p.Train(ctx, runID)
		},
		StagePromote: func(ctx context.Context) (StageResult, error) {
			res, d, version, err := p.promote(ctx)
			if err == nil {
				result.Decision = &d
				result.BundleVersion = version
			}
			return res, err
		},
	}

	for i, stage := range Stages {
		res, err := steps[stage](ctx)
		result.Stages = append(result.Stages, res)
		if err != nil {
			root.Fail(err)
			for _, rest := range Stages[i+1:] {
				result.Stages = append(result.Stages, StageResult{Stage: rest, Status: StatusSkipped})
			}
			finish()
			p.logger.Error("pipeline run failed", "run_id", runID, "stage", stage, "error", err)
			return result, fmt.Errorf("stage %s: %w", stage, err)
		}
	}
	finish()
	p.logger.Info("pipeline run finished", "run_id", runID, "bundle_version", result.BundleVersion)
	return result, nil
}

// execute runs fn as a traced, timed stage and fills in the bookkeeping
// fields of its result.
func (p *Pipeline) execute(ctx context.Context, stage Stage, fn func(ctx context.Context) (StageResult, error)) (StageResult, error) {
	start := time.Now()
	var res StageResult
	err := tracing.Trace(ctx, "pipeline."+string(stage), func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		if span := tracing.SpanFromContext(ctx); span != nil {
			span.SetAttr("rows", res.Rows)
		}
		return err
	})
	res.Stage = stage
	res.Duration = time.Since(start)
	res.Status = StatusOK
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
	}

	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(string(stage), string(res.Status)).Observe(res.Duration.Seconds())
		if err == nil {
			p.metrics.StageRows.WithLabelValues(string(stage)).Set(float64(res.Rows))
		}
	}
	log := p.logger.With("stage", stage, "duration", res.Duration)
	if err != nil {
		log.Error("stage failed", "error", err)
	} else {
		log.Info("stage finished", "rows", res.Rows)
	}
	return res, err
}

// loadChampion returns the promoted bundle, or nil when nothing has been
// promoted yet.
func (p *Pipeline) loadChampion(ctx context.Context) (*bundle.Bundle, error) {
	data, err := p.store.Get(ctx, p.cfg.Artifacts.Keys.Bundle)
	if errors.Is(err, apperrors.ErrArtifactMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bundle.Decode(data)
}

func (p *Pipeline) getBytes(ctx context.Context, key string) (*bytes.Reader, error) {
	data, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
