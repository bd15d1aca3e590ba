package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/cleaner"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/impute"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/selector"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/split"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/transform"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/validation"
	"golang.org/x/sync/errgroup"
)

// ETL parses the raw listings, applies the cleaning filters and writes the
// cleaned dataset.
func (p *Pipeline) ETL(ctx context.Context) (StageResult, error) {
	return p.execute(ctx, StageETL, func(ctx context.Context) (StageResult, error) {
		r, err := p.getBytes(ctx, p.cfg.Artifacts.RawPath)
		if err != nil {
			return StageResult{}, err
		}
		raw, err := listing.ReadRaw(r)
		if err != nil {
			return StageResult{}, err
		}
		cleaned, report := cleaner.Clean(raw)
		if len(cleaned) == 0 {
			return StageResult{}, fmt.Errorf("no rows survived cleaning (%d read)", report.RowsIn)
		}
		if err := p.putRecords(ctx, p.cfg.Artifacts.Keys.Cleaned, cleaned); err != nil {
			return StageResult{}, err
		}
		return StageResult{
			Rows: len(cleaned),
			Details: map[string]any{
				"rows_in": report.RowsIn,
				"dropped": report.Dropped,
			},
		}, nil
	})
}

// Split partitions the cleaned dataset into train, validation and test sets.
func (p *Pipeline) Split(ctx context.Context) (StageResult, error) {
	return p.execute(ctx, StageSplit, func(ctx context.Context) (StageResult, error) {
		splitter, err := split.New(p.cfg.Split)
		if err != nil {
			return StageResult{}, err
		}
		cleaned, err := p.records(ctx, p.cfg.Artifacts.Keys.Cleaned)
		if err != nil {
			return StageResult{}, err
		}
		parts := splitter.Split(cleaned)
		if len(parts.Train) == 0 || len(parts.Test) == 0 {
			return StageResult{}, fmt.Errorf("split of %d rows left an empty train or test partition", len(cleaned))
		}

		keys := p.cfg.Artifacts.Keys
		blobs := make(map[string][]byte, 3)
		for key, rows := range map[string][]listing.Record{
			keys.InterimTrain: parts.Train,
			keys.InterimVal:   parts.Val,
			keys.InterimTest:  parts.Test,
		} {
			var buf bytes.Buffer
			if err := listing.WriteRecords(&buf, rows); err != nil {
				return StageResult{}, fmt.Errorf("encoding %s: %w", key, err)
			}
			blobs[key] = buf.Bytes()
		}
		if err := p.store.PutAll(ctx, blobs); err != nil {
			return StageResult{}, err
		}
		return StageResult{
			Rows: parts.Total(),
			Details: map[string]any{
				"strategy": p.cfg.Split.Strategy,
				"train":    len(parts.Train),
				"val":      len(parts.Val),
				"test":     len(parts.Test),
			},
		}, nil
	})
}

// Validate checks every interim partition against the record schema. Any
// invalid row fails the stage.
func (p *Pipeline) Validate(ctx context.Context) (StageResult, error) {
	return p.execute(ctx, StageValidate, func(ctx context.Context) (StageResult, error) {
		parts, err := p.interim(ctx)
		if err != nil {
			return StageResult{}, err
		}
		res := StageResult{Details: map[string]any{}}
		for _, named := range []struct {
			name    string
			records []listing.Record
		}{
			{"train", parts.Train},
			{"val", parts.Val},
			{"test", parts.Test},
		} {
			report, err := validation.Partition(named.name, named.records)
			res.Details[named.name] = report
			if err != nil {
				return res, err
			}
			res.Rows += report.Rows
		}
		return res, nil
	})
}

// Transform fits imputation and the column transformer on the training
// partition, applies both to every partition and stores the fitted artifacts
// together with the encoded matrices.
func (p *Pipeline) Transform(ctx context.Context) (StageResult, error) {
	return p.execute(ctx, StageTransform, func(ctx context.Context) (StageResult, error) {
		parts, err := p.interim(ctx)
		if err != nil {
			return StageResult{}, err
		}
		stats, err := impute.Fit(parts.Train)
		if err != nil {
			return StageResult{}, err
		}

		keys := p.cfg.Artifacts.Keys
		ct := transform.New()
		blobs := make(map[string][]byte, 5)
		encode := func(key string, records []listing.Record, fit bool) (int, error) {
			imps, err := stats.TransformAll(records)
			if err != nil {
				return 0, err
			}
			y, err := listing.Targets(records)
			if err != nil {
				return 0, err
			}
			rows := features.BuildAll(imps)
			var m *transform.Matrix
			if fit {
				m, err = ct.FitTransform(rows, y, p.cfg.Training.Seed)
			} else {
				m, err = ct.Transform(rows)
			}
			if err != nil {
				return 0, err
			}
			var buf bytes.Buffer
			if err := transform.WriteCSV(&buf, m, y); err != nil {
				return 0, fmt.Errorf("encoding %s: %w", key, err)
			}
			blobs[key] = buf.Bytes()
			return m.Len(), nil
		}

		// Train first: the transformer must be fitted before the others.
		total, err := encode(keys.PreprocessedTrain, parts.Train, true)
		if err != nil {
			return StageResult{}, fmt.Errorf("train partition: %w", err)
		}
		for key, records := range map[string][]listing.Record{
			keys.PreprocessedVal:  parts.Val,
			keys.PreprocessedTest: parts.Test,
		} {
			n, err := encode(key, records, false)
			if err != nil {
				return StageResult{}, fmt.Errorf("%s: %w", key, err)
			}
			total += n
		}

		if blobs[keys.Imputation], err = artifact.MarshalJSON(keys.Imputation, stats); err != nil {
			return StageResult{}, err
		}
		if blobs[keys.Transformer], err = artifact.MarshalJSON(keys.Transformer, ct); err != nil {
			return StageResult{}, err
		}
		if err := p.store.PutAll(ctx, blobs); err != nil {
			return StageResult{}, err
		}
		return StageResult{
			Rows:    total,
			Details: map[string]any{"columns": len(ct.Columns)},
		}, nil
	})
}

// Train fits the configured regressor on the preprocessed partitions and
// stores the resulting candidate bundle under the model key.
func (p *Pipeline) Train(ctx context.Context, runID string) (StageResult, error) {
	return p.execute(ctx, StageTrain, func(ctx context.Context) (StageResult, error) {
		started := time.Now()
		keys := p.cfg.Artifacts.Keys
		var (
			data  train.Data
			stats *impute.Statistics
			ct    *transform.ColumnTransformer
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			data.Train, data.YTrain, err = p.matrix(gctx, keys.PreprocessedTrain)
			return err
		})
		g.Go(func() (err error) {
			data.Val, data.YVal, err = p.matrix(gctx, keys.PreprocessedVal)
			return err
		})
		g.Go(func() (err error) {
			data.Test, data.YTest, err = p.matrix(gctx, keys.PreprocessedTest)
			return err
		})
		g.Go(func() (err error) {
			stats, err = artifact.GetJSON[impute.Statistics](gctx, p.store, keys.Imputation)
			return err
		})
		g.Go(func() (err error) {
			ct, err = artifact.GetJSON[transform.ColumnTransformer](gctx, p.store, keys.Transformer)
			return err
		})
		if err := g.Wait(); err != nil {
			return StageResult{}, err
		}

		result, err := p.trainer.Train(ctx, runID, data)
		if err != nil {
			return StageResult{}, err
		}
		metrics := result.Metrics()
		b, err := bundle.New(runID, stats, ct, result.Model, metrics)
		if err != nil {
			return StageResult{}, err
		}
		encoded, err := bundle.Encode(b)
		if err != nil {
			return StageResult{}, err
		}
		if err := p.store.Put(ctx, keys.Model, encoded); err != nil {
			return StageResult{}, err
		}

		if p.metrics != nil {
			for _, split := range []struct {
				name   string
				scores train.Scores
			}{{"train", result.Train}, {"test", result.Test}} {
				p.metrics.ModelScore.WithLabelValues(split.name, "mae").Set(split.scores.MAE)
				p.metrics.ModelScore.WithLabelValues(split.name, "rmse").Set(split.scores.RMSE)
				p.metrics.ModelScore.WithLabelValues(split.name, "r2").Set(split.scores.R2)
			}
		}
		p.notifier.TrainingFinished(ctx, events.TrainingEvent{
			RunID:           runID,
			Regressor:       string(result.Model.Kind),
			TargetTransform: string(result.Model.TargetTransform),
			Metrics:         metrics,
			FeatureCount:    len(result.Model.Features),
			DurationMs:      time.Since(started).Milliseconds(),
			Timestamp:       time.Now().UTC(),
		})
		return StageResult{
			Rows: data.Train.Len(),
			Details: map[string]any{
				"bundle_version": b.Version,
				"features":       len(result.Model.Features),
				"metrics":        metrics,
			},
		}, nil
	})
}

// Promote compares the candidate bundle against the promoted one and
// replaces it when the candidate wins.
func (p *Pipeline) Promote(ctx context.Context) (StageResult, selector.Decision, error) {
	res, d, _, err := p.promote(ctx)
	return res, d, err
}

func (p *Pipeline) promote(ctx context.Context) (StageResult, selector.Decision, string, error) {
	var (
		decision selector.Decision
		version  string
	)
	res, err := p.execute(ctx, StagePromote, func(ctx context.Context) (StageResult, error) {
		keys := p.cfg.Artifacts.Keys
		data, err := p.store.Get(ctx, keys.Model)
		if err != nil {
			return StageResult{}, err
		}
		challenger, err := bundle.Decode(data)
		if err != nil {
			return StageResult{}, err
		}
		champion, err := p.loadChampion(ctx)
		if err != nil {
			return StageResult{}, fmt.Errorf("loading promoted bundle: %w", err)
		}

		trainSet, err := p.records(ctx, keys.InterimTrain)
		if err != nil {
			return StageResult{}, err
		}
		testSet, err := p.records(ctx, keys.InterimTest)
		if err != nil {
			return StageResult{}, err
		}

		// A nil *bundle.Bundle inside the interface would not compare as nil.
		var champ selector.Candidate
		if champion != nil {
			champ = champion
		}
		decision, err = selector.Compare(challenger, champ, trainSet, testSet)
		if err != nil {
			return StageResult{}, err
		}

		version = challenger.Version
		if decision.Promote() {
			if err := p.store.Put(ctx, keys.Bundle, data); err != nil {
				return StageResult{}, err
			}
		} else {
			version = champion.Version
		}

		if p.promotions != nil {
			if err := p.promotions.LogPromotion(ctx, challenger.RunID, version, decision); err != nil {
				p.logger.Warn("tracking promotion failed", "run_id", challenger.RunID, "error", err)
			}
		}
		ev := events.PromotionEvent{
			RunID:                 challenger.RunID,
			BundleVersion:         version,
			Outcome:               string(decision.Outcome),
			ChallengerAdjustedMAE: decision.Challenger.AdjustedTestMAE,
			Timestamp:             time.Now().UTC(),
		}
		if decision.Champion != nil {
			v := decision.Champion.AdjustedTestMAE
			ev.ChampionAdjustedMAE = &v
		}
		p.notifier.Promoted(ctx, ev)

		return StageResult{
			Rows: len(trainSet) + len(testSet),
			Details: map[string]any{
				"outcome":        decision.Outcome,
				"bundle_version": version,
			},
		}, nil
	})
	return res, decision, version, err
}

func (p *Pipeline) putRecords(ctx context.Context, key string, records []listing.Record) error {
	var buf bytes.Buffer
	if err := listing.WriteRecords(&buf, records); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return p.store.Put(ctx, key, buf.Bytes())
}

func (p *Pipeline) records(ctx context.Context, key string) ([]listing.Record, error) {
	r, err := p.getBytes(ctx, key)
	if err != nil {
		return nil, err
	}
	records, err := listing.ReadRecords(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return records, nil
}

func (p *Pipeline) interim(ctx context.Context) (split.Partitions, error) {
	keys := p.cfg.Artifacts.Keys
	var parts split.Partitions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		parts.Train, err = p.records(gctx, keys.InterimTrain)
		return err
	})
	g.Go(func() (err error) {
		parts.Val, err = p.records(gctx, keys.InterimVal)
		return err
	})
	g.Go(func() (err error) {
		parts.Test, err = p.records(gctx, keys.InterimTest)
		return err
	})
	return parts, g.Wait()
}

func (p *Pipeline) matrix(ctx context.Context, key string) (*transform.Matrix, []float64, error) {
	r, err := p.getBytes(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	m, y, err := transform.ReadCSV(r)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return m, y, nil
}
