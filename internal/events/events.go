// Package events defines the messages the platform publishes to Kafka and
// the helpers that publish them without blocking the caller.
package events

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
)

// Type is carried in the kafka event-type header.
type Type string

const (
	TypePrediction Type = "prediction"
	TypeTraining   Type = "training_run"
	TypePromotion  Type = "model_promotion"
)

// PredictionEvent is emitted once per served prediction.
type PredictionEvent struct {
	RequestID    string    `json:"request_id"`
	Location     string    `json:"location"`
	NumBHK       int       `json:"num_bhk"`
	Prediction   float64   `json:"prediction"`
	CacheHit     bool      `json:"cache_hit"`
	LatencyMs    int64     `json:"latency_ms"`
	ModelVersion string    `json:"model_version"`
	Timestamp    time.Time `json:"timestamp"`
}

// TrainingEvent is emitted when a training run finishes.
type TrainingEvent struct {
	RunID           string             `json:"run_id"`
	Regressor       string             `json:"regressor"`
	TargetTransform string             `json:"target_transform"`
	Metrics         map[string]float64 `json:"metrics"`
	FeatureCount    int                `json:"feature_count"`
	DurationMs      int64              `json:"duration_ms"`
	Timestamp       time.Time          `json:"timestamp"`
}

// PromotionEvent is emitted after a champion/challenger comparison.
type PromotionEvent struct {
	RunID                 string    `json:"run_id"`
	BundleVersion         string    `json:"bundle_version"`
	Outcome               string    `json:"outcome"`
	ChallengerAdjustedMAE float64   `json:"challenger_adjusted_mae"`
	ChampionAdjustedMAE   *float64  `json:"champion_adjusted_mae,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// Prediction wraps e for publishing, keyed by location so one location's
// events stay ordered on a partition.
func Prediction(e PredictionEvent) kafka.Event {
	return kafka.Event{Key: e.Location, Type: string(TypePrediction), Value: e}
}

// Training wraps e for publishing.
func Training(e TrainingEvent) kafka.Event {
	return kafka.Event{Key: e.RunID, Type: string(TypeTraining), Value: e}
}

// Promotion wraps e for publishing.
func Promotion(e PromotionEvent) kafka.Event {
	return kafka.Event{Key: e.RunID, Type: string(TypePromotion), Value: e}
}

// Decode returns the typed event carried by msg.
func Decode(msg kafka.Message) (any, error) {
	switch Type(msg.Type) {
	case TypePrediction:
		return kafka.DecodeJSON[PredictionEvent](msg.Value)
	case TypeTraining:
		return kafka.DecodeJSON[TrainingEvent](msg.Value)
	case TypePromotion:
		return kafka.DecodeJSON[PromotionEvent](msg.Value)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q on topic %s", kafka.ErrMalformed, msg.Type, msg.Topic)
	}
}
