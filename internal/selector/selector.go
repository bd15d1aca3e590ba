// Package selector decides whether a newly trained model replaces the
// promoted one. Each candidate is scored on the same train and test records
// with its own preprocessing; the lower overfit-adjusted test MAE wins and
// ties go to the challenger.
package selector

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/train"
)

// Candidate is anything that can price cleaned records.
type Candidate interface {
	PredictRecords(rs []listing.Record) ([]float64, error)
}

// Score is the comparison metric set for one candidate.
type Score struct {
	TrainMAE        float64 `json:"train_mae"`
	TestMAE         float64 `json:"test_mae"`
	OverfitPenalty  float64 `json:"overfit_penalty"`
	AdjustedTestMAE float64 `json:"adjusted_test_mae"`
}

// NewScore derives the penalty and adjusted error from the raw errors.
func NewScore(trainMAE, testMAE float64) Score {
	penalty := trainMAE - testMAE
	if penalty < 0 {
		penalty = -penalty
	}
	return Score{
		TrainMAE:        trainMAE,
		TestMAE:         testMAE,
		OverfitPenalty:  penalty,
		AdjustedTestMAE: testMAE + penalty,
	}
}

// Outcome names the winner.
type Outcome string

const (
	ChallengerWins Outcome = "challenger"
	ChampionKept   Outcome = "champion"
)

// Decision is the result of a comparison.
type Decision struct {
	Outcome    Outcome `json:"outcome"`
	Challenger Score   `json:"challenger"`
	Champion   *Score  `json:"champion,omitempty"`
}

// Promote reports whether the challenger should be persisted.
func (d Decision) Promote() bool { return d.Outcome == ChallengerWins }

// Choose is the pure decision rule. A nil champion always loses.
func Choose(challenger Score, champion *Score) Decision {
	d := Decision{Outcome: ChallengerWins, Challenger: challenger, Champion: champion}
	if champion != nil && champion.AdjustedTestMAE < challenger.AdjustedTestMAE {
		d.Outcome = ChampionKept
	}
	return d
}

// Compare scores the challenger and, when present, the champion on the
// same partitions and applies Choose. Pass a nil champion on the first run.
func Compare(challenger, champion Candidate, trainSet, testSet []listing.Record) (Decision, error) {
	yTrain, err := listing.Targets(trainSet)
	if err != nil {
		return Decision{}, fmt.Errorf("train targets: %w", err)
	}
	yTest, err := listing.Targets(testSet)
	if err != nil {
		return Decision{}, fmt.Errorf("test targets: %w", err)
	}

	cs, err := evaluate(challenger, trainSet, yTrain, testSet, yTest)
	if err != nil {
		return Decision{}, fmt.Errorf("scoring challenger: %w", err)
	}
	var champ *Score
	if champion != nil {
		s, err := evaluate(champion, trainSet, yTrain, testSet, yTest)
		if err != nil {
			return Decision{}, fmt.Errorf("scoring champion: %w", err)
		}
		champ = &s
	}

	d := Choose(cs, champ)
	attrs := []any{"outcome", d.Outcome, "challenger_adjusted_mae", cs.AdjustedTestMAE}
	if champ != nil {
		attrs = append(attrs, "champion_adjusted_mae", champ.AdjustedTestMAE)
	}
	slog.Default().With("component", "selector").Info("model comparison", attrs...)
	return d, nil
}

func evaluate(c Candidate, trainSet []listing.Record, yTrain []float64, testSet []listing.Record, yTest []float64) (Score, error) {
	predTrain, err := c.PredictRecords(trainSet)
	if err != nil {
		return Score{}, err
	}
	predTest, err := c.PredictRecords(testSet)
	if err != nil {
		return Score{}, err
	}
	trainMAE, err := train.MAE(yTrain, predTrain)
	if err != nil {
		return Score{}, err
	}
	testMAE, err := train.MAE(yTest, predTest)
	if err != nil {
		return Score{}, err
	}
	return NewScore(trainMAE, testMAE), nil
}
