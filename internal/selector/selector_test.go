package selector

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoose(t *testing.T) {
	tests := []struct {
		name       string
		challenger Score
		champion   *Score
		want       Outcome
	}{
		{
			name:       "overfit challenger loses despite lower test error",
			challenger: NewScore(0.05, 0.11),
			champion:   ptr(NewScore(0.10, 0.12)),
			want:       ChampionKept,
		},
		{
			name:       "better challenger wins",
			challenger: NewScore(0.10, 0.11),
			champion:   ptr(NewScore(0.10, 0.12)),
			want:       ChallengerWins,
		},
		{
			name:       "tie goes to challenger",
			challenger: NewScore(0.2, 0.3),
			champion:   ptr(NewScore(0.2, 0.3)),
			want:       ChallengerWins,
		},
		{
			name:       "no champion",
			challenger: NewScore(0.01, 9),
			want:       ChallengerWins,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Choose(tt.challenger, tt.champion)
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.want == ChallengerWins, d.Promote())
		})
	}
}

func TestNewScore(t *testing.T) {
	s := NewScore(0.05, 0.11)
	assert.InDelta(t, 0.06, s.OverfitPenalty, 1e-12)
	assert.InDelta(t, 0.17, s.AdjustedTestMAE, 1e-12)

	s = NewScore(0.10, 0.12)
	assert.InDelta(t, 0.14, s.AdjustedTestMAE, 1e-12)
}

// offsetCandidate predicts the true price plus a fixed error that differs
// between the two partitions it is told about.
type offsetCandidate struct {
	trainIDs   map[int64]bool
	trainError float64
	testError  float64
	err        error
}

func (c offsetCandidate) PredictRecords(rs []listing.Record) ([]float64, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]float64, len(rs))
	for i, r := range rs {
		if c.trainIDs[r.ID] {
			out[i] = *r.Amount + c.trainError
		} else {
			out[i] = *r.Amount - c.testError
		}
	}
	return out, nil
}

func partitions() (trainSet, testSet []listing.Record, trainIDs map[int64]bool) {
	trainIDs = map[int64]bool{}
	for i := int64(0); i < 6; i++ {
		trainSet = append(trainSet, listing.Record{ID: i, Amount: listing.Float(1 + float64(i)/10)})
		trainIDs[i] = true
	}
	for i := int64(10); i < 13; i++ {
		testSet = append(testSet, listing.Record{ID: i, Amount: listing.Float(2)})
	}
	return trainSet, testSet, trainIDs
}

func TestCompare(t *testing.T) {
	trainSet, testSet, ids := partitions()
	challenger := offsetCandidate{trainIDs: ids, trainError: 0.05, testError: 0.11}
	champion := offsetCandidate{trainIDs: ids, trainError: 0.10, testError: 0.12}

	d, err := Compare(challenger, champion, trainSet, testSet)
	require.NoError(t, err)
	assert.Equal(t, ChampionKept, d.Outcome)
	assert.InDelta(t, 0.17, d.Challenger.AdjustedTestMAE, 1e-9)
	require.NotNil(t, d.Champion)
	assert.InDelta(t, 0.14, d.Champion.AdjustedTestMAE, 1e-9)

	d, err = Compare(challenger, nil, trainSet, testSet)
	require.NoError(t, err)
	assert.Equal(t, ChallengerWins, d.Outcome)
	assert.Nil(t, d.Champion)
}

func TestCompareFailures(t *testing.T) {
	trainSet, testSet, ids := partitions()
	ok := offsetCandidate{trainIDs: ids}
	broken := offsetCandidate{err: errors.New("schema mismatch")}

	_, err := Compare(ok, broken, trainSet, testSet)
	assert.ErrorContains(t, err, "scoring champion")

	_, err = Compare(broken, nil, trainSet, testSet)
	assert.ErrorContains(t, err, "scoring challenger")

	testSet[0].Amount = nil
	_, err = Compare(ok, nil, trainSet, testSet)
	assert.ErrorContains(t, err, "test targets")
}

func ptr(s Score) *Score { return &s }
