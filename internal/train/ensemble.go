package train

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RandomForest averages bootstrapped trees grown in parallel.
type RandomForest struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	MaxFeatures    float64 `json:"max_features"`
	Seed           int64   `json:"seed"`
	Trees          []*Tree `json:"trees"`
}

func newRandomForest(p Params, seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:    p.getInt("n_estimators", 100),
		MaxDepth:       p.getInt("max_depth", 0),
		MinSamplesLeaf: p.getInt("min_samples_leaf", 1),
		MaxFeatures:    p.getFloat("max_features", 1.0),
		Seed:           p.getInt64("random_state", seed),
	}
}

func (f *RandomForest) fit(X [][]float64, y []float64) error {
	if f.NEstimators < 1 {
		return fmt.Errorf("random forest: n_estimators must be positive, got %d", f.NEstimators)
	}
	n := len(y)
	maxFeatures := 0
	if len(X) > 0 && f.MaxFeatures > 0 && f.MaxFeatures < 1 {
		maxFeatures = int(math.Max(1, math.Round(f.MaxFeatures*float64(len(X[0])))))
	}
	g, h := squaredErrorGrad(y, make([]float64, n), nil)

	f.Trees = make([]*Tree, f.NEstimators)
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for t := range f.Trees {
		eg.Go(func() error {
			rng := rand.New(rand.NewSource(f.Seed + int64(t)))
			sample := make([]int, n)
			for i := range sample {
				sample[i] = rng.Intn(n)
			}
			f.Trees[t] = growTree(X, g, h, sample, growConfig{
				maxDepth:       f.MaxDepth,
				minSamplesLeaf: f.MinSamplesLeaf,
				maxFeatures:    maxFeatures,
				rng:            rng,
			})
			return nil
		})
	}
	return eg.Wait()
}

func (f *RandomForest) predict(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Boosting is stagewise additive trees on squared error. GradientBoosting
// uses plain least-squares trees; XGB adds L2 leaf shrinkage, a split gain
// floor and a minimum hessian per child.
type Boosting struct {
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Subsample      float64 `json:"subsample"`
	Lambda         float64 `json:"reg_lambda"`
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
	Seed           int64   `json:"seed"`
	Init           float64 `json:"init"`
	Trees          []*Tree `json:"trees"`
}

func newGradientBoosting(p Params, seed int64) *Boosting {
	return &Boosting{
		NEstimators:    p.getInt("n_estimators", 100),
		LearningRate:   p.getFloat("learning_rate", 0.1),
		MaxDepth:       p.getInt("max_depth", 3),
		MinSamplesLeaf: p.getInt("min_samples_leaf", 1),
		Subsample:      p.getFloat("subsample", 1.0),
		Seed:           p.getInt64("random_state", seed),
	}
}

func newXGB(p Params, seed int64) *Boosting {
	return &Boosting{
		NEstimators:    p.getInt("n_estimators", 100),
		LearningRate:   p.getFloat("learning_rate", 0.3),
		MaxDepth:       p.getInt("max_depth", 6),
		MinSamplesLeaf: 1,
		Subsample:      p.getFloat("subsample", 1.0),
		Lambda:         p.getFloat("reg_lambda", 1.0),
		Gamma:          p.getFloat("gamma", 0),
		MinChildWeight: p.getFloat("min_child_weight", 1.0),
		Seed:           p.getInt64("random_state", seed),
	}
}

func (b *Boosting) fit(X [][]float64, y []float64) error {
	if b.NEstimators < 1 {
		return fmt.Errorf("boosting: n_estimators must be positive, got %d", b.NEstimators)
	}
	if b.LearningRate <= 0 {
		return fmt.Errorf("boosting: learning_rate must be positive, got %v", b.LearningRate)
	}
	n := len(y)
	b.Init = stat.Mean(y, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = b.Init
	}
	rng := rand.New(rand.NewSource(b.Seed))
	rows := allRows(n)
	b.Trees = make([]*Tree, 0, b.NEstimators)
	for m := 0; m < b.NEstimators; m++ {
		g, h := squaredErrorGrad(y, pred, nil)
		sample := rows
		if b.Subsample > 0 && b.Subsample < 1 {
			perm := rng.Perm(n)
			sample = perm[:int(math.Max(1, math.Round(b.Subsample*float64(n))))]
		}
		t := growTree(X, g, h, sample, growConfig{
			maxDepth:       b.MaxDepth,
			minSamplesLeaf: b.MinSamplesLeaf,
			minChildWeight: b.MinChildWeight,
			lambda:         b.Lambda,
			gamma:          b.Gamma,
		})
		for i := range pred {
			pred[i] += b.LearningRate * t.predict(X[i])
		}
		b.Trees = append(b.Trees, t)
	}
	return nil
}

func (b *Boosting) predict(x []float64) float64 {
	out := b.Init
	for _, t := range b.Trees {
		out += b.LearningRate * t.predict(x)
	}
	return out
}

// AdaBoost is AdaBoost.R2 with linear loss over weighted depth-limited
// trees. Predictions are the weighted median of the member predictions.
type AdaBoost struct {
	NEstimators  int             `json:"n_estimators"`
	LearningRate float64         `json:"learning_rate"`
	MaxDepth     int             `json:"max_depth"`
	Members      []*DecisionTree `json:"members"`
	Weights      []float64       `json:"weights"`
}

func newAdaBoost(p Params) *AdaBoost {
	return &AdaBoost{
		NEstimators:  p.getInt("n_estimators", 50),
		LearningRate: p.getFloat("learning_rate", 1.0),
		MaxDepth:     p.getInt("max_depth", 3),
	}
}

func (a *AdaBoost) fit(X [][]float64, y []float64) error {
	if a.NEstimators < 1 {
		return fmt.Errorf("adaboost: n_estimators must be positive, got %d", a.NEstimators)
	}
	n := len(y)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	a.Members, a.Weights = nil, nil
	loss := make([]float64, n)
	for m := 0; m < a.NEstimators; m++ {
		scaled := make([]float64, n)
		floats.ScaleTo(scaled, float64(n), w)
		member := &DecisionTree{MaxDepth: a.MaxDepth, MinSamplesLeaf: 1}
		if err := member.fitWeighted(X, y, scaled); err != nil {
			return err
		}
		for i := range loss {
			loss[i] = math.Abs(member.predict(X[i]) - y[i])
		}
		maxLoss := floats.Max(loss)
		if maxLoss == 0 {
			a.Members = append(a.Members, member)
			a.Weights = append(a.Weights, 1)
			break
		}
		floats.Scale(1/maxLoss, loss)
		estErr := floats.Dot(w, loss)
		if estErr <= 0 {
			a.Members = append(a.Members, member)
			a.Weights = append(a.Weights, 1)
			break
		}
		if estErr >= 0.5 {
			if len(a.Members) == 0 {
				a.Members = append(a.Members, member)
				a.Weights = append(a.Weights, 1)
			}
			break
		}
		beta := estErr / (1 - estErr)
		a.Members = append(a.Members, member)
		a.Weights = append(a.Weights, a.LearningRate*math.Log(1/beta))
		for i := range w {
			w[i] *= math.Pow(beta, (1-loss[i])*a.LearningRate)
		}
		sum := floats.Sum(w)
		if sum <= 0 {
			break
		}
		floats.Scale(1/sum, w)
	}
	return nil
}

func (a *AdaBoost) predict(x []float64) float64 {
	preds := make([]float64, len(a.Members))
	for i, m := range a.Members {
		preds[i] = m.predict(x)
	}
	inds := make([]int, len(preds))
	floats.Argsort(preds, inds)
	weights := make([]float64, len(inds))
	for i, j := range inds {
		weights[i] = a.Weights[j]
	}
	return stat.Quantile(0.5, stat.Empirical, preds, weights)
}
