package train

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Linear is an intercept plus one coefficient per column. The penalty is
// zero for ordinary least squares, L2 for ridge and L1 for lasso. The
// intercept is never penalized.
type Linear struct {
	Penalty   string    `json:"penalty"`
	Alpha     float64   `json:"alpha"`
	MaxIter   int       `json:"max_iter,omitempty"`
	Tol       float64   `json:"tol,omitempty"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

const (
	penaltyNone = "none"
	penaltyL2   = "l2"
	penaltyL1   = "l1"
)

func newLinear(kind Kind, p Params) *Linear {
	switch kind {
	case KindRidge:
		return &Linear{Penalty: penaltyL2, Alpha: p.getFloat("alpha", 1.0)}
	case KindLasso:
		return &Linear{
			Penalty: penaltyL1,
			Alpha:   p.getFloat("alpha", 1.0),
			MaxIter: p.getInt("max_iter", 1000),
			Tol:     p.getFloat("tol", 1e-4),
		}
	default:
		return &Linear{Penalty: penaltyNone}
	}
}

func (l *Linear) fit(X [][]float64, y []float64) error {
	n := len(y)
	if n == 0 {
		return errors.New("linear: no rows")
	}
	d := len(X[0])
	xMean := make([]float64, d)
	for _, row := range X {
		floats.Add(xMean, row)
	}
	floats.Scale(1/float64(n), xMean)
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, d, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, v-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var coef []float64
	var err error
	switch l.Penalty {
	case penaltyL2:
		coef, err = solveRidge(xc, yc, l.Alpha)
	case penaltyL1:
		coef = l.coordinateDescent(xc, yc)
	default:
		coef, err = solveLeastSquares(xc, yc)
	}
	if err != nil {
		return err
	}
	l.Coef = coef
	l.Intercept = yMean - floats.Dot(xMean, coef)
	return nil
}

func (l *Linear) predict(x []float64) float64 {
	return l.Intercept + floats.Dot(l.Coef, x)
}

// solveLeastSquares returns the minimum-norm solution, so collinear
// one-hot blocks do not make the fit fail.
func solveLeastSquares(x *mat.Dense, y *mat.VecDense) ([]float64, error) {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, errors.New("linear: svd factorization failed")
	}
	var beta mat.VecDense
	svd.SolveVecTo(&beta, y, svd.Rank(1e-12))
	return mat.Col(nil, 0, &beta), nil
}

func solveRidge(x *mat.Dense, y *mat.VecDense, alpha float64) ([]float64, error) {
	if alpha < 0 {
		return nil, fmt.Errorf("ridge: alpha must be non-negative, got %v", alpha)
	}
	_, d := x.Dims()
	var gram mat.SymDense
	gram.SymOuterK(1, x.T())
	for j := 0; j < d; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}
	var chol mat.Cholesky
	if !chol.Factorize(&gram) {
		return solveLeastSquares(x, y)
	}
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), y)
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("ridge: %w", err)
	}
	return mat.Col(nil, 0, &beta), nil
}

// coordinateDescent minimizes (1/2n)||y - Xw||^2 + alpha*||w||_1.
func (l *Linear) coordinateDescent(x *mat.Dense, y *mat.VecDense) []float64 {
	n, d := x.Dims()
	w := make([]float64, d)
	resid := mat.Col(nil, 0, y)
	cols := make([][]float64, d)
	norms := make([]float64, d)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
		norms[j] = floats.Dot(cols[j], cols[j])
	}
	maxIter := l.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}
	for iter := 0; iter < maxIter; iter++ {
		var maxStep float64
		for j := 0; j < d; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := floats.Dot(cols[j], resid) + old*norms[j]
			w[j] = softThreshold(rho, l.Alpha*float64(n)) / norms[j]
			if step := w[j] - old; step != 0 {
				floats.AddScaled(resid, -step, cols[j])
				maxStep = math.Max(maxStep, math.Abs(step))
			}
		}
		if maxStep < l.Tol {
			break
		}
	}
	return w
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// KNN predicts the mean target of the k nearest training rows by Euclidean
// distance. The training rows are stored in the model.
type KNN struct {
	K int         `json:"n_neighbors"`
	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

func newKNN(p Params) *KNN {
	return &KNN{K: p.getInt("n_neighbors", 5)}
}

func (k *KNN) fit(X [][]float64, y []float64) error {
	if k.K < 1 {
		return fmt.Errorf("knn: n_neighbors must be positive, got %d", k.K)
	}
	k.X = make([][]float64, len(X))
	for i, row := range X {
		k.X[i] = append([]float64(nil), row...)
	}
	k.Y = append([]float64(nil), y...)
	return nil
}

func (k *KNN) predict(x []float64) float64 {
	type neighbour struct {
		dist float64
		y    float64
	}
	ns := make([]neighbour, len(k.X))
	for i, row := range k.X {
		ns[i] = neighbour{floats.Distance(row, x, 2), k.Y[i]}
	}
	sort.SliceStable(ns, func(a, b int) bool { return ns[a].dist < ns[b].dist })
	m := min(k.K, len(ns))
	if m == 0 {
		return 0
	}
	var sum float64
	for _, nb := range ns[:m] {
		sum += nb.y
	}
	return sum / float64(m)
}
