package train

import (
	"math"
	"math/rand"
	"sort"
)

// node is one entry of a flattened binary tree. Leaves have Feature -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a regression tree grown on first and second order gradients. With
// g = -y and h = 1 it is a plain least-squares CART tree.
type Tree struct {
	Nodes []node `json:"nodes"`
}

type growConfig struct {
	maxDepth       int // 0 means unbounded
	minSamplesLeaf int
	minChildWeight float64
	lambda         float64
	gamma          float64
	maxFeatures    int // 0 means all
	rng            *rand.Rand
}

func (c growConfig) normalized() growConfig {
	if c.minSamplesLeaf < 1 {
		c.minSamplesLeaf = 1
	}
	return c
}

func (t *Tree) predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// growTree fits a tree on the rows listed in idx.
func growTree(X [][]float64, g, h []float64, idx []int, cfg growConfig) *Tree {
	cfg = cfg.normalized()
	t := &Tree{}
	b := builder{X: X, g: g, h: h, cfg: cfg, tree: t}
	if len(X) > 0 {
		b.features = make([]int, len(X[0]))
		for j := range b.features {
			b.features[j] = j
		}
	}
	b.grow(append([]int(nil), idx...), 0)
	return t
}

type builder struct {
	X        [][]float64
	g, h     []float64
	cfg      growConfig
	tree     *Tree
	features []int
}

func (b *builder) leafValue(G, H float64) float64 {
	if H+b.cfg.lambda == 0 {
		return 0
	}
	return -G / (H + b.cfg.lambda)
}

func (b *builder) score(G, H float64) float64 {
	if H+b.cfg.lambda == 0 {
		return 0
	}
	return G * G / (H + b.cfg.lambda)
}

func (b *builder) grow(idx []int, depth int) int {
	var G, H float64
	for _, i := range idx {
		G += b.g[i]
		H += b.h[i]
	}
	at := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, node{Feature: -1, Value: b.leafValue(G, H)})

	if b.cfg.maxDepth > 0 && depth >= b.cfg.maxDepth {
		return at
	}
	if len(idx) < 2*b.cfg.minSamplesLeaf {
		return at
	}

	best := split{feature: -1}
	parent := b.score(G, H)
	for _, f := range b.candidateFeatures() {
		if s := b.bestSplit(idx, f, G, H, parent); s.gain > best.gain {
			best = s
		}
	}
	if best.feature < 0 || best.gain <= b.cfg.gamma {
		return at
	}

	left := make([]int, 0, best.nLeft)
	right := make([]int, 0, len(idx)-best.nLeft)
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[at] = node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return at
}

func (b *builder) candidateFeatures() []int {
	k := b.cfg.maxFeatures
	if k <= 0 || k >= len(b.features) || b.cfg.rng == nil {
		return b.features
	}
	perm := b.cfg.rng.Perm(len(b.features))
	out := make([]int, k)
	for i := range out {
		out[i] = b.features[perm[i]]
	}
	return out
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	nLeft     int
}

func (b *builder) bestSplit(idx []int, f int, G, H, parent float64) split {
	order := append([]int(nil), idx...)
	sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

	best := split{feature: -1}
	var GL, HL float64
	minLeaf := b.cfg.minSamplesLeaf
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		GL += b.g[i]
		HL += b.h[i]
		lo, hi := b.X[i][f], b.X[order[k+1]][f]
		if lo == hi {
			continue
		}
		nLeft := k + 1
		if nLeft < minLeaf || len(order)-nLeft < minLeaf {
			continue
		}
		GR, HR := G-GL, H-HL
		if HL < b.cfg.minChildWeight || HR < b.cfg.minChildWeight {
			continue
		}
		gain := 0.5 * (b.score(GL, HL) + b.score(GR, HR) - parent)
		if gain > best.gain {
			threshold := lo + (hi-lo)/2
			if threshold == hi || math.IsInf(threshold, 0) {
				threshold = lo
			}
			best = split{feature: f, threshold: threshold, gain: gain, nLeft: nLeft}
		}
	}
	return best
}

// squaredErrorGrad returns the gradients of 0.5*w*(pred-y)^2 at pred.
func squaredErrorGrad(y, pred, w []float64) (g, h []float64) {
	g = make([]float64, len(y))
	h = make([]float64, len(y))
	for i := range y {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		g[i] = wi * (pred[i] - y[i])
		h[i] = wi
	}
	return g, h
}

// DecisionTree is a single least-squares regression tree.
type DecisionTree struct {
	MaxDepth       int   `json:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	Tree           *Tree `json:"tree"`
}

func newDecisionTree(p Params) *DecisionTree {
	return &DecisionTree{
		MaxDepth:       p.getInt("max_depth", 0),
		MinSamplesLeaf: p.getInt("min_samples_leaf", 1),
	}
}

func (d *DecisionTree) fit(X [][]float64, y []float64) error {
	return d.fitWeighted(X, y, nil)
}

func (d *DecisionTree) fitWeighted(X [][]float64, y, w []float64) error {
	g, h := squaredErrorGrad(y, make([]float64, len(y)), w)
	d.Tree = growTree(X, g, h, allRows(len(y)), growConfig{
		maxDepth:       d.MaxDepth,
		minSamplesLeaf: d.MinSamplesLeaf,
	})
	return nil
}

func (d *DecisionTree) predict(x []float64) float64 {
	return d.Tree.predict(x)
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
