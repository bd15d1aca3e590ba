package transform

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OneHot expands a categorical feature into one indicator column per
// category. Unknown and dropped categories encode as all zeros.
type OneHot struct {
	Feature    string   `json:"feature"`
	Categories []string `json:"categories"`
	// Fixed categories are not re-learned by fit.
	Fixed bool `json:"fixed"`
	// Drop names a category without an output column.
	Drop string `json:"drop,omitempty"`
	// DropFirst drops the first learned category.
	DropFirst bool `json:"drop_first,omitempty"`
}

func (o *OneHot) fit(vals []string) {
	if !o.Fixed {
		o.Categories = uniqueSorted(vals)
	}
	if o.DropFirst && len(o.Categories) > 0 {
		o.Drop = o.Categories[0]
	}
}

func (o OneHot) names() []string {
	out := make([]string, 0, len(o.Categories))
	for _, c := range o.Categories {
		if o.Drop != "" && c == o.Drop {
			continue
		}
		out = append(out, o.Feature+"_"+c)
	}
	return out
}

func (o OneHot) encode(v string, dst []float64) []float64 {
	for _, c := range o.Categories {
		if o.Drop != "" && c == o.Drop {
			continue
		}
		if c == v {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}

// Ordinal maps a fixed, ordered vocabulary to 0..n-1. Unknown values map
// to -1.
type Ordinal struct {
	Feature    string   `json:"feature"`
	Categories []string `json:"categories"`
}

func (o Ordinal) encode(v string) float64 {
	for i, c := range o.Categories {
		if c == v {
			return float64(i)
		}
	}
	return -1
}

// MinMax scales to [0,1] over the training range.
type MinMax struct {
	Feature string  `json:"feature"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

func (m *MinMax) fit(x []float64) {
	m.Min, m.Max = floats.Min(x), floats.Max(x)
}

func (m MinMax) encode(v float64) float64 {
	span := m.Max - m.Min
	if span == 0 {
		return v - m.Min
	}
	return (v - m.Min) / span
}

// Robust centers on the median and scales by the interquartile range.
type Robust struct {
	Feature string  `json:"feature"`
	Center  float64 `json:"center"`
	Scale   float64 `json:"scale"`
}

func (r *Robust) fit(x []float64) {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	r.Center = quantile(s, 0.5)
	r.Scale = quantile(s, 0.75) - quantile(s, 0.25)
	if r.Scale == 0 {
		r.Scale = 1
	}
}

func (r Robust) encode(v float64) float64 {
	return (v - r.Center) / r.Scale
}

// RareLabel groups categories seen in less than Tol of training rows into
// ReplaceWith. Grouping only happens when more than MinCategories distinct
// values were seen.
type RareLabel struct {
	Tol           float64  `json:"tol"`
	MinCategories int      `json:"n_categories"`
	ReplaceWith   string   `json:"replace_with"`
	Frequent      []string `json:"frequent"`
}

func (r *RareLabel) fit(vals []string) {
	counts := make(map[string]int)
	for _, v := range vals {
		counts[v]++
	}
	r.Frequent = r.Frequent[:0]
	for c, n := range counts {
		if len(counts) <= r.MinCategories || float64(n)/float64(len(vals)) >= r.Tol {
			r.Frequent = append(r.Frequent, c)
		}
	}
	sort.Strings(r.Frequent)
}

func (r RareLabel) apply(v string) string {
	i := sort.SearchStrings(r.Frequent, v)
	if i < len(r.Frequent) && r.Frequent[i] == v {
		return v
	}
	return r.ReplaceWith
}

// Target replaces a category with its shrunk mean target. The shrinkage
// weight is var(y)*n / (var(y)*n + var_c), so small or noisy categories lean
// toward the global mean. Unknown categories get the global mean.
type Target struct {
	Feature    string             `json:"feature"`
	Encodings  map[string]float64 `json:"encodings"`
	GlobalMean float64            `json:"global_mean"`
}

func (t *Target) fit(vals []string, y []float64) {
	mean, variance := stat.PopMeanVariance(y, nil)
	t.GlobalMean = mean
	groups := make(map[string][]float64)
	for i, v := range vals {
		groups[v] = append(groups[v], y[i])
	}
	t.Encodings = make(map[string]float64, len(groups))
	for c, ys := range groups {
		cm, cv := stat.PopMeanVariance(ys, nil)
		n := float64(len(ys))
		denom := variance*n + cv
		if denom == 0 {
			t.Encodings[c] = mean
			continue
		}
		lambda := variance * n / denom
		t.Encodings[c] = lambda*cm + (1-lambda)*mean
	}
}

func (t Target) encode(v string) float64 {
	if e, ok := t.Encodings[v]; ok {
		return e
	}
	return t.GlobalMean
}

// crossFit encodes each training row with an encoder fitted on the other
// folds, so a row's own target never leaks into its encoding.
func crossFit(feature string, vals []string, y []float64, folds int, seed int64) []float64 {
	n := len(vals)
	out := make([]float64, n)
	if folds < 2 || n < folds {
		var t Target
		t.fit(vals, y)
		for i, v := range vals {
			out[i] = t.encode(v)
		}
		return out
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	start := 0
	for k := 0; k < folds; k++ {
		size := n / folds
		if k < n%folds {
			size++
		}
		held := perm[start : start+size]
		start += size

		inFold := make(map[int]bool, len(held))
		for _, i := range held {
			inFold[i] = true
		}
		trVals := make([]string, 0, n-size)
		trY := make([]float64, 0, n-size)
		for i := 0; i < n; i++ {
			if !inFold[i] {
				trVals = append(trVals, vals[i])
				trY = append(trY, y[i])
			}
		}
		t := Target{Feature: feature}
		t.fit(trVals, trY)
		for _, i := range held {
			out[i] = t.encode(vals[i])
		}
	}
	return out
}

// quantile interpolates linearly between the closest ranks of a sorted
// sample, placing rank i at i/(n-1).
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func uniqueSorted(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0)
	for _, v := range vals {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
