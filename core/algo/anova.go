// Package algo holds the statistics behind feature ranking and model scoring.
package algo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FClassif computes the one-way ANOVA F-statistic of feature x against the
// class labels y.
//
// A constant feature, or labels with fewer than two classes, yield -Inf so
// the column always ranks last. A feature that is constant inside every class
// but differs between classes separates them perfectly and yields +Inf.
func FClassif(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return math.Inf(-1)
	}

	groups := make(map[float64][]float64)
	var order []float64
	for i, label := range y {
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], x[i])
	}
	k := len(groups)
	if k < 2 {
		return math.Inf(-1)
	}

	grand := stat.Mean(x, nil)
	var ssb, ssw float64
	for _, label := range order {
		g := groups[label]
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		ssw += sumSquares(g, m)
	}

	// Sums of squares below the rounding noise of the feature's own
	// magnitude count as zero, so the checks hold at any scale.
	tol := float64(n) * math.Pow(relTol*maxAbs(x), 2)
	switch {
	case ssb <= tol && ssw <= tol:
		return math.Inf(-1)
	case ssw <= tol:
		return math.Inf(1)
	}
	return (ssb / float64(k-1)) / (ssw / float64(n-k))
}

const relTol = 1e-12

// maxAbs returns the largest magnitude in xs.
func maxAbs(xs []float64) float64 {
	var m float64
	for _, v := range xs {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// sumSquares returns the sum of squared deviations of xs from mean.
func sumSquares(xs []float64, mean float64) float64 {
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return ss
}
