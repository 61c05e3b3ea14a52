package algo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFClassif tests the ANOVA F-statistic against hand-computed values.
func TestFClassif(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		y        []float64
		expected float64
	}{
		{
			name:     "two balanced groups",
			x:        []float64{1, 2, 3, 5, 6, 7},
			y:        []float64{0, 0, 0, 1, 1, 1},
			expected: 24.0, // ssb=24, ssw=4, df=(1,4)
		},
		{
			name:     "unbalanced groups",
			x:        []float64{1, 3, 10, 12, 14},
			y:        []float64{0, 0, 1, 1, 1},
			expected: 36.0, // ssb=120, ssw=10, df=(1,3)
		},
		{
			name:     "three classes",
			x:        []float64{1, 2, 4, 5, 7, 8},
			y:        []float64{0, 0, 1, 1, 2, 2},
			expected: 36.0, // ssb=36, ssw=1.5, df=(2,3)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, FClassif(tt.x, tt.y), 1e-9)
		})
	}
}

func TestFClassifEdgeCases(t *testing.T) {
	t.Run("constant column ranks lowest", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif([]float64{3, 3, 3, 3}, []float64{0, 1, 0, 1}), -1))
	})
	t.Run("single class ranks lowest", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif([]float64{1, 2, 3}, []float64{1, 1, 1}), -1))
	})
	t.Run("empty input ranks lowest", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif(nil, nil), -1))
	})
	t.Run("length mismatch ranks lowest", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif([]float64{1, 2}, []float64{0}), -1))
	})
	t.Run("perfect separation is infinite", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif([]float64{0, 0, 5, 5}, []float64{0, 0, 1, 1}), 1))
	})
	t.Run("tiny magnitudes still separate", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif([]float64{2e-7, 2e-7, 1e-7, 1e-7}, []float64{1, 1, 0, 0}), 1))
	})
	t.Run("tiny magnitudes keep a finite score", func(t *testing.T) {
		f := FClassif([]float64{1e-7, 2e-7, 5e-7, 6e-7}, []float64{0, 0, 1, 1})
		assert.False(t, math.IsInf(f, 0))
		assert.InDelta(t, 32.0, f, 1e-6) // ssb=16e-14, ssw=1e-14, df=(1,2)
	})
	t.Run("constant tiny column ranks lowest", func(t *testing.T) {
		assert.True(t, math.IsInf(FClassif([]float64{3e-9, 3e-9, 3e-9}, []float64{0, 1, 0}), -1))
	})
	t.Run("rounding noise on a constant column ranks lowest", func(t *testing.T) {
		x := []float64{0.1 + 0.2, 0.3, 0.1 + 0.2, 0.3}
		assert.True(t, math.IsInf(FClassif(x, []float64{0, 0, 1, 1}), -1))
	})
}

func TestRankDescending(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		k        int
		expected []int
	}{
		{"top two in column order", []float64{1, 9, 3, 7}, 2, []int{1, 3}},
		{"ties keep column order", []float64{5, 5, 5, 1}, 2, []int{0, 1}},
		{"k larger than input", []float64{2, 1}, 10, []int{0, 1}},
		{"zero k", []float64{2, 1}, 0, []int{}},
		{"negative infinity last", []float64{math.Inf(-1), 0.1, math.Inf(1)}, 2, []int{1, 2}},
		{"empty", nil, 3, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RankDescending(tt.scores, tt.k)
			if len(tt.expected) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestROCAUC(t *testing.T) {
	t.Run("perfect ranking", func(t *testing.T) {
		auc := ROCAUC([]float64{0.1, 0.2, 0.8, 0.9}, []bool{false, false, true, true})
		assert.InDelta(t, 1.0, auc, 1e-9)
	})
	t.Run("inverted ranking", func(t *testing.T) {
		auc := ROCAUC([]float64{0.9, 0.8, 0.2, 0.1}, []bool{false, false, true, true})
		assert.InDelta(t, 0.0, auc, 1e-9)
	})
	t.Run("one misordered pair", func(t *testing.T) {
		auc := ROCAUC([]float64{0.1, 0.4, 0.35, 0.8}, []bool{false, false, true, true})
		assert.InDelta(t, 0.75, auc, 1e-9)
	})
	t.Run("single class", func(t *testing.T) {
		assert.Equal(t, 0.5, ROCAUC([]float64{0.1, 0.9}, []bool{true, true}))
	})
	t.Run("does not reorder input", func(t *testing.T) {
		scores := []float64{0.9, 0.1}
		labels := []bool{true, false}
		ROCAUC(scores, labels)
		assert.Equal(t, []float64{0.9, 0.1}, scores)
		assert.Equal(t, []bool{true, false}, labels)
	})
}
