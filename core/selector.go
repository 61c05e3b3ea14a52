package core

import (
	"math"
	"slices"

	"github.com/huangsam/pts/core/algo"
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// FeatureSelector keeps the K numeric features that best separate the target classes.
type FeatureSelector struct {
	K            int
	TargetColumn string
	Logger       *logger.Logger

	candidates []string
	selected   []string
	scores     map[string]float64
}

// NewFeatureSelector creates a selector. Non-positive k and an empty target
// fall back to the defaults.
func NewFeatureSelector(k int, target string) *FeatureSelector {
	if k <= 0 {
		k = contract.DefaultKBest
	}
	if target == "" {
		target = schema.ColDefaultTarget
	}
	return &FeatureSelector{K: k, TargetColumn: target}
}

func (s *FeatureSelector) log() *logger.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.Named("selector")
}

// SelectedFeatures returns the features kept by the last SelectKBest call, in column order.
func (s *FeatureSelector) SelectedFeatures() []string {
	return slices.Clone(s.selected)
}

// Scores returns the F-statistic of every candidate of the last SelectKBest call.
func (s *FeatureSelector) Scores() map[string]float64 {
	out := make(map[string]float64, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out
}

// FeatureScores returns every candidate of the last SelectKBest call in
// column order. Infinite scores are clamped so the result stays encodable:
// undefined ones read 0 and unbounded ones math.MaxFloat64.
func (s *FeatureSelector) FeatureScores() []schema.FeatureScore {
	out := make([]schema.FeatureScore, 0, len(s.candidates))
	for _, name := range s.candidates {
		score := s.scores[name]
		switch {
		case math.IsInf(score, 1):
			score = math.MaxFloat64
		case math.IsInf(score, -1), math.IsNaN(score):
			score = 0
		}
		out = append(out, schema.FeatureScore{Name: name, FScore: score, Selected: slices.Contains(s.selected, name)})
	}
	return out
}

// SelectKBest ranks numeric candidates by their ANOVA F-statistic against the
// target and keeps the best min(K, candidates). The identifier and target
// columns that exist are placed in front of the selected features.
func (s *FeatureSelector) SelectKBest(f *schema.Frame) (*schema.Frame, error) {
	if !f.Has(s.TargetColumn) {
		return nil, schema.NewSchemaError("selector", "target column not found", s.TargetColumn)
	}
	excluded := append(slices.Clone(schema.IdentifierColumns), s.TargetColumn)

	candidates := f.NumericColumns(excluded...)
	s.candidates = candidates
	if len(candidates) == 0 {
		var rest []string
		for _, name := range f.Columns() {
			if !slices.Contains(excluded, name) {
				rest = append(rest, name)
			}
		}
		s.selected = rest
		s.scores = map[string]float64{}
		s.log().Warn().Msg("No numeric features found, keeping all columns")
		return f.Clone(), nil
	}

	target, ok := f.Column(s.TargetColumn)
	if !ok || (!target.Kind.IsNumeric() && target.Kind != schema.BoolKind) {
		return nil, schema.NewSchemaError("selector", "target column must be numeric or boolean", s.TargetColumn)
	}

	k := min(s.K, len(candidates))
	s.log().Info().Int("k", k).Int("candidates", len(candidates)).Msg("Selecting best features")

	scores := make([]float64, len(candidates))
	s.scores = make(map[string]float64, len(candidates))
	for j, name := range candidates {
		col, _ := f.Column(name)
		scores[j] = scoreColumn(col, target)
		s.scores[name] = scores[j]
	}

	keep := algo.RankDescending(scores, k)
	s.selected = make([]string, len(keep))
	for i, j := range keep {
		s.selected[i] = candidates[j]
	}
	s.log().Info().Strs("features", s.selected).Msg("Selected features")

	var final []string
	for _, name := range []string{schema.ColCommitID, schema.ColTestID, s.TargetColumn} {
		if f.Has(name) {
			final = append(final, name)
		}
	}
	final = append(final, s.selected...)
	return f.Select(final...)
}

// scoreColumn computes the F-statistic over the rows where both the feature
// and the target are present.
func scoreColumn(col, target *schema.Column) float64 {
	var x, y []float64
	for i := range col.Values {
		xv, ok1 := col.Float(i)
		yv, ok2 := target.Float(i)
		if ok1 && ok2 && !math.IsNaN(xv) && !math.IsNaN(yv) {
			x = append(x, xv)
			y = append(y, yv)
		}
	}
	return algo.FClassif(x, y)
}

// RunSelectionPipeline runs SelectKBest and logs completion.
func (s *FeatureSelector) RunSelectionPipeline(f *schema.Frame) (*schema.Frame, error) {
	out, err := s.SelectKBest(f)
	if err != nil {
		return nil, err
	}
	s.log().Info().Int("columns", out.Width()).Msg("Feature selection complete")
	return out, nil
}
