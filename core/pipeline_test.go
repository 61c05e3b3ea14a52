package core

import (
	"errors"
	"math"
	"testing"

	"github.com/huangsam/pts/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, cols ...*schema.Column) *schema.Frame {
	t.Helper()
	f, err := schema.NewFrameFromColumns(cols...)
	require.NoError(t, err)
	return f
}

func strCol(name string, vals ...string) *schema.Column {
	return &schema.Column{Name: name, Kind: schema.StringKind, Values: schema.StringValues(vals...)}
}

func intCol(name string, vals ...int64) *schema.Column {
	return &schema.Column{Name: name, Kind: schema.IntKind, Values: schema.IntValues(vals...)}
}

func floatCol(name string, vals ...float64) *schema.Column {
	return &schema.Column{Name: name, Kind: schema.FloatKind, Values: schema.FloatValues(vals...)}
}

func trainingFrame(t *testing.T) *schema.Frame {
	return mustFrame(t,
		strCol("commit_id", "c1", "c1", "c2", "c2"),
		strCol("test_id", "t1", "t2", "t1", "t2"),
		intCol("test_failed", 1, 0, 1, 0),
		floatCol("churn", 10, 10, 4, 4),
	)
}

func TestValidator(t *testing.T) {
	v := NewValidator(DefaultRequiredColumns(schema.ColDefaultTarget), schema.ColDefaultTarget)

	t.Run("valid dataset", func(t *testing.T) {
		f := trainingFrame(t)
		assert.True(t, v.Validate(f))
		assert.True(t, v.Check(f).OK())
	})

	t.Run("missing column", func(t *testing.T) {
		f := trainingFrame(t).Drop("churn")
		assert.False(t, v.Validate(f))
		assert.Equal(t, []string{"churn"}, v.Check(f).MissingColumns)
	})

	t.Run("missing values", func(t *testing.T) {
		f := mustFrame(t,
			strCol("commit_id", "c1", "c2"),
			strCol("test_id", "t1", "t2"),
			intCol("test_failed", 1, 0),
			&schema.Column{Name: "churn", Kind: schema.FloatKind, Values: []any{1.0, nil}},
		)
		assert.False(t, v.Validate(f))
		assert.Equal(t, 1, v.Check(f).NullCounts["churn"])
	})

	t.Run("kind mismatch is a warning", func(t *testing.T) {
		f := mustFrame(t,
			strCol("commit_id", "c1"),
			strCol("test_id", "t1"),
			intCol("test_failed", 1),
			intCol("churn", 3),
		)
		assert.True(t, v.Validate(f))
		report := v.Check(f)
		require.Len(t, report.KindMismatches, 1)
		assert.Equal(t, schema.KindMismatch{Column: "churn", Expected: schema.FloatKind, Actual: schema.IntKind}, report.KindMismatches[0])
	})

	t.Run("does not modify input", func(t *testing.T) {
		f := trainingFrame(t)
		before := f.Columns()
		v.Validate(f)
		assert.Equal(t, before, f.Columns())
	})
}

func TestCommitType(t *testing.T) {
	tests := map[string]string{
		"feat: add login":   CommitTypeFeature,
		"feature flag":      CommitTypeFeature,
		"fix: null pointer": CommitTypeFix,
		"refactor parser":   CommitTypeRefactor,
		"test: cover edge":  CommitTypeTest,
		"Fix uppercase":     CommitTypeOther,
		"":                  CommitTypeOther,
		"docs: readme":      CommitTypeOther,
	}
	for msg, expected := range tests {
		assert.Equal(t, expected, CommitType(msg), msg)
	}
}

func TestFeatureExtractor(t *testing.T) {
	e := NewFeatureExtractor("")

	t.Run("historical failure rate", func(t *testing.T) {
		f := mustFrame(t,
			strCol("test_id", "A", "A", "B", "A"),
			intCol("test_failed", 1, 0, 0, 1),
		)
		out, err := e.ExtractTestFeatures(f)
		require.NoError(t, err)
		rates, err := out.Float64s(schema.ColHistoricalFailureRate)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{2.0 / 3.0, 2.0 / 3.0, 0, 2.0 / 3.0}, rates, 1e-9)
		assert.False(t, f.Has(schema.ColHistoricalFailureRate))
	})

	t.Run("test without observations", func(t *testing.T) {
		f := mustFrame(t,
			strCol("test_id", "A", "B"),
			&schema.Column{Name: "test_failed", Kind: schema.IntKind, Values: []any{int64(1), nil}},
		)
		out, err := e.ExtractTestFeatures(f)
		require.NoError(t, err)
		rates, err := out.Float64s(schema.ColHistoricalFailureRate)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0}, rates)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := e.ExtractTestFeatures(mustFrame(t, strCol("test_id", "A")))
		var se *schema.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{"test_failed"}, se.Columns)
	})

	t.Run("commit type replaces message", func(t *testing.T) {
		f := mustFrame(t,
			strCol("test_id", "A", "B"),
			strCol("message", "fix: crash", "chore: bump"),
		)
		out, err := e.ExtractCommitFeatures(f)
		require.NoError(t, err)
		assert.False(t, out.Has("message"))
		types, err := out.Strings(schema.ColCommitType)
		require.NoError(t, err)
		assert.Equal(t, []string{"fix", "other"}, types)
	})

	t.Run("pipeline", func(t *testing.T) {
		f := mustFrame(t,
			strCol("test_id", "A", "A"),
			strCol("message", "feat: x", "test: y"),
			intCol("test_failed", 1, 1),
		)
		out, err := e.RunExtractionPipeline(f)
		require.NoError(t, err)
		assert.Equal(t, []string{"test_id", "test_failed", "commit_type", "historical_failure_rate"}, out.Columns())
	})
}

func TestFeatureEngineer(t *testing.T) {
	e := NewFeatureEngineer()

	t.Run("interaction features", func(t *testing.T) {
		f := mustFrame(t,
			floatCol("churn", 10, 0, 4),
			floatCol("historical_failure_rate", 0.5, 0.2, 0),
			floatCol("author_experience", 20, 7, 2),
		)
		out, err := e.CreateInteractionFeatures(f)
		require.NoError(t, err)

		inter, err := out.Float64s(schema.ColChurnFailureInteraction)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 0, 0}, inter)

		ratio, err := out.Float64s(schema.ColExpChurnRatio)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 7, 0.5}, ratio)
	})

	t.Run("missing sources skip features", func(t *testing.T) {
		f := mustFrame(t, floatCol("churn", 1))
		out, err := e.CreateInteractionFeatures(f)
		require.NoError(t, err)
		assert.Equal(t, []string{"churn"}, out.Columns())
	})

	t.Run("non-numeric source", func(t *testing.T) {
		f := mustFrame(t, strCol("churn", "lots"), floatCol("historical_failure_rate", 0.1))
		_, err := e.CreateInteractionFeatures(f)
		assert.ErrorIs(t, err, schema.ErrSchema)
	})

	t.Run("one-hot commit type", func(t *testing.T) {
		f := mustFrame(t,
			strCol("test_id", "a", "b", "c"),
			strCol("commit_type", "fix", "feature", "fix"),
		)
		out, err := e.EncodeCategoricalFeatures(f)
		require.NoError(t, err)
		assert.Equal(t, []string{"test_id", "type_feature", "type_fix"}, out.Columns())
		fix, err := out.Float64s("type_fix")
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0, 1}, fix)
	})
}

func TestFeatureSelector(t *testing.T) {
	t.Run("keeps best features with id and target in front", func(t *testing.T) {
		f := mustFrame(t,
			strCol("commit_id", "c1", "c2", "c3", "c4"),
			strCol("test_id", "t1", "t2", "t3", "t4"),
			intCol("test_failed", 1, 1, 0, 0),
			floatCol("strong", 9, 10, 1, 0),
			floatCol("noise", 1, 2, 2, 1),
			floatCol("weak", 3, 5, 2, 4),
		)
		s := NewFeatureSelector(1, "")
		out, err := s.SelectKBest(f)
		require.NoError(t, err)
		assert.Equal(t, []string{"commit_id", "test_id", "test_failed", "strong"}, out.Columns())
		assert.Equal(t, []string{"strong"}, s.SelectedFeatures())

		scores := s.FeatureScores()
		require.Len(t, scores, 3)
		assert.Equal(t, "strong", scores[0].Name)
		assert.True(t, scores[0].Selected)
		assert.False(t, scores[1].Selected)
		assert.Greater(t, scores[0].FScore, scores[2].FScore)
	})

	t.Run("k larger than candidates", func(t *testing.T) {
		s := NewFeatureSelector(10, "")
		out, err := s.SelectKBest(trainingFrame(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"churn"}, s.SelectedFeatures())
		assert.Equal(t, 4, out.Width())
	})

	t.Run("no numeric features keeps everything", func(t *testing.T) {
		f := mustFrame(t,
			strCol("test_id", "t1", "t2"),
			intCol("test_failed", 1, 0),
			strCol("author_name", "a", "b"),
		)
		s := NewFeatureSelector(3, "")
		out, err := s.SelectKBest(f)
		require.NoError(t, err)
		assert.Equal(t, f.Columns(), out.Columns())
		assert.Equal(t, []string{"author_name"}, s.SelectedFeatures())
	})

	t.Run("missing target", func(t *testing.T) {
		s := NewFeatureSelector(3, "")
		_, err := s.SelectKBest(mustFrame(t, floatCol("churn", 1)))
		assert.Error(t, err)
	})

	t.Run("constant column never beats variable ones", func(t *testing.T) {
		f := mustFrame(t,
			intCol("test_failed", 1, 1, 0, 0),
			floatCol("constant", 5, 5, 5, 5),
			floatCol("tiny", 2e-7, 2e-7, 1e-7, 1e-7),
			floatCol("normal", 9, 8, 1, 3),
		)
		s := NewFeatureSelector(2, "")
		out, err := s.SelectKBest(f)
		require.NoError(t, err)
		assert.Equal(t, []string{"tiny", "normal"}, s.SelectedFeatures())
		assert.NotContains(t, out.Columns(), "constant")

		scores := s.Scores()
		assert.True(t, math.IsInf(scores["constant"], -1))
		assert.True(t, math.IsInf(scores["tiny"], 1))
		assert.InDelta(t, 33.8, scores["normal"], 1e-9)
	})

	t.Run("stable ties", func(t *testing.T) {
		f := mustFrame(t,
			intCol("test_failed", 1, 0, 1, 0),
			floatCol("a", 1, 0, 1, 0),
			floatCol("b", 1, 0, 1, 0.5),
			floatCol("c", 1, 0, 1, 0),
		)
		s := NewFeatureSelector(2, "")
		_, err := s.SelectKBest(f)
		require.NoError(t, err)
		// a and c have the same perfect separation but a comes first
		assert.Equal(t, []string{"a", "c"}, s.SelectedFeatures())
	})
}
