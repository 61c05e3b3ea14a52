package core

import (
	"strings"

	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// Commit categories derived from the message prefix.
const (
	CommitTypeFeature  = "feature"
	CommitTypeFix      = "fix"
	CommitTypeRefactor = "refactor"
	CommitTypeTest     = "test"
	CommitTypeOther    = "other"
)

// FeatureExtractor derives raw features from merged commit and outcome rows.
type FeatureExtractor struct {
	TargetColumn string
	Logger       *logger.Logger
}

// NewFeatureExtractor creates an extractor for the given target column.
func NewFeatureExtractor(target string) *FeatureExtractor {
	if target == "" {
		target = schema.ColDefaultTarget
	}
	return &FeatureExtractor{TargetColumn: target}
}

func (e *FeatureExtractor) log() *logger.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.Named("extractor")
}

// CommitType maps a commit message to its category.
func CommitType(message string) string {
	switch {
	case strings.HasPrefix(message, "feat"):
		return CommitTypeFeature
	case strings.HasPrefix(message, "fix"):
		return CommitTypeFix
	case strings.HasPrefix(message, "refactor"):
		return CommitTypeRefactor
	case strings.HasPrefix(message, "test"):
		return CommitTypeTest
	default:
		return CommitTypeOther
	}
}

// ExtractCommitFeatures replaces the message column with its commit_type.
// Frames without a message column are returned as a copy.
func (e *FeatureExtractor) ExtractCommitFeatures(f *schema.Frame) (*schema.Frame, error) {
	col, ok := f.Column(schema.ColMessage)
	if !ok {
		return f.Clone(), nil
	}
	if col.Kind != schema.StringKind {
		return nil, schema.NewSchemaError("extractor", "message column must hold strings", schema.ColMessage)
	}
	e.log().Debug().Int("rows", f.Len()).Msg("Extracting commit features")

	types := make([]any, f.Len())
	for i := range types {
		msg, _ := col.String(i)
		types[i] = CommitType(msg)
	}
	out := f.Drop(schema.ColMessage)
	if err := out.AddColumn(schema.ColCommitType, schema.StringKind, types); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractTestFeatures adds historical_failure_rate: the mean of the target
// over every row of the same test. Missing target cells are skipped and a
// test with no observations gets a rate of zero.
func (e *FeatureExtractor) ExtractTestFeatures(f *schema.Frame) (*schema.Frame, error) {
	var missing []string
	for _, name := range []string{schema.ColTestID, e.TargetColumn} {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, schema.NewSchemaError("extractor", "required columns not found", missing...)
	}
	target, _ := f.Column(e.TargetColumn)
	if !target.Kind.IsNumeric() && target.Kind != schema.BoolKind {
		return nil, schema.NewSchemaError("extractor", "target column must be numeric or boolean", e.TargetColumn)
	}
	tests, _ := f.Column(schema.ColTestID)

	e.log().Debug().Int("rows", f.Len()).Msg("Extracting test features")

	type acc struct {
		sum float64
		n   int
	}
	stats := make(map[string]*acc)
	keys := make([]string, f.Len())
	for i := range keys {
		id, ok := tests.String(i)
		if !ok {
			continue
		}
		keys[i] = id
		a, found := stats[id]
		if !found {
			a = &acc{}
			stats[id] = a
		}
		if v, ok := target.Float(i); ok {
			a.sum += v
			a.n++
		}
	}

	rates := make([]any, f.Len())
	for i, id := range keys {
		if tests.IsNull(i) {
			rates[i] = nil
			continue
		}
		a := stats[id]
		if a.n == 0 {
			rates[i] = 0.0
			continue
		}
		rates[i] = a.sum / float64(a.n)
	}

	out := f.Clone()
	if err := out.AddColumn(schema.ColHistoricalFailureRate, schema.FloatKind, rates); err != nil {
		return nil, err
	}
	return out, nil
}

// RunExtractionPipeline derives the commit features, then the test features.
func (e *FeatureExtractor) RunExtractionPipeline(f *schema.Frame) (*schema.Frame, error) {
	out, err := e.ExtractCommitFeatures(f)
	if err != nil {
		return nil, err
	}
	out, err = e.ExtractTestFeatures(out)
	if err != nil {
		return nil, err
	}
	e.log().Info().Int("rows", out.Len()).Msg("Feature extraction complete")
	return out, nil
}
