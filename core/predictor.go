package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/internal/telemetry"
	"github.com/huangsam/pts/schema"
)

// FallbackModelVersion is reported by prediction sets scored without a fitted estimator.
const FallbackModelVersion = "random-fallback"

// Estimator scores feature rows with a probability of test failure.
type Estimator interface {
	// PredictProba returns one probability in [0,1] per matrix row.
	PredictProba(m schema.Matrix) ([]float64, error)

	// Fitted reports whether the estimator has been trained.
	Fitted() bool

	// Version identifies the estimator and its parameters.
	Version() string
}

// Selector is the decision engine: it scores tests and applies the
// threshold policy to decide which of them to run.
type Selector struct {
	Estimator    Estimator
	Threshold    float64
	TargetColumn string
	Rand         *rand.Rand
	Sink         *telemetry.Sink
	Logger       *logger.Logger
}

// NewSelector creates a decision engine. The threshold must lie in [0,1].
func NewSelector(est Estimator, threshold float64, target string) (*Selector, error) {
	if err := contract.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if target == "" {
		target = schema.ColDefaultTarget
	}
	return &Selector{Estimator: est, Threshold: threshold, TargetColumn: target}, nil
}

func (s *Selector) log() *logger.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.Named("predictor")
}

func (s *Selector) randomScore() float64 {
	if s.Rand != nil {
		return s.Rand.Float64()
	}
	return rand.Float64()
}

// Predict scores every row of the feature frame. Probabilities are aligned
// with test_id by row order. Without a fitted estimator the scores are
// uniform random and the set is flagged as degraded.
func (s *Selector) Predict(ctx context.Context, f *schema.Frame) (schema.PredictionSet, error) {
	if err := ctx.Err(); err != nil {
		return schema.PredictionSet{}, err
	}
	if f.Len() == 0 {
		s.log().Warn().Msg("Empty feature frame, nothing to score")
		return s.Decide(schema.PredictionSet{Records: []schema.PredictionRecord{}, ModelVersion: s.modelVersion()}), nil
	}
	ids, err := f.Strings(schema.ColTestID)
	if err != nil {
		return schema.PredictionSet{}, schema.NewSchemaError("predictor", "test ids are required", schema.ColTestID)
	}

	features := f.NumericColumns(schema.ColTestID, schema.ColCommitID, s.TargetColumn)
	if skipped := nonNumericFeatures(f, s.TargetColumn); len(skipped) > 0 {
		s.log().Debug().Strs("columns", skipped).Msg("Ignoring non-numeric columns")
	}

	if s.Estimator == nil || !s.Estimator.Fitted() {
		return s.Decide(s.predictFallback(ids)), nil
	}

	m, err := f.RowsOf(features)
	if err != nil {
		return schema.PredictionSet{}, err
	}
	probs, err := s.Estimator.PredictProba(m)
	if err != nil {
		return schema.PredictionSet{}, fmt.Errorf("estimator failed: %w", err)
	}
	if len(probs) != len(ids) {
		return schema.PredictionSet{}, fmt.Errorf("estimator returned %d probabilities for %d rows", len(probs), len(ids))
	}

	set := schema.PredictionSet{
		Records:      make([]schema.PredictionRecord, len(ids)),
		ModelVersion: s.Estimator.Version(),
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return schema.PredictionSet{}, fmt.Errorf("estimator returned probability %v for test %s, must be in [0,1]", p, ids[i])
		}
		set.Records[i] = schema.PredictionRecord{TestID: ids[i], FailureProbability: p, Source: schema.ModelSource}
	}
	s.log().Info().Int("tests", set.Len()).Str("model", set.ModelVersion).Msg("Scored tests")
	return s.Decide(set), nil
}

// predictFallback scores every test uniformly at random.
func (s *Selector) predictFallback(ids []string) schema.PredictionSet {
	s.log().Warn().Int("tests", len(ids)).Msg("Estimator is not trained, falling back to random scores")
	if s.Sink != nil {
		s.Sink.ObserveDegraded()
	}
	set := schema.PredictionSet{
		Records:      make([]schema.PredictionRecord, len(ids)),
		Degraded:     true,
		ModelVersion: FallbackModelVersion,
	}
	for i, id := range ids {
		set.Records[i] = schema.PredictionRecord{TestID: id, FailureProbability: s.randomScore(), Source: schema.FallbackSource}
	}
	return set
}

func (s *Selector) modelVersion() string {
	if s.Estimator == nil || !s.Estimator.Fitted() {
		return FallbackModelVersion
	}
	return s.Estimator.Version()
}

// nonNumericFeatures lists the feature columns that cannot reach the estimator.
func nonNumericFeatures(f *schema.Frame, target string) []string {
	var out []string
	for _, name := range f.Columns() {
		if name == schema.ColTestID || name == schema.ColCommitID || name == target {
			continue
		}
		if !f.Kind(name).IsNumeric() {
			out = append(out, name)
		}
	}
	return out
}

// selects is the threshold policy. A test runs when its probability
// reaches the threshold; the bound is inclusive.
func selects(probability, threshold float64) bool {
	return probability >= threshold
}

// Decide applies the threshold policy to every record and returns a copy of
// the set with Selected flags and Threshold filled in.
func (s *Selector) Decide(set schema.PredictionSet) schema.PredictionSet {
	records := make([]schema.PredictionRecord, len(set.Records))
	selected := 0
	for i, r := range set.Records {
		r.Selected = selects(r.FailureProbability, s.Threshold)
		if r.Selected {
			selected++
		}
		records[i] = r
	}
	set.Records = records
	set.Threshold = s.Threshold
	s.log().Info().Int("selected", selected).Float64("threshold", s.Threshold).Msg("Selected tests")
	return set
}

// SelectTests returns the ids of the tests whose probability reaches the
// threshold, in input order.
func (s *Selector) SelectTests(set schema.PredictionSet) []string {
	selected := []string{}
	for _, r := range set.Records {
		if selects(r.FailureProbability, s.Threshold) {
			selected = append(selected, r.TestID)
		}
	}
	return selected
}

// Decisions returns the run/skip decision of every scored test.
func (s *Selector) Decisions(set schema.PredictionSet) []schema.SelectionDecision {
	out := make([]schema.SelectionDecision, len(set.Records))
	for i, r := range set.Records {
		out[i] = schema.SelectionDecision{
			TestID:             r.TestID,
			FailureProbability: r.FailureProbability,
			Selected:           selects(r.FailureProbability, s.Threshold),
		}
	}
	return out
}

// RunPredictionPipeline scores the frame and returns the selected test ids.
func (s *Selector) RunPredictionPipeline(ctx context.Context, f *schema.Frame) ([]string, error) {
	set, err := s.Predict(ctx, f)
	if err != nil {
		return nil, err
	}
	return set.SelectedTests(), nil
}
