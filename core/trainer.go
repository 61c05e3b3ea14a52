package core

import (
	"fmt"

	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// Trainer fits the logistic estimator on a selected feature frame.
type Trainer struct {
	TargetColumn string
	LearningRate float64
	Epochs       int
	L2           float64
	Logger       *logger.Logger
}

// NewTrainer creates a trainer with the default hyperparameters.
func NewTrainer(target string) *Trainer {
	if target == "" {
		target = schema.ColDefaultTarget
	}
	return &Trainer{
		TargetColumn: target,
		LearningRate: DefaultLearningRate,
		Epochs:       DefaultEpochs,
		L2:           DefaultL2,
	}
}

func (t *Trainer) log() *logger.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return logger.Named("trainer")
}

// Train fits a new model on every numeric non-identifier column of the frame.
// The per-test failure rates of the frame are stored in the artifact.
func (t *Trainer) Train(f *schema.Frame) (*LogisticModel, error) {
	if !f.Has(t.TargetColumn) {
		return nil, schema.NewSchemaError("trainer", "target column not found", t.TargetColumn)
	}
	y, err := f.Float64s(t.TargetColumn)
	if err != nil {
		return nil, err
	}
	features := f.NumericColumns(schema.ColTestID, schema.ColCommitID, t.TargetColumn)
	m, err := f.RowsOf(features)
	if err != nil {
		return nil, err
	}

	t.log().Info().Int("samples", len(y)).Strs("features", features).Msg("Training logistic model")
	lm := NewLogisticModel()
	lm.TargetColumn = t.TargetColumn
	lm.LearningRate, lm.Epochs, lm.L2 = t.LearningRate, t.Epochs, t.L2
	if err := lm.Fit(m, y); err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	if f.Has(schema.ColTestID) {
		rates, err := FailureRatesByTest(f, t.TargetColumn)
		if err != nil {
			return nil, err
		}
		lm.TestFailureRates = rates
	}
	t.log().Info().Int("tests", len(lm.TestFailureRates)).Msg("Training complete")
	return lm, nil
}

// FailureRatesByTest returns the mean of the target for every test id.
// Tests without observations map to zero.
func FailureRatesByTest(f *schema.Frame, target string) (map[string]float64, error) {
	out, err := NewFeatureExtractor(target).ExtractTestFeatures(f)
	if err != nil {
		return nil, err
	}
	ids, _ := out.Column(schema.ColTestID)
	rates, _ := out.Column(schema.ColHistoricalFailureRate)
	result := make(map[string]float64)
	for i := range ids.Values {
		id, ok := ids.String(i)
		if !ok {
			continue
		}
		r, _ := rates.Float(i)
		result[id] = r
	}
	return result, nil
}

// AuthorExperience counts commits per author.
func AuthorExperience(commits []schema.CommitRecord) map[string]int {
	out := make(map[string]int)
	for _, c := range commits {
		out[c.Author]++
	}
	return out
}
