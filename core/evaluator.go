package core

import (
	"errors"
	"fmt"

	"github.com/huangsam/pts/core/algo"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// ClassificationCutoff turns a probability into a predicted failure for the classic metrics.
const ClassificationCutoff = 0.5

// Evaluator measures how well a selection tracks actual test outcomes.
type Evaluator struct {
	TargetColumn string
	Logger       *logger.Logger
}

// NewEvaluator creates an evaluator for the given target column.
func NewEvaluator(target string) *Evaluator {
	if target == "" {
		target = schema.ColDefaultTarget
	}
	return &Evaluator{TargetColumn: target}
}

func (e *Evaluator) log() *logger.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.Named("evaluator")
}

// CalculatePTSMetrics joins predictions with ground truth on the test id and
// computes the selection metrics at the given threshold.
func (e *Evaluator) CalculatePTSMetrics(predictions []schema.PredictionRecord, truth []schema.GroundTruthRecord, threshold float64) schema.PTSMetrics {
	metrics, _ := e.CalculatePTSMetricsDetailed(predictions, truth, threshold)
	return metrics
}

// CalculatePTSMetricsDetailed is CalculatePTSMetrics that also reports how
// many rows the inner join dropped. Joined rows follow prediction order and
// a test id repeated on both sides yields every pairing.
func (e *Evaluator) CalculatePTSMetricsDetailed(predictions []schema.PredictionRecord, truth []schema.GroundTruthRecord, threshold float64) (schema.PTSMetrics, schema.JoinStats) {
	byID := make(map[string][]bool, len(truth))
	for _, t := range truth {
		byID[t.TestID] = append(byID[t.TestID], t.Failed)
	}
	predicted := make(map[string]struct{}, len(predictions))

	var m schema.PTSMetrics
	var join schema.JoinStats
	for _, p := range predictions {
		predicted[p.TestID] = struct{}{}
		outcomes, ok := byID[p.TestID]
		if !ok {
			join.DroppedPredictions++
			continue
		}
		selected := selects(p.FailureProbability, threshold)
		for _, failed := range outcomes {
			m.TotalTests++
			if failed {
				m.TotalFailed++
			}
			if selected {
				m.TotalSelected++
			}
			if failed && selected {
				m.DetectedFailures++
			}
		}
	}
	for _, t := range truth {
		if _, ok := predicted[t.TestID]; !ok {
			join.DroppedGroundTruth++
		}
	}

	falsePositives := m.TotalSelected - m.DetectedFailures
	m.TestReductionRate = 0.0
	if m.TotalTests > 0 {
		m.TestReductionRate = 1.0 - float64(m.TotalSelected)/float64(m.TotalTests)
	}
	m.DefectDetectionRate = 1.0
	if m.TotalFailed > 0 {
		m.DefectDetectionRate = float64(m.DetectedFailures) / float64(m.TotalFailed)
	}
	m.FalsePositiveRate = 0.0
	if m.TotalSelected > 0 {
		m.FalsePositiveRate = float64(falsePositives) / float64(m.TotalSelected)
	}

	log := e.log()
	if join.DroppedPredictions > 0 || join.DroppedGroundTruth > 0 {
		log.Debug().
			Int("dropped_predictions", join.DroppedPredictions).
			Int("dropped_ground_truth", join.DroppedGroundTruth).
			Msg("Unmatched test ids dropped by join")
	}
	log.Info().
		Float64("trr", m.TestReductionRate).
		Float64("ddr", m.DefectDetectionRate).
		Float64("fpr", m.FalsePositiveRate).
		Msg("Computed selection metrics")
	return m, join
}

// Evaluate computes the classic classification metrics of a fitted estimator
// on a labeled feature frame.
func (e *Evaluator) Evaluate(est Estimator, f *schema.Frame) (schema.ClassificationMetrics, error) {
	if est == nil || !est.Fitted() {
		return schema.ClassificationMetrics{}, errors.New("estimator is not trained")
	}
	if !f.Has(e.TargetColumn) {
		return schema.ClassificationMetrics{}, schema.NewSchemaError("evaluator", "target column not found", e.TargetColumn)
	}
	if f.Len() == 0 {
		return schema.ClassificationMetrics{}, errors.New("no rows to evaluate")
	}
	y, err := f.Float64s(e.TargetColumn)
	if err != nil {
		return schema.ClassificationMetrics{}, err
	}
	m, err := f.RowsOf(f.NumericColumns(schema.ColTestID, schema.ColCommitID, e.TargetColumn))
	if err != nil {
		return schema.ClassificationMetrics{}, err
	}
	probs, err := est.PredictProba(m)
	if err != nil {
		return schema.ClassificationMetrics{}, fmt.Errorf("estimator failed: %w", err)
	}
	if len(probs) != len(y) {
		return schema.ClassificationMetrics{}, fmt.Errorf("estimator returned %d probabilities for %d rows", len(probs), len(y))
	}

	labels := make([]bool, len(y))
	for i, v := range y {
		labels[i] = v != 0
	}
	out := classificationMetrics(probs, labels)
	e.log().Info().
		Float64("accuracy", out.Accuracy).
		Float64("precision", out.Precision).
		Float64("recall", out.Recall).
		Float64("f1", out.F1).
		Float64("roc_auc", out.ROCAUC).
		Int("samples", len(y)).
		Msg("Evaluated estimator")
	return out, nil
}

// classificationMetrics derives the confusion-matrix metrics. Undefined
// ratios resolve to zero.
func classificationMetrics(probs []float64, labels []bool) schema.ClassificationMetrics {
	var tp, fp, tn, fn int
	for i, p := range probs {
		predicted := p >= ClassificationCutoff
		switch {
		case predicted && labels[i]:
			tp++
		case predicted && !labels[i]:
			fp++
		case !predicted && labels[i]:
			fn++
		default:
			tn++
		}
	}
	out := schema.ClassificationMetrics{ROCAUC: algo.ROCAUC(probs, labels)}
	if n := tp + fp + tn + fn; n > 0 {
		out.Accuracy = float64(tp+tn) / float64(n)
	}
	if tp+fp > 0 {
		out.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		out.Recall = float64(tp) / float64(tp+fn)
	}
	if out.Precision+out.Recall > 0 {
		out.F1 = 2 * out.Precision * out.Recall / (out.Precision + out.Recall)
	}
	return out
}
