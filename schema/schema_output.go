package schema

import (
	"cmp"
	"slices"
)

// RankedPrediction adds presentation data to a PredictionRecord.
type RankedPrediction struct {
	Rank             int    `json:"rank" yaml:"rank"`
	Label            string `json:"label" yaml:"label"`
	PredictionRecord `yaml:",inline"`
}

// EvaluationOutput bundles the evaluator results for rendering.
type EvaluationOutput struct {
	Threshold float64    `json:"threshold" yaml:"threshold"`
	Metrics   PTSMetrics `json:"metrics" yaml:"metrics"`
	Join      JoinStats  `json:"join" yaml:"join"`
}

// GetPlainLabel returns a plain text risk label for a failure probability.
func GetPlainLabel(probability float64) string {
	switch {
	case probability >= 0.8:
		return "Critical"
	case probability >= 0.6:
		return "High"
	case probability >= 0.4:
		return "Moderate"
	default:
		return "Low"
	}
}

// RankPredictions orders predictions by descending probability and labels them.
// Ties keep input order. Selection flags are carried over unchanged.
func RankPredictions(set PredictionSet) []RankedPrediction {
	records := slices.Clone(set.Records)
	slices.SortStableFunc(records, func(a, b PredictionRecord) int {
		return cmp.Compare(b.FailureProbability, a.FailureProbability)
	})
	output := make([]RankedPrediction, len(records))
	for i, r := range records {
		output[i] = RankedPrediction{
			Rank:             i + 1,
			Label:            GetPlainLabel(r.FailureProbability),
			PredictionRecord: r,
		}
	}
	return output
}

// FeatureScore is the ANOVA F-score of one candidate feature.
type FeatureScore struct {
	Name     string  `json:"name" yaml:"name"`
	FScore   float64 `json:"f_score" yaml:"f_score"`
	Selected bool    `json:"selected" yaml:"selected"`
}

// TrainingOutput summarizes a training run for rendering.
type TrainingOutput struct {
	ModelFile    string                `json:"model_file" yaml:"model_file"`
	ModelVersion string                `json:"model_version" yaml:"model_version"`
	Samples      int                   `json:"samples" yaml:"samples"`
	Tests        int                   `json:"tests" yaml:"tests"`
	Features     []FeatureScore        `json:"features" yaml:"features"`
	Metrics      ClassificationMetrics `json:"metrics" yaml:"metrics"`
}
