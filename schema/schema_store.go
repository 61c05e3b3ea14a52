package schema

import "time"

// RunRecord represents a row from the pts_runs table.
type RunRecord struct {
	RunID         int64
	Kind          string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	TotalTests    *int32
	ConfigParams  *string
}

// PredictionHistoryRecord represents a row from the pts_predictions table.
type PredictionHistoryRecord struct {
	RunID              int64
	TestID             string
	FailureProbability float64
	Selected           bool
	Source             string
}

// EvaluationHistoryRecord represents a row from the pts_evaluations table.
type EvaluationHistoryRecord struct {
	RunID               int64
	EvaluationTime      time.Time
	Threshold           float64
	TotalTests          int32
	TotalFailed         int32
	TotalSelected       int32
	DetectedFailures    int32
	TestReductionRate   float64
	DefectDetectionRate float64
	FalsePositiveRate   float64
	DroppedPredictions  int32
	DroppedGroundTruth  int32
}
