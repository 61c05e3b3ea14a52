// Package parquet provides data structures and functions for exporting prediction
// history and selection results to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/pts/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single predict or evaluate run with metadata.
// This struct maps to the pts_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// Kind is either predict or evaluate
	Kind string `parquet:"kind,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// TotalTests is the number of tests scored or evaluated (nullable)
	TotalTests *int32 `parquet:"total_tests,optional,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Prediction is one scored test of a run.
// This struct maps to the pts_predictions database table.
type Prediction struct {
	RunID              int64   `parquet:"run_id,snappy"`
	TestID             string  `parquet:"test_id,snappy"`
	FailureProbability float64 `parquet:"failure_probability,snappy"`
	Selected           bool    `parquet:"selected,snappy"`
	Source             string  `parquet:"source,snappy"`
}

// Evaluation is the evaluator output of a run.
// This struct maps to the pts_evaluations database table.
type Evaluation struct {
	RunID               int64     `parquet:"run_id,snappy"`
	EvaluationTime      time.Time `parquet:"evaluation_time,snappy"`
	Threshold           float64   `parquet:"threshold,snappy"`
	TotalTests          int32     `parquet:"total_tests,snappy"`
	TotalFailed         int32     `parquet:"total_failed,snappy"`
	TotalSelected       int32     `parquet:"total_selected,snappy"`
	DetectedFailures    int32     `parquet:"detected_failures,snappy"`
	TestReductionRate   float64   `parquet:"test_reduction_rate,snappy"`
	DefectDetectionRate float64   `parquet:"defect_detection_rate,snappy"`
	FalsePositiveRate   float64   `parquet:"false_positive_rate,snappy"`
	DroppedPredictions  int32     `parquet:"dropped_predictions,snappy"`
	DroppedGroundTruth  int32     `parquet:"dropped_ground_truth,snappy"`
}

// ScoredTest is one row of a ranked prediction written by the predict command.
type ScoredTest struct {
	Rank               int32   `parquet:"rank,snappy"`
	TestID             string  `parquet:"test_id,snappy"`
	FailureProbability float64 `parquet:"failure_probability,snappy"`
	Label              string  `parquet:"label,snappy"`
	Selected           bool    `parquet:"selected,snappy"`
	Source             string  `parquet:"source,snappy"`
}

// writeRows writes a slice of rows to a Parquet file.
// The schema is derived from the struct tags of T.
func writeRows[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeRows(data, outputPath)
}

// WritePredictionsParquet writes a slice of Prediction structs to a Parquet file.
func WritePredictionsParquet(data []Prediction, outputPath string) error {
	return writeRows(data, outputPath)
}

// WriteEvaluationsParquet writes a slice of Evaluation structs to a Parquet file.
func WriteEvaluationsParquet(data []Evaluation, outputPath string) error {
	return writeRows(data, outputPath)
}

// WriteScoredTestsParquet writes a slice of ScoredTest structs to a Parquet file.
func WriteScoredTestsParquet(data []ScoredTest, outputPath string) error {
	return writeRows(data, outputPath)
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			Kind:          record.Kind,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalTests:    record.TotalTests,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertPredictionRecords converts schema.PredictionHistoryRecord to Prediction for Parquet export.
func ConvertPredictionRecords(records []schema.PredictionHistoryRecord) []Prediction {
	result := make([]Prediction, len(records))
	for i, record := range records {
		result[i] = Prediction{
			RunID:              record.RunID,
			TestID:             record.TestID,
			FailureProbability: record.FailureProbability,
			Selected:           record.Selected,
			Source:             record.Source,
		}
	}
	return result
}

// ConvertEvaluationRecords converts schema.EvaluationHistoryRecord to Evaluation for Parquet export.
func ConvertEvaluationRecords(records []schema.EvaluationHistoryRecord) []Evaluation {
	result := make([]Evaluation, len(records))
	for i, record := range records {
		result[i] = Evaluation{
			RunID:               record.RunID,
			EvaluationTime:      record.EvaluationTime,
			Threshold:           record.Threshold,
			TotalTests:          record.TotalTests,
			TotalFailed:         record.TotalFailed,
			TotalSelected:       record.TotalSelected,
			DetectedFailures:    record.DetectedFailures,
			TestReductionRate:   record.TestReductionRate,
			DefectDetectionRate: record.DefectDetectionRate,
			FalsePositiveRate:   record.FalsePositiveRate,
			DroppedPredictions:  record.DroppedPredictions,
			DroppedGroundTruth:  record.DroppedGroundTruth,
		}
	}
	return result
}

// ConvertRankedPredictions converts ranked predictions to ScoredTest rows.
func ConvertRankedPredictions(ranked []schema.RankedPrediction) []ScoredTest {
	result := make([]ScoredTest, len(ranked))
	for i, r := range ranked {
		result[i] = ScoredTest{
			Rank:               int32(r.Rank),
			TestID:             r.TestID,
			FailureProbability: r.FailureProbability,
			Label:              r.Label,
			Selected:           r.Selected,
			Source:             string(r.Source),
		}
	}
	return result
}
