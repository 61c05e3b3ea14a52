package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"github.com/olekukonko/tablewriter"
)

// WriteEvaluationResults outputs selection metrics, dispatching based on the output format configured.
func WriteEvaluationResults(out schema.EvaluationOutput, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtPercent := createFormatters(cfg.Precision)

	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, out)
		}, "Wrote JSON")
	case schema.YAMLOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, out)
		}, "Wrote YAML")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeEvaluationCSV(w, out, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for evaluation, use history export")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeEvaluationTable(w, out, fmtFloat, fmtPercent, duration)
		}, "Wrote table")
	}
	if err != nil {
		return fmt.Errorf("error writing evaluation: %w", err)
	}
	return nil
}

// evaluationRows flattens the output into metric/value pairs.
func evaluationRows(out schema.EvaluationOutput, fmtFloat func(float64) string) [][]string {
	m := out.Metrics
	return [][]string{
		{"threshold", fmtFloat(out.Threshold)},
		{"total_tests", strconv.Itoa(m.TotalTests)},
		{"total_failed", strconv.Itoa(m.TotalFailed)},
		{"total_selected", strconv.Itoa(m.TotalSelected)},
		{"detected_failures", strconv.Itoa(m.DetectedFailures)},
		{"test_reduction_rate", fmtFloat(m.TestReductionRate)},
		{"defect_detection_rate", fmtFloat(m.DefectDetectionRate)},
		{"false_positive_rate", fmtFloat(m.FalsePositiveRate)},
		{"dropped_predictions", strconv.Itoa(out.Join.DroppedPredictions)},
		{"dropped_ground_truth", strconv.Itoa(out.Join.DroppedGroundTruth)},
	}
}

func writeEvaluationCSV(w io.Writer, out schema.EvaluationOutput, fmtFloat func(float64) string) error {
	return writeCSVWithHeader(w, []string{"metric", "value"}, func(cw *csv.Writer) error {
		return cw.WriteAll(evaluationRows(out, fmtFloat))
	})
}

func writeEvaluationTable(w io.Writer, out schema.EvaluationOutput, fmtFloat, fmtPercent func(float64) string, duration time.Duration) error {
	m := out.Metrics
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Value"})
	data := [][]string{
		{"Test Reduction Rate", fmtPercent(m.TestReductionRate)},
		{"Defect Detection Rate", fmtPercent(m.DefectDetectionRate)},
		{"False Positive Rate", fmtPercent(m.FalsePositiveRate)},
		{"Tests", strconv.Itoa(m.TotalTests)},
		{"Failed", strconv.Itoa(m.TotalFailed)},
		{"Selected", strconv.Itoa(m.TotalSelected)},
		{"Detected", strconv.Itoa(m.DetectedFailures)},
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if out.Join.DroppedPredictions > 0 || out.Join.DroppedGroundTruth > 0 {
		if _, err := fmt.Fprintf(w, "Unmatched test ids dropped: %d predictions, %d ground truth\n",
			out.Join.DroppedPredictions, out.Join.DroppedGroundTruth); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Evaluated at threshold %s in %v\n", fmtFloat(out.Threshold), duration)
	return err
}
