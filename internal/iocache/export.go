package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/parquet"
)

// ExportPaths returns the three Parquet files written for an export prefix.
func ExportPaths(outputFile string) (runs, predictions, evaluations string) {
	return outputFile + ".runs.parquet", outputFile + ".predictions.parquet", outputFile + ".evaluations.parquet"
}

// ExecuteHistoryExport exports the run history of store to Parquet files.
func ExecuteHistoryExport(store contract.HistoryStore, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("history tracking is not enabled. Set --history-backend")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no history data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	predictions, err := store.GetAllPredictions()
	if err != nil {
		return fmt.Errorf("failed to retrieve predictions: %w", err)
	}
	evaluations, err := store.GetAllEvaluations()
	if err != nil {
		return fmt.Errorf("failed to retrieve evaluations: %w", err)
	}

	runsFile, predictionsFile, evaluationsFile := ExportPaths(outputFile)

	if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	if err := parquet.WritePredictionsParquet(parquet.ConvertPredictionRecords(predictions), predictionsFile); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d predictions to: %s\n", len(predictions), predictionsFile)

	if err := parquet.WriteEvaluationsParquet(parquet.ConvertEvaluationRecords(evaluations), evaluationsFile); err != nil {
		return fmt.Errorf("failed to write evaluations: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d evaluations to: %s\n", len(evaluations), evaluationsFile)

	return nil
}
