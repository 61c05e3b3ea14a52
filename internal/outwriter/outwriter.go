// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteDataset writes a pipeline frame using the configured output format.
func (ow *OutWriter) WriteDataset(f *schema.Frame, cfg *contract.Config, duration time.Duration) error {
	return WriteDatasetResults(f, cfg, duration)
}

// WriteValidation prints a dataset validation report using the configured output format.
func (ow *OutWriter) WriteValidation(report schema.ValidationReport, cfg *contract.Config) error {
	return WriteValidationResults(report, cfg)
}

// WritePredictions prints scored tests using the configured output format.
func (ow *OutWriter) WritePredictions(set schema.PredictionSet, cfg *contract.Config, duration time.Duration) error {
	return WritePredictionResults(set, cfg, duration)
}

// WriteEvaluation prints selection metrics using the configured output format.
func (ow *OutWriter) WriteEvaluation(out schema.EvaluationOutput, cfg *contract.Config, duration time.Duration) error {
	return WriteEvaluationResults(out, cfg, duration)
}

// WriteTraining prints a training summary using the configured output format.
func (ow *OutWriter) WriteTraining(out schema.TrainingOutput, cfg *contract.Config, duration time.Duration) error {
	return WriteTrainingResults(out, cfg, duration)
}

// GetMaxTableIDWidth calculates the maximum width for test ids in table output
// based on terminal width and table configuration.
func GetMaxTableIDWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Rank + Probability + Label + Decision + Source with borders/padding
	baseWidth := 60

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 80 {
		return 80
	}
	return available
}
