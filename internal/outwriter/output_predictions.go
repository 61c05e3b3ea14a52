package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/parquet"
	"github.com/huangsam/pts/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// predictionReport is the structured form of a prediction pass.
type predictionReport struct {
	ModelVersion  string                    `json:"model_version" yaml:"model_version"`
	Degraded      bool                      `json:"degraded" yaml:"degraded"`
	Threshold     float64                   `json:"threshold" yaml:"threshold"`
	SelectedTests []string                  `json:"selected_tests" yaml:"selected_tests"`
	Predictions   []schema.RankedPrediction `json:"predictions" yaml:"predictions"`
}

// WritePredictionResults outputs scored tests, dispatching based on the output format configured.
// Text mode prints the selected test ids one per line unless an explanation is requested.
func WritePredictionResults(set schema.PredictionSet, cfg *contract.Config, duration time.Duration) error {
	ranked := schema.RankPredictions(set)
	fmtFloat, fmtPercent := createFormatters(cfg.Precision)

	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, newPredictionReport(set, ranked))
		}, "Wrote JSON")
	case schema.YAMLOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, newPredictionReport(set, ranked))
		}, "Wrote YAML")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePredictionCSV(w, set)
		}, "Wrote CSV")
	case schema.ParquetOut:
		err = parquet.WriteScoredTestsParquet(parquet.ConvertRankedPredictions(ranked), cfg.OutputFile)
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if cfg.Explain {
				return writePredictionTable(w, set, ranked, cfg, fmtFloat, fmtPercent, duration)
			}
			return writeSelectedIDs(w, ranked)
		}, "Wrote selection")
	}
	if err != nil {
		return fmt.Errorf("error writing predictions: %w", err)
	}
	return nil
}

func newPredictionReport(set schema.PredictionSet, ranked []schema.RankedPrediction) predictionReport {
	return predictionReport{
		ModelVersion:  set.ModelVersion,
		Degraded:      set.Degraded,
		Threshold:     set.Threshold,
		SelectedTests: set.SelectedTests(),
		Predictions:   ranked,
	}
}

// writeSelectedIDs prints the selected test ids, most likely to fail first.
func writeSelectedIDs(w io.Writer, ranked []schema.RankedPrediction) error {
	for _, r := range ranked {
		if !r.Selected {
			continue
		}
		if _, err := fmt.Fprintln(w, r.TestID); err != nil {
			return err
		}
	}
	return nil
}

// writePredictionCSV writes one row per test in input order. Probabilities
// keep full precision so the file can be evaluated later without rounding drift.
func writePredictionCSV(w io.Writer, set schema.PredictionSet) error {
	header := []string{schema.ColTestID, schema.ColFailureProbability, "selected", "source"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range set.Records {
			rec := []string{
				r.TestID,
				strconv.FormatFloat(r.FailureProbability, 'f', -1, 64),
				strconv.FormatBool(r.Selected),
				string(r.Source),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writePredictionTable generates and writes the human-readable table.
func writePredictionTable(w io.Writer, set schema.PredictionSet, ranked []schema.RankedPrediction, cfg *contract.Config, fmtFloat, fmtPercent func(float64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Test", "Probability", "Label", "Decision", "Source"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	maxWidth := GetMaxTableIDWidth(cfg)
	var data [][]string
	for _, r := range ranked {
		label := schema.GetPlainLabel(r.FailureProbability)
		if cfg.UseColors {
			label = contract.GetColorLabel(r.FailureProbability)
		}
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			contract.TruncateID(r.TestID, maxWidth),
			fmtFloat(r.FailureProbability),
			label,
			contract.GetSelectionLabel(r.Selected, cfg.UseColors),
			string(r.Source),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	selected := len(set.SelectedTests())
	reduction := 0.0
	if set.Len() > 0 {
		reduction = 1 - float64(selected)/float64(set.Len())
	}
	if _, err := fmt.Fprintf(w, "Selected %d of %d tests at threshold %s (reduction %s)\n",
		selected, set.Len(), fmtFloat(set.Threshold), fmtPercent(reduction)); err != nil {
		return err
	}
	if set.Degraded {
		if _, err := fmt.Fprintln(w, "⚠️  No trained model: scores are random"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Scored in %v. Model: %s\n", duration, set.ModelVersion)
	return err
}
