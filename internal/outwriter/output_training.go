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
	"github.com/olekukonko/tablewriter/tw"
)

// WriteTrainingResults prints a training summary using the configured output format.
func WriteTrainingResults(out schema.TrainingOutput, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

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
			return writeFeatureScoresCSV(w, out.Features, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for training")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeTrainingTable(w, out, fmtFloat, duration)
		}, "Wrote summary")
	}
	if err != nil {
		return fmt.Errorf("error writing training summary: %w", err)
	}
	return nil
}

func writeFeatureScoresCSV(w io.Writer, scores []schema.FeatureScore, fmtFloat func(float64) string) error {
	return writeCSVWithHeader(w, []string{"feature", "f_score", "selected"}, func(cw *csv.Writer) error {
		for _, s := range scores {
			if err := cw.Write([]string{s.Name, fmtFloat(s.FScore), strconv.FormatBool(s.Selected)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeTrainingTable(w io.Writer, out schema.TrainingOutput, fmtFloat func(float64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Feature", "F Score", "Selected"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})
	data := make([][]string, 0, len(out.Features))
	for _, s := range out.Features {
		mark := ""
		if s.Selected {
			mark = "yes"
		}
		data = append(data, []string{s.Name, fmtFloat(s.FScore), mark})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	m := out.Metrics
	if _, err := fmt.Fprintf(w, "Accuracy %s  Precision %s  Recall %s  F1 %s  ROC AUC %s\n",
		fmtFloat(m.Accuracy), fmtFloat(m.Precision), fmtFloat(m.Recall), fmtFloat(m.F1), fmtFloat(m.ROCAUC)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Trained %s on %d samples across %d tests in %v. Saved to %s\n",
		out.ModelVersion, out.Samples, out.Tests, duration, out.ModelFile)
	return err
}
