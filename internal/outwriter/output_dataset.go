package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
)

// WriteDatasetResults outputs a pipeline frame. Text and CSV modes both
// produce CSV since datasets feed the next pipeline stage.
func WriteDatasetResults(f *schema.Frame, cfg *contract.Config, duration time.Duration) error {
	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, frameRows(f))
		}, "Wrote JSON")
	case schema.YAMLOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, frameRows(f))
		}, "Wrote YAML")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for datasets")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteFrameCSV(w, f)
		}, "Wrote CSV")
	}
	if err != nil {
		return fmt.Errorf("error writing dataset: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "%d rows x %d columns in %v\n", f.Len(), f.Width(), duration)
	return nil
}

// WriteFrameCSV writes a frame as CSV with a header row. Missing values are empty cells.
func WriteFrameCSV(w io.Writer, f *schema.Frame) error {
	names := f.Columns()
	cols := make([]*schema.Column, len(names))
	for j, name := range names {
		cols[j], _ = f.Column(name)
	}
	return writeCSVWithHeader(w, names, func(cw *csv.Writer) error {
		row := make([]string, len(names))
		for i := 0; i < f.Len(); i++ {
			for j, c := range cols {
				s, _ := c.String(i)
				row[j] = s
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// frameRows converts a frame to one map per row for structured encoders.
func frameRows(f *schema.Frame) []map[string]any {
	rows := make([]map[string]any, f.Len())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}
