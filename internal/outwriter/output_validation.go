package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/fatih/color"
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"github.com/olekukonko/tablewriter"
)

// validationSummary is the structured form of a validation report.
type validationSummary struct {
	OK bool `json:"ok" yaml:"ok"`
	schema.ValidationReport `yaml:",inline"`
}

// WriteValidationResults prints a validation report using the configured output format.
func WriteValidationResults(report schema.ValidationReport, cfg *contract.Config) error {
	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, validationSummary{OK: report.OK(), ValidationReport: report})
		}, "Wrote JSON")
	case schema.YAMLOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, validationSummary{OK: report.OK(), ValidationReport: report})
		}, "Wrote YAML")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeValidationCSV(w, report)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for validation")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeValidationTable(w, report, cfg.UseColors)
		}, "Wrote report")
	}
	if err != nil {
		return fmt.Errorf("error writing validation: %w", err)
	}
	return nil
}

// validationRows lists one row per inspected column, sorted by name.
func validationRows(report schema.ValidationReport) [][]string {
	names := make([]string, 0, len(report.ColumnKinds)+len(report.MissingColumns))
	for name := range report.ColumnKinds {
		names = append(names, name)
	}
	names = append(names, report.MissingColumns...)
	slices.Sort(names)
	names = slices.Compact(names)

	mismatches := make(map[string]schema.KindMismatch, len(report.KindMismatches))
	for _, m := range report.KindMismatches {
		mismatches[m.Column] = m
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		status := "ok"
		kind := string(report.ColumnKinds[name])
		switch {
		case slices.Contains(report.MissingColumns, name):
			status = "missing"
			kind = ""
		case report.NullCounts[name] > 0:
			status = "nulls"
		case mismatches[name].Column != "":
			status = "kind_mismatch"
		}
		expected := ""
		if m, ok := mismatches[name]; ok {
			expected = string(m.Expected)
		}
		rows = append(rows, []string{name, kind, expected, strconv.Itoa(report.NullCounts[name]), status})
	}
	return rows
}

func writeValidationCSV(w io.Writer, report schema.ValidationReport) error {
	header := []string{"column", "kind", "expected_kind", "nulls", "status"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		return cw.WriteAll(validationRows(report))
	})
}

func writeValidationTable(w io.Writer, report schema.ValidationReport, useColors bool) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Column", "Kind", "Expected", "Nulls", "Status"})
	if err := table.Bulk(validationRows(report)); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	verdict := fmt.Sprintf("PASS: %d rows validated", report.Rows)
	if !report.OK() {
		verdict = fmt.Sprintf("FAIL: %d missing columns, %d columns with nulls",
			len(report.MissingColumns), countPositive(report.NullCounts))
	}
	if useColors {
		if report.OK() {
			verdict = color.New(color.FgGreen, color.Bold).Sprint(verdict)
		} else {
			verdict = color.New(color.FgRed, color.Bold).Sprint(verdict)
		}
	}
	if _, err := fmt.Fprintln(w, verdict); err != nil {
		return err
	}
	if len(report.KindMismatches) > 0 {
		_, err := fmt.Fprintf(w, "%d kind mismatches reported as warnings\n", len(report.KindMismatches))
		return err
	}
	return nil
}

func countPositive(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		if c > 0 {
			n++
		}
	}
	return n
}
