package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/pts/internal/outwriter"
	"github.com/huangsam/pts/schema"
)

// Raw commit CSV columns that only exist before processing.
const (
	colTimestamp  = "timestamp"
	colInsertions = "insertions"
	colDeletions  = "deletions"
	colFailed     = "failed"
)

// ReadCSVFile loads a frame from a CSV file with a header row.
func ReadCSVFile(path string) (*schema.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// ReadCSV loads a frame from CSV. Column kinds are inferred from the cells:
// int, then float, then bool, then string. Empty cells are missing values.
func ReadCSV(r io.Reader) (*schema.Frame, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("csv input has no header")
	}
	header, rows := records[0], records[1:]

	f := schema.NewFrame()
	for j, name := range header {
		cells := make([]string, len(rows))
		for i, row := range rows {
			cells[i] = strings.TrimSpace(row[j])
		}
		kind := inferKind(cells)
		vals := make([]any, len(cells))
		for i, cell := range cells {
			vals[i] = parseCell(kind, cell)
		}
		if err := f.AddColumn(strings.TrimSpace(name), kind, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func inferKind(cells []string) schema.ColumnKind {
	isInt, isFloat, isBool, seen := true, true, true, false
	for _, c := range cells {
		if c == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(c, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			isFloat = false
		}
		if l := strings.ToLower(c); l != "true" && l != "false" {
			isBool = false
		}
	}
	switch {
	case !seen:
		return schema.StringKind
	case isInt:
		return schema.IntKind
	case isFloat:
		return schema.FloatKind
	case isBool:
		return schema.BoolKind
	default:
		return schema.StringKind
	}
}

func parseCell(kind schema.ColumnKind, cell string) any {
	if cell == "" {
		return nil
	}
	switch kind {
	case schema.IntKind:
		v, _ := strconv.ParseInt(cell, 10, 64)
		return v
	case schema.FloatKind:
		v, _ := strconv.ParseFloat(cell, 64)
		return v
	case schema.BoolKind:
		return strings.ToLower(cell) == "true"
	default:
		return cell
	}
}

// WriteCSVFile writes a frame to a CSV file.
func WriteCSVFile(path string, f *schema.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, f); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes a frame as CSV with a header row. Missing values are empty cells.
func WriteCSV(w io.Writer, f *schema.Frame) error {
	return outwriter.WriteFrameCSV(w, f)
}

// CommitsFrame converts mined commits to their raw CSV layout.
func CommitsFrame(commits []schema.CommitRecord) *schema.Frame {
	n := len(commits)
	ids, authors, stamps, messages := make([]any, n), make([]any, n), make([]any, n), make([]any, n)
	ins, dels, files := make([]any, n), make([]any, n), make([]any, n)
	for i, c := range commits {
		ids[i] = c.Hash
		authors[i] = c.Author
		stamps[i] = c.Timestamp.UTC().Format(time.RFC3339)
		messages[i] = c.Message
		ins[i] = int64(c.Insertions)
		dels[i] = int64(c.Deletions)
		files[i] = int64(c.FilesChanged)
	}
	f := schema.NewFrame()
	_ = f.AddColumn(schema.ColCommitID, schema.StringKind, ids)
	_ = f.AddColumn(schema.ColAuthorName, schema.StringKind, authors)
	_ = f.AddColumn(colTimestamp, schema.StringKind, stamps)
	_ = f.AddColumn(schema.ColMessage, schema.StringKind, messages)
	_ = f.AddColumn(colInsertions, schema.IntKind, ins)
	_ = f.AddColumn(colDeletions, schema.IntKind, dels)
	_ = f.AddColumn(schema.ColFilesChanged, schema.IntKind, files)
	return f
}

// CommitsFromFrame reads commits back from their raw CSV layout.
func CommitsFromFrame(f *schema.Frame) ([]schema.CommitRecord, error) {
	ids, err := f.Strings(schema.ColCommitID)
	if err != nil {
		return nil, err
	}
	authors, err := f.Strings(schema.ColAuthorName)
	if err != nil {
		return nil, err
	}
	stamps, err := f.Strings(colTimestamp)
	if err != nil {
		return nil, err
	}
	ins, err := f.Float64s(colInsertions)
	if err != nil {
		return nil, err
	}
	dels, err := f.Float64s(colDeletions)
	if err != nil {
		return nil, err
	}
	files, err := f.Float64s(schema.ColFilesChanged)
	if err != nil {
		return nil, err
	}
	msgCol, hasMsg := f.Column(schema.ColMessage)

	out := make([]schema.CommitRecord, f.Len())
	for i := range out {
		ts, err := time.Parse(time.RFC3339, stamps[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timestamp %q: %w", i, stamps[i], err)
		}
		var msg string
		if hasMsg {
			msg, _ = msgCol.String(i)
		}
		out[i] = schema.CommitRecord{
			Hash:         ids[i],
			Author:       authors[i],
			Timestamp:    ts,
			Message:      msg,
			Insertions:   int(ins[i]),
			Deletions:    int(dels[i]),
			FilesChanged: int(files[i]),
		}
	}
	return out, nil
}

// OutcomesFrame converts outcomes to a frame with test_id, commit_id and the target.
func OutcomesFrame(outcomes []schema.TestOutcomeRecord, target string) *schema.Frame {
	n := len(outcomes)
	tests, commits, failed := make([]any, n), make([]any, n), make([]any, n)
	for i, o := range outcomes {
		tests[i] = o.TestID
		commits[i] = o.CommitID
		failed[i] = boolToInt(o.Failed)
	}
	f := schema.NewFrame()
	_ = f.AddColumn(schema.ColTestID, schema.StringKind, tests)
	_ = f.AddColumn(schema.ColCommitID, schema.StringKind, commits)
	_ = f.AddColumn(target, schema.IntKind, failed)
	return f
}

// OutcomesFromFrame reads outcomes back from a frame written by OutcomesFrame.
func OutcomesFromFrame(f *schema.Frame, target string) ([]schema.TestOutcomeRecord, error) {
	tests, err := f.Strings(schema.ColTestID)
	if err != nil {
		return nil, err
	}
	commits, err := f.Strings(schema.ColCommitID)
	if err != nil {
		return nil, err
	}
	failed, err := f.Float64s(target)
	if err != nil {
		return nil, err
	}
	out := make([]schema.TestOutcomeRecord, f.Len())
	for i := range out {
		out[i] = schema.TestOutcomeRecord{TestID: tests[i], CommitID: commits[i], Failed: failed[i] != 0}
	}
	return out, nil
}

// PredictionsFrame converts scored tests to a frame.
func PredictionsFrame(set schema.PredictionSet) *schema.Frame {
	n := set.Len()
	tests, probs, sources := make([]any, n), make([]any, n), make([]any, n)
	for i, r := range set.Records {
		tests[i] = r.TestID
		probs[i] = r.FailureProbability
		sources[i] = string(r.Source)
	}
	f := schema.NewFrame()
	_ = f.AddColumn(schema.ColTestID, schema.StringKind, tests)
	_ = f.AddColumn(schema.ColFailureProbability, schema.FloatKind, probs)
	_ = f.AddColumn("source", schema.StringKind, sources)
	return f
}

// PredictionsFromFrame reads test_id and failure_probability columns.
func PredictionsFromFrame(f *schema.Frame) ([]schema.PredictionRecord, error) {
	tests, err := f.Strings(schema.ColTestID)
	if err != nil {
		return nil, err
	}
	probs, err := f.Float64s(schema.ColFailureProbability)
	if err != nil {
		return nil, err
	}
	srcCol, hasSrc := f.Column("source")
	out := make([]schema.PredictionRecord, f.Len())
	for i := range out {
		src := schema.ModelSource
		if hasSrc {
			if s, ok := srcCol.String(i); ok && s != "" {
				src = schema.ScoreSource(s)
			}
		}
		out[i] = schema.PredictionRecord{TestID: tests[i], FailureProbability: probs[i], Source: src}
	}
	return out, nil
}

// GroundTruthFromFrame reads test_id and the outcome column. The target
// column is used when present, otherwise a column named "failed".
func GroundTruthFromFrame(f *schema.Frame, target string) ([]schema.GroundTruthRecord, error) {
	tests, err := f.Strings(schema.ColTestID)
	if err != nil {
		return nil, err
	}
	col := target
	if !f.Has(col) {
		col = colFailed
	}
	if !f.Has(col) {
		return nil, schema.NewSchemaError("dataset", "outcome column not found", target, colFailed)
	}
	failed, err := f.Float64s(col)
	if err != nil {
		return nil, err
	}
	out := make([]schema.GroundTruthRecord, f.Len())
	for i := range out {
		out[i] = schema.GroundTruthRecord{TestID: tests[i], Failed: failed[i] != 0}
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
