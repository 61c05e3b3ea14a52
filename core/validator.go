package core

import (
	"slices"
	"sort"

	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// DefaultRequiredColumns are the columns a training dataset cannot do without.
func DefaultRequiredColumns(target string) []string {
	return []string{schema.ColCommitID, schema.ColTestID, target, schema.ColChurn}
}

// DefaultExpectedKinds returns the kinds checked by a validator unless overridden.
func DefaultExpectedKinds(target string) map[string]schema.ColumnKind {
	return map[string]schema.ColumnKind{
		schema.ColCommitID: schema.StringKind,
		schema.ColTestID:   schema.StringKind,
		target:             schema.IntKind,
		schema.ColChurn:    schema.FloatKind,
	}
}

// Validator checks the quality of a dataset before it enters the feature pipeline.
type Validator struct {
	Required      []string
	ExpectedKinds map[string]schema.ColumnKind
	Logger        *logger.Logger
}

// NewValidator creates a validator with the default expected kinds for target.
func NewValidator(required []string, target string) *Validator {
	return &Validator{
		Required:      slices.Clone(required),
		ExpectedKinds: DefaultExpectedKinds(target),
	}
}

func (v *Validator) log() *logger.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return logger.Named("validator")
}

// Check inspects the frame and returns every finding without logging.
func (v *Validator) Check(f *schema.Frame) schema.ValidationReport {
	report := schema.ValidationReport{
		Rows:        f.Len(),
		NullCounts:  make(map[string]int),
		ColumnKinds: make(map[string]schema.ColumnKind, f.Width()),
	}
	for _, name := range f.Columns() {
		report.ColumnKinds[name] = f.Kind(name)
	}

	for _, name := range v.Required {
		col, ok := f.Column(name)
		if !ok {
			report.MissingColumns = append(report.MissingColumns, name)
			continue
		}
		if n := col.NullCount(); n > 0 {
			report.NullCounts[name] = n
		}
	}

	names := make([]string, 0, len(v.ExpectedKinds))
	for name := range v.ExpectedKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expected := v.ExpectedKinds[name]
		actual := f.Kind(name)
		if actual == "" || actual == expected {
			continue
		}
		report.KindMismatches = append(report.KindMismatches, schema.KindMismatch{
			Column:   name,
			Expected: expected,
			Actual:   actual,
		})
	}
	return report
}

// Validate runs the full validation. It returns false when a required column
// is absent or holds missing values. Kind mismatches are only warnings.
// The frame is never modified.
func (v *Validator) Validate(f *schema.Frame) bool {
	log := v.log()
	log.Info().Int("rows", f.Len()).Msg("Validating dataset")

	report := v.Check(f)
	if len(report.MissingColumns) > 0 {
		log.Error().Strs("columns", report.MissingColumns).Msg("Required columns are missing")
		return false
	}
	if len(report.NullCounts) > 0 {
		for _, name := range v.Required {
			if n, ok := report.NullCounts[name]; ok {
				log.Warn().Str("column", name).Int("missing", n).Msg("Missing values in required column")
			}
		}
		return false
	}
	for _, m := range report.KindMismatches {
		log.Warn().
			Str("column", m.Column).
			Str("expected", string(m.Expected)).
			Str("actual", string(m.Actual)).
			Msg("Column kind mismatch")
	}

	log.Info().Msg("Dataset validation passed")
	return true
}
