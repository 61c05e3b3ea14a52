package core

import (
	"slices"
	"strings"
	"time"

	"github.com/huangsam/pts/schema"
)

// BaseChangeFeatures are built for every change even without a trained model.
var BaseChangeFeatures = []string{
	schema.ColChurn,
	schema.ColFilesChanged,
	schema.ColAuthorExperience,
	schema.ColHistoricalFailureRate,
	schema.ColChurnFailureInteraction,
	schema.ColExpChurnRatio,
	schema.ColDayOfWeek,
	schema.ColHourOfDay,
}

// ModelTests returns the tests known to a model artifact, sorted.
func ModelTests(lm *LogisticModel) []string {
	if lm == nil {
		return nil
	}
	tests := make([]string, 0, len(lm.TestFailureRates))
	for id := range lm.TestFailureRates {
		tests = append(tests, id)
	}
	slices.Sort(tests)
	return tests
}

// ChangeFeatures builds one feature row per test for an incoming change, using
// the history stored in the model artifact. Features the model was trained on
// but that cannot be derived from a change are zero.
func ChangeFeatures(lm *LogisticModel, change schema.ChangeContext, when time.Time, tests []string) (*schema.Frame, error) {
	names := slices.Clone(BaseChangeFeatures)
	if lm != nil {
		for _, name := range lm.Features {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}

	var rates map[string]float64
	var experience float64
	if lm != nil {
		rates = lm.TestFailureRates
		experience = float64(lm.AuthorExperience[change.Author])
	}
	churn := float64(change.Churn())
	ratio := experience
	if churn > 0 {
		ratio = experience / churn
	}
	commitType := CommitType(change.Message)
	utc := when.UTC()

	f := schema.NewFrame()
	if err := f.AddColumn(schema.ColTestID, schema.StringKind, schema.StringValues(tests...)); err != nil {
		return nil, err
	}
	for _, name := range names {
		vals := make([]any, len(tests))
		for i, id := range tests {
			rate := rates[id]
			var v float64
			switch {
			case name == schema.ColChurn:
				v = churn
			case name == schema.ColFilesChanged:
				v = float64(len(change.ChangedFiles))
			case name == schema.ColAuthorExperience:
				v = experience
			case name == schema.ColHistoricalFailureRate:
				v = rate
			case name == schema.ColChurnFailureInteraction:
				v = churn * rate
			case name == schema.ColExpChurnRatio:
				v = ratio
			case name == schema.ColDayOfWeek:
				v = float64(mondayFirst(utc.Weekday()))
			case name == schema.ColHourOfDay:
				v = float64(utc.Hour())
			case strings.HasPrefix(name, schema.CommitTypePrefix):
				if strings.TrimPrefix(name, schema.CommitTypePrefix) == commitType {
					v = 1
				}
			}
			vals[i] = v
		}
		if err := f.AddColumn(name, schema.FloatKind, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// mondayFirst converts a weekday to Monday=0 ... Sunday=6.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
