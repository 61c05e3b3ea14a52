package core

import (
	"sort"

	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// FeatureEngineer builds derived features on top of the extracted ones.
type FeatureEngineer struct {
	Logger *logger.Logger
}

// NewFeatureEngineer creates a feature engineer.
func NewFeatureEngineer() *FeatureEngineer {
	return &FeatureEngineer{}
}

func (e *FeatureEngineer) log() *logger.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.Named("engineer")
}

// numericSource returns the named column when present, or a schema error
// when it exists with a non-numeric kind.
func numericSource(f *schema.Frame, name string) (*schema.Column, bool, error) {
	col, ok := f.Column(name)
	if !ok {
		return nil, false, nil
	}
	if !col.Kind.IsNumeric() {
		return nil, false, schema.NewSchemaError("engineer", "column must be numeric, got "+string(col.Kind), name)
	}
	return col, true, nil
}

// CreateInteractionFeatures adds churn_failure_interaction and exp_churn_ratio
// when their source columns exist. A missing source cell gives a missing result.
func (e *FeatureEngineer) CreateInteractionFeatures(f *schema.Frame) (*schema.Frame, error) {
	churn, hasChurn, err := numericSource(f, schema.ColChurn)
	if err != nil {
		return nil, err
	}
	rate, hasRate, err := numericSource(f, schema.ColHistoricalFailureRate)
	if err != nil {
		return nil, err
	}
	exp, hasExp, err := numericSource(f, schema.ColAuthorExperience)
	if err != nil {
		return nil, err
	}

	out := f.Clone()
	if hasChurn && hasRate {
		vals := make([]any, f.Len())
		for i := range vals {
			c, ok1 := churn.Float(i)
			r, ok2 := rate.Float(i)
			if ok1 && ok2 {
				vals[i] = c * r
			}
		}
		if err := out.AddColumn(schema.ColChurnFailureInteraction, schema.FloatKind, vals); err != nil {
			return nil, err
		}
	}

	if hasChurn && hasExp {
		vals := make([]any, f.Len())
		for i := range vals {
			c, ok1 := churn.Float(i)
			x, ok2 := exp.Float(i)
			switch {
			case !ok1 || !ok2:
			case c > 0:
				vals[i] = x / c
			default:
				vals[i] = x
			}
		}
		if err := out.AddColumn(schema.ColExpChurnRatio, schema.FloatKind, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeCategoricalFeatures one-hot encodes commit_type into type_<category>
// columns in sorted category order and drops the source column.
func (e *FeatureEngineer) EncodeCategoricalFeatures(f *schema.Frame) (*schema.Frame, error) {
	col, ok := f.Column(schema.ColCommitType)
	if !ok {
		return f.Clone(), nil
	}
	if col.Kind != schema.StringKind {
		return nil, schema.NewSchemaError("engineer", "column must hold strings, got "+string(col.Kind), schema.ColCommitType)
	}

	seen := make(map[string]struct{})
	for i := range col.Values {
		if s, ok := col.String(i); ok {
			seen[s] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	out := f.Drop(schema.ColCommitType)
	for _, cat := range categories {
		vals := make([]any, f.Len())
		for i := range vals {
			s, ok := col.String(i)
			if ok && s == cat {
				vals[i] = int64(1)
			} else {
				vals[i] = int64(0)
			}
		}
		if err := out.AddColumn(schema.CommitTypePrefix+cat, schema.IntKind, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RunEngineeringPipeline creates the interaction features, then encodes the
// categorical ones.
func (e *FeatureEngineer) RunEngineeringPipeline(f *schema.Frame) (*schema.Frame, error) {
	out, err := e.CreateInteractionFeatures(f)
	if err != nil {
		return nil, err
	}
	out, err = e.EncodeCategoricalFeatures(out)
	if err != nil {
		return nil, err
	}
	e.log().Info().Int("columns", out.Width()).Msg("Feature engineering complete")
	return out, nil
}
