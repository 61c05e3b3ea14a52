package core

import (
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
)

// Processor cleans mined commits and merges them with test outcomes.
type Processor struct {
	TargetColumn string
	Logger       *logger.Logger
}

// NewProcessor creates a processor for the given target column.
func NewProcessor(target string) *Processor {
	if target == "" {
		target = schema.ColDefaultTarget
	}
	return &Processor{TargetColumn: target}
}

func (p *Processor) log() *logger.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logger.Named("processor")
}

// CleanAndTransformCommits turns commits into a frame with the per-commit
// features. author_experience is the number of commits by the same author
// in the batch, day_of_week counts from Monday=0 and hour_of_day is UTC.
func (p *Processor) CleanAndTransformCommits(commits []schema.CommitRecord) *schema.Frame {
	p.log().Info().Int("commits", len(commits)).Msg("Transforming commits")
	experience := AuthorExperience(commits)

	n := len(commits)
	ids := make([]any, n)
	authors := make([]any, n)
	exp := make([]any, n)
	churn := make([]any, n)
	files := make([]any, n)
	days := make([]any, n)
	hours := make([]any, n)
	messages := make([]any, n)
	for i, c := range commits {
		ts := c.Timestamp.UTC()
		ids[i] = c.Hash
		authors[i] = c.Author
		exp[i] = int64(experience[c.Author])
		churn[i] = float64(c.Churn())
		files[i] = int64(c.FilesChanged)
		days[i] = int64(mondayFirst(ts.Weekday()))
		hours[i] = int64(ts.Hour())
		messages[i] = c.Message
	}

	f := schema.NewFrame()
	_ = f.AddColumn(schema.ColCommitID, schema.StringKind, ids)
	_ = f.AddColumn(schema.ColAuthorName, schema.StringKind, authors)
	_ = f.AddColumn(schema.ColAuthorExperience, schema.IntKind, exp)
	_ = f.AddColumn(schema.ColChurn, schema.FloatKind, churn)
	_ = f.AddColumn(schema.ColFilesChanged, schema.IntKind, files)
	_ = f.AddColumn(schema.ColDayOfWeek, schema.IntKind, days)
	_ = f.AddColumn(schema.ColHourOfDay, schema.IntKind, hours)
	_ = f.AddColumn(schema.ColMessage, schema.StringKind, messages)
	return f
}

// MergeData left-joins the commit frame onto the outcome frame by commit_id
// and drops the rows whose commit is unknown.
func (p *Processor) MergeData(commits, outcomes *schema.Frame) (*schema.Frame, error) {
	for _, side := range []*schema.Frame{commits, outcomes} {
		if !side.Has(schema.ColCommitID) {
			return nil, schema.NewSchemaError("processor", "required columns not found", schema.ColCommitID)
		}
	}
	if !commits.Has(schema.ColAuthorName) {
		return nil, schema.NewSchemaError("processor", "required columns not found", schema.ColAuthorName)
	}

	commitIDs, _ := commits.Column(schema.ColCommitID)
	byID := make(map[string][]int, commits.Len())
	for i := range commitIDs.Values {
		if id, ok := commitIDs.String(i); ok {
			byID[id] = append(byID[id], i)
		}
	}

	outcomeIDs, _ := outcomes.Column(schema.ColCommitID)
	var left, right []int
	for i := range outcomeIDs.Values {
		id, _ := outcomeIDs.String(i)
		matches, ok := byID[id]
		if !ok || outcomeIDs.IsNull(i) {
			left = append(left, i)
			right = append(right, -1)
			continue
		}
		for _, j := range matches {
			left = append(left, i)
			right = append(right, j)
		}
	}

	merged := outcomes.Take(left)
	for _, name := range commits.Columns() {
		if name == schema.ColCommitID {
			continue
		}
		col, _ := commits.Column(name)
		vals := make([]any, len(right))
		for k, j := range right {
			if j >= 0 {
				vals[k] = col.Values[j]
			}
		}
		if err := merged.AddColumn(name, col.Kind, vals); err != nil {
			return nil, err
		}
	}

	authors, _ := merged.Column(schema.ColAuthorName)
	out := merged.Filter(func(i int) bool { return !authors.IsNull(i) })
	if dropped := merged.Len() - out.Len(); dropped > 0 {
		p.log().Debug().Int("dropped", dropped).Msg("Dropped outcomes without a known commit")
	}
	p.log().Info().Int("rows", out.Len()).Msg("Merged commits with outcomes")
	return out, nil
}

// RunProcessingPipeline transforms the commits and merges them with the outcomes.
func (p *Processor) RunProcessingPipeline(commits []schema.CommitRecord, outcomes []schema.TestOutcomeRecord) (*schema.Frame, error) {
	return p.MergeData(p.CleanAndTransformCommits(commits), OutcomesFrame(outcomes, p.TargetColumn))
}
