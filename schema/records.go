package schema

import "time"

// CommitRecord is one mined commit. It is not modified after collection.
type CommitRecord struct {
	Hash         string    `json:"hash"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
	FilesChanged int       `json:"files_changed"`
}

// Churn is the number of lines touched by the commit.
func (c CommitRecord) Churn() int {
	return c.Insertions + c.Deletions
}

// TestOutcomeRecord is one (test, commit) observation.
type TestOutcomeRecord struct {
	TestID   string `json:"test_id"`
	CommitID string `json:"commit_id"`
	Failed   bool   `json:"failed"`
}

// PredictionRecord is the failure probability of one test.
type PredictionRecord struct {
	TestID             string      `json:"test_id" yaml:"test_id"`
	FailureProbability float64     `json:"failure_probability" yaml:"failure_probability"`
	Source             ScoreSource `json:"source" yaml:"source"`
	Selected           bool        `json:"selected" yaml:"selected"`
}

// PredictionSet is the ordered output of one prediction pass. Selected
// flags and Threshold are filled in by the decision engine.
type PredictionSet struct {
	Records      []PredictionRecord `json:"records" yaml:"records"`
	Degraded     bool               `json:"degraded" yaml:"degraded"`
	ModelVersion string             `json:"model_version" yaml:"model_version"`
	Threshold    float64            `json:"threshold" yaml:"threshold"`
}

// Len returns the number of records.
func (p PredictionSet) Len() int { return len(p.Records) }

// SelectedTests lists the ids of the selected records in input order.
func (p PredictionSet) SelectedTests() []string {
	ids := []string{}
	for _, r := range p.Records {
		if r.Selected {
			ids = append(ids, r.TestID)
		}
	}
	return ids
}

// SelectionDecision is the run/skip decision for one test.
type SelectionDecision struct {
	TestID             string  `json:"test_id" yaml:"test_id"`
	FailureProbability float64 `json:"failure_probability" yaml:"failure_probability"`
	Selected           bool    `json:"selected" yaml:"selected"`
}

// GroundTruthRecord is the observed outcome of a test in the evaluated run.
type GroundTruthRecord struct {
	TestID string `json:"test_id"`
	Failed bool   `json:"failed"`
}

// PTSMetrics summarizes how a selection tracked actual outcomes.
type PTSMetrics struct {
	TotalTests          int     `json:"total_tests" yaml:"total_tests"`
	TotalFailed         int     `json:"total_failed" yaml:"total_failed"`
	TotalSelected       int     `json:"total_selected" yaml:"total_selected"`
	DetectedFailures    int     `json:"detected_failures" yaml:"detected_failures"`
	TestReductionRate   float64 `json:"test_reduction_rate" yaml:"test_reduction_rate"`
	DefectDetectionRate float64 `json:"defect_detection_rate" yaml:"defect_detection_rate"`
	FalsePositiveRate   float64 `json:"false_positive_rate" yaml:"false_positive_rate"`
}

// JoinStats counts rows removed by the evaluator's inner join.
type JoinStats struct {
	DroppedPredictions int `json:"dropped_predictions" yaml:"dropped_predictions"`
	DroppedGroundTruth int `json:"dropped_ground_truth" yaml:"dropped_ground_truth"`
}

// ClassificationMetrics are the classic model quality measures.
type ClassificationMetrics struct {
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	ROCAUC    float64 `json:"roc_auc" yaml:"roc_auc"`
}

// ValidationReport is the full outcome of a dataset validation.
type ValidationReport struct {
	Rows           int                   `json:"rows" yaml:"rows"`
	MissingColumns []string              `json:"missing_columns" yaml:"missing_columns"`
	NullCounts     map[string]int        `json:"null_counts" yaml:"null_counts"`
	KindMismatches []KindMismatch        `json:"kind_mismatches" yaml:"kind_mismatches"`
	ColumnKinds    map[string]ColumnKind `json:"column_kinds" yaml:"column_kinds"`
}

// KindMismatch records a column whose kind differs from the expected one.
type KindMismatch struct {
	Column   string     `json:"column" yaml:"column"`
	Expected ColumnKind `json:"expected" yaml:"expected"`
	Actual   ColumnKind `json:"actual" yaml:"actual"`
}

// OK reports whether the dataset passes validation. Kind mismatches are warnings only.
func (r ValidationReport) OK() bool {
	if len(r.MissingColumns) > 0 {
		return false
	}
	for _, n := range r.NullCounts {
		if n > 0 {
			return false
		}
	}
	return true
}
