package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and history.
	DatabaseBackend string

	// ColumnKind represents the value type held by a frame column.
	ColumnKind string

	// ScoreSource tags where a failure probability came from.
	ScoreSource string

	// OutcomeSource represents where test outcomes are collected from.
	OutcomeSource string

	// CIProvider represents a supported CI or code hosting provider.
	CIProvider string

	// RunKind represents the type of a recorded history run.
	RunKind string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	YAMLOut    OutputMode = "yaml"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All column kinds supported by Frame.
const (
	StringKind ColumnKind = "string"
	IntKind    ColumnKind = "int"
	FloatKind  ColumnKind = "float"
	BoolKind   ColumnKind = "bool"
)

// Score sources.
const (
	ModelSource    ScoreSource = "model"
	FallbackSource ScoreSource = "random_fallback"
)

// All outcome sources supported.
const (
	SimulatedOutcomes OutcomeSource = "simulated" // default
	JUnitOutcomes     OutcomeSource = "junit"
	JenkinsOutcomes   OutcomeSource = "jenkins"
)

// All CI providers supported.
const (
	NoProvider      CIProvider = "none" // default
	GitHubProvider  CIProvider = "github"
	GitLabProvider  CIProvider = "gitlab"
	JenkinsProvider CIProvider = "jenkins"
)

// Kinds of history runs.
const (
	PredictRun  RunKind = "predict"
	EvaluateRun RunKind = "evaluate"
)

// Well-known column names of the feature pipeline.
const (
	ColTestID                  = "test_id"
	ColCommitID                = "commit_id"
	ColDefaultTarget           = "test_failed"
	ColAuthorName              = "author_name"
	ColAuthorExperience        = "author_experience"
	ColChurn                   = "churn"
	ColFilesChanged            = "files_changed"
	ColDayOfWeek               = "day_of_week"
	ColHourOfDay               = "hour_of_day"
	ColMessage                 = "message"
	ColCommitType              = "commit_type"
	ColHistoricalFailureRate   = "historical_failure_rate"
	ColChurnFailureInteraction = "churn_failure_interaction"
	ColExpChurnRatio           = "exp_churn_ratio"
	ColFailureProbability      = "failure_probability"
	CommitTypePrefix           = "type_"
)

// IdentifierColumns are structural columns that never enter statistics or model input.
var IdentifierColumns = []string{ColCommitID, ColTestID}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	YAMLOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidOutcomeSources lists all valid outcome sources.
var ValidOutcomeSources = map[OutcomeSource]struct{}{
	SimulatedOutcomes: {},
	JUnitOutcomes:     {},
	JenkinsOutcomes:   {},
}

// ValidCIProviders lists all valid CI providers.
var ValidCIProviders = map[CIProvider]struct{}{
	NoProvider:      {},
	GitHubProvider:  {},
	GitLabProvider:  {},
	JenkinsProvider: {},
}

// IsNumeric reports whether the kind takes part in statistical computations.
func (k ColumnKind) IsNumeric() bool {
	return k == IntKind || k == FloatKind
}
