package contract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/huangsam/pts/schema"
)

// Default values for configuration.
const (
	DefaultThreshold      = 0.5
	DefaultServeThreshold = 0.6
	DefaultKBest          = 10
	DefaultPrecision      = 3
	MaxPrecision          = 4
	DefaultMaxCommits     = 1000
	MaxCommitsLimit       = 100000
	DefaultListenAddr     = ":8000"
	DefaultCIRate         = 5.0
	DefaultCostPerTest    = 0.01
	DefaultModelFile      = "pts_model.json"
)

// Default API endpoints of the hosted CI providers.
const (
	DefaultGitHubBaseURL = "https://api.github.com"
	DefaultGitLabBaseURL = "https://gitlab.com/api/v4"
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	RepoPath string

	InputFile       string
	GroundTruthFile string
	RequiredColumns []string
	CommitRef       string
	DiffFile        string
	Explain         bool

	Threshold    float64
	TargetColumn string
	KBest        int
	Seed         int64

	Workers    int
	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	ModelFile  string
	MaxCommits int

	OutcomeSource schema.OutcomeSource
	JUnitDir      string

	CIProvider schema.CIProvider
	CIBaseURL  string
	CIToken    string // Please use env var as this is plaintext
	CIUser     string
	CIProject  string
	CIRate     float64

	ListenAddr  string
	CostPerTest float64

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	LogLevel  string
	LogFormat string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// These are set manually from positional args, so no tag
	RepoPathStr string
	InputFile   string

	// --- Fields from rootCmd.PersistentFlags() ---
	Threshold        float64 `mapstructure:"selection-threshold"`
	TargetColumn     string  `mapstructure:"target-column"`
	Workers          int     `mapstructure:"workers"`
	Precision        int     `mapstructure:"precision"`
	Output           string  `mapstructure:"output"`
	OutputFile       string  `mapstructure:"output-file"`
	Width            int     `mapstructure:"width"`
	Color            string  `mapstructure:"color"`
	ModelFile        string  `mapstructure:"model-file"`
	CacheBackend     string  `mapstructure:"cache-backend"`
	CacheDBConnect   string  `mapstructure:"cache-db-connect"`
	HistoryBackend   string  `mapstructure:"history-backend"`
	HistoryDBConnect string  `mapstructure:"history-db-connect"`
	LogLevel         string  `mapstructure:"log-level"`
	LogFormat        string  `mapstructure:"log-format"`

	// --- Fields from dataset command Flags() ---
	GroundTruth     string `mapstructure:"ground-truth"`
	RequiredColumns string `mapstructure:"required-columns"`
	Commit          string `mapstructure:"commit"`
	Diff            string `mapstructure:"diff"`
	Explain         bool   `mapstructure:"explain"`

	// --- Fields from features/train Flags() ---
	KBest int   `mapstructure:"k-best"`
	Seed  int64 `mapstructure:"seed"`

	// --- Fields from collectCmd.Flags() ---
	MaxCommits    int    `mapstructure:"max-commits"`
	OutcomeSource string `mapstructure:"outcome-source"`
	JUnitDir      string `mapstructure:"junit-dir"`

	// --- CI provider settings ---
	CIProvider string  `mapstructure:"ci-provider"`
	CIBaseURL  string  `mapstructure:"ci-base-url"`
	CIToken    string  `mapstructure:"ci-token"`
	CIUser     string  `mapstructure:"ci-user"`
	CIProject  string  `mapstructure:"ci-project"`
	CIRate     float64 `mapstructure:"ci-rate"`

	// --- Fields from serveCmd.Flags() ---
	ListenAddr  string  `mapstructure:"listen-addr"`
	CostPerTest float64 `mapstructure:"cost-per-test"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Params returns the configuration fields recorded with each history run.
// Secrets are left out.
func (c *Config) Params() map[string]any {
	return map[string]any{
		"threshold":     c.Threshold,
		"target_column": c.TargetColumn,
		"k_best":        c.KBest,
		"model_file":    c.ModelFile,
		"max_commits":   c.MaxCommits,
		"ci_provider":   string(c.CIProvider),
	}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateSelectionInputs(cfg, input); err != nil {
		return err
	}
	if err := validateCollectionInputs(cfg, input); err != nil {
		return err
	}
	if err := validateProviderInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := resolveGitPath(ctx, cfg, client, input); err != nil {
		return err
	}
	return nil
}

// ValidateThreshold checks that a selection threshold is a probability.
func ValidateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("selection threshold must be between 0.0 and 1.0 (received %.3f)", threshold)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates the presentation fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.ModelFile = input.ModelFile
	if cfg.ModelFile == "" {
		cfg.ModelFile = DefaultModelFile
	}
	cfg.LogLevel = input.LogLevel
	cfg.LogFormat = input.LogFormat

	cfg.InputFile = strings.TrimSpace(input.InputFile)
	cfg.GroundTruthFile = strings.TrimSpace(input.GroundTruth)
	cfg.RequiredColumns = ParseCSVList(input.RequiredColumns)
	cfg.CommitRef = strings.TrimSpace(input.Commit)
	cfg.DiffFile = strings.TrimSpace(input.Diff)
	cfg.Explain = input.Explain
	if cfg.CommitRef != "" && cfg.DiffFile != "" {
		return fmt.Errorf("--commit and --diff cannot be used together")
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.Precision < 1 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 1 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, yaml, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("--output-file is required for parquet output")
	}

	return nil
}

// validateSelectionInputs validates the decision and feature selection parameters.
func validateSelectionInputs(cfg *Config, input *ConfigRawInput) error {
	if err := ValidateThreshold(input.Threshold); err != nil {
		return err
	}
	cfg.Threshold = input.Threshold

	cfg.TargetColumn = strings.TrimSpace(input.TargetColumn)
	if cfg.TargetColumn == "" {
		cfg.TargetColumn = schema.ColDefaultTarget
	}

	if input.KBest < 1 {
		return fmt.Errorf("k-best must be at least 1 (received %d)", input.KBest)
	}
	cfg.KBest = input.KBest
	cfg.Seed = input.Seed

	if input.CostPerTest < 0 {
		return fmt.Errorf("cost-per-test cannot be negative (received %.4f)", input.CostPerTest)
	}
	cfg.CostPerTest = input.CostPerTest
	cfg.ListenAddr = input.ListenAddr
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return nil
}

// validateCollectionInputs validates the history mining and outcome parameters.
func validateCollectionInputs(cfg *Config, input *ConfigRawInput) error {
	if input.MaxCommits < 0 || input.MaxCommits > MaxCommitsLimit {
		return fmt.Errorf("max-commits must be between 0 and %d (received %d)", MaxCommitsLimit, input.MaxCommits)
	}
	cfg.MaxCommits = input.MaxCommits

	cfg.OutcomeSource = schema.OutcomeSource(strings.ToLower(input.OutcomeSource))
	if cfg.OutcomeSource == "" {
		cfg.OutcomeSource = schema.SimulatedOutcomes
	}
	if _, ok := schema.ValidOutcomeSources[cfg.OutcomeSource]; !ok {
		return fmt.Errorf("invalid outcome source '%s'. must be simulated, junit, jenkins", input.OutcomeSource)
	}

	cfg.JUnitDir = strings.TrimSpace(input.JUnitDir)
	if cfg.OutcomeSource == schema.JUnitOutcomes && cfg.JUnitDir == "" {
		return fmt.Errorf("--junit-dir is required when outcome source is junit")
	}
	return nil
}

// validateProviderInputs validates CI provider settings and fills in provider defaults.
func validateProviderInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.CIProvider = schema.CIProvider(strings.ToLower(input.CIProvider))
	if cfg.CIProvider == "" {
		cfg.CIProvider = schema.NoProvider
	}
	if _, ok := schema.ValidCIProviders[cfg.CIProvider]; !ok {
		return fmt.Errorf("invalid CI provider '%s'. must be none, github, gitlab, jenkins", input.CIProvider)
	}
	if cfg.OutcomeSource == schema.JenkinsOutcomes && cfg.CIProvider != schema.JenkinsProvider {
		return fmt.Errorf("outcome source jenkins requires --ci-provider jenkins")
	}

	cfg.CIBaseURL = strings.TrimRight(strings.TrimSpace(input.CIBaseURL), "/")
	cfg.CIToken = input.CIToken
	cfg.CIUser = input.CIUser
	cfg.CIProject = strings.TrimSpace(input.CIProject)

	switch cfg.CIProvider {
	case schema.GitHubProvider:
		if cfg.CIBaseURL == "" {
			cfg.CIBaseURL = DefaultGitHubBaseURL
		}
	case schema.GitLabProvider:
		if cfg.CIBaseURL == "" {
			cfg.CIBaseURL = DefaultGitLabBaseURL
		}
	case schema.JenkinsProvider:
		if cfg.CIBaseURL == "" {
			return fmt.Errorf("--ci-base-url is required for the jenkins provider")
		}
	}
	if cfg.OutcomeSource == schema.JenkinsOutcomes && cfg.CIProject == "" {
		return fmt.Errorf("--ci-project is required to collect jenkins outcomes")
	}

	if input.CIRate < 0 {
		return fmt.Errorf("ci-rate cannot be negative (received %.2f)", input.CIRate)
	}
	cfg.CIRate = input.CIRate
	if cfg.CIRate == 0 {
		cfg.CIRate = DefaultCIRate
	}
	return nil
}

// validateBackendConfigs validates cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return fmt.Errorf("cache-db-connect: %w", err)
	}

	// --- History Backend Validation ---
	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("history-db-connect: %w", err)
	}

	// Cache and history must not share one SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		historyDBPath := cfg.HistoryDBConnect
		if historyDBPath == "" {
			historyDBPath = GetHistoryDBFilePath()
		}
		if cacheDBPath == historyDBPath {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}

	return nil
}

// resolveGitPath resolves the Git repository root when a repository path was given.
func resolveGitPath(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if input.RepoPathStr == "" {
		return nil
	}
	absSearchPath, err := filepath.Abs(input.RepoPathStr)
	if err != nil {
		return err
	}
	absSearchPath = filepath.Clean(absSearchPath)

	gitContextPath := absSearchPath
	if info, statErr := os.Stat(absSearchPath); statErr == nil && !info.IsDir() {
		gitContextPath = filepath.Dir(absSearchPath)
	}

	gitRoot, err := client.GetRepoRoot(ctx, gitContextPath)
	if err != nil {
		return err
	}
	cfg.RepoPath = gitRoot
	return nil
}
