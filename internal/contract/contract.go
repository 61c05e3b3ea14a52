// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/pts/schema"
)

// GitClient defines the git operations needed to mine commit history.
// This allows the collection logic to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	// Its use should be minimized in favor of the explicit methods below.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// GetCommitLog returns the raw numstat log of the most recent commits.
	// A maxCommits of zero means the whole history.
	GetCommitLog(ctx context.Context, repoPath string, maxCommits int) ([]byte, error)

	// GetCommitDetails returns the raw numstat log entry of a single commit.
	GetCommitDetails(ctx context.Context, repoPath string, ref string) ([]byte, error)

	// GetChangedFiles lists the files touched by a single commit.
	GetChangedFiles(ctx context.Context, repoPath string, ref string) ([]string, error)
}

// CacheManager defines the interface for managing stores.
// This allows the storage layer to be mocked for testing.
type CacheManager interface {
	GetCommitStore() CacheStore
	GetHistoryStore() HistoryStore
}

// CacheStore defines the interface for the commit cache.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// HistoryStore defines the interface for tracking prediction and evaluation runs.
type HistoryStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(kind schema.RunKind, startTime time.Time, configParams map[string]any) (int64, error)

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, totalTests int) error

	// RecordPredictions stores every scored test of a run
	RecordPredictions(runID int64, set schema.PredictionSet) error

	// RecordEvaluation stores the evaluator output of a run
	RecordEvaluation(runID int64, evalTime time.Time, threshold float64, metrics schema.PTSMetrics, join schema.JoinStats) error

	// GetStatus returns status information about the history store
	GetStatus() (schema.HistoryStatus, error)

	GetAllRuns() ([]schema.RunRecord, error)
	GetAllPredictions() ([]schema.PredictionHistoryRecord, error)
	GetAllEvaluations() ([]schema.EvaluationHistoryRecord, error)

	// Close closes the underlying connection
	Close() error
}
