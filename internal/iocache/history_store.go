package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
)

// Table names for run history.
const (
	runsTable        = "pts_runs"
	predictionsTable = "pts_predictions"
	evaluationsTable = "pts_evaluations"
	migrationsTable  = "schema_migrations"
)

// historyTables lists the history tables in creation order.
func historyTables() []string {
	return []string{runsTable, predictionsTable, evaluationsTable}
}

// HistoryStoreImpl implements the HistoryStore interface.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore creates a new HistoryStore with the specified backend.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (contract.HistoryStore, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled tracking
		return &HistoryStoreImpl{backend: backend}, nil
	}
	if _, err := driverFor(backend); err != nil {
		return nil, err
	}

	db, err := openDB(backend, connStr, GetHistoryDBFilePath())
	if err != nil {
		return nil, err
	}

	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &HistoryStoreImpl{db: db, backend: backend}, nil
}

// createHistoryTables creates the run history tables.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	for _, table := range historyTables() {
		if _, err := db.Exec(getCreateHistoryTableQuery(table, backend)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

// getCreateHistoryTableQuery returns the CREATE TABLE query for one history table.
func getCreateHistoryTableQuery(table string, backend schema.DatabaseBackend) string {
	quoted := quoteTableName(table, backend)

	switch table {
	case runsTable:
		switch backend {
		case schema.MySQLBackend:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
					kind VARCHAR(32) NOT NULL,
					start_time DATETIME(6) NOT NULL,
					end_time DATETIME(6),
					run_duration_ms INT,
					total_tests INT,
					config_params TEXT
				);
			`, quoted)
		case schema.PostgreSQLBackend:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id BIGSERIAL PRIMARY KEY,
					kind TEXT NOT NULL,
					start_time TIMESTAMPTZ NOT NULL,
					end_time TIMESTAMPTZ,
					run_duration_ms INT,
					total_tests INT,
					config_params TEXT
				);
			`, quoted)
		default:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id INTEGER PRIMARY KEY AUTOINCREMENT,
					kind TEXT NOT NULL,
					start_time TEXT NOT NULL,
					end_time TEXT,
					run_duration_ms INTEGER,
					total_tests INTEGER,
					config_params TEXT
				);
			`, quoted)
		}

	case predictionsTable:
		switch backend {
		case schema.MySQLBackend:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id BIGINT NOT NULL,
					row_index INT NOT NULL,
					test_id VARCHAR(512) NOT NULL,
					failure_probability DOUBLE NOT NULL,
					selected BOOLEAN NOT NULL,
					source VARCHAR(32) NOT NULL,
					PRIMARY KEY (run_id, row_index)
				);
			`, quoted)
		case schema.PostgreSQLBackend:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id BIGINT NOT NULL,
					row_index INT NOT NULL,
					test_id TEXT NOT NULL,
					failure_probability DOUBLE PRECISION NOT NULL,
					selected BOOLEAN NOT NULL,
					source TEXT NOT NULL,
					PRIMARY KEY (run_id, row_index)
				);
			`, quoted)
		default:
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					run_id INTEGER NOT NULL,
					row_index INTEGER NOT NULL,
					test_id TEXT NOT NULL,
					failure_probability REAL NOT NULL,
					selected INTEGER NOT NULL,
					source TEXT NOT NULL,
					PRIMARY KEY (run_id, row_index)
				);
			`, quoted)
		}

	default: // evaluationsTable
		timeType, floatType, intType := "TEXT", "REAL", "INTEGER"
		switch backend {
		case schema.MySQLBackend:
			timeType, floatType, intType = "DATETIME(6)", "DOUBLE", "INT"
		case schema.PostgreSQLBackend:
			timeType, floatType, intType = "TIMESTAMPTZ", "DOUBLE PRECISION", "INT"
		}
		idType := "INTEGER"
		if backend != schema.SQLiteBackend {
			idType = "BIGINT"
		}
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				run_id %[2]s PRIMARY KEY,
				evaluation_time %[3]s NOT NULL,
				threshold %[4]s NOT NULL,
				total_tests %[5]s NOT NULL,
				total_failed %[5]s NOT NULL,
				total_selected %[5]s NOT NULL,
				detected_failures %[5]s NOT NULL,
				test_reduction_rate %[4]s NOT NULL,
				defect_detection_rate %[4]s NOT NULL,
				false_positive_rate %[4]s NOT NULL,
				dropped_predictions %[5]s NOT NULL,
				dropped_ground_truth %[5]s NOT NULL
			);
		`, quoted, idType, timeType, floatType, intType)
	}
}

// disabled reports whether the store is a no-op.
func (hs *HistoryStoreImpl) disabled() bool {
	return hs.backend == schema.NoneBackend || hs.db == nil
}

// BeginRun creates a new run and returns its unique ID.
func (hs *HistoryStoreImpl) BeginRun(kind schema.RunKind, startTime time.Time, configParams map[string]any) (int64, error) {
	if hs.disabled() {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quoted := quoteTableName(runsTable, hs.backend)

	var runID int64
	switch hs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (kind, start_time, config_params) VALUES ($1, $2, $3) RETURNING run_id`, quoted)
		err = hs.db.QueryRow(query, string(kind), startTime, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (kind, start_time, config_params) VALUES (?, ?, ?)`, quoted)
		var result sql.Result
		result, err = hs.db.Exec(query, string(kind), formatTime(startTime, hs.backend), string(configJSON))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return runID, nil
}

// EndRun updates the run with completion data.
func (hs *HistoryStoreImpl) EndRun(runID int64, endTime time.Time, totalTests int) error {
	if hs.disabled() {
		return nil
	}

	quoted := quoteTableName(runsTable, hs.backend)

	// First, get the start_time to calculate duration
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quoted, placeholder(hs.backend, 1))
	start := newTimeScanner(hs.backend)
	if err := hs.db.QueryRow(query, runID).Scan(start.target()); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	startTime, err := start.value()
	if err != nil {
		return err
	}
	if startTime == nil {
		return fmt.Errorf("run %d has no start_time", runID)
	}

	durationMs := endTime.Sub(*startTime).Milliseconds()

	updateQuery := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_tests = %s WHERE run_id = %s`,
		quoted, placeholder(hs.backend, 1), placeholder(hs.backend, 2), placeholder(hs.backend, 3), placeholder(hs.backend, 4))
	if _, err := hs.db.Exec(updateQuery, formatTime(endTime, hs.backend), durationMs, totalTests, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return nil
}

// RecordPredictions stores every scored test of a run, with its selection
// decision, in one transaction.
func (hs *HistoryStoreImpl) RecordPredictions(runID int64, set schema.PredictionSet) error {
	if hs.disabled() || set.Len() == 0 {
		return nil
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO %s (run_id, row_index, test_id, failure_probability, selected, source) VALUES (%s)`,
		quoteTableName(predictionsTable, hs.backend), placeholders(hs.backend, 6))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare prediction insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range set.Records {
		if _, err := stmt.Exec(runID, i, r.TestID, r.FailureProbability, r.Selected, string(r.Source)); err != nil {
			return fmt.Errorf("failed to insert prediction for %s: %w", r.TestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit predictions: %w", err)
	}
	return nil
}

// RecordEvaluation stores the evaluator output of a run.
func (hs *HistoryStoreImpl) RecordEvaluation(runID int64, evalTime time.Time, threshold float64, metrics schema.PTSMetrics, join schema.JoinStats) error {
	if hs.disabled() {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, evaluation_time, threshold, total_tests, total_failed, total_selected,
		                detected_failures, test_reduction_rate, defect_detection_rate, false_positive_rate,
		                dropped_predictions, dropped_ground_truth)
		VALUES (%s)
	`, quoteTableName(evaluationsTable, hs.backend), placeholders(hs.backend, 12))

	_, err := hs.db.Exec(query,
		runID, formatTime(evalTime, hs.backend), threshold,
		metrics.TotalTests, metrics.TotalFailed, metrics.TotalSelected, metrics.DetectedFailures,
		metrics.TestReductionRate, metrics.DefectDetectionRate, metrics.FalsePositiveRate,
		join.DroppedPredictions, join.DroppedGroundTruth,
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}

	if hs.disabled() {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, hs.backend)
	if err := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		last := newTimeScanner(hs.backend)
		lastQuery := fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns)
		if err := hs.db.QueryRow(lastQuery).Scan(&status.LastRunID, last.target()); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		lastTime, err := last.value()
		if err != nil {
			return status, err
		}
		if lastTime != nil {
			status.LastRunTime = *lastTime
		}

		oldest := newTimeScanner(hs.backend)
		oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quotedRuns)
		if err := hs.db.QueryRow(oldestQuery).Scan(oldest.target()); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		oldestTime, err := oldest.value()
		if err != nil {
			return status, err
		}
		if oldestTime != nil {
			status.OldestRunTime = *oldestTime
		}

		testsQuery := fmt.Sprintf("SELECT COALESCE(SUM(total_tests), 0) FROM %s", quotedRuns)
		if err := hs.db.QueryRow(testsQuery).Scan(&status.TotalTestsScored); err != nil {
			return status, fmt.Errorf("failed to get total tests scored: %w", err)
		}
	}

	for _, table := range historyTables() {
		var count int64
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, hs.backend))
		if err := hs.db.QueryRow(countQuery).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}

	return status, nil
}

// GetAllRuns retrieves all runs from the store.
func (hs *HistoryStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if hs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT run_id, kind, start_time, end_time, run_duration_ms, total_tests, config_params FROM %s ORDER BY run_id",
		quoteTableName(runsTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		start, end := newTimeScanner(hs.backend), newTimeScanner(hs.backend)
		if err := rows.Scan(&record.RunID, &record.Kind, start.target(), end.target(),
			&record.RunDurationMs, &record.TotalTests, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		startTime, err := start.value()
		if err != nil {
			return nil, err
		}
		if startTime != nil {
			record.StartTime = *startTime
		}
		if record.EndTime, err = end.value(); err != nil {
			return nil, err
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllPredictions retrieves all recorded predictions from the store.
func (hs *HistoryStoreImpl) GetAllPredictions() ([]schema.PredictionHistoryRecord, error) {
	if hs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT run_id, test_id, failure_probability, selected, source FROM %s ORDER BY run_id, row_index",
		quoteTableName(predictionsTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.PredictionHistoryRecord
	for rows.Next() {
		var record schema.PredictionHistoryRecord
		if err := rows.Scan(&record.RunID, &record.TestID, &record.FailureProbability, &record.Selected, &record.Source); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}
	return results, nil
}

// GetAllEvaluations retrieves all recorded evaluations from the store.
func (hs *HistoryStoreImpl) GetAllEvaluations() ([]schema.EvaluationHistoryRecord, error) {
	if hs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, evaluation_time, threshold, total_tests, total_failed, total_selected,
		detected_failures, test_reduction_rate, defect_detection_rate, false_positive_rate,
		dropped_predictions, dropped_ground_truth
		FROM %s ORDER BY run_id`, quoteTableName(evaluationsTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.EvaluationHistoryRecord
	for rows.Next() {
		var r schema.EvaluationHistoryRecord
		evalTime := newTimeScanner(hs.backend)
		if err := rows.Scan(&r.RunID, evalTime.target(), &r.Threshold, &r.TotalTests, &r.TotalFailed, &r.TotalSelected,
			&r.DetectedFailures, &r.TestReductionRate, &r.DefectDetectionRate, &r.FalsePositiveRate,
			&r.DroppedPredictions, &r.DroppedGroundTruth); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		t, err := evalTime.value()
		if err != nil {
			return nil, err
		}
		if t != nil {
			r.EvaluationTime = *t
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}
	return results, nil
}
