// Package store persists finished comparison runs to a SQLite database so
// batches can be compared across invocations.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/beatrizalmeidaf/diarization-comparison/internal/report"
)

// RunStore handles SQLite persistence of comparison runs
type RunStore struct {
	db *sql.DB
}

// RunRecord summarizes one persisted run
type RunRecord struct {
	RunID     string
	CreatedAt time.Time
	FileCount int
}

// NewRunStore opens (and if needed initializes) the run database
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		file_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		file_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		der REAL,
		jer REAL,
		runtime_seconds REAL,
		failed INTEGER NOT NULL,
		failure_reason TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_run_results_run_id ON run_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}

	return &RunStore{db: db}, nil
}

// SaveRun inserts a finalized report under the given run id
func (s *RunStore) SaveRun(runID string, createdAt time.Time, rep *report.ComparisonReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (run_id, created_at, file_count) VALUES (?, ?, ?)`,
		runID, createdAt, len(rep.FileIDs),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}

	insert := `
	INSERT INTO run_results (run_id, file_id, model_name, der, jer, runtime_seconds, failed, failure_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, model := range rep.ModelNames {
		for _, res := range rep.Results[model] {
			var der, jer interface{}
			if !res.Failed {
				der, jer = res.DER, res.JER
			}
			if _, err := tx.Exec(insert,
				runID, res.FileID, res.ModelName, der, jer,
				res.RuntimeSeconds, boolToInt(res.Failed), res.FailureReason,
			); err != nil {
				return fmt.Errorf("failed to insert result for %s/%s: %w", res.FileID, res.ModelName, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", runID, err)
	}
	return nil
}

// GetRunResults loads the persisted per-pair results of one run
func (s *RunStore) GetRunResults(runID string) ([]report.FileResult, error) {
	rows, err := s.db.Query(`
	SELECT file_id, model_name, der, jer, runtime_seconds, failed, failure_reason
	FROM run_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []report.FileResult
	for rows.Next() {
		var res report.FileResult
		var der, jer sql.NullFloat64
		var failed int
		if err := rows.Scan(&res.FileID, &res.ModelName, &der, &jer,
			&res.RuntimeSeconds, &failed, &res.FailureReason); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		res.Failed = failed != 0
		if der.Valid {
			res.DER = der.Float64
		}
		if jer.Valid {
			res.JER = jer.Float64
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run results: %w", err)
	}
	return results, nil
}

// ListRuns returns persisted runs, newest first
func (s *RunStore) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT run_id, created_at, file_count FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.CreatedAt, &rec.FileCount); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run records: %w", err)
	}
	return runs, nil
}

// Close releases the database handle
func (s *RunStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
