package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one pipeline execution, successful or not.
type RunRecord struct {
	ID          int64
	RanAt       time.Time
	ReportDate  string
	Document    string
	Success     bool
	CommitCount int
	Summary     string
	Trigger     string
}

// Trigger sources for run records.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// HistoryStore persists one row per pipeline run in a local SQLite database.
type HistoryStore struct {
	db *sql.DB
}

func OpenHistory(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	store := &HistoryStore{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func (s *HistoryStore) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ran_at TEXT NOT NULL,
	report_date TEXT NOT NULL,
	document TEXT NOT NULL,
	success INTEGER NOT NULL,
	commit_count INTEGER NOT NULL DEFAULT 0,
	summary TEXT NOT NULL DEFAULT '',
	trigger_source TEXT NOT NULL DEFAULT 'manual'
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *HistoryStore) RecordRun(record RunRecord) (int64, error) {
	const insertStmt = `
INSERT INTO runs (
	ran_at,
	report_date,
	document,
	success,
	commit_count,
	summary,
	trigger_source
) VALUES (?, ?, ?, ?, ?, ?, ?);`

	success := 0
	if record.Success {
		success = 1
	}
	ranAt := record.RanAt
	if ranAt.IsZero() {
		ranAt = time.Now()
	}

	res, err := s.db.Exec(
		insertStmt,
		ranAt.Format(time.RFC3339),
		record.ReportDate,
		record.Document,
		success,
		record.CommitCount,
		record.Summary,
		record.Trigger,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted row id: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *HistoryStore) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
SELECT
	id,
	ran_at,
	report_date,
	document,
	success,
	commit_count,
	summary,
	trigger_source
FROM runs
ORDER BY ran_at DESC, id DESC
LIMIT ?;
`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0, limit)
	for rows.Next() {
		var (
			record   RunRecord
			ranAtRaw string
			success  int
		)
		if err := rows.Scan(
			&record.ID,
			&ranAtRaw,
			&record.ReportDate,
			&record.Document,
			&success,
			&record.CommitCount,
			&record.Summary,
			&record.Trigger,
		); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		record.Success = success != 0

		record.RanAt, err = time.Parse(time.RFC3339, ranAtRaw)
		if err != nil {
			return nil, fmt.Errorf("parse ran_at %q: %w", ranAtRaw, err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}

	return records, nil
}

// LastRunForDate returns the most recent run targeting the given report
// date, if any.
func (s *HistoryStore) LastRunForDate(reportDate string) (RunRecord, bool, error) {
	const query = `
SELECT
	id,
	ran_at,
	report_date,
	document,
	success,
	commit_count,
	summary,
	trigger_source
FROM runs
WHERE report_date = ?
ORDER BY ran_at DESC, id DESC
LIMIT 1;
`

	var (
		record   RunRecord
		ranAtRaw string
		success  int
	)
	err := s.db.QueryRow(query, reportDate).Scan(
		&record.ID,
		&ranAtRaw,
		&record.ReportDate,
		&record.Document,
		&success,
		&record.CommitCount,
		&record.Summary,
		&record.Trigger,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, fmt.Errorf("query run for date %q: %w", reportDate, err)
	}
	record.Success = success != 0

	record.RanAt, err = time.Parse(time.RFC3339, ranAtRaw)
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("parse ran_at %q: %w", ranAtRaw, err)
	}

	return record, true, nil
}
