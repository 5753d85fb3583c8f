package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal keeps a local record of every deployment attempt in SQLite.
// Deployment never depends on it; a broken journal only loses bookkeeping.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (and if necessary initializes) the journal database
func NewJournal(dbPath string) (*Journal, error) {
	// Open database connection
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}

	// Initialize schema
	if err := j.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

// initSchema creates the database tables and indexes
func (j *Journal) initSchema() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			environment TEXT NOT NULL,
			action TEXT NOT NULL,
			branch TEXT NOT NULL,
			sha TEXT NOT NULL,
			prev_revision TEXT,
			new_revision TEXT,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Create index for efficient queries
	_, err = j.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_environment_started
		ON deployments(environment, started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordDeployment appends one attempt to the journal
func (j *Journal) RecordDeployment(ctx context.Context, record *Record) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var completedAt *string
	if record.CompletedAt != nil {
		formatted := record.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &formatted
	} else {
		completedAt = &now
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO deployments
		(environment, action, branch, sha, prev_revision, new_revision,
		 status, started_at, completed_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Environment,
		record.Action,
		record.Branch,
		record.SHA,
		record.PrevRevision,
		record.NewRevision,
		record.Status,
		now,
		completedAt,
		record.DurationSeconds,
		record.ErrorMessage,
	)

	if err != nil {
		return 0, fmt.Errorf("failed to insert journal record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetLatestDeployment returns the most recent attempt for an environment
func (j *Journal) GetLatestDeployment(ctx context.Context, environment string) (*Record, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, environment, action, branch, sha, prev_revision, new_revision,
		       status, started_at, completed_at, duration_seconds, error_message
		FROM deployments
		WHERE environment = ?
		ORDER BY id DESC
		LIMIT 1
	`, environment)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest attempt: %w", err)
	}

	return record, nil
}

// GetDeploymentHistory returns recent attempts for an environment
func (j *Journal) GetDeploymentHistory(ctx context.Context, environment string, limit int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, environment, action, branch, sha, prev_revision, new_revision,
		       status, started_at, completed_at, duration_seconds, error_message
		FROM deployments
		WHERE environment = ?
		ORDER BY id DESC
		LIMIT ?
	`, environment, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetAllEnvironmentsStatus returns the latest attempt for each environment
func (j *Journal) GetAllEnvironmentsStatus(ctx context.Context) (map[string]*Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT d1.id, d1.environment, d1.action, d1.branch, d1.sha, d1.prev_revision,
		       d1.new_revision, d1.status, d1.started_at, d1.completed_at,
		       d1.duration_seconds, d1.error_message
		FROM deployments d1
		INNER JOIN (
			SELECT environment, MAX(id) as max_id
			FROM deployments
			GROUP BY environment
		) d2
		ON d1.id = d2.max_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query environments status: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Record)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal record: %w", err)
		}
		result[record.Environment] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a database row into a Record
// Works with both *sql.Row and *sql.Rows
func scanRecord(s scanner) (*Record, error) {
	var record Record
	var startedAtStr string
	var completedAtStr sql.NullString

	err := s.Scan(
		&record.ID,
		&record.Environment,
		&record.Action,
		&record.Branch,
		&record.SHA,
		&record.PrevRevision,
		&record.NewRevision,
		&record.Status,
		&startedAtStr,
		&completedAtStr,
		&record.DurationSeconds,
		&record.ErrorMessage,
	)

	if err != nil {
		return nil, err
	}

	// Parse timestamps
	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		record.CompletedAt = &completedAt
	}

	return &record, nil
}
