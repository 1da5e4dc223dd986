// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mzmatch/mzmatch/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		progress REAL NOT NULL DEFAULT 0,
		message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

	CREATE TABLE IF NOT EXISTS results (
		job_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateJob inserts a job.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *models.Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, progress, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Status, job.Progress, job.Message, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// GetJob returns a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, progress, message, created_at, updated_at
		 FROM jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.Status, &job.Progress, &job.Message, &job.CreatedAt, &job.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob updates a job's status, progress, and message.
func (s *SQLiteStore) UpdateJob(ctx context.Context, id, status string, progress float64, message string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = ?, message = ?, updated_at = ?
		 WHERE id = ?`,
		status, progress, message, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not found: %s", id)
	}
	return nil
}

// ListJobs returns jobs ordered most recent first.
func (s *SQLiteStore) ListJobs(ctx context.Context, offset, limit int) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, progress, message, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		if err := rows.Scan(&job.ID, &job.Status, &job.Progress, &job.Message, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job and, via the cascade, its stored result.
func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

// SaveResult stores the result document for a job, replacing any previous one.
func (s *SQLiteStore) SaveResult(ctx context.Context, jobID string, result []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (job_id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		jobID, string(result), time.Now(),
	)
	return err
}

// GetResult returns the stored result document for a job.
func (s *SQLiteStore) GetResult(ctx context.Context, jobID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM results WHERE job_id = ?`, jobID,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result not found for job: %s", jobID)
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// CountJobs returns the total number of jobs.
func (s *SQLiteStore) CountJobs(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
