package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vidforge/rendertrack/pkg/models"
)

// SQLiteStore is a SQLite-based implementation of the job store
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// WAL mode plus a generous busy timeout lets the poll and callback paths
// write concurrently; a single open connection serializes writes to avoid
// SQLITE_BUSY churn.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		output_ref TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		backend_kind TEXT NOT NULL,
		correlation_id TEXT NOT NULL DEFAULT '',
		submitted_at DATETIME NOT NULL,
		job_type TEXT NOT NULL DEFAULT 'standard',
		auto_publish BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateJob persists a new job record
func (s *SQLiteStore) CreateJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs
		(id, status, progress, output_ref, error_message, backend_kind,
		 correlation_id, submitted_at, job_type, auto_publish, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Status, job.Progress, job.OutputRef, job.ErrorMessage,
		job.Backend.Kind, job.Backend.CorrelationID, job.Backend.SubmittedAt,
		job.Backend.JobType, job.Backend.AutoPublish, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

const jobColumns = `id, status, progress, output_ref, error_message, backend_kind,
	correlation_id, submitted_at, job_type, auto_publish, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var job models.Job
	err := row.Scan(&job.ID, &job.Status, &job.Progress, &job.OutputRef,
		&job.ErrorMessage, &job.Backend.Kind, &job.Backend.CorrelationID,
		&job.Backend.SubmittedAt, &job.Backend.JobType, &job.Backend.AutoPublish,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob retrieves a job by id
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJob applies a partial update and returns the updated job
func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, upd JobUpdate) (*models.Job, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now()}

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *upd.Progress)
	}
	if upd.OutputRef != nil {
		sets = append(sets, "output_ref = ?")
		args = append(args, *upd.OutputRef)
	}
	if upd.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *upd.ErrorMessage)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrJobNotFound
	}

	return s.GetJob(ctx, id)
}

// Finalize transitions a job into a terminal state unless it already is
// terminal. The guard lives in the WHERE clause, so the check and the
// write are a single statement.
func (s *SQLiteStore) Finalize(ctx context.Context, id string, status models.JobStatus, outputRef, errorMsg string) (bool, error) {
	if err := validateFinalizeStatus(status); err != nil {
		return false, err
	}

	var res sql.Result
	var err error
	if status == models.JobStatusCompleted {
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, progress = 100, output_ref = ?,
			error_message = '', updated_at = ?
			WHERE id = ? AND status NOT IN ('completed', 'failed')
		`, status, outputRef, time.Now(), id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, output_ref = '', error_message = ?,
			updated_at = ?
			WHERE id = ? AND status NOT IN ('completed', 'failed')
		`, status, errorMsg, time.Now(), id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to finalize job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// No row updated: either the job is already terminal or it is absent.
	if _, err := s.GetJob(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListJobs returns all jobs
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}
