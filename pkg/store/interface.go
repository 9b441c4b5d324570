package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidforge/rendertrack/pkg/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// JobUpdate is a partial update applied with last-writer-wins semantics.
// Nil fields are left untouched.
type JobUpdate struct {
	Status       *models.JobStatus
	Progress     *int
	OutputRef    *string
	ErrorMessage *string
}

// Store defines the interface for job persistence.
// Both the in-memory and the SQLite implementations provide
// last-writer-wins writes; terminal-state guarding is done via Finalize,
// everything else is the caller's responsibility.
type Store interface {
	// CreateJob persists a new job record. Called by the submission path.
	CreateJob(ctx context.Context, job *models.Job) error

	// GetJob retrieves a job by id, returning ErrJobNotFound if absent.
	// Records are validated on read and fail closed when corrupted.
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// UpdateJob applies a partial update and returns the updated job.
	UpdateJob(ctx context.Context, id string, upd JobUpdate) (*models.Job, error)

	// Finalize transitions a job into the given terminal state only if it
	// is not already terminal. It returns false when the job was terminal
	// before this call, which is the at-most-once gate both write paths
	// rely on. On completed the progress is forced to 100.
	Finalize(ctx context.Context, id string, status models.JobStatus, outputRef, errorMsg string) (bool, error)

	// ListJobs returns all jobs (metrics and debugging).
	ListJobs(ctx context.Context) ([]*models.Job, error)

	// Lifecycle
	Close() error
	HealthCheck() error
}

// Config holds store configuration
type Config struct {
	Driver string // "sqlite" or "memory"
	Path   string // SQLite database path
}

// NewStore creates a store based on configuration
func NewStore(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "rendertrack.db"
		}
		return NewSQLiteStore(path)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// validateFinalizeStatus rejects Finalize calls with non-terminal targets
func validateFinalizeStatus(status models.JobStatus) error {
	if !models.IsTerminalState(status) {
		return fmt.Errorf("finalize requires a terminal status, got %s", status)
	}
	return nil
}
