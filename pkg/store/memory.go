package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

// MemoryStore is an in-memory implementation of the job store, used for
// tests and development runs.
type MemoryStore struct {
	jobs map[string]*models.Job
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*models.Job),
	}
}

// CreateJob adds a new job to the store
func (s *MemoryStore) CreateJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

// GetJob retrieves a copy of a job by id
func (s *MemoryStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	cp := *job
	return &cp, nil
}

// UpdateJob applies a partial update with last-writer-wins semantics
func (s *MemoryStore) UpdateJob(ctx context.Context, id string, upd JobUpdate) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	applyUpdate(job, upd)
	job.UpdatedAt = time.Now()

	cp := *job
	return &cp, nil
}

// Finalize transitions a job into a terminal state unless it already is
// terminal. The check and the write happen under the same lock.
func (s *MemoryStore) Finalize(ctx context.Context, id string, status models.JobStatus, outputRef, errorMsg string) (bool, error) {
	if err := validateFinalizeStatus(status); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if job.Terminal() {
		return false, nil
	}

	job.Status = status
	job.UpdatedAt = time.Now()
	if status == models.JobStatusCompleted {
		job.Progress = 100
		job.OutputRef = outputRef
		job.ErrorMessage = ""
	} else {
		job.OutputRef = ""
		job.ErrorMessage = errorMsg
	}
	return true, nil
}

// ListJobs returns copies of all jobs
func (s *MemoryStore) ListJobs(ctx context.Context) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	return jobs, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error { return nil }

// HealthCheck is a no-op for the in-memory store
func (s *MemoryStore) HealthCheck() error { return nil }

// applyUpdate copies the non-nil fields of upd onto job
func applyUpdate(job *models.Job, upd JobUpdate) {
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.OutputRef != nil {
		job.OutputRef = *upd.OutputRef
	}
	if upd.ErrorMessage != nil {
		job.ErrorMessage = *upd.ErrorMessage
	}
}
