package store

import (
	"context"

	"github.com/vidforge/rendertrack/pkg/models"
	"github.com/vidforge/rendertrack/pkg/retry"
)

// RetryingStore wraps a Store and retries writes with exponential
// backoff. The backing store may be transiently unavailable (locked
// database, connection reset); reads are passed through untouched
// because poll-path read failures are masked by the reconciler anyway.
type RetryingStore struct {
	inner Store
	cfg   retry.Config
}

// WithRetry wraps a store with write retries
func WithRetry(inner Store, cfg retry.Config) *RetryingStore {
	return &RetryingStore{inner: inner, cfg: cfg}
}

func (s *RetryingStore) CreateJob(ctx context.Context, job *models.Job) error {
	return retry.Do(ctx, s.cfg, func() error {
		return s.inner.CreateJob(ctx, job)
	})
}

func (s *RetryingStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.inner.GetJob(ctx, id)
}

func (s *RetryingStore) UpdateJob(ctx context.Context, id string, upd JobUpdate) (*models.Job, error) {
	var job *models.Job
	var permErr error
	err := retry.Do(ctx, s.cfg, func() error {
		var err error
		job, err = s.inner.UpdateJob(ctx, id, upd)
		if err != nil && !retry.IsRetryable(err) {
			// Permanent errors such as ErrJobNotFound are not worth retrying
			permErr = err
			return nil
		}
		return err
	})
	if permErr != nil {
		return nil, permErr
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *RetryingStore) Finalize(ctx context.Context, id string, status models.JobStatus, outputRef, errorMsg string) (bool, error) {
	var done bool
	var permErr error
	err := retry.Do(ctx, s.cfg, func() error {
		var err error
		done, err = s.inner.Finalize(ctx, id, status, outputRef, errorMsg)
		if err != nil && !retry.IsRetryable(err) {
			permErr = err
			return nil
		}
		return err
	})
	if permErr != nil {
		return false, permErr
	}
	if err != nil {
		return false, err
	}
	return done, nil
}

func (s *RetryingStore) ListJobs(ctx context.Context) ([]*models.Job, error) {
	return s.inner.ListJobs(ctx)
}

func (s *RetryingStore) Close() error       { return s.inner.Close() }
func (s *RetryingStore) HealthCheck() error { return s.inner.HealthCheck() }
