package reconcile

import (
	"context"

	"github.com/vidforge/rendertrack/pkg/models"
)

// Callback is the payload a render backend pushes when a job finishes
type Callback struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"` // "completed" or "failed"
	OutputURL string `json:"output_url"`
	Error     string `json:"error"`
	Secret    string `json:"secret"`
}

// IngestResult is the outcome of applying one callback
type IngestResult struct {
	Skipped       bool
	UpdatedStatus models.JobStatus
	Message       string
}

// Ingest authenticates and idempotently applies a backend callback.
// Backends may retry delivery, so a callback for an already-terminal
// job is a successful no-op, never an error. Authentication happens
// before the store is touched at all.
func (r *Reconciler) Ingest(ctx context.Context, cb Callback) (*IngestResult, error) {
	identity, ok := r.identities.Match(cb.Secret)
	if !ok {
		r.recordCallback("unauthorized")
		return nil, ErrBadSecret
	}

	if cb.JobID == "" {
		r.recordCallback("invalid")
		return nil, &ValidationError{Msg: "job_id is required"}
	}
	switch cb.Status {
	case "completed":
		if cb.OutputURL == "" {
			r.recordCallback("invalid")
			return nil, &ValidationError{Msg: "output_url is required for completed callbacks"}
		}
	case "failed":
	case "":
		r.recordCallback("invalid")
		return nil, &ValidationError{Msg: "status is required"}
	default:
		r.recordCallback("invalid")
		return nil, &ValidationError{Msg: "status must be completed or failed"}
	}

	job, err := r.store.GetJob(ctx, cb.JobID)
	if err != nil {
		r.recordCallback("not_found")
		return nil, err
	}

	// Idempotency guard: terminal jobs are never mutated again and the
	// completion trigger is never re-fired.
	if job.Terminal() {
		r.log.Infow("callback replay skipped", "job_id", job.ID, "status", job.Status, "identity", identity.Name)
		r.recordCallback("skipped")
		return &IngestResult{
			Skipped:       true,
			UpdatedStatus: job.Status,
			Message:       "job already processed",
		}, nil
	}

	if cb.Status == "completed" {
		transitioned, err := r.store.Finalize(ctx, job.ID, models.JobStatusCompleted, cb.OutputURL, "")
		if err != nil {
			return nil, err
		}
		if !transitioned {
			// Lost the race against the poll path after our read
			r.recordCallback("skipped")
			return &IngestResult{
				Skipped:       true,
				UpdatedStatus: models.JobStatusCompleted,
				Message:       "job already processed",
			}, nil
		}

		r.log.Infow("job completed via callback", "job_id", job.ID, "identity", identity.Name)
		done := *job
		done.Status = models.JobStatusCompleted
		done.Progress = 100
		done.OutputRef = cb.OutputURL
		r.dispatcher.JobCompleted(&done)
		r.recordCallback("completed")
		return &IngestResult{UpdatedStatus: models.JobStatusCompleted}, nil
	}

	errText := cb.Error
	if errText == "" {
		errText = "render failed"
	}
	transitioned, err := r.store.Finalize(ctx, job.ID, models.JobStatusFailed, "", errText)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		current, err := r.store.GetJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		r.recordCallback("skipped")
		return &IngestResult{
			Skipped:       true,
			UpdatedStatus: current.Status,
			Message:       "job already processed",
		}, nil
	}

	r.log.Infow("job failed via callback", "job_id", job.ID, "identity", identity.Name, "error", errText)
	failed := *job
	failed.Status = models.JobStatusFailed
	failed.ErrorMessage = errText
	r.dispatcher.JobFailed(&failed)
	r.recordCallback("failed")
	return &IngestResult{UpdatedStatus: models.JobStatusFailed}, nil
}
