// Package reconcile implements the render-job status reconciliation
// core: the poll path, which lazily pulls backend truth and self-heals
// the job store, and the callback path, which idempotently applies
// backend-pushed final truth. Both paths converge on the same job
// record and tolerate either arriving first, or both concurrently.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vidforge/rendertrack/pkg/artifacts"
	"github.com/vidforge/rendertrack/pkg/auth"
	"github.com/vidforge/rendertrack/pkg/backend"
	"github.com/vidforge/rendertrack/pkg/models"
	"github.com/vidforge/rendertrack/pkg/progress"
	"github.com/vidforge/rendertrack/pkg/store"
	"github.com/vidforge/rendertrack/pkg/trigger"
)

// Advisory progress reported when the backend says completed but the
// output reference has not arrived yet; the authoritative output is
// expected via the callback path.
const finalizingProgress = 95

// MetricsRecorder is an interface for recording reconciliation metrics
type MetricsRecorder interface {
	RecordPoll(outcome string)
	RecordCallback(outcome string)
	RecordBackendQuery(kind, result string)
}

// Status is the canonical poll response
type Status struct {
	Status      models.JobStatus `json:"status"`
	Progress    int              `json:"progress"`
	CurrentStep string           `json:"currentStep"`
	OutputURL   *string          `json:"outputUrl"`
	Error       *string          `json:"error"`
}

// Reconciler reconciles job state between the store, the render
// backends, and the two racing update channels.
type Reconciler struct {
	store      store.Store
	backends   *backend.Resolver
	estimator  *progress.Estimator
	dispatcher *trigger.Dispatcher
	artifacts  artifacts.Resolver
	identities *auth.IdentitySet
	metrics    MetricsRecorder
	log        *zap.SugaredLogger
}

// New creates a reconciler. The metrics recorder is optional.
func New(
	s store.Store,
	backends *backend.Resolver,
	estimator *progress.Estimator,
	dispatcher *trigger.Dispatcher,
	resolver artifacts.Resolver,
	identities *auth.IdentitySet,
	log *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		store:      s,
		backends:   backends,
		estimator:  estimator,
		dispatcher: dispatcher,
		artifacts:  resolver,
		identities: identities,
		log:        log,
	}
}

// SetMetricsRecorder sets the metrics recorder
func (r *Reconciler) SetMetricsRecorder(m MetricsRecorder) {
	r.metrics = m
}

// Dispatcher exposes the completion dispatcher (debug endpoint)
func (r *Reconciler) Dispatcher() *trigger.Dispatcher {
	return r.dispatcher
}

// Poll reconciles and returns the canonical status of one job.
// Terminal jobs are answered from the store without touching the
// backend; in-flight jobs are checked against their backend, and any
// terminal truth found there is persisted on the way out. A backend
// query failure is never surfaced as a job failure: the last known
// stored state is returned instead.
func (r *Reconciler) Poll(ctx context.Context, jobID string) (*Status, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Fast path: terminal state is immutable, no backend load needed
	if job.Terminal() {
		r.recordPoll("terminal")
		return r.terminalSnapshot(ctx, job), nil
	}

	correlationID, ok := job.Backend.EffectiveCorrelationID(job.ID)
	if !ok {
		// Submission has not persisted a correlation id yet and this job
		// type does not permit the id fallback. Not an error: answer with
		// the stored state until the id (or a callback) arrives.
		r.log.Debugw("no correlation id resolvable yet", "job_id", job.ID, "job_type", job.Backend.JobType)
		r.recordPoll("no_correlation")
		return inFlightSnapshot(job, job.Progress, "processing"), nil
	}

	client, err := r.backends.ClientFor(job.Backend)
	if err != nil {
		// Misconfiguration, not job failure; degrade like a backend outage
		r.log.Errorw("no backend client for job", "job_id", job.ID, "kind", job.Backend.Kind, "error", err)
		r.recordPoll("backend_error")
		return inFlightSnapshot(job, job.Progress, "processing"), nil
	}

	res, err := client.QueryStatus(ctx, correlationID)
	if err != nil {
		// Transient backend failure must never regress a job to failed
		r.log.Warnw("backend query failed, returning last known state",
			"job_id", job.ID, "backend", job.Backend.Kind, "correlation_id", correlationID, "error", err)
		r.recordBackendQuery(job.Backend.Kind, "error")
		r.recordPoll("backend_error")
		return inFlightSnapshot(job, job.Progress, "processing"), nil
	}
	r.recordBackendQuery(job.Backend.Kind, string(res.Status))

	switch res.Status {
	case backend.StatusCompleted:
		return r.resolveCompletion(ctx, job, res)
	case backend.StatusFailed, backend.StatusError:
		return r.resolveFailure(ctx, job, res)
	default:
		// Still queued or processing: self-heal the stored status and
		// answer with a fresh advisory estimate.
		if job.Status == models.JobStatusPending && res.Status == backend.StatusProcessing {
			status := models.JobStatusProcessing
			if _, err := r.store.UpdateJob(ctx, job.ID, store.JobUpdate{Status: &status}); err != nil {
				r.log.Warnw("failed to advance stored status", "job_id", job.ID, "error", err)
			}
		}
		p, step := r.estimator.Estimate(job.Backend)
		r.recordPoll("in_flight")
		return inFlightSnapshot(job, p, step), nil
	}
}

// resolveCompletion handles a backend-reported completed status. The
// store is re-read because a concurrent callback may have supplied the
// output reference already; the adapter's own result takes priority.
func (r *Reconciler) resolveCompletion(ctx context.Context, job *models.Job, res *backend.Result) (*Status, error) {
	fresh, err := r.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	outputRef := res.OutputRef
	if outputRef == "" {
		outputRef = fresh.OutputRef
	}

	if outputRef == "" {
		// Completed without an output yet: the authoritative reference is
		// expected via the callback path. Report near-done, never done.
		r.recordPoll("finalizing")
		return inFlightSnapshot(job, finalizingProgress, "finalizing render output"), nil
	}

	if !fresh.Terminal() {
		transitioned, err := r.store.Finalize(ctx, job.ID, models.JobStatusCompleted, outputRef, "")
		if err != nil {
			return nil, fmt.Errorf("finalizing completed job %s: %w", job.ID, err)
		}
		if transitioned {
			r.log.Infow("job completed via poll", "job_id", job.ID, "backend", job.Backend.Kind)
			done := *fresh
			done.Status = models.JobStatusCompleted
			done.Progress = 100
			done.OutputRef = outputRef
			r.dispatcher.JobCompleted(&done)
		}
	}

	final, err := r.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	r.recordPoll("completed")
	return r.terminalSnapshot(ctx, final), nil
}

// resolveFailure handles a backend-reported failed or error status
func (r *Reconciler) resolveFailure(ctx context.Context, job *models.Job, res *backend.Result) (*Status, error) {
	errText := res.Error
	if errText == "" {
		errText = fmt.Sprintf("render failed on %s backend", job.Backend.Kind)
	}

	transitioned, err := r.store.Finalize(ctx, job.ID, models.JobStatusFailed, "", errText)
	if err != nil {
		return nil, fmt.Errorf("finalizing failed job %s: %w", job.ID, err)
	}
	if transitioned {
		r.log.Infow("job failed via poll", "job_id", job.ID, "backend", job.Backend.Kind, "error", errText)
		failed := *job
		failed.Status = models.JobStatusFailed
		failed.ErrorMessage = errText
		r.dispatcher.JobFailed(&failed)
	}

	final, err := r.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	r.recordPoll("failed")
	return r.terminalSnapshot(ctx, final), nil
}

// terminalSnapshot builds the response for a terminal job, resolving
// the output reference into a client-usable URL.
func (r *Reconciler) terminalSnapshot(ctx context.Context, job *models.Job) *Status {
	if job.Status == models.JobStatusFailed {
		msg := job.ErrorMessage
		if msg == "" {
			msg = "render failed"
		}
		return &Status{
			Status:      models.JobStatusFailed,
			Progress:    job.Progress,
			CurrentStep: "render failed",
			Error:       &msg,
		}
	}

	outputURL := job.OutputRef
	if resolved, err := r.artifacts.ResolveURL(ctx, job.OutputRef); err != nil {
		// Prefer answering with the raw reference over failing the poll
		r.log.Warnw("failed to presign output reference", "job_id", job.ID, "error", err)
	} else {
		outputURL = resolved
	}

	return &Status{
		Status:      models.JobStatusCompleted,
		Progress:    100,
		CurrentStep: "render complete",
		OutputURL:   &outputURL,
	}
}

// inFlightSnapshot builds the response for a job still in flight.
// Stored pending state is reported as processing: the distinction is
// internal bookkeeping, not client-facing.
func inFlightSnapshot(job *models.Job, prog int, step string) *Status {
	return &Status{
		Status:      models.JobStatusProcessing,
		Progress:    prog,
		CurrentStep: step,
	}
}

func (r *Reconciler) recordPoll(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordPoll(outcome)
	}
}

func (r *Reconciler) recordCallback(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordCallback(outcome)
	}
}

func (r *Reconciler) recordBackendQuery(kind models.BackendKind, result string) {
	if r.metrics != nil {
		r.metrics.RecordBackendQuery(string(kind), result)
	}
}
