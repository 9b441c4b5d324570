// Package trigger dispatches downstream side effects when a render job
// reaches a terminal state. Dispatch is asynchronous and best-effort:
// failures are logged and recorded, never propagated to the caller.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidforge/rendertrack/pkg/models"
)

// Outcome of one dispatch attempt
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Dispatch targets
const (
	TargetPublish = "publish"
	TargetStage   = "stage"
)

// Dispatch records one outbound dispatch attempt and its outcome, so
// best-effort side effects stay inspectable.
type Dispatch struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Target     string    `json:"target"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// PublishTrigger starts the downstream auto-publish flow for a job
type PublishTrigger interface {
	TriggerPublish(ctx context.Context, jobID string) error
}

// StageAdvancer notifies the session workflow that a job reached a
// terminal state
type StageAdvancer interface {
	AdvanceStage(ctx context.Context, jobID string, status models.JobStatus) error
}

const maxRecords = 256

// Dispatcher fans out terminal-state side effects. It keeps a bounded
// in-memory log of dispatch attempts.
type Dispatcher struct {
	publish PublishTrigger
	stages  StageAdvancer
	log     *zap.SugaredLogger
	timeout time.Duration

	mu      sync.Mutex
	records []Dispatch
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Either collaborator may be nil,
// in which case its dispatches are recorded as skipped.
func NewDispatcher(publish PublishTrigger, stages StageAdvancer, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		publish: publish,
		stages:  stages,
		log:     log,
		timeout: 10 * time.Second,
	}
}

// JobCompleted dispatches the success side effects for a job that just
// transitioned to completed. The publish trigger fires only for jobs
// carrying the auto-publish opt-in flag.
func (d *Dispatcher) JobCompleted(job *models.Job) {
	d.dispatchStage(job.ID, models.JobStatusCompleted)

	if !job.Backend.AutoPublish {
		d.record(Dispatch{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			Target:     TargetPublish,
			Outcome:    OutcomeSkipped,
			Error:      "auto-publish not requested",
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
		return
	}
	if d.publish == nil {
		d.record(Dispatch{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			Target:     TargetPublish,
			Outcome:    OutcomeSkipped,
			Error:      "no publish trigger configured",
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
		return
	}

	jobID := job.ID
	d.async(jobID, TargetPublish, func(ctx context.Context) error {
		return d.publish.TriggerPublish(ctx, jobID)
	})
}

// JobFailed dispatches the failure side effects for a job that just
// transitioned to failed
func (d *Dispatcher) JobFailed(job *models.Job) {
	d.dispatchStage(job.ID, models.JobStatusFailed)
}

func (d *Dispatcher) dispatchStage(jobID string, status models.JobStatus) {
	if d.stages == nil {
		d.record(Dispatch{
			ID:         uuid.New().String(),
			JobID:      jobID,
			Target:     TargetStage,
			Outcome:    OutcomeSkipped,
			Error:      "no stage advancer configured",
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
		return
	}
	d.async(jobID, TargetStage, func(ctx context.Context) error {
		return d.stages.AdvanceStage(ctx, jobID, status)
	})
}

// async runs one dispatch in the background, recording its outcome.
// Errors are swallowed: the caller's response must not block on, or
// fail because of, downstream dispatch.
func (d *Dispatcher) async(jobID, target string, fn func(context.Context) error) {
	rec := Dispatch{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Target:    target,
		StartedAt: time.Now(),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := fn(ctx)
		rec.FinishedAt = time.Now()
		if err != nil {
			rec.Outcome = OutcomeFailed
			rec.Error = err.Error()
			d.log.Warnw("dispatch failed", "target", target, "job_id", jobID, "error", err)
		} else {
			rec.Outcome = OutcomeSucceeded
			d.log.Infow("dispatch succeeded", "target", target, "job_id", jobID)
		}
		d.record(rec)
	}()
}

func (d *Dispatcher) record(rec Dispatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	if len(d.records) > maxRecords {
		d.records = d.records[len(d.records)-maxRecords:]
	}
}

// Records returns a copy of the recorded dispatch attempts
func (d *Dispatcher) Records() []Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Dispatch, len(d.records))
	copy(out, d.records)
	return out
}

// Wait blocks until all in-flight dispatches finish. Used on shutdown
// and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
