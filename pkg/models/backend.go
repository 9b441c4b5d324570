package models

import (
	"fmt"
	"time"
)

// BackendKind identifies which render backend variant executes a job
type BackendKind string

const (
	BackendServerless BackendKind = "serverless" // single-phase, near-immediate status
	BackendGPU        BackendKind = "gpu"        // two-phase: cold start, then render
	BackendLocal      BackendKind = "local"      // single-phase, shortest expected duration
)

// JobType discriminates how the submission path correlated the job with
// its backend.
type JobType string

const (
	// JobTypeStandard jobs carry a backend-native correlation id persisted
	// at submission time.
	JobTypeStandard JobType = "standard"

	// JobTypeSharedID jobs were submitted with the job's own id as the
	// backend job id. Submission is fire-and-forget, so the correlation id
	// may not be persisted yet when the first poll arrives; for these jobs
	// the job id itself is a valid correlation id.
	JobTypeSharedID JobType = "shared_id"
)

// BackendMetadata identifies the backend variant executing a job and how
// to correlate the job with it. The record is validated at the store-read
// boundary and fails closed on an unrecognized kind.
type BackendMetadata struct {
	Kind          BackendKind `json:"kind"`
	CorrelationID string      `json:"correlation_id,omitempty"` // immutable once persisted
	SubmittedAt   time.Time   `json:"submitted_at"`
	JobType       JobType     `json:"job_type,omitempty"`
	AutoPublish   bool        `json:"auto_publish,omitempty"` // opt-in for the completion trigger
}

// Validate fails closed on unrecognized variants
func (m *BackendMetadata) Validate() error {
	switch m.Kind {
	case BackendServerless, BackendGPU, BackendLocal:
	default:
		return fmt.Errorf("unrecognized backend kind %q", m.Kind)
	}
	switch m.JobType {
	case JobTypeStandard, JobTypeSharedID, "":
	default:
		return fmt.Errorf("unrecognized job type %q", m.JobType)
	}
	return nil
}

// EffectiveCorrelationID resolves the id to query the backend with.
// The persisted correlation id wins; for shared-id jobs the job's own id
// serves as a fallback to cover the submission race. The second return
// is false when no correlation id can be resolved at all.
func (m *BackendMetadata) EffectiveCorrelationID(jobID string) (string, bool) {
	if m.CorrelationID != "" {
		return m.CorrelationID, true
	}
	if m.JobType == JobTypeSharedID {
		return jobID, true
	}
	return "", false
}
