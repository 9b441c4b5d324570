package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a render job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// validTransitions maps from-state to allowed to-states.
// Transitions are monotonic: once a job reaches a terminal state it
// never leaves it.
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusProcessing: true, // Pending → Processing (backend picked up the job)
		JobStatusCompleted:  true, // Pending → Completed (callback arrived before first poll)
		JobStatusFailed:     true, // Pending → Failed (backend rejected the job)
	},
	JobStatusProcessing: {
		JobStatusCompleted: true, // Processing → Completed (render finished)
		JobStatusFailed:    true, // Processing → Failed (render failed)
	},
	// Terminal states (no transitions allowed)
	JobStatusCompleted: {},
	JobStatusFailed:    {},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to JobStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if the state is terminal (no further transitions)
func IsTerminalState(state JobStatus) bool {
	return state == JobStatusCompleted || state == JobStatusFailed
}

// Job represents a tracked asynchronous render request.
//
// A job is created in pending state by the submission path and mutated
// only by the status reconciler (poll path) and the callback ingestor
// (push path). OutputRef is non-empty iff the job is completed;
// ErrorMessage is set only when the job is failed.
type Job struct {
	ID           string          `json:"id"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress"` // 0-100, advisory except at terminal states
	OutputRef    string          `json:"output_ref,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Backend      BackendMetadata `json:"backend"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Terminal reports whether the job has reached completed or failed
func (j *Job) Terminal() bool {
	return IsTerminalState(j.Status)
}

// Validate checks the job's structural invariants. Called at the
// store-read boundary so a corrupted record fails closed instead of
// flowing through the reconciler.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job has empty id")
	}
	switch j.Status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
	default:
		return fmt.Errorf("job %s has unknown status %q", j.ID, j.Status)
	}
	if (j.OutputRef != "") != (j.Status == JobStatusCompleted) {
		return fmt.Errorf("job %s violates output invariant: status=%s output_ref=%q", j.ID, j.Status, j.OutputRef)
	}
	if (j.Progress == 100) != (j.Status == JobStatusCompleted) {
		return fmt.Errorf("job %s violates progress invariant: status=%s progress=%d", j.ID, j.Status, j.Progress)
	}
	if j.ErrorMessage != "" && j.Status != JobStatusFailed {
		return fmt.Errorf("job %s has error message in status %s", j.ID, j.Status)
	}
	return j.Backend.Validate()
}
