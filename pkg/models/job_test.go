package models

import (
	"testing"
	"time"
)

func TestValidateTransition(t *testing.T) {
	valid := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusProcessing},
		{JobStatusPending, JobStatusCompleted},
		{JobStatusPending, JobStatusFailed},
		{JobStatusProcessing, JobStatusCompleted},
		{JobStatusProcessing, JobStatusFailed},
	}
	for _, tc := range valid {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Errorf("expected %s -> %s to be valid: %v", tc.from, tc.to, err)
		}
	}

	invalid := []struct{ from, to JobStatus }{
		{JobStatusCompleted, JobStatusProcessing},
		{JobStatusCompleted, JobStatusFailed},
		{JobStatusFailed, JobStatusCompleted},
		{JobStatusFailed, JobStatusPending},
		{JobStatusProcessing, JobStatusPending},
	}
	for _, tc := range invalid {
		if err := ValidateTransition(tc.from, tc.to); err == nil {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}

	if err := ValidateTransition("bogus", JobStatusCompleted); err == nil {
		t.Error("expected unknown source state to be rejected")
	}
}

func TestIsTerminalState(t *testing.T) {
	if !IsTerminalState(JobStatusCompleted) || !IsTerminalState(JobStatusFailed) {
		t.Error("completed and failed must be terminal")
	}
	if IsTerminalState(JobStatusPending) || IsTerminalState(JobStatusProcessing) {
		t.Error("pending and processing must not be terminal")
	}
}

func TestJobValidate(t *testing.T) {
	base := func() *Job {
		return &Job{
			ID:     "job-1",
			Status: JobStatusProcessing,
			Backend: BackendMetadata{
				Kind:        BackendServerless,
				SubmittedAt: time.Now(),
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}

	j := base()
	j.Status = JobStatusCompleted
	if err := j.Validate(); err == nil {
		t.Error("completed job without output_ref should be rejected")
	}
	j.OutputRef = "https://cdn.example.com/out.mp4"
	if err := j.Validate(); err == nil {
		t.Error("completed job with progress below 100 should be rejected")
	}
	j.Progress = 100
	if err := j.Validate(); err != nil {
		t.Errorf("completed job with output_ref rejected: %v", err)
	}

	j = base()
	j.Progress = 100
	if err := j.Validate(); err == nil {
		t.Error("non-completed job at progress 100 should be rejected")
	}

	j = base()
	j.OutputRef = "https://cdn.example.com/out.mp4"
	if err := j.Validate(); err == nil {
		t.Error("processing job with output_ref should be rejected")
	}

	j = base()
	j.ErrorMessage = "boom"
	if err := j.Validate(); err == nil {
		t.Error("non-failed job with error message should be rejected")
	}

	j = base()
	j.Backend.Kind = "quantum"
	if err := j.Validate(); err == nil {
		t.Error("unrecognized backend kind should fail closed")
	}
}

func TestEffectiveCorrelationID(t *testing.T) {
	m := BackendMetadata{Kind: BackendGPU, CorrelationID: "rb-123"}
	id, ok := m.EffectiveCorrelationID("job-1")
	if !ok || id != "rb-123" {
		t.Errorf("persisted correlation id must win, got %q ok=%v", id, ok)
	}

	m = BackendMetadata{Kind: BackendGPU, JobType: JobTypeSharedID}
	id, ok = m.EffectiveCorrelationID("job-1")
	if !ok || id != "job-1" {
		t.Errorf("shared-id jobs must fall back to the job id, got %q ok=%v", id, ok)
	}

	m = BackendMetadata{Kind: BackendGPU, JobType: JobTypeStandard}
	if _, ok := m.EffectiveCorrelationID("job-1"); ok {
		t.Error("standard jobs without a correlation id must not resolve one")
	}
}
