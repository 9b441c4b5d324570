package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/rendertrack/pkg/backend"
	"github.com/vidforge/rendertrack/pkg/models"
	"github.com/vidforge/rendertrack/pkg/reconcile"
	"github.com/vidforge/rendertrack/pkg/store"
)

func TestIngestRejectsBadSecret(t *testing.T) {
	f := newFixture(t, &fakeClient{kind: models.BackendServerless})
	f.seedJob(t, &models.Job{
		ID:      "job-1",
		Status:  models.JobStatusProcessing,
		Backend: models.BackendMetadata{Kind: models.BackendServerless, CorrelationID: "rp-1"},
	})

	for _, secret := range []string{"", "wrong-secret"} {
		_, err := f.rec.Ingest(context.Background(), reconcile.Callback{
			JobID:     "job-1",
			Status:    "completed",
			OutputURL: "s3://renders/out.mp4",
			Secret:    secret,
		})
		assert.ErrorIs(t, err, reconcile.ErrBadSecret)
	}

	// Authentication precedes any store mutation
	stored, err := f.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, stored.Status)
	assert.Empty(t, stored.OutputRef)
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t, &fakeClient{kind: models.BackendServerless})

	tests := []struct {
		name string
		cb   reconcile.Callback
	}{
		{
			name: "missing job id",
			cb:   reconcile.Callback{Status: "completed", OutputURL: "s3://r/o.mp4", Secret: testSecret},
		},
		{
			name: "missing status",
			cb:   reconcile.Callback{JobID: "job-1", Secret: testSecret},
		},
		{
			name: "unknown status",
			cb:   reconcile.Callback{JobID: "job-1", Status: "cancelled", Secret: testSecret},
		},
		{
			name: "completed without output url",
			cb:   reconcile.Callback{JobID: "job-1", Status: "completed", Secret: testSecret},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rec.Ingest(context.Background(), tt.cb)
			var verr *reconcile.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestIngestUnknownJob(t *testing.T) {
	f := newFixture(t, &fakeClient{kind: models.BackendServerless})

	_, err := f.rec.Ingest(context.Background(), reconcile.Callback{
		JobID:  "ghost",
		Status: "failed",
		Error:  "whatever",
		Secret: testSecret,
	})
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestIngestCompletion(t *testing.T) {
	f := newFixture(t, &fakeClient{kind: models.BackendServerless})
	f.seedJob(t, &models.Job{
		ID:     "job-1",
		Status: models.JobStatusProcessing,
		Backend: models.BackendMetadata{
			Kind:          models.BackendServerless,
			CorrelationID: "rp-1",
			AutoPublish:   true,
		},
	})

	res, err := f.rec.Ingest(context.Background(), reconcile.Callback{
		JobID:     "job-1",
		Status:    "completed",
		OutputURL: "s3://renders/job-1.mp4",
		Secret:    testSecret,
	})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, models.JobStatusCompleted, res.UpdatedStatus)

	stored, err := f.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, "s3://renders/job-1.mp4", stored.OutputRef)

	f.dispatcher.Wait()
	assert.Equal(t, 1, f.publish.count())
	assert.Equal(t, 1, f.stage.count())
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, &fakeClient{kind: models.BackendServerless})
	f.seedJob(t, &models.Job{
		ID:     "job-1",
		Status: models.JobStatusProcessing,
		Backend: models.BackendMetadata{
			Kind:          models.BackendServerless,
			CorrelationID: "rp-1",
			AutoPublish:   true,
		},
	})

	cb := reconcile.Callback{
		JobID:     "job-1",
		Status:    "completed",
		OutputURL: "s3://renders/job-1.mp4",
		Secret:    testSecret,
	}

	first, err := f.rec.Ingest(context.Background(), cb)
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	// Delivery retries and even contradictory replays are no-ops
	replay, err := f.rec.Ingest(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, replay.Skipped)
	assert.Equal(t, models.JobStatusCompleted, replay.UpdatedStatus)
	assert.Equal(t, "job already processed", replay.Message)

	contradiction, err := f.rec.Ingest(context.Background(), reconcile.Callback{
		JobID:  "job-1",
		Status: "failed",
		Error:  "late failure report",
		Secret: testSecret,
	})
	require.NoError(t, err)
	assert.True(t, contradiction.Skipped)

	stored, err := f.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, "s3://renders/job-1.mp4", stored.OutputRef)

	f.dispatcher.Wait()
	assert.Equal(t, 1, f.publish.count(), "replay must not re-fire the publish trigger")
}

func TestIngestFailure(t *testing.T) {
	t.Run("with error text", func(t *testing.T) {
		f := newFixture(t, &fakeClient{kind: models.BackendGPU})
		f.seedJob(t, &models.Job{
			ID:      "job-1",
			Status:  models.JobStatusPending,
			Backend: models.BackendMetadata{Kind: models.BackendGPU, CorrelationID: "gpu-1"},
		})

		res, err := f.rec.Ingest(context.Background(), reconcile.Callback{
			JobID:  "job-1",
			Status: "failed",
			Error:  "CUDA out of memory",
			Secret: testSecret,
		})
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, res.UpdatedStatus)

		stored, err := f.store.GetJob(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, stored.Status)
		assert.Equal(t, "CUDA out of memory", stored.ErrorMessage)

		f.dispatcher.Wait()
		assert.Equal(t, 0, f.publish.count())
		assert.Equal(t, 1, f.stage.count())
	})

	t.Run("without error text gets a default", func(t *testing.T) {
		f := newFixture(t, &fakeClient{kind: models.BackendGPU})
		f.seedJob(t, &models.Job{
			ID:      "job-2",
			Status:  models.JobStatusProcessing,
			Backend: models.BackendMetadata{Kind: models.BackendGPU, CorrelationID: "gpu-2"},
		})

		_, err := f.rec.Ingest(context.Background(), reconcile.Callback{
			JobID:  "job-2",
			Status: "failed",
			Secret: testSecret,
		})
		require.NoError(t, err)

		stored, err := f.store.GetJob(context.Background(), "job-2")
		require.NoError(t, err)
		assert.Equal(t, "render failed", stored.ErrorMessage)
	})
}

// Callback first, poll second: the poll must answer from the store and
// never consult the backend for a job the callback already closed.
func TestCallbackThenPoll(t *testing.T) {
	client := &fakeClient{
		kind:   models.BackendGPU,
		result: backend.Result{Status: backend.StatusProcessing},
	}
	f := newFixture(t, client)
	f.seedJob(t, &models.Job{
		ID:     "job-1",
		Status: models.JobStatusPending,
		Backend: models.BackendMetadata{
			Kind:    models.BackendGPU,
			JobType: models.JobTypeSharedID,
		},
	})

	_, err := f.rec.Ingest(context.Background(), reconcile.Callback{
		JobID:     "job-1",
		Status:    "completed",
		OutputURL: "https://cdn.vidforge.io/renders/job-1.mp4",
		Secret:    testSecret,
	})
	require.NoError(t, err)

	st, err := f.rec.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	require.NotNil(t, st.OutputURL)
	assert.Equal(t, "https://cdn.vidforge.io/renders/job-1.mp4", *st.OutputURL)
	assert.Empty(t, client.queries())
}
