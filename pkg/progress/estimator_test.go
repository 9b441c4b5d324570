package progress

import (
	"testing"
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

func estimatorAt(submitted time.Time, elapsed time.Duration) *Estimator {
	return NewEstimatorWithClock(func() time.Time { return submitted.Add(elapsed) })
}

func TestGPUBanding(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := models.BackendMetadata{Kind: models.BackendGPU, SubmittedAt: submitted}

	// Halfway through the cold-start window: progress within the low band
	e := estimatorAt(submitted, GPUColdStartWindow/2)
	p, step := e.Estimate(meta)
	if p < gpuColdStartFloor || p > gpuColdStartCeil {
		t.Errorf("cold-start progress %d outside low band [%d, %d]", p, gpuColdStartFloor, gpuColdStartCeil)
	}
	if step != "provisioning GPU renderer" {
		t.Errorf("unexpected cold-start step label %q", step)
	}

	// Halfway through the render window: progress within the high band
	e = estimatorAt(submitted, GPUColdStartWindow+GPURenderWindow/2)
	p, step = e.Estimate(meta)
	if p < gpuColdStartCeil || p > gpuRenderCeil {
		t.Errorf("render progress %d outside high band [%d, %d]", p, gpuColdStartCeil, gpuRenderCeil)
	}
	if step != "rendering on GPU backend" {
		t.Errorf("unexpected render step label %q", step)
	}
}

func TestEstimateNeverReaches100(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, kind := range []models.BackendKind{models.BackendGPU, models.BackendServerless, models.BackendLocal} {
		meta := models.BackendMetadata{Kind: kind, SubmittedAt: submitted}
		e := estimatorAt(submitted, 24*time.Hour)
		if p, _ := e.Estimate(meta); p >= 100 {
			t.Errorf("%s estimate reached %d, must stay below 100", kind, p)
		}
	}
}

func TestSingleRampVariants(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	meta := models.BackendMetadata{Kind: models.BackendServerless, SubmittedAt: submitted}
	early, _ := estimatorAt(submitted, 0).Estimate(meta)
	mid, _ := estimatorAt(submitted, ServerlessExpectedDuration/2).Estimate(meta)
	late, _ := estimatorAt(submitted, 2*ServerlessExpectedDuration).Estimate(meta)
	if early != serverlessFloor {
		t.Errorf("expected floor %d at t=0, got %d", serverlessFloor, early)
	}
	if mid <= early || late < mid {
		t.Errorf("ramp not monotonic for a fixed clock: %d, %d, %d", early, mid, late)
	}
	if late != serverlessCeil {
		t.Errorf("expected ceiling %d after the window, got %d", serverlessCeil, late)
	}

	meta = models.BackendMetadata{Kind: models.BackendLocal, SubmittedAt: submitted}
	p, step := estimatorAt(submitted, LocalExpectedDuration/3).Estimate(meta)
	if p < localFloor || p >= 100 {
		t.Errorf("local estimate %d out of range", p)
	}
	if step != "rendering on local worker" {
		t.Errorf("unexpected local step label %q", step)
	}
}

func TestClockSkewClampsToFloor(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := models.BackendMetadata{Kind: models.BackendServerless, SubmittedAt: submitted}

	// SubmittedAt in the future relative to the estimator clock
	e := NewEstimatorWithClock(func() time.Time { return submitted.Add(-time.Minute) })
	if p, _ := e.Estimate(meta); p != serverlessFloor {
		t.Errorf("expected floor on negative elapsed, got %d", p)
	}
}
