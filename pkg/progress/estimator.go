// Package progress computes advisory completion percentages for
// in-flight render jobs from elapsed wall-clock time. Estimates are
// never persisted and never reach 100; true completion comes only from
// the backend.
package progress

import (
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

// Phase windows and bands per backend variant. GPU jobs spend a fixed
// cold-start window in a low band before ramping through the render
// band; serverless and local jobs ramp once over their expected total
// duration.
const (
	GPUColdStartWindow = 90 * time.Second
	GPURenderWindow    = 4 * time.Minute
	gpuColdStartFloor  = 5
	gpuColdStartCeil   = 35
	gpuRenderCeil      = 95

	ServerlessExpectedDuration = 60 * time.Second
	serverlessFloor            = 5
	serverlessCeil             = 90

	LocalExpectedDuration = 30 * time.Second
	localFloor            = 10
	localCeil             = 90
)

// Estimator produces advisory progress values. The clock is injectable
// for tests.
type Estimator struct {
	now func() time.Time
}

// NewEstimator creates an estimator using the wall clock
func NewEstimator() *Estimator {
	return &Estimator{now: time.Now}
}

// NewEstimatorWithClock creates an estimator with a fixed clock source
func NewEstimatorWithClock(now func() time.Time) *Estimator {
	return &Estimator{now: now}
}

// Estimate returns an advisory progress percentage and a human-readable
// step label for a job that is still in flight.
func (e *Estimator) Estimate(meta models.BackendMetadata) (int, string) {
	elapsed := e.now().Sub(meta.SubmittedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	switch meta.Kind {
	case models.BackendGPU:
		if elapsed < GPUColdStartWindow {
			p := ramp(elapsed, GPUColdStartWindow, gpuColdStartFloor, gpuColdStartCeil)
			return p, "provisioning GPU renderer"
		}
		p := ramp(elapsed-GPUColdStartWindow, GPURenderWindow, gpuColdStartCeil, gpuRenderCeil)
		return p, "rendering on GPU backend"
	case models.BackendLocal:
		p := ramp(elapsed, LocalExpectedDuration, localFloor, localCeil)
		return p, "rendering on local worker"
	default:
		p := ramp(elapsed, ServerlessExpectedDuration, serverlessFloor, serverlessCeil)
		return p, "rendering on serverless backend"
	}
}

// ramp maps elapsed time linearly onto [floor, ceil], clamped at the
// band edges. The ceiling never reaches 100: that value is reserved for
// the true completed transition.
func ramp(elapsed, window time.Duration, floor, ceil int) int {
	if window <= 0 || elapsed >= window {
		return ceil
	}
	frac := float64(elapsed) / float64(window)
	p := floor + int(frac*float64(ceil-floor))
	if p < floor {
		return floor
	}
	if p > ceil {
		return ceil
	}
	return p
}
