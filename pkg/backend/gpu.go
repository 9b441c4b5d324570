package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

// GPUClient queries a GPU-accelerated render backend. Execution is
// two-phase: a cold-start/provisioning phase while an instance warms up,
// followed by the actual render phase, so the first useful status can be
// a while after submission.
type GPUClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGPUClient creates a client for a GPU-accelerated render backend
func NewGPUClient(baseURL, apiKey string) *GPUClient {
	return &GPUClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		// Cold-starting instances answer slowly
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GPUClient) Kind() models.BackendKind { return models.BackendGPU }

// QueryStatus fetches the job status by the backend's own job id
func (c *GPUClient) QueryStatus(ctx context.Context, correlationID string) (*Result, error) {
	url := fmt.Sprintf("%s/v1/jobs/%s", c.baseURL, correlationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &QueryError{Backend: c.Kind(), Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &QueryError{Backend: c.Kind(), Err: err}
	}

	body, err := decodeStatusResponse(c.Kind(), resp)
	if err != nil {
		return nil, err
	}

	status, ok := mapGPUStatus(body.Status)
	if !ok {
		return nil, &QueryError{Backend: c.Kind(), Err: fmt.Errorf("unrecognized backend status %q", body.Status)}
	}

	return &Result{
		Status:        status,
		OutputRef:     body.OutputURL,
		Error:         body.Error,
		CorrelationID: correlationID,
	}, nil
}

// mapGPUStatus maps the GPU provider's vocabulary onto the canonical set.
// Both provisioning-phase and render-phase states collapse to processing;
// the progress estimator separates the phases by elapsed time. A word
// outside the vocabulary is a query-interpretation failure, never a job
// failure.
func mapGPUStatus(native string) (Status, bool) {
	switch native {
	case "pending", "provisioning":
		return StatusQueued, true
	case "cold_starting", "rendering", "running":
		return StatusProcessing, true
	case "done", "succeeded":
		return StatusCompleted, true
	case "failed":
		return StatusFailed, true
	case "error":
		return StatusError, true
	default:
		return "", false
	}
}
