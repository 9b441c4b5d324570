package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

// LocalClient queries a render worker running on local infrastructure.
// Jobs are effectively synchronous and have the shortest expected
// duration of the three variants.
type LocalClient struct {
	baseURL string
	http    *http.Client
}

// NewLocalClient creates a client for a local render worker
func NewLocalClient(baseURL string) *LocalClient {
	return &LocalClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *LocalClient) Kind() models.BackendKind { return models.BackendLocal }

// QueryStatus fetches the job status by the worker's own job id
func (c *LocalClient) QueryStatus(ctx context.Context, correlationID string) (*Result, error) {
	url := fmt.Sprintf("%s/jobs/%s", c.baseURL, correlationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &QueryError{Backend: c.Kind(), Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &QueryError{Backend: c.Kind(), Err: err}
	}

	body, err := decodeStatusResponse(c.Kind(), resp)
	if err != nil {
		return nil, err
	}

	status, ok := mapLocalStatus(body.Status)
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

// mapLocalStatus maps the local worker's vocabulary onto the canonical
// set. A word outside the vocabulary is a query-interpretation failure,
// never a job failure.
func mapLocalStatus(native string) (Status, bool) {
	switch native {
	case "queued":
		return StatusQueued, true
	case "running", "processing":
		return StatusProcessing, true
	case "finished", "completed":
		return StatusCompleted, true
	case "failed":
		return StatusFailed, true
	case "error":
		return StatusError, true
	default:
		return "", false
	}
}
