package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

// ServerlessClient queries a serverless render backend. Execution is
// single-phase and a status is available almost immediately after
// submission.
type ServerlessClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewServerlessClient creates a client for a serverless render backend
func NewServerlessClient(baseURL, apiKey string) *ServerlessClient {
	return &ServerlessClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ServerlessClient) Kind() models.BackendKind { return models.BackendServerless }

// QueryStatus fetches the job status by the backend's own job id
func (c *ServerlessClient) QueryStatus(ctx context.Context, correlationID string) (*Result, error) {
	url := fmt.Sprintf("%s/status/%s", c.baseURL, correlationID)
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

	status, ok := mapServerlessStatus(body.Status)
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

// mapServerlessStatus maps the serverless provider's vocabulary onto the
// canonical set. A word outside the vocabulary is a query-interpretation
// failure, never a job failure.
func mapServerlessStatus(native string) (Status, bool) {
	switch native {
	case "IN_QUEUE":
		return StatusQueued, true
	case "IN_PROGRESS":
		return StatusProcessing, true
	case "COMPLETED":
		return StatusCompleted, true
	case "FAILED", "CANCELLED", "TIMED_OUT":
		return StatusFailed, true
	case "ERROR":
		return StatusError, true
	default:
		return "", false
	}
}
