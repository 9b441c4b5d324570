// Package backend provides a uniform query interface over the
// heterogeneous render backends a job may execute on. Each variant maps
// its native status vocabulary onto the canonical set used by the
// reconciler.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vidforge/rendertrack/pkg/models"
)

// Status is the canonical backend-reported job status
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// Result is a successful status query against a render backend
type Result struct {
	Status        Status
	OutputRef     string // optional reference to the rendered artifact
	Error         string // optional backend-reported failure reason
	CorrelationID string // the id the query was made with, for logging/audit
}

// Client queries one backend variant for job status by correlation id
type Client interface {
	Kind() models.BackendKind
	QueryStatus(ctx context.Context, correlationID string) (*Result, error)
}

// QueryError wraps a transient failure reaching a render backend.
// The reconciler never surfaces these to the poll caller.
type QueryError struct {
	Backend models.BackendKind
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s backend query failed: %v", e.Backend, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// decodeStatusBody decodes the common {status, output_url, error} shape
// the backend HTTP APIs respond with.
type statusBody struct {
	Status    string `json:"status"`
	OutputURL string `json:"output_url"`
	Error     string `json:"error"`
}

func decodeStatusResponse(kind models.BackendKind, resp *http.Response) (*statusBody, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &QueryError{Backend: kind, Err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	}

	var body statusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &QueryError{Backend: kind, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &body, nil
}
