package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vidforge/rendertrack/pkg/models"
)

// HTTPPublishTrigger starts the auto-publish flow with a fire-and-forget
// HTTP call keyed by job id
type HTTPPublishTrigger struct {
	baseURL string
	http    *http.Client
}

// NewHTTPPublishTrigger creates a publish trigger against the publishing
// subsystem
func NewHTTPPublishTrigger(baseURL string) *HTTPPublishTrigger {
	return &HTTPPublishTrigger{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPPublishTrigger) TriggerPublish(ctx context.Context, jobID string) error {
	url := fmt.Sprintf("%s/publish/%s", t.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("publish trigger returned status %d", resp.StatusCode)
	}
	return nil
}

// HTTPStageAdvancer notifies the session workflow subsystem that a job
// reached a terminal state
type HTTPStageAdvancer struct {
	baseURL string
	http    *http.Client
}

// NewHTTPStageAdvancer creates a stage advancer against the session
// subsystem
func NewHTTPStageAdvancer(baseURL string) *HTTPStageAdvancer {
	return &HTTPStageAdvancer{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPStageAdvancer) AdvanceStage(ctx context.Context, jobID string, status models.JobStatus) error {
	body, err := json.Marshal(map[string]string{
		"job_id": jobID,
		"status": string(status),
	})
	if err != nil {
		return err
	}

	url := t.baseURL + "/sessions/advance"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("stage advance returned status %d", resp.StatusCode)
	}
	return nil
}
