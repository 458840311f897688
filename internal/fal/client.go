package fal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// errTransport marks transport-level failures (connection errors, truncated
// bodies). Status checks wrap these so the poll loop can keep a job alive;
// provider-reported failures stay terminal.
var errTransport = errors.New("transport failure")

// Job states as reported by the provider, collapsed to the four the
// pipeline cares about.
const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Default polling knobs. Each poll call has its own bounded wall-clock
// budget; the job itself may outlive many poll calls.
const (
	DefaultPollBudget   = 25 * time.Second
	DefaultPollInterval = 2 * time.Second
)

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, model, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SubmitRequest is the payload for queueing a generation job.
type SubmitRequest struct {
	Prompt      string   `json:"prompt"`
	ImageURLs   []string `json:"image_urls"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
	NumImages   int      `json:"num_images"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type resultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// JobStatus is one observation of a queued job.
type JobStatus struct {
	State     string
	ImageURLs []string
}

// SubmitJob fetches both reference images, re-encodes them as data URIs
// (the provider does not accept arbitrary remote URLs reliably) and queues
// an asynchronous generation job. Returns the provider job id, which is the
// only durable handle: polling must be resumable from it alone.
func (c *Client) SubmitJob(ctx context.Context, prompt, referenceURL, garmentURL, aspectRatio string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("fal api key not configured")
	}

	garmentURI, err := c.fetchAsDataURI(ctx, garmentURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch garment image: %w", err)
	}
	referenceURI, err := c.fetchAsDataURI(ctx, referenceURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch reference image: %w", err)
	}

	reqBody := SubmitRequest{
		Prompt:      prompt,
		ImageURLs:   []string{garmentURI, referenceURI},
		AspectRatio: aspectRatio,
		NumImages:   1,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/" + c.model
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("failed to submit job: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result submitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.RequestID == "" {
		return "", fmt.Errorf("provider returned no request id, body: %s", string(body))
	}

	return result.RequestID, nil
}

// GetStatus queries the provider for the current job state.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, c.requestsModel(), jobID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %v", errTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", errTransport, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("failed to get job status: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result statusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &JobStatus{State: mapProviderState(result.Status)}, nil
}

// GetResult fetches the output image URLs of a finished job.
func (c *Client) GetResult(ctx context.Context, jobID string) ([]string, error) {
	url := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, c.requestsModel(), jobID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get job result: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result resultResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	urls := make([]string, 0, len(result.Images))
	for _, image := range result.Images {
		if image.URL != "" {
			urls = append(urls, image.URL)
		}
	}
	return urls, nil
}

// PollUntilDone checks the job state in a sleep-retry loop until it reaches
// a terminal state or the per-call budget is exhausted. A transient
// transport error keeps the loop going; a provider-reported failure is
// terminal. A job reported succeeded with an empty output list is treated
// as still running, not success.
func (c *Client) PollUntilDone(ctx context.Context, jobID string, budget, interval time.Duration) (*JobStatus, error) {
	if budget <= 0 {
		budget = DefaultPollBudget
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(budget)

	for {
		status, err := c.GetStatus(ctx, jobID)
		if err != nil {
			if !isTransient(err) {
				return nil, err
			}
		} else {
			switch status.State {
			case StateFailed, StateCancelled:
				return status, nil
			case StateSucceeded:
				urls, err := c.GetResult(ctx, jobID)
				if err != nil {
					return nil, err
				}
				if len(urls) > 0 {
					status.ImageURLs = urls
					return status, nil
				}
				// Succeeded with no output yet: keep polling.
			}
		}

		if time.Now().After(deadline) {
			// Budget exhausted: the caller reports still-processing and
			// polls again later.
			return &JobStatus{State: StateRunning}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// RetryWithBackoff executes fn with exponential backoff.
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// requestsModel returns the model id used on the queue's requests paths.
// Queue URLs address requests by the model's first two path segments even
// when the submit path is deeper.
func (c *Client) requestsModel() string {
	parts := strings.Split(c.model, "/")
	if len(parts) <= 2 {
		return c.model
	}
	return strings.Join(parts[:2], "/")
}

func (c *Client) fetchAsDataURI(ctx context.Context, imageURL string) (string, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return imageURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func mapProviderState(status string) string {
	switch strings.ToUpper(status) {
	case "IN_QUEUE", "IN_PROGRESS":
		return StateRunning
	case "COMPLETED", "OK", "SUCCEEDED":
		return StateSucceeded
	case "CANCELLED", "CANCELED":
		return StateCancelled
	case "FAILED", "ERROR":
		return StateFailed
	default:
		return StateRunning
	}
}

// isTransient reports whether a status check error should keep the poll
// loop alive instead of failing the job. Transport errors are transient;
// provider-reported failures are not.
func isTransient(err error) bool {
	return errors.Is(err, errTransport)
}
