package fal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zarta-backend/internal/fal"
)

const testModel = "fal-ai/flux-pro/kontext/max/multi"

func TestClient_SubmitJob(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer imageServer.Close()

	var submitted struct {
		Prompt      string   `json:"prompt"`
		ImageURLs   []string `json:"image_urls"`
		AspectRatio string   `json:"aspect_ratio"`
		NumImages   int      `json:"num_images"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/"+testModel, r.URL.Path)
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"request_id": "req-123"}`))
	}))
	defer server.Close()

	client := fal.NewClient(server.URL, testModel, "test-key")
	jobID, err := client.SubmitJob(context.Background(), "a prompt", imageServer.URL+"/ref.png", imageServer.URL+"/garment.png", "4:3")

	require.NoError(t, err)
	assert.Equal(t, "req-123", jobID)
	assert.Equal(t, "a prompt", submitted.Prompt)
	assert.Equal(t, "4:3", submitted.AspectRatio)
	assert.Equal(t, 1, submitted.NumImages)
	// Remote images are re-encoded as data URIs, garment first.
	require.Len(t, submitted.ImageURLs, 2)
	for _, u := range submitted.ImageURLs {
		assert.True(t, strings.HasPrefix(u, "data:image/png;base64,"), "expected data URI, got %q", u)
	}
}

func TestClient_SubmitJob_NoAPIKey(t *testing.T) {
	client := fal.NewClient("https://queue.fal.run", testModel, "")

	_, err := client.SubmitJob(context.Background(), "a prompt", "https://example.com/a.png", "https://example.com/b.png", "1:1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestClient_PollUntilDone_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fal-ai/flux-pro/requests/req-123/status", r.URL.Path)
		w.Write([]byte(`{"status": "FAILED"}`))
	}))
	defer server.Close()

	client := fal.NewClient(server.URL, testModel, "test-key")
	status, err := client.PollUntilDone(context.Background(), "req-123", 500*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, fal.StateFailed, status.State)
}

func TestClient_PollUntilDone_Succeeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fal-ai/flux-pro/requests/req-123/status":
			w.Write([]byte(`{"status": "COMPLETED"}`))
		case "/fal-ai/flux-pro/requests/req-123":
			w.Write([]byte(`{"images": [{"url": "https://cdn.test/out.png"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := fal.NewClient(server.URL, testModel, "test-key")
	status, err := client.PollUntilDone(context.Background(), "req-123", 500*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, fal.StateSucceeded, status.State)
	assert.Equal(t, []string{"https://cdn.test/out.png"}, status.ImageURLs)
}

func TestClient_PollUntilDone_SucceededWithoutOutputKeepsPolling(t *testing.T) {
	// A job can be reported completed before its output list is populated.
	// That must read as still-running, never as success with no image.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fal-ai/flux-pro/requests/req-123/status":
			w.Write([]byte(`{"status": "COMPLETED"}`))
		case "/fal-ai/flux-pro/requests/req-123":
			w.Write([]byte(`{"images": []}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := fal.NewClient(server.URL, testModel, "test-key")
	status, err := client.PollUntilDone(context.Background(), "req-123", 100*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, fal.StateRunning, status.State)
	assert.Empty(t, status.ImageURLs)
}

func TestClient_PollUntilDone_BudgetExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "IN_PROGRESS"}`))
	}))
	defer server.Close()

	client := fal.NewClient(server.URL, testModel, "test-key")
	start := time.Now()
	status, err := client.PollUntilDone(context.Background(), "req-123", 100*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, fal.StateRunning, status.State)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_PollUntilDone_ProviderErrorIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "bad key"}`))
	}))
	defer server.Close()

	client := fal.NewClient(server.URL, testModel, "test-key")
	_, err := client.PollUntilDone(context.Background(), "req-123", 500*time.Millisecond, 10*time.Millisecond)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get job status")
}

func TestClient_PollUntilDone_TransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "IN_QUEUE"}`))
	}))
	server.Close() // refuse all connections

	client := fal.NewClient(server.URL, testModel, "test-key")
	status, err := client.PollUntilDone(context.Background(), "req-123", 50*time.Millisecond, 10*time.Millisecond)

	// Unreachable provider is transient: keep the job alive and let the
	// client poll again later.
	require.NoError(t, err)
	assert.Equal(t, fal.StateRunning, status.State)
}

func TestClient_RetryWithBackoff(t *testing.T) {
	client := fal.NewClient("https://queue.fal.run", testModel, "test-key")

	callCount := 0
	err := client.RetryWithBackoff(func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestClient_RetryWithBackoff_Exhausted(t *testing.T) {
	client := fal.NewClient("https://queue.fal.run", testModel, "test-key")

	err := client.RetryWithBackoff(func() error {
		return assert.AnError
	}, 3)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}
