package supabase

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client     *storage.Client
	bucket     string
	baseURL    string
	httpClient *http.Client
}

func NewStorageClient(supabaseURL, serviceKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (s *StorageClient) UploadFile(userID string, projectID uuid.UUID, filename string, data []byte, contentType string) (string, string, error) {
	// Storage path: users/{user_id}/projects/{project_id}/{filename}
	storagePath := fmt.Sprintf("users/%s/projects/%s/%s", userID, projectID.String(), filename)

	if contentType == "" {
		contentType = "image/jpeg"
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	return storagePath, s.GetPublicURL(storagePath), nil
}

// PersistFromURL downloads a (possibly short-lived) provider-hosted image
// and re-uploads it to the application's bucket, returning a stable public
// URL. Failure here is terminal for the generation even though the provider
// already succeeded.
func (s *StorageClient) PersistFromURL(userID string, projectID uuid.UUID, sourceURL string) (string, error) {
	resp, err := s.httpClient.Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("failed to download generated image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download generated image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generated image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	ext := "jpg"
	if strings.Contains(contentType, "png") {
		ext = "png"
	} else if strings.Contains(contentType, "webp") {
		ext = "webp"
	}
	filename := fmt.Sprintf("result_%s.%s", time.Now().Format("20060102_150405"), ext)

	_, publicURL, err := s.UploadFile(userID, projectID, filename, data, contentType)
	if err != nil {
		return "", err
	}
	return publicURL, nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteProjectFiles(userID string, projectID uuid.UUID) error {
	prefix := fmt.Sprintf("users/%s/projects/%s/", userID, projectID.String())

	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if len(files) > 0 {
		filePaths := make([]string, len(files))
		for i, file := range files {
			filePaths[i] = file.Name
		}
		_, err = s.client.RemoveFile(s.bucket, filePaths)
		if err != nil {
			return fmt.Errorf("failed to delete files: %w", err)
		}
	}

	return nil
}
