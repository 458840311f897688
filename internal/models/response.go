package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type GenerateResponse struct {
	Started      bool   `json:"started"`
	ProjectID    string `json:"projectId"`
	GenerationID string `json:"generationId"`
	Prompt       string `json:"prompt"`
	AspectRatio  string `json:"aspect_ratio"`
}

type GenerateStatusResponse struct {
	ProjectID     string `json:"projectId"`
	Status        string `json:"status"`
	FinalImageURL string `json:"finalImageURL,omitempty"`
	Error         string `json:"error,omitempty"`
}

type EditResponse struct {
	Success       bool   `json:"success"`
	Version       int    `json:"version"`
	FinalImageURL string `json:"finalImageURL"`
	Prompt        string `json:"prompt"`
}

type ProjectSummary struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Prompt        string    `json:"prompt"`
	FinalImageURL string    `json:"finalImageURL,omitempty"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectResponse struct {
	ID                string           `json:"id"`
	Status            string           `json:"status"`
	ReferenceImageURL string           `json:"referenceImageURL"`
	GarmentImageURL   string           `json:"garmentImageURL"`
	FinalImageURL     string           `json:"finalImageURL,omitempty"`
	Prompt            string           `json:"prompt"`
	AspectRatio       string           `json:"aspect_ratio"`
	Version           int              `json:"version"`
	Versions          []ProjectVersion `json:"versions,omitempty"`
	GenerationID      string           `json:"generationId,omitempty"`
	Downloads         int              `json:"downloads"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type DownloadResponse struct {
	ProjectID string `json:"projectId"`
	Downloads int    `json:"downloads"`
}

type AccountResponse struct {
	ID                 string  `json:"id"`
	Email              string  `json:"email"`
	DisplayName        string  `json:"displayName,omitempty"`
	AvatarURL          string  `json:"avatarURL,omitempty"`
	SubscriptionStatus string  `json:"subscriptionStatus"`
	Credits            float64 `json:"credits"`
	StripeCustomerID   string  `json:"stripeCustomerId,omitempty"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type PortalSessionResponse struct {
	URL string `json:"url"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
