package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Project lifecycle statuses.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

type Project struct {
	ID                uuid.UUID
	UserID            string
	Status            string
	ReferenceImageURL string
	GarmentImageURL   string
	FinalImageURL     sql.NullString
	Prompt            string
	AspectRatio       string
	Version           int
	Versions          json.RawMessage
	GenerationID      sql.NullString
	Downloads         int
	ErrorMessage      sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProjectVersion is one entry of a project's version history. History is
// appended on every successful edit, never rewritten.
type ProjectVersion struct {
	Version       int       `json:"version"`
	Prompt        string    `json:"prompt"`
	FinalImageURL string    `json:"finalImageURL"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}
