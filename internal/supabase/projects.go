package supabase

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"zarta-backend/internal/models"
)

// ErrNotProcessing is returned when a terminal transition finds the project
// no longer in processing state (another request already resolved it).
var ErrNotProcessing = errors.New("project is not processing")

// ErrNotComplete is returned when an edit is attempted on a project that is
// not in complete state.
var ErrNotComplete = errors.New("project is not complete")

// ErrProjectMissing is returned when an update targets a project the caller
// does not own or that does not exist.
var ErrProjectMissing = errors.New("project not found")

const projectColumns = `id, user_id, status, reference_image_url, garment_image_url, final_image_url, prompt, aspect_ratio, version, versions, generation_id, downloads, error_message, created_at, updated_at`

func scanProject(scan func(dest ...interface{}) error) (*models.Project, error) {
	var p models.Project
	err := scan(
		&p.ID, &p.UserID, &p.Status, &p.ReferenceImageURL, &p.GarmentImageURL,
		&p.FinalImageURL, &p.Prompt, &p.AspectRatio, &p.Version, &p.Versions,
		&p.GenerationID, &p.Downloads, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject writes the placeholder record before the generation job is
// even submitted, in processing state.
func (d *DatabaseClient) CreateProject(userID, referenceURL, garmentURL string) (*models.Project, error) {
	project, err := scanProject(d.db.QueryRow(`
		INSERT INTO projects (id, user_id, status, reference_image_url, garment_image_url, prompt, aspect_ratio, version, versions)
		VALUES ($1, $2, 'processing', $3, $4, '', '1:1', 1, '[]'::jsonb)
		RETURNING `+projectColumns,
		uuid.New(), userID, referenceURL, garmentURL).Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) GetProject(projectID uuid.UUID, userID string) (*models.Project, error) {
	project, err := scanProject(d.db.QueryRow(
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND user_id = $2`,
		projectID, userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) ListProjects(userID string, limit int) ([]models.Project, error) {
	rows, err := d.db.Query(
		`SELECT `+projectColumns+` FROM projects WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *project)
	}

	return projects, rows.Err()
}

// SetGeneration attaches the composed prompt, the normalized aspect ratio
// and the provider job id to a freshly created project.
func (d *DatabaseClient) SetGeneration(projectID uuid.UUID, prompt, aspectRatio, generationID string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET prompt = $2, aspect_ratio = $3, generation_id = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, projectID, prompt, aspectRatio, generationID)
	if err != nil {
		return fmt.Errorf("failed to set generation: %w", err)
	}
	return nil
}

// MarkProjectComplete transitions processing -> complete. The status guard
// makes the transition happen exactly once even when a poll and an edit
// race on the same project.
func (d *DatabaseClient) MarkProjectComplete(projectID uuid.UUID, finalImageURL string) error {
	res, err := d.db.Exec(`
		UPDATE projects
		SET status = 'complete', final_image_url = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, projectID, finalImageURL)
	if err != nil {
		return fmt.Errorf("failed to mark project complete: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotProcessing
	}
	return nil
}

// MarkProjectError transitions processing -> error. Terminal.
func (d *DatabaseClient) MarkProjectError(projectID uuid.UUID, errorMsg string) error {
	res, err := d.db.Exec(`
		UPDATE projects
		SET status = 'error', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, projectID, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to mark project error: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotProcessing
	}
	return nil
}

// EditTicket captures the state needed to revert a failed edit.
type EditTicket struct {
	ProjectID    uuid.UUID
	PriorPrompt  string
	PriorFinal   string
	PriorVersion int
	NewVersion   int
}

// BeginEdit flips a complete project back to processing and bumps the
// version, guarded on status = 'complete' so two edits (or an edit and a
// poll completion) cannot interleave. Returns the prior state for
// compensation.
func (d *DatabaseClient) BeginEdit(projectID uuid.UUID, userID, newPrompt string) (*EditTicket, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin edit: %w", err)
	}
	defer tx.Rollback()

	var ticket EditTicket
	ticket.ProjectID = projectID
	var finalURL sql.NullString
	err = tx.QueryRow(`
		SELECT prompt, final_image_url, version
		FROM projects
		WHERE id = $1 AND user_id = $2 AND status = 'complete'
		FOR UPDATE
	`, projectID, userID).Scan(&ticket.PriorPrompt, &finalURL, &ticket.PriorVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotComplete
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock project for edit: %w", err)
	}
	ticket.PriorFinal = finalURL.String
	ticket.NewVersion = ticket.PriorVersion + 1

	_, err = tx.Exec(`
		UPDATE projects
		SET status = 'processing', prompt = $2, version = $3, generation_id = NULL, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, projectID, newPrompt, ticket.NewVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to start edit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit edit start: %w", err)
	}
	return &ticket, nil
}

// CompleteEdit finishes an edit: stores the new final image and appends the
// new version to history. History entries are appended, never rewritten.
func (d *DatabaseClient) CompleteEdit(ticket *EditTicket, prompt, finalImageURL string) error {
	entry, err := json.Marshal(models.ProjectVersion{
		Version:       ticket.NewVersion,
		Prompt:        prompt,
		FinalImageURL: finalImageURL,
		Status:        models.StatusComplete,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal version entry: %w", err)
	}

	res, err := d.db.Exec(`
		UPDATE projects
		SET status = 'complete', final_image_url = $2, versions = versions || $3::jsonb,
		    error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, ticket.ProjectID, finalImageURL, string(entry))
	if err != nil {
		return fmt.Errorf("failed to complete edit: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotProcessing
	}
	return nil
}

// RevertEdit restores the pre-edit state after a failed edit so the project
// never stays stuck in processing.
func (d *DatabaseClient) RevertEdit(ticket *EditTicket) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET status = 'complete', prompt = $2, version = $3, final_image_url = NULLIF($4, ''),
		    generation_id = NULL, updated_at = NOW()
		WHERE id = $1
	`, ticket.ProjectID, ticket.PriorPrompt, ticket.PriorVersion, ticket.PriorFinal)
	if err != nil {
		return fmt.Errorf("failed to revert edit: %w", err)
	}
	return nil
}

// DeleteProject removes a project owned by the caller.
func (d *DatabaseClient) DeleteProject(projectID uuid.UUID, userID string) error {
	res, err := d.db.Exec(`DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrProjectMissing
	}
	return nil
}

// IncrementDownloads bumps the download counter on explicit user action.
func (d *DatabaseClient) IncrementDownloads(projectID uuid.UUID, userID string) (int, error) {
	var downloads int
	err := d.db.QueryRow(`
		UPDATE projects
		SET downloads = downloads + 1, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING downloads
	`, projectID, userID).Scan(&downloads)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProjectMissing
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment downloads: %w", err)
	}
	return downloads, nil
}
