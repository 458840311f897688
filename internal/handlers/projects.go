package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"zarta-backend/internal/models"
	"zarta-backend/internal/supabase"
)

const maxProjectListSize = 100

type ProjectsHandler struct {
	db      *supabase.DatabaseClient
	storage *supabase.StorageClient
}

func NewProjectsHandler(db *supabase.DatabaseClient, storage *supabase.StorageClient) *ProjectsHandler {
	return &ProjectsHandler{db: db, storage: storage}
}

// ListProjects godoc
// @Summary     List the caller's projects
// @Description Returns the caller's projects, newest first, capped at 100.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projects, err := h.db.ListProjects(userID, maxProjectListSize)
	if err != nil {
		log.Printf("Error listing projects for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list projects"})
		return
	}

	summaries := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summary := models.ProjectSummary{
			ID:        p.ID.String(),
			Status:    p.Status,
			Prompt:    p.Prompt,
			Version:   p.Version,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		if p.FinalImageURL.Valid {
			summary.FinalImageURL = p.FinalImageURL.String
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries})
}

// GetProject godoc
// @Summary     Fetch one project
// @Description Returns a single project with its full version history. Projects are only visible to their owner.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	project, err := h.db.GetProject(projectID, userID)
	if err != nil {
		log.Printf("Error fetching project %s: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to fetch project"})
		return
	}
	if project == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}

	resp := models.ProjectResponse{
		ID:                project.ID.String(),
		Status:            project.Status,
		ReferenceImageURL: project.ReferenceImageURL,
		GarmentImageURL:   project.GarmentImageURL,
		Prompt:            project.Prompt,
		AspectRatio:       project.AspectRatio,
		Version:           project.Version,
		Downloads:         project.Downloads,
		CreatedAt:         project.CreatedAt,
		UpdatedAt:         project.UpdatedAt,
	}
	if project.FinalImageURL.Valid {
		resp.FinalImageURL = project.FinalImageURL.String
	}
	if project.GenerationID.Valid {
		resp.GenerationID = project.GenerationID.String
	}
	if project.ErrorMessage.Valid {
		resp.ErrorMessage = project.ErrorMessage.String
	}
	if len(project.Versions) > 0 {
		if err := json.Unmarshal(project.Versions, &resp.Versions); err != nil {
			log.Printf("Warning: malformed version history on project %s: %v", project.ID, err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Download godoc
// @Summary     Record a download
// @Description Increments the project's download counter and returns the new count.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.DownloadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id}/download [post]
func (h *ProjectsHandler) Download(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	downloads, err := h.db.IncrementDownloads(projectID, userID)
	if err != nil {
		if errors.Is(err, supabase.ErrProjectMissing) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
			return
		}
		log.Printf("Error recording download for project %s: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to record download"})
		return
	}

	c.JSON(http.StatusOK, models.DownloadResponse{
		ProjectID: projectID.String(),
		Downloads: downloads,
	})
}

// DeleteProject godoc
// @Summary     Delete a project
// @Description Removes the project and its stored images. Irreversible.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	if err := h.db.DeleteProject(projectID, userID); err != nil {
		if errors.Is(err, supabase.ErrProjectMissing) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
			return
		}
		log.Printf("Error deleting project %s: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete project"})
		return
	}

	// Storage cleanup is best-effort; the record is already gone.
	if err := h.storage.DeleteProjectFiles(userID, projectID); err != nil {
		log.Printf("Warning: failed to delete files for project %s: %v", projectID, err)
	}

	c.JSON(http.StatusOK, gin.H{"deleted": projectID.String()})
}
