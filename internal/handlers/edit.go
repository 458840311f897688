package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"zarta-backend/internal/models"
	"zarta-backend/internal/services"
)

type EditHandler struct {
	service *services.GenerationService
}

func NewEditHandler(service *services.GenerationService) *EditHandler {
	return &EditHandler{service: service}
}

// Edit godoc
// @Summary     Regenerate a completed project with a new prompt
// @Description Runs a synchronous regeneration. On success the project's version is bumped and the previous result is kept in history; on failure the project reverts to its pre-edit state. Costs 1 credit, charged after the new image is persisted.
// @Tags        edit
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.EditRequest true "Edit inputs"
// @Success     200 {object} models.EditResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /edit [post]
func (h *EditHandler) Edit(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	resp, err := h.service.Edit(c.Request.Context(), userID, projectID, req.NewPrompt)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
