package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"zarta-backend/internal/middleware"
	"zarta-backend/internal/models"
	"zarta-backend/internal/services"
)

type GenerateHandler struct {
	service *services.GenerationService
}

func NewGenerateHandler(service *services.GenerationService) *GenerateHandler {
	return &GenerateHandler{service: service}
}

// Generate godoc
// @Summary     Start a styled-photo generation
// @Description Submits a garment photo and a style-reference photo to the generation pipeline. Returns 202 once the job is queued; progress is client-driven via /generate/status.
// @Tags        generate
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateRequest true "Generation inputs"
// @Success     202 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}
	if !isHTTPURL(req.ReferenceImageURL) || !isHTTPURL(req.GarmentImageURL) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "referenceImageURL and garmentImageURL must be http(s) URLs",
		})
		return
	}

	resp, err := h.service.Generate(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Status godoc
// @Summary     Poll a generation
// @Description Checks the project's generation job. Each call polls the provider within a bounded budget; the client is expected to call again while status is "processing".
// @Tags        generate
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateStatusRequest true "Project reference"
// @Success     200 {object} models.GenerateStatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /generate/status [post]
func (h *GenerateHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.GenerateStatusRequest
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

	resp, err := h.service.PollStatus(c.Request.Context(), userID, projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func requireUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	return userID.(string), true
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// respondServiceError translates pipeline errors to the HTTP taxonomy.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{Error: "insufficient credits"})
	case errors.Is(err, services.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "account not found"})
	case errors.Is(err, services.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
	case errors.Is(err, services.ErrNotEditable):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "project must be complete before editing"})
	case errors.Is(err, services.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "newPrompt must not be empty"})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal error",
			Message: err.Error(),
		})
	}
}
