package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"zarta-backend/internal/models"
	"zarta-backend/internal/supabase"
)

type UsersHandler struct {
	db      *supabase.DatabaseClient
	auth    *supabase.Client
	storage *supabase.StorageClient
}

func NewUsersHandler(db *supabase.DatabaseClient, auth *supabase.Client, storage *supabase.StorageClient) *UsersHandler {
	return &UsersHandler{db: db, auth: auth, storage: storage}
}

// UpdateUser godoc
// @Summary     Update the caller's profile
// @Description Updates display name and avatar on the caller's own account. Empty fields are left unchanged.
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.UpdateUserRequest true "Profile fields"
// @Success     200 {object} models.AccountResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /users/update [post]
func (h *UsersHandler) UpdateUser(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.db.UpdateAccountProfile(userID, req.DisplayName, req.AvatarURL); err != nil {
		log.Printf("Error updating profile for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update profile"})
		return
	}

	account, err := h.db.GetAccount(userID)
	if err != nil {
		log.Printf("Error reloading account %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load account"})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "account not found"})
		return
	}

	c.JSON(http.StatusOK, accountResponse(account))
}

// CreateUser godoc
// @Summary     Create an account record
// @Description Unauthenticated fallback used right after signup, before the client has a session token. The id must belong to a real Supabase auth user; creation is idempotent.
// @Tags        users
// @Accept      json
// @Produce     json
// @Param       request body models.CreateUserRequest true "New account"
// @Success     200 {object} models.AccountResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /create-user [post]
func (h *UsersHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	exists, email, err := h.auth.AuthUserExists(req.UserID)
	if err != nil {
		log.Printf("Error verifying auth user %s: %v", req.UserID, err)
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "auth user not found"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "auth user not found"})
		return
	}
	if email == "" {
		email = req.Email
	}

	account, err := h.db.CreateAccount(req.UserID, email)
	if err != nil {
		log.Printf("Error creating account %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create account"})
		return
	}

	c.JSON(http.StatusOK, accountResponse(account))
}

// DeleteAccount godoc
// @Summary     Delete the caller's account
// @Description Irreversibly removes the account, its projects and their stored images.
// @Tags        users
// @Produce     json
// @Security    Bearer
// @Success     200 {object} map[string]string
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /account [delete]
func (h *UsersHandler) DeleteAccount(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	// Best-effort storage cleanup before the rows cascade away.
	projects, err := h.db.ListProjects(userID, maxProjectListSize)
	if err != nil {
		log.Printf("Warning: failed to list projects for account deletion %s: %v", userID, err)
	}
	for _, p := range projects {
		if err := h.storage.DeleteProjectFiles(userID, p.ID); err != nil {
			log.Printf("Warning: failed to delete files for project %s: %v", p.ID, err)
		}
	}

	if err := h.db.DeleteAccount(userID); err != nil {
		log.Printf("Error deleting account %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": userID})
}

func accountResponse(account *models.Account) models.AccountResponse {
	resp := models.AccountResponse{
		ID:                 account.ID,
		Email:              account.Email,
		SubscriptionStatus: account.SubscriptionStatus,
		Credits:            account.Credits,
	}
	if account.DisplayName.Valid {
		resp.DisplayName = account.DisplayName.String
	}
	if account.AvatarURL.Valid {
		resp.AvatarURL = account.AvatarURL.String
	}
	if account.StripeCustomerID.Valid {
		resp.StripeCustomerID = account.StripeCustomerID.String
	}
	return resp
}
