package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"zarta-backend/internal/billing"
	"zarta-backend/internal/config"
	"zarta-backend/internal/models"
	"zarta-backend/internal/supabase"
)

type BillingHandler struct {
	db     *supabase.DatabaseClient
	client *billing.Client
	bridge *billing.Bridge
	cfg    *config.Config
}

func NewBillingHandler(db *supabase.DatabaseClient, client *billing.Client, bridge *billing.Bridge, cfg *config.Config) *BillingHandler {
	return &BillingHandler{db: db, client: client, bridge: bridge, cfg: cfg}
}

// CreateCheckoutSession godoc
// @Summary     Open a Stripe checkout
// @Description Creates a checkout session for a subscription plan, or a one-time payment for the credit pack price.
// @Tags        billing
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CheckoutSessionRequest true "Checkout parameters"
// @Success     200 {object} models.CheckoutSessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /stripe/create-checkout-session [post]
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	account, ok := h.requireBillingAccount(c)
	if !ok {
		return
	}

	var req models.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	customerID, err := h.client.EnsureCustomer(c.Request.Context(), account)
	if err != nil {
		log.Printf("Error resolving stripe customer for %s: %v", account.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve stripe customer"})
		return
	}
	h.storeCustomer(account, customerID)

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = h.cfg.BaseURL + "/billing/success"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = h.cfg.BaseURL + "/billing/cancel"
	}

	session, err := h.client.CreateCheckoutSession(c.Request.Context(), customerID, req.PriceID, successURL, cancelURL)
	if err != nil {
		log.Printf("Error creating checkout session for %s: %v", account.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, models.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// CreatePortalSession godoc
// @Summary     Open the Stripe billing portal
// @Tags        billing
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.PortalSessionRequest true "Portal parameters"
// @Success     200 {object} models.PortalSessionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /stripe/create-portal-session [post]
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	account, ok := h.requireBillingAccount(c)
	if !ok {
		return
	}

	var req models.PortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	customerID, err := h.client.EnsureCustomer(c.Request.Context(), account)
	if err != nil {
		log.Printf("Error resolving stripe customer for %s: %v", account.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve stripe customer"})
		return
	}
	h.storeCustomer(account, customerID)

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = h.cfg.BaseURL + "/account"
	}

	session, err := h.client.CreatePortalSession(c.Request.Context(), customerID, returnURL)
	if err != nil {
		log.Printf("Error creating portal session for %s: %v", account.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, models.PortalSessionResponse{URL: session.URL})
}

// GetCustomer godoc
// @Summary     Fetch the caller's billing profile
// @Description Returns the account with tier and credit balance, refreshed from Stripe when billing is configured. Sync failures fall back to the last known state.
// @Tags        billing
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.AccountResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /stripe/customer [get]
func (h *BillingHandler) GetCustomer(c *gin.Context) {
	h.syncAndRespond(c)
}

// SyncSubscription godoc
// @Summary     Reconcile the caller's subscription with Stripe
// @Description Refreshes tier and credits from the active Stripe subscription. Credits are only ever raised to the plan allocation; an absent subscription resets the tier to free without touching credits.
// @Tags        billing
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.AccountResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /stripe/sync-subscription [post]
func (h *BillingHandler) SyncSubscription(c *gin.Context) {
	h.syncAndRespond(c)
}

func (h *BillingHandler) syncAndRespond(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	account, err := h.db.GetAccount(userID)
	if err != nil {
		log.Printf("Error loading account %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load account"})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "account not found"})
		return
	}

	account, err = h.bridge.SyncSubscription(c.Request.Context(), account)
	if err != nil {
		log.Printf("Error syncing subscription for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to sync subscription"})
		return
	}

	c.JSON(http.StatusOK, accountResponse(account))
}

// requireBillingAccount loads the caller's account and rejects the request
// when Stripe is not configured for this deployment.
func (h *BillingHandler) requireBillingAccount(c *gin.Context) (*models.Account, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}

	if !h.client.Configured() {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "billing is not configured"})
		return nil, false
	}

	account, err := h.db.GetAccount(userID)
	if err != nil {
		log.Printf("Error loading account %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load account"})
		return nil, false
	}
	if account == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "account not found"})
		return nil, false
	}
	return account, true
}

func (h *BillingHandler) storeCustomer(account *models.Account, customerID string) {
	if account.StripeCustomerID.Valid && account.StripeCustomerID.String == customerID {
		return
	}
	if err := h.db.SetStripeCustomer(account.ID, customerID); err != nil {
		log.Printf("Warning: failed to store stripe customer for %s: %v", account.ID, err)
	}
}
