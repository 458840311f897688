package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"zarta-backend/internal/billing"
	"zarta-backend/internal/models"
)

type WebhookHandler struct {
	client *billing.Client
	bridge *billing.Bridge
}

func NewWebhookHandler(client *billing.Client, bridge *billing.Bridge) *WebhookHandler {
	return &WebhookHandler{client: client, bridge: bridge}
}

// HandleStripeWebhook godoc
// @Summary     Receive Stripe events
// @Description Verifies the Stripe-Signature header and applies subscription and invoice events to the account ledger. Unknown event types are acknowledged.
// @Tags        billing
// @Accept      json
// @Produce     json
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /stripe/webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read request body"})
		return
	}

	event, err := h.client.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Printf("Warning: rejected stripe webhook: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid webhook signature"})
		return
	}

	if err := h.bridge.HandleEvent(c.Request.Context(), event); err != nil {
		log.Printf("Error handling stripe event %s (%s): %v", event.ID, event.Type, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": "true"})
}
