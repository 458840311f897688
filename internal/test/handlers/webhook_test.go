package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"zarta-backend/internal/billing"
	"zarta-backend/internal/config"
	"zarta-backend/internal/handlers"
)

func webhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	client := billing.NewClient(&config.Config{StripeWebhookSecret: "whsec_test"})
	handler := handlers.NewWebhookHandler(client, billing.NewBridge(client, nil))

	router := gin.New()
	router.POST("/api/v1/stripe/webhook", handler.HandleStripeWebhook)
	return router
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	router := webhookRouter()

	req, _ := http.NewRequest("POST", "/api/v1/stripe/webhook", bytes.NewBufferString(`{"type": "invoice.payment_succeeded"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "signature")
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	router := webhookRouter()

	req, _ := http.NewRequest("POST", "/api/v1/stripe/webhook", bytes.NewBufferString(`{"type": "invoice.payment_succeeded"}`))
	req.Header.Set("Stripe-Signature", "t=1700000000,v1=deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "signature")
}
