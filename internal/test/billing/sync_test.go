package billing_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"zarta-backend/internal/billing"
	"zarta-backend/internal/config"
	"zarta-backend/internal/models"
)

type fakeStore struct {
	accounts map[string]*models.Account

	tierSet     map[string]string
	creditsAdds map[string]float64
	topUps      map[string]float64
}

func newFakeStore(accounts ...*models.Account) *fakeStore {
	s := &fakeStore{
		accounts:    make(map[string]*models.Account),
		tierSet:     make(map[string]string),
		creditsAdds: make(map[string]float64),
		topUps:      make(map[string]float64),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeStore) GetAccount(userID string) (*models.Account, error) {
	return s.accounts[userID], nil
}

func (s *fakeStore) GetAccountByEmail(email string) (*models.Account, error) {
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetAccountByStripeCustomer(customerID string) (*models.Account, error) {
	for _, a := range s.accounts {
		if a.StripeCustomerID.Valid && a.StripeCustomerID.String == customerID {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SetStripeCustomer(userID, customerID string) error {
	s.accounts[userID].StripeCustomerID = sql.NullString{String: customerID, Valid: true}
	return nil
}

func (s *fakeStore) SetSubscriptionStatus(userID, tier string) error {
	s.tierSet[userID] = tier
	s.accounts[userID].SubscriptionStatus = tier
	return nil
}

func (s *fakeStore) TopUpCredits(userID string, amount float64) error {
	s.topUps[userID] = amount
	if s.accounts[userID].Credits < amount {
		s.accounts[userID].Credits = amount
	}
	return nil
}

func (s *fakeStore) AddCredits(userID string, amount float64) error {
	s.creditsAdds[userID] += amount
	s.accounts[userID].Credits += amount
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		StripeWebhookSecret:   "whsec_test",
		StripePriceBasic:      "price_basic",
		StripePricePro:        "price_pro",
		StripePriceElite:      "price_elite",
		StripePriceCreditPack: "price_pack",
	}
}

func customerAccount(id, customerID string) *models.Account {
	return &models.Account{
		ID:                 id,
		Email:              id + "@example.com",
		SubscriptionStatus: models.TierBasic,
		Credits:            42,
		StripeCustomerID:   sql.NullString{String: customerID, Valid: true},
	}
}

func event(t *testing.T, eventType string, payload string) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func TestHandleEvent_SubscriptionCreatedAddsCredits(t *testing.T) {
	store := newFakeStore(customerAccount("user-1", "cus_1"))
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "customer.subscription.created", `{
		"customer": "cus_1",
		"items": {"data": [{"price": {"id": "price_pro"}}]}
	}`))

	require.NoError(t, err)
	assert.Equal(t, models.TierPro, store.tierSet["user-1"])
	assert.Equal(t, float64(billing.ProCredits), store.creditsAdds["user-1"])
}

func TestHandleEvent_SubscriptionUpdatedChangesTierOnly(t *testing.T) {
	store := newFakeStore(customerAccount("user-1", "cus_1"))
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "customer.subscription.updated", `{
		"customer": "cus_1",
		"items": {"data": [{"price": {"id": "price_elite"}}]}
	}`))

	require.NoError(t, err)
	assert.Equal(t, models.TierElite, store.tierSet["user-1"])
	assert.Empty(t, store.creditsAdds)
}

func TestHandleEvent_SubscriptionDeletedResetsTierKeepsCredits(t *testing.T) {
	account := customerAccount("user-1", "cus_1")
	store := newFakeStore(account)
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "customer.subscription.deleted", `{
		"customer": "cus_1"
	}`))

	require.NoError(t, err)
	assert.Equal(t, models.TierFree, store.tierSet["user-1"])
	// Paid-for credits survive cancellation.
	assert.Equal(t, 42.0, account.Credits)
	assert.Empty(t, store.creditsAdds)
}

func TestHandleEvent_InvoicePaidTopsUpPlan(t *testing.T) {
	store := newFakeStore(customerAccount("user-1", "cus_1"))
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "invoice.payment_succeeded", `{
		"customer": "cus_1",
		"billing_reason": "subscription_cycle",
		"lines": {"data": [{"price": {"id": "price_basic"}}]}
	}`))

	require.NoError(t, err)
	assert.Equal(t, float64(billing.BasicCredits), store.creditsAdds["user-1"])
}

func TestHandleEvent_InitialInvoiceDoesNotDoubleAllocate(t *testing.T) {
	// The subscription's first invoice lands right after
	// customer.subscription.created already granted the plan credits.
	store := newFakeStore(customerAccount("user-1", "cus_1"))
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "invoice.payment_succeeded", `{
		"customer": "cus_1",
		"billing_reason": "subscription_create",
		"lines": {"data": [{"price": {"id": "price_basic"}}]}
	}`))

	require.NoError(t, err)
	assert.Empty(t, store.creditsAdds)
}

func TestHandleEvent_InvoicePaidCreditPack(t *testing.T) {
	store := newFakeStore(customerAccount("user-1", "cus_1"))
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "invoice.payment_succeeded", `{
		"customer": "cus_1",
		"billing_reason": "manual",
		"lines": {"data": [{"pricing": {"price_details": {"price": "price_pack"}}}]}
	}`))

	require.NoError(t, err)
	assert.Equal(t, float64(billing.CreditPackCredits), store.creditsAdds["user-1"])
}

func TestHandleEvent_UnknownCustomerIsIgnored(t *testing.T) {
	store := newFakeStore()
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "customer.subscription.deleted", `{
		"customer": "cus_unknown"
	}`))

	require.NoError(t, err)
	assert.Empty(t, store.tierSet)
}

func TestHandleEvent_UnknownEventTypeAcknowledged(t *testing.T) {
	store := newFakeStore()
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	err := bridge.HandleEvent(context.Background(), event(t, "charge.refunded", `{}`))

	assert.NoError(t, err)
}

func TestSyncSubscription_UnconfiguredReturnsAccountUnchanged(t *testing.T) {
	account := customerAccount("user-1", "cus_1")
	store := newFakeStore(account)
	bridge := billing.NewBridge(billing.NewClient(testConfig()), store)

	got, err := bridge.SyncSubscription(context.Background(), account)

	require.NoError(t, err)
	assert.Equal(t, account, got)
	assert.Empty(t, store.tierSet)
}

func TestConstructEvent_BadSignature(t *testing.T) {
	client := billing.NewClient(testConfig())

	_, err := client.ConstructEvent([]byte(`{"type": "invoice.payment_succeeded"}`), "t=123,v1=bogus")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestPlanTable(t *testing.T) {
	client := billing.NewClient(testConfig())

	plan, ok := client.PlanForPrice("price_elite")
	require.True(t, ok)
	assert.Equal(t, models.TierElite, plan.Tier)
	assert.Equal(t, float64(billing.EliteCredits), plan.Credits)

	_, ok = client.PlanForPrice("price_unknown")
	assert.False(t, ok)

	assert.True(t, client.IsCreditPack("price_pack"))
	assert.False(t, client.IsCreditPack("price_basic"))
}
