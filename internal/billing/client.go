package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"zarta-backend/internal/config"
	"zarta-backend/internal/models"
)

// Client wraps the Stripe API surface the application uses. When no secret
// key is configured the billing endpoints report themselves unavailable;
// nothing else in the application depends on Stripe being reachable.
type Client struct {
	sc            *stripe.Client
	webhookSecret string
	plans         map[string]Plan
	packPriceID   string
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		webhookSecret: cfg.StripeWebhookSecret,
		plans:         NewPlanTable(cfg),
		packPriceID:   cfg.StripePriceCreditPack,
	}
	if cfg.StripeSecretKey != "" {
		c.sc = stripe.NewClient(cfg.StripeSecretKey)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.sc != nil
}

// PlanForPrice resolves a Stripe price id to a subscription plan.
func (c *Client) PlanForPrice(priceID string) (Plan, bool) {
	plan, ok := c.plans[priceID]
	return plan, ok
}

// IsCreditPack reports whether the price id is the one-time credit pack.
func (c *Client) IsCreditPack(priceID string) bool {
	return c.packPriceID != "" && priceID == c.packPriceID
}

// EnsureCustomer resolves the Stripe customer for an account, discovering
// one by email or creating it when the account has no stored reference yet.
func (c *Client) EnsureCustomer(ctx context.Context, account *models.Account) (string, error) {
	if account.StripeCustomerID.Valid && account.StripeCustomerID.String != "" {
		return account.StripeCustomerID.String, nil
	}

	if account.Email != "" {
		existing, err := c.FindCustomerByEmail(ctx, account.Email)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	customer, err := c.sc.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email:    stripe.String(account.Email),
		Metadata: map[string]string{"user_id": account.ID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return customer.ID, nil
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	for customer, err := range c.sc.V1Customers.List(ctx, &stripe.CustomerListParams{
		Email: stripe.String(email),
	}) {
		if err != nil {
			return nil, fmt.Errorf("failed to list stripe customers: %w", err)
		}
		return customer, nil
	}
	return nil, nil
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	customer, err := c.sc.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve stripe customer: %w", err)
	}
	return customer, nil
}

// ActiveSubscription returns the customer's active subscription, or nil
// when there is none.
func (c *Client) ActiveSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error) {
	for sub, err := range c.sc.V1Subscriptions.List(ctx, &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("active"),
	}) {
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		return sub, nil
	}
	return nil, nil
}

// CreateCheckoutSession opens a checkout for a subscription plan or, for
// the credit pack price, a one-time payment.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	mode := stripe.CheckoutSessionModeSubscription
	if c.IsCreditPack(priceID) {
		mode = stripe.CheckoutSessionModePayment
	}

	params := &stripe.CheckoutSessionCreateParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}

	session, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	session, err := c.sc.V1BillingPortalSessions.Create(ctx, &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}
	return session, nil
}

// ConstructEvent verifies the Stripe signature header against the shared
// signing secret and parses the event.
func (c *Client) ConstructEvent(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}
