package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v84"
	"zarta-backend/internal/models"
)

// AccountStore is the slice of the account ledger the billing bridge
// writes to.
type AccountStore interface {
	GetAccount(userID string) (*models.Account, error)
	GetAccountByEmail(email string) (*models.Account, error)
	GetAccountByStripeCustomer(customerID string) (*models.Account, error)
	SetStripeCustomer(userID, customerID string) error
	SetSubscriptionStatus(userID, tier string) error
	TopUpCredits(userID string, amount float64) error
	AddCredits(userID string, amount float64) error
}

// Bridge reconciles Stripe subscription state with the local account
// ledger. Sync is best-effort: failures leave the previously known account
// state untouched and are never a hard dependency for read paths.
type Bridge struct {
	client *Client
	store  AccountStore
}

func NewBridge(client *Client, store AccountStore) *Bridge {
	return &Bridge{client: client, store: store}
}

// SyncSubscription refreshes tier and credits from Stripe. The credit
// balance is only ever raised to the plan allocation, never reduced; an
// absent subscription resets the tier to free without touching credits.
func (b *Bridge) SyncSubscription(ctx context.Context, account *models.Account) (*models.Account, error) {
	if !b.client.Configured() {
		return account, nil
	}

	customerID, err := b.client.EnsureCustomer(ctx, account)
	if err != nil {
		log.Printf("Warning: subscription sync for %s failed: %v", account.ID, err)
		return account, nil
	}
	if !account.StripeCustomerID.Valid || account.StripeCustomerID.String != customerID {
		if err := b.store.SetStripeCustomer(account.ID, customerID); err != nil {
			log.Printf("Warning: failed to store stripe customer for %s: %v", account.ID, err)
		}
	}

	sub, err := b.client.ActiveSubscription(ctx, customerID)
	if err != nil {
		log.Printf("Warning: subscription sync for %s failed: %v", account.ID, err)
		return account, nil
	}

	if sub == nil {
		if err := b.store.SetSubscriptionStatus(account.ID, models.TierFree); err != nil {
			log.Printf("Warning: failed to reset tier for %s: %v", account.ID, err)
			return account, nil
		}
	} else if plan, ok := b.planForSubscription(sub); ok {
		if err := b.store.SetSubscriptionStatus(account.ID, plan.Tier); err != nil {
			log.Printf("Warning: failed to set tier for %s: %v", account.ID, err)
			return account, nil
		}
		if err := b.store.TopUpCredits(account.ID, plan.Credits); err != nil {
			log.Printf("Warning: failed to top up credits for %s: %v", account.ID, err)
		}
	}

	refreshed, err := b.store.GetAccount(account.ID)
	if err != nil || refreshed == nil {
		return account, nil
	}
	return refreshed, nil
}

// HandleEvent applies one verified webhook event to the account ledger.
// Unknown event types are acknowledged and ignored.
func (b *Bridge) HandleEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created":
		return b.handleSubscriptionCreated(ctx, event)
	case "customer.subscription.updated":
		return b.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		return b.handleSubscriptionDeleted(event)
	case "invoice.payment_succeeded":
		return b.handleInvoicePaid(event)
	default:
		return nil
	}
}

// handleSubscriptionCreated allocates the plan's credits on top of the
// existing balance and sets the tier.
func (b *Bridge) handleSubscriptionCreated(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %w", err)
	}

	account, err := b.accountForCustomer(ctx, sub.Customer)
	if err != nil {
		return err
	}
	if account == nil {
		log.Printf("Warning: subscription created for unknown customer %s", customerID(sub.Customer))
		return nil
	}

	plan, ok := b.planForSubscription(&sub)
	if !ok {
		log.Printf("Warning: subscription for %s has unmapped price", account.ID)
		return nil
	}

	if err := b.store.SetSubscriptionStatus(account.ID, plan.Tier); err != nil {
		return err
	}
	return b.store.AddCredits(account.ID, plan.Credits)
}

// handleSubscriptionUpdated updates the tier only; credits are allocated by
// invoice payments, not plan changes.
func (b *Bridge) handleSubscriptionUpdated(event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %w", err)
	}

	account, err := b.store.GetAccountByStripeCustomer(customerID(sub.Customer))
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	plan, ok := b.planForSubscription(&sub)
	if !ok {
		return nil
	}
	return b.store.SetSubscriptionStatus(account.ID, plan.Tier)
}

// handleSubscriptionDeleted resets the tier to free. Credits the user
// already paid for stay on the account.
func (b *Bridge) handleSubscriptionDeleted(event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %w", err)
	}

	account, err := b.store.GetAccountByStripeCustomer(customerID(sub.Customer))
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}
	return b.store.SetSubscriptionStatus(account.ID, models.TierFree)
}

// webhookInvoice is the slice of the invoice payload the bridge needs. The
// raw JSON is decoded locally so invoice shape changes in the SDK do not
// break renewal top-ups.
type webhookInvoice struct {
	Customer      string `json:"customer"`
	BillingReason string `json:"billing_reason"`
	Lines         struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			Pricing struct {
				PriceDetails struct {
					Price string `json:"price"`
				} `json:"price_details"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"lines"`
}

// handleInvoicePaid tops the balance up again on subscription renewals and
// credits one-time credit pack purchases.
func (b *Bridge) handleInvoicePaid(event *stripe.Event) error {
	var invoice webhookInvoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to parse invoice event: %w", err)
	}

	account, err := b.store.GetAccountByStripeCustomer(invoice.Customer)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	for _, line := range invoice.Lines.Data {
		priceID := line.Price.ID
		if priceID == "" {
			priceID = line.Pricing.PriceDetails.Price
		}
		if plan, ok := b.client.PlanForPrice(priceID); ok {
			// The first invoice arrives alongside customer.subscription.created,
			// which already allocated the plan credits.
			if invoice.BillingReason == "subscription_create" {
				return nil
			}
			return b.store.AddCredits(account.ID, plan.Credits)
		}
		if b.client.IsCreditPack(priceID) {
			return b.store.AddCredits(account.ID, CreditPackCredits)
		}
	}
	return nil
}

func (b *Bridge) planForSubscription(sub *stripe.Subscription) (Plan, bool) {
	if sub.Items == nil {
		return Plan{}, false
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		if plan, ok := b.client.PlanForPrice(item.Price.ID); ok {
			return plan, true
		}
	}
	return Plan{}, false
}

// accountForCustomer resolves the local account for a Stripe customer,
// falling back to an email lookup for accounts that have not stored their
// customer reference yet.
func (b *Bridge) accountForCustomer(ctx context.Context, customer *stripe.Customer) (*models.Account, error) {
	id := customerID(customer)
	if id == "" {
		return nil, fmt.Errorf("event has no customer reference")
	}

	account, err := b.store.GetAccountByStripeCustomer(id)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	if !b.client.Configured() {
		return nil, nil
	}
	full, err := b.client.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if full.Email == "" {
		return nil, nil
	}

	account, err = b.store.GetAccountByEmail(full.Email)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if err := b.store.SetStripeCustomer(account.ID, id); err != nil {
			log.Printf("Warning: failed to link stripe customer %s: %v", id, err)
		}
	}
	return account, nil
}

func customerID(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}
