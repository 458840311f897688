package billing

import (
	"zarta-backend/internal/config"
	"zarta-backend/internal/models"
)

// Plan maps a Stripe price to a subscription tier and its monthly credit
// allocation.
type Plan struct {
	Tier    string
	Credits float64
	PriceID string
}

// Monthly credit allocations per tier, plus the one-time credit pack.
const (
	BasicCredits      = 100
	ProCredits        = 250
	EliteCredits      = 500
	CreditPackCredits = 100
)

// NewPlanTable builds the price-id keyed plan table from configuration.
// Prices with no configured id are simply absent from the table.
func NewPlanTable(cfg *config.Config) map[string]Plan {
	plans := make(map[string]Plan)
	add := func(priceID, tier string, credits float64) {
		if priceID != "" {
			plans[priceID] = Plan{Tier: tier, Credits: credits, PriceID: priceID}
		}
	}
	add(cfg.StripePriceBasic, models.TierBasic, BasicCredits)
	add(cfg.StripePricePro, models.TierPro, ProCredits)
	add(cfg.StripePriceElite, models.TierElite, EliteCredits)
	return plans
}
