package models

import (
	"database/sql"
	"time"
)

// Subscription tiers. Credits are eventually consistent with Stripe and
// reconciled by explicit sync calls, never by a transactional guarantee.
const (
	TierFree  = "free"
	TierBasic = "basic"
	TierPro   = "pro"
	TierElite = "elite"
)

type Account struct {
	ID                 string
	Email              string
	DisplayName        sql.NullString
	AvatarURL          sql.NullString
	StripeCustomerID   sql.NullString
	SubscriptionStatus string
	Credits            float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
