package supabase

import (
	"database/sql"
	"errors"
	"fmt"

	"zarta-backend/internal/models"
)

const accountColumns = `id, email, display_name, avatar_url, stripe_customer_id, subscription_status, credits, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.AvatarURL, &a.StripeCustomerID,
		&a.SubscriptionStatus, &a.Credits, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount fetches an account by user id. Absence is not an error: the
// caller decides whether to lazily create the record.
func (d *DatabaseClient) GetAccount(userID string) (*models.Account, error) {
	account, err := scanAccount(d.db.QueryRow(
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (d *DatabaseClient) GetAccountByEmail(email string) (*models.Account, error) {
	account, err := scanAccount(d.db.QueryRow(
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return account, nil
}

func (d *DatabaseClient) GetAccountByStripeCustomer(customerID string) (*models.Account, error) {
	account, err := scanAccount(d.db.QueryRow(
		`SELECT `+accountColumns+` FROM accounts WHERE stripe_customer_id = $1`, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by stripe customer: %w", err)
	}
	return account, nil
}

// CreateAccount is idempotent: if a concurrent request already created the
// record, the existing account is returned rather than an error.
func (d *DatabaseClient) CreateAccount(userID, email string) (*models.Account, error) {
	_, err := d.db.Exec(`
		INSERT INTO accounts (id, email, subscription_status, credits)
		VALUES ($1, $2, 'free', 0)
		ON CONFLICT (id) DO NOTHING
	`, userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	account, err := d.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s missing after insert", userID)
	}
	return account, nil
}

func (d *DatabaseClient) UpdateAccountProfile(userID, displayName, avatarURL string) error {
	_, err := d.db.Exec(`
		UPDATE accounts
		SET display_name = COALESCE(NULLIF($2, ''), display_name),
		    avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
		    updated_at = NOW()
		WHERE id = $1
	`, userID, displayName, avatarURL)
	if err != nil {
		return fmt.Errorf("failed to update account profile: %w", err)
	}
	return nil
}

func (d *DatabaseClient) SetStripeCustomer(userID, customerID string) error {
	_, err := d.db.Exec(`
		UPDATE accounts SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1
	`, userID, customerID)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	return nil
}

func (d *DatabaseClient) SetSubscriptionStatus(userID, tier string) error {
	_, err := d.db.Exec(`
		UPDATE accounts SET subscription_status = $2, updated_at = NOW() WHERE id = $1
	`, userID, tier)
	if err != nil {
		return fmt.Errorf("failed to set subscription status: %w", err)
	}
	return nil
}

// TopUpCredits raises the balance to at least amount. Sync never reduces an
// existing higher balance, it only tops up.
func (d *DatabaseClient) TopUpCredits(userID string, amount float64) error {
	_, err := d.db.Exec(`
		UPDATE accounts SET credits = GREATEST(credits, $2), updated_at = NOW() WHERE id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to top up credits: %w", err)
	}
	return nil
}

// AddCredits adds amount to the existing balance (webhook allocations and
// renewal top-ups).
func (d *DatabaseClient) AddCredits(userID string, amount float64) error {
	_, err := d.db.Exec(`
		UPDATE accounts SET credits = credits + $2, updated_at = NOW() WHERE id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	return nil
}

// DeductCredits charges amount against the balance in a single guarded
// update so concurrent requests from the same user cannot lose writes.
// The balance must be strictly positive when exclusiveZero is set, or at
// least required otherwise; the result is clamped at zero. Returns false
// when the balance did not satisfy the threshold.
func (d *DatabaseClient) DeductCredits(userID string, required, amount float64, exclusiveZero bool) (bool, error) {
	query := `
		UPDATE accounts
		SET credits = GREATEST(credits - $2, 0), updated_at = NOW()
		WHERE id = $1 AND credits >= $3`
	if exclusiveZero {
		query = `
		UPDATE accounts
		SET credits = GREATEST(credits - $2, 0), updated_at = NOW()
		WHERE id = $1 AND credits > $3`
		required = 0
	}

	res, err := d.db.Exec(query, userID, amount, required)
	if err != nil {
		return false, fmt.Errorf("failed to deduct credits: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deduct credits: %w", err)
	}
	return rows > 0, nil
}

func (d *DatabaseClient) DeleteAccount(userID string) error {
	_, err := d.db.Exec(`DELETE FROM accounts WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
