package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/subremind/backend/internal/domain"
)

// SubscriptionRepository handles database operations for subscriptions.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// price is read back as text so decimal precision survives the round trip.
const subscriptionColumns = `id, user_id, service_name, price::text, payment_day, service_link, is_private, is_paid, created_at, updated_at`

// Create inserts a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, service_name, price, payment_day, service_link, is_private, is_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.AccountID, sub.ServiceName, sub.Price.String(), sub.PaymentDay,
		sub.ServiceLink, sub.IsPrivate, sub.IsPaid, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of a subscription owned by sub.AccountID.
// It reports false when no such subscription exists.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) (bool, error) {
	query := `
		UPDATE subscriptions
		SET service_name = $1, price = $2::numeric, payment_day = $3, service_link = $4, is_private = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8
	`
	tag, err := r.db.Exec(ctx, query,
		sub.ServiceName, sub.Price.String(), sub.PaymentDay, sub.ServiceLink, sub.IsPrivate, sub.UpdatedAt,
		sub.ID, sub.AccountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a subscription owned by accountID.
func (r *SubscriptionRepository) Delete(ctx context.Context, id, accountID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindByID returns a subscription by ID, or nil if there is none.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// ListVisible returns the account's own subscriptions plus every public one.
// An empty accountID lists public subscriptions only.
func (r *SubscriptionRepository) ListVisible(ctx context.Context, accountID string) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = $1 OR is_private = FALSE
		ORDER BY payment_day, service_name
	`
	return r.query(ctx, query, accountID)
}

// FindSubscriptionsDueOn returns every subscription whose payment day is one of days.
func (r *SubscriptionRepository) FindSubscriptionsDueOn(ctx context.Context, days ...int) ([]*domain.Subscription, error) {
	if len(days) == 0 {
		return []*domain.Subscription{}, nil
	}
	pgDays := make([]int32, len(days))
	for i, d := range days {
		pgDays[i] = int32(d)
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE payment_day = ANY($1) ORDER BY id`
	return r.query(ctx, query, pgDays)
}

// SetPaidFlag sets is_paid on a subscription. A missing row is reported as not found.
func (r *SubscriptionRepository) SetPaidFlag(ctx context.Context, id string, value bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE subscriptions SET is_paid = $1, updated_at = NOW() WHERE id = $2`, value, id)
	if err != nil {
		return domain.PersistenceError("set paid flag", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", id, domain.ErrNotFoundKind)
	}
	return nil
}

func (r *SubscriptionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("query subscriptions", err)
	}
	defer rows.Close()

	subs := []*domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var price string
	var day int16
	err := row.Scan(
		&sub.ID, &sub.AccountID, &sub.ServiceName, &price, &day,
		&sub.ServiceLink, &sub.IsPrivate, &sub.IsPaid, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.PaymentDay = int(day)
	sub.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return &sub, nil
}
