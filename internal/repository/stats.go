package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository runs the aggregate queries for the admin overview.
type StatsRepository struct {
	db *pgxpool.Pool
}

func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) CountAccounts(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

// CountLinked returns how many accounts have a linked chat.
func (r *StatsRepository) CountLinked(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM linked_identities`)
}

// CountActive returns the number of subscriptions and how many of them are paid.
func (r *StatsRepository) CountActive(ctx context.Context) (total, paid int, err error) {
	err = r.db.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_paid) FROM subscriptions`).Scan(&total, &paid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return total, paid, nil
}

func (r *StatsRepository) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to run %q: %w", query, err)
	}
	return n, nil
}
