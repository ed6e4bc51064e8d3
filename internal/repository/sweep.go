package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subremind/backend/internal/domain"
)

// SweepRepository journals scheduler runs in the sweep_runs table.
type SweepRepository struct {
	db *pgxpool.Pool
}

// NewSweepRepository creates a new SweepRepository.
func NewSweepRepository(db *pgxpool.Pool) *SweepRepository {
	return &SweepRepository{db: db}
}

// Record inserts a finished run.
func (r *SweepRepository) Record(ctx context.Context, run *domain.SweepRun) error {
	query := `
		INSERT INTO sweep_runs (trigger, day, started_at, finished_at, processed, succeeded, failed, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		string(run.Trigger), run.Day, run.StartedAt, run.FinishedAt,
		run.Processed, run.Succeeded, run.Failed, run.Skipped,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to record sweep run: %w", err)
	}
	return nil
}

// ListRecent returns the latest runs, newest first.
func (r *SweepRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SweepRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, trigger, day, started_at, finished_at, processed, succeeded, failed, skipped
		FROM sweep_runs ORDER BY started_at DESC LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.SweepRun{}
	for rows.Next() {
		var run domain.SweepRun
		var trigger string
		var day int16
		if err := rows.Scan(&run.ID, &trigger, &day, &run.StartedAt, &run.FinishedAt,
			&run.Processed, &run.Succeeded, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		run.Trigger = domain.Trigger(trigger)
		run.Day = int(day)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
