package service

import (
	"context"
	"time"

	"github.com/subremind/backend/internal/domain"
)

// Counters are the aggregate queries behind the admin overview.
type Counters interface {
	CountAccounts(ctx context.Context) (int, error)
	CountLinked(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (total, paid int, err error)
}

// StatsService assembles the admin overview.
type StatsService struct {
	counters  Counters
	sessions  *SessionStore
	scheduler *Scheduler
}

func NewStatsService(counters Counters, sessions *SessionStore, scheduler *Scheduler) *StatsService {
	return &StatsService{counters: counters, sessions: sessions, scheduler: scheduler}
}

func (s *StatsService) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{NextRuns: map[domain.Trigger]time.Time{}}

	var err error
	if stats.Accounts, err = s.counters.CountAccounts(ctx); err != nil {
		return nil, domain.ErrInternal("failed to count accounts", err)
	}
	if stats.LinkedAccounts, err = s.counters.CountLinked(ctx); err != nil {
		return nil, domain.ErrInternal("failed to count linked accounts", err)
	}
	if stats.Subscriptions, stats.PaidSubscriptions, err = s.counters.CountActive(ctx); err != nil {
		return nil, domain.ErrInternal("failed to count subscriptions", err)
	}
	if s.sessions != nil {
		stats.PendingLinks = s.sessions.Len()
	}
	if s.scheduler != nil {
		stats.NextRuns = s.scheduler.NextRuns(time.Now())
	}
	return stats, nil
}
