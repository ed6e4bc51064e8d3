package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ReminderService runs the two daily sweeps: the reset sweep clears the paid
// flag on the due day, the lookahead sweep reminds linked accounts one day
// before payment.
type ReminderService struct {
	subs          DueSubscriptionStore
	identities    IdentityStore
	clock         *BillingClock
	sender        ReminderSender
	journal       SweepJournal
	maxConcurrent int
	log           logrus.FieldLogger
	metrics       *Metrics

	// held for the whole of a sweep so reset and lookahead never overlap
	mu sync.Mutex
}

// ReminderOptions configures a ReminderService.
type ReminderOptions struct {
	MaxConcurrent int
	Journal       SweepJournal
	Metrics       *Metrics
}

// NewReminderService creates a ReminderService.
func NewReminderService(subs DueSubscriptionStore, identities IdentityStore, clock *BillingClock, sender ReminderSender, log logrus.FieldLogger, opts ReminderOptions) *ReminderService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &ReminderService{
		subs:          subs,
		identities:    identities,
		clock:         clock,
		sender:        sender,
		journal:       opts.Journal,
		maxConcurrent: opts.MaxConcurrent,
		log:           log.WithField("component", "reminders"),
		metrics:       opts.Metrics,
	}
}

// Run executes the named trigger once.
func (s *ReminderService) Run(ctx context.Context, trigger domain.Trigger) (domain.SweepSummary, error) {
	switch trigger {
	case domain.TriggerReset:
		return s.RunReset(ctx)
	case domain.TriggerLookahead:
		return s.RunLookahead(ctx)
	default:
		return domain.SweepSummary{}, domain.ErrBadRequest(fmt.Sprintf("unknown trigger %q", trigger))
	}
}

// RunReset clears is_paid on every subscription due today.
func (s *ReminderService) RunReset(ctx context.Context) (domain.SweepSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	return s.sweep(ctx, domain.TriggerReset, today, func(ctx context.Context, sub *domain.Subscription) string {
		if !sub.IsPaid {
			return OutcomeSkipped
		}
		if err := s.subs.SetPaidFlag(ctx, sub.ID, false); err != nil {
			s.log.WithFields(logrus.Fields{
				"trigger":         domain.TriggerReset,
				"subscription_id": sub.ID,
			}).WithError(err).Error("failed to reset paid flag")
			return OutcomeFailed
		}
		return OutcomeSucceeded
	})
}

// RunLookahead sends a reminder for every subscription due tomorrow whose
// account has a linked chat.
func (s *ReminderService) RunLookahead(ctx context.Context) (domain.SweepSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tomorrow := s.clock.Tomorrow()
	return s.sweep(ctx, domain.TriggerLookahead, tomorrow, func(ctx context.Context, sub *domain.Subscription) string {
		logger := s.log.WithFields(logrus.Fields{
			"trigger":         domain.TriggerLookahead,
			"subscription_id": sub.ID,
		})

		identity, err := s.identities.FindLinkedIdentity(ctx, sub.AccountID)
		if err != nil {
			logger.WithError(err).Error("failed to look up linked identity")
			return OutcomeFailed
		}
		if identity == nil {
			logger.Debug("account not linked, skipping")
			return OutcomeSkipped
		}

		reminder := domain.Reminder{
			ExternalChannelID:   identity.ExternalChannelID,
			SubscriptionID:      sub.ID,
			ServiceName:         sub.ServiceName,
			Price:               sub.Price,
			ResolvedPaymentDate: s.clock.ResolvePaymentDate(sub.PaymentDay, tomorrow.Month(), tomorrow.Year()),
			ServiceLink:         sub.ServiceLink,
		}
		if result := s.sender.Send(ctx, reminder); !result.OK() {
			return OutcomeFailed
		}
		return OutcomeSucceeded
	})
}

// sweep loads the subscriptions due on date and applies fn to each with
// bounded concurrency. fn never aborts its siblings.
func (s *ReminderService) sweep(ctx context.Context, trigger domain.Trigger, date time.Time, fn func(context.Context, *domain.Subscription) string) (domain.SweepSummary, error) {
	started := s.clock.Now()
	summary := domain.SweepSummary{
		Trigger:   trigger,
		Day:       date.Day(),
		StartedAt: started,
	}
	logger := s.log.WithFields(logrus.Fields{"trigger": trigger, "day": summary.Day})

	s.metrics.sweepRun(trigger)

	subs, err := s.subs.FindSubscriptionsDueOn(ctx, DueDays(date)...)
	if err != nil {
		logger.WithError(err).Error("failed to load due subscriptions")
		summary.Duration = s.clock.Now().Sub(started).String()
		s.record(ctx, summary)
		return summary, fmt.Errorf("%s sweep: %w", trigger, err)
	}

	var succeeded, failed, skipped atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for _, sub := range subs {
		g.Go(func() error {
			outcome := fn(ctx, sub)
			switch outcome {
			case OutcomeSucceeded:
				succeeded.Add(1)
			case OutcomeFailed:
				failed.Add(1)
			default:
				skipped.Add(1)
			}
			s.metrics.sweepItem(trigger, outcome)
			return nil
		})
	}
	g.Wait() // workers record outcomes and always return nil

	summary.Processed = len(subs)
	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())
	summary.Duration = s.clock.Now().Sub(started).String()

	logger.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("sweep finished")

	s.record(ctx, summary)
	return summary, nil
}

func (s *ReminderService) record(ctx context.Context, summary domain.SweepSummary) {
	if s.journal == nil {
		return
	}
	run := &domain.SweepRun{
		Trigger:    summary.Trigger,
		Day:        summary.Day,
		StartedAt:  summary.StartedAt,
		FinishedAt: s.clock.Now(),
		Processed:  summary.Processed,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
	}
	if err := s.journal.Record(ctx, run); err != nil {
		s.log.WithField("trigger", summary.Trigger).WithError(err).Warn("failed to record sweep run")
	}
}
