package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
)

// TriggerRunner executes a named sweep.
type TriggerRunner interface {
	Run(ctx context.Context, trigger domain.Trigger) (domain.SweepSummary, error)
}

// Scheduler fires the reset and lookahead sweeps once a day at fixed
// wall-clock times in the billing timezone.
type Scheduler struct {
	cron    *cron.Cron
	runner  TriggerRunner
	loc     *time.Location
	log     logrus.FieldLogger
	entries map[domain.Trigger]cron.EntryID

	mu   sync.Mutex
	base context.Context
}

// NewScheduler registers both triggers. Specs are five-field cron expressions
// such as "1 0 * * *".
func NewScheduler(runner TriggerRunner, loc *time.Location, resetSpec, lookaheadSpec string, log logrus.FieldLogger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := log.WithField("component", "scheduler")
	cl := cronLogger{log: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		loc:     loc,
		log:     logger,
		entries: make(map[domain.Trigger]cron.EntryID, 2),
		base:    context.Background(),
	}

	for trigger, spec := range map[domain.Trigger]string{
		domain.TriggerReset:     resetSpec,
		domain.TriggerLookahead: lookaheadSpec,
	} {
		id, err := s.cron.AddFunc(spec, s.job(trigger))
		if err != nil {
			return nil, fmt.Errorf("schedule %s trigger %q: %w", trigger, spec, err)
		}
		s.entries[trigger] = id
	}
	return s, nil
}

func (s *Scheduler) job(trigger domain.Trigger) func() {
	return func() {
		s.mu.Lock()
		ctx := s.base
		s.mu.Unlock()

		s.log.WithField("trigger", trigger).Info("trigger fired")
		if _, err := s.runner.Run(ctx, trigger); err != nil {
			s.log.WithField("trigger", trigger).WithError(err).Error("sweep failed")
		}
	}
}

// Start begins firing triggers. Cancelling ctx stops new firings; a sweep
// already running keeps ctx's values but not its cancellation and runs to
// completion. Wait on Stop() for it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	for trigger, at := range s.NextRuns(time.Now()) {
		s.log.WithFields(logrus.Fields{"trigger": trigger, "next": at.Format(time.RFC3339)}).Info("trigger scheduled")
	}

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow executes a trigger immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, trigger domain.Trigger) (domain.SweepSummary, error) {
	if !trigger.Valid() {
		return domain.SweepSummary{}, domain.ErrBadRequest(fmt.Sprintf("unknown trigger %q", trigger))
	}
	return s.runner.Run(ctx, trigger)
}

// NextRuns returns when each trigger fires next after now.
func (s *Scheduler) NextRuns(now time.Time) map[domain.Trigger]time.Time {
	now = now.In(s.loc)
	next := make(map[domain.Trigger]time.Time, len(s.entries))
	for trigger, id := range s.entries {
		entry := s.cron.Entry(id)
		if entry.Schedule == nil {
			continue
		}
		next[trigger] = entry.Schedule.Next(now)
	}
	return next
}

// cronLogger routes cron's internal logging to logrus.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
