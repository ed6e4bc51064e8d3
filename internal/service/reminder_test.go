package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subremind/backend/internal/domain"
)

func sub(id, accountID string, day int, paid bool) *domain.Subscription {
	return &domain.Subscription{
		ID:          id,
		AccountID:   accountID,
		ServiceName: "svc-" + id,
		Price:       decimal.RequireFromString("9.99"),
		PaymentDay:  day,
		ServiceLink: "https://example.com/" + id,
		IsPaid:      paid,
	}
}

type reminderFixture struct {
	subs       *memSubs
	identities *memIdentities
	transport  *recordingTransport
	journal    *memJournal
	metrics    *Metrics
	svc        *ReminderService
}

func newReminderFixture(now time.Time, subs ...*domain.Subscription) *reminderFixture {
	f := &reminderFixture{
		subs:       newMemSubs(subs...),
		identities: newMemIdentities(),
		transport:  newRecordingTransport(),
		journal:    &memJournal{},
		metrics:    NewMetrics(prometheus.NewRegistry()),
	}
	log := quietLogger()
	clock := NewBillingClock(fixedClock(now), time.UTC)
	dispatcher := NewDispatcher(f.transport, time.Second, log, f.metrics)
	f.svc = NewReminderService(f.subs, f.identities, clock, dispatcher, log, ReminderOptions{
		MaxConcurrent: 4,
		Journal:       f.journal,
		Metrics:       f.metrics,
	})
	return f
}

func TestRunResetClearsOnlyTodaysPaidFlags(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 15),
		sub("a", "acc-1", 15, true),
		sub("b", "acc-2", 15, false),
		sub("c", "acc-3", 14, true),
		sub("d", "acc-4", 16, true),
	)

	summary, err := f.svc.RunReset(context.Background())
	require.NoError(t, err)

	assert.False(t, f.subs.paid("a"))
	assert.False(t, f.subs.paid("b"))
	assert.True(t, f.subs.paid("c"))
	assert.True(t, f.subs.paid("d"))

	assert.Equal(t, domain.TriggerReset, summary.Trigger)
	assert.Equal(t, 15, summary.Day)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, f.transport.total(), "reset never sends messages")
}

func TestRunResetIsIdempotent(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 15),
		sub("a", "acc-1", 15, true),
		sub("b", "acc-2", 15, true),
		sub("c", "acc-3", 3, true),
	)

	_, err := f.svc.RunReset(context.Background())
	require.NoError(t, err)
	first := map[string]bool{"a": f.subs.paid("a"), "b": f.subs.paid("b"), "c": f.subs.paid("c")}

	second, err := f.svc.RunReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, map[string]bool{"a": f.subs.paid("a"), "b": f.subs.paid("b"), "c": f.subs.paid("c")})
	assert.Equal(t, 2, second.Skipped)
	assert.Zero(t, second.Succeeded)
}

func TestRunResetOnMonthEndIncludesLaterDays(t *testing.T) {
	f := newReminderFixture(date(2025, time.April, 30),
		sub("thirty", "acc-1", 30, true),
		sub("thirty-one", "acc-2", 31, true),
	)

	_, err := f.svc.RunReset(context.Background())
	require.NoError(t, err)
	assert.False(t, f.subs.paid("thirty"))
	assert.False(t, f.subs.paid("thirty-one"))
}

func TestRunResetContinuesAfterPersistenceFailure(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 15),
		sub("a", "acc-1", 15, true),
		sub("b", "acc-2", 15, true),
	)
	f.subs.failSet["a"] = true

	summary, err := f.svc.RunReset(context.Background())
	require.NoError(t, err)

	assert.True(t, f.subs.paid("a"))
	assert.False(t, f.subs.paid("b"))
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRunLookaheadOneReminderPerLinkedSubscription(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 14),
		sub("a", "acc-1", 15, false),
		sub("b", "acc-1", 15, true),
		sub("c", "acc-2", 15, false),
		sub("d", "acc-3", 16, false),
	)
	f.identities.link("acc-1", "100").link("acc-3", "300")

	summary, err := f.svc.RunLookahead(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.transport.count("100"), "one per due subscription of the linked account")
	assert.Zero(t, f.transport.count("300"), "not due tomorrow")
	assert.Equal(t, 2, f.transport.total(), "unlinked account gets nothing")

	assert.Equal(t, 15, summary.Day)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
}

func TestRunLookaheadMonthEndScenario(t *testing.T) {
	f := newReminderFixture(date(2025, time.April, 29), sub("yearly", "acc-1", 31, false))
	f.identities.link("acc-1", "42")

	_, err := f.svc.RunLookahead(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, f.transport.count("42"))
	msg := f.transport.sent["42"][0]
	assert.Contains(t, msg, "30.04.2025")
	assert.Contains(t, msg, "svc-yearly")
	assert.Contains(t, msg, "9.99")
	assert.Contains(t, msg, "https://example.com/yearly")
}

func TestRunLookaheadResolvesAgainstNextMonth(t *testing.T) {
	f := newReminderFixture(date(2025, time.January, 31), sub("feb", "acc-1", 1, false))
	f.identities.link("acc-1", "7")

	_, err := f.svc.RunLookahead(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.transport.count("7"))
	assert.Contains(t, f.transport.sent["7"][0], "01.02.2025")
}

func TestRunLookaheadIsolatesTransportFailures(t *testing.T) {
	var subs []*domain.Subscription
	for i := 0; i < 10; i++ {
		subs = append(subs, sub(fmt.Sprintf("s%d", i), fmt.Sprintf("acc-%d", i), 15, false))
	}
	f := newReminderFixture(date(2025, time.March, 14), subs...)
	for i := 0; i < 10; i++ {
		f.identities.link(fmt.Sprintf("acc-%d", i), fmt.Sprintf("ch-%d", i))
	}
	f.transport.failFor["ch-3"] = errors.New("chat not found")
	f.transport.failFor["ch-7"] = errors.New("bot blocked")

	summary, err := f.svc.RunLookahead(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, f.transport.total())
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.reminders.WithLabelValues("failed")))
	assert.Equal(t, float64(8), testutil.ToFloat64(f.metrics.reminders.WithLabelValues("delivered")))
}

func TestRunLookaheadBoundsConcurrency(t *testing.T) {
	var subs []*domain.Subscription
	for i := 0; i < 12; i++ {
		subs = append(subs, sub(fmt.Sprintf("s%02d", i), fmt.Sprintf("acc-%d", i), 15, false))
	}
	f := newReminderFixture(date(2025, time.March, 14), subs...)
	for i := 0; i < 12; i++ {
		f.identities.link(fmt.Sprintf("acc-%d", i), fmt.Sprintf("ch-%d", i))
	}
	f.transport.delay = 20 * time.Millisecond

	_, err := f.svc.RunLookahead(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, f.transport.total())
	assert.LessOrEqual(t, f.transport.maxFlight, 4)
}

func TestRunLookaheadIdentityLookupFailure(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 14), sub("a", "acc-1", 15, false))
	f.identities.findErr = domain.PersistenceError("find identity", errors.New("timeout"))

	summary, err := f.svc.RunLookahead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, f.transport.total())
}

func TestSweepListingFailureIsReported(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 14), sub("a", "acc-1", 15, false))
	f.subs.dueErr = domain.PersistenceError("find due", errors.New("db down"))

	_, err := f.svc.RunLookahead(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	require.Len(t, f.journal.runs, 1)
	assert.Zero(t, f.journal.runs[0].Processed)
}

func TestSweepIsJournaledAndCounted(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 14), sub("a", "acc-1", 15, false))
	f.identities.link("acc-1", "1")

	_, err := f.svc.Run(context.Background(), domain.TriggerLookahead)
	require.NoError(t, err)
	_, err = f.svc.Run(context.Background(), domain.TriggerReset)
	require.NoError(t, err)

	require.Len(t, f.journal.runs, 2)
	assert.Equal(t, domain.TriggerLookahead, f.journal.runs[0].Trigger)
	assert.Equal(t, 1, f.journal.runs[0].Succeeded)
	assert.Equal(t, domain.TriggerReset, f.journal.runs[1].Trigger)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.sweepRuns.WithLabelValues("lookahead")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.sweepItems.WithLabelValues("lookahead", OutcomeSucceeded)))
}

func TestJournalFailureDoesNotFailSweep(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 15), sub("a", "acc-1", 15, true))
	f.journal.err = errors.New("journal unavailable")

	summary, err := f.svc.RunReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRunUnknownTrigger(t *testing.T) {
	f := newReminderFixture(date(2025, time.March, 15))
	_, err := f.svc.Run(context.Background(), domain.Trigger("weekly"))
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
}

func TestFormatReminder(t *testing.T) {
	msg := FormatReminder(domain.Reminder{
		ServiceName:         "Music",
		Price:               decimal.RequireFromString("199"),
		ResolvedPaymentDate: time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, msg, "Music")
	assert.Contains(t, msg, "199")
	assert.Contains(t, msg, "28.02.2025")
	assert.NotContains(t, msg, "Link:")
	assert.True(t, strings.HasSuffix(msg, "Payment is due tomorrow!"))
}

func TestDispatcherTimeout(t *testing.T) {
	transport := newRecordingTransport()
	transport.delay = time.Second
	d := NewDispatcher(transport, 10*time.Millisecond, quietLogger(), nil)

	result := d.Send(context.Background(), domain.Reminder{ExternalChannelID: "1"})
	assert.False(t, result.OK())
	assert.ErrorIs(t, result.Cause, domain.ErrTransportFailure)
	assert.ErrorIs(t, result.Cause, context.DeadlineExceeded)
}

// gatedSubs blocks the first due-subscription query until released.
type gatedSubs struct {
	*memSubs
	calls   atomic.Int32
	entered chan int
	release chan struct{}
}

func (g *gatedSubs) FindSubscriptionsDueOn(ctx context.Context, days ...int) ([]*domain.Subscription, error) {
	n := int(g.calls.Add(1))
	g.entered <- n
	if n == 1 {
		<-g.release
	}
	return g.memSubs.FindSubscriptionsDueOn(ctx, days...)
}

func TestResetAndLookaheadNeverOverlap(t *testing.T) {
	gate := &gatedSubs{
		memSubs: newMemSubs(sub("a", "acc-1", 15, true), sub("b", "acc-2", 16, false)),
		entered: make(chan int, 2),
		release: make(chan struct{}),
	}
	identities := newMemIdentities()
	identities.link("acc-2", "chat-2")
	transport := newRecordingTransport()
	log := quietLogger()
	clock := NewBillingClock(fixedClock(date(2025, time.March, 15)), time.UTC)
	svc := NewReminderService(gate, identities, clock, NewDispatcher(transport, time.Second, log, nil), log, ReminderOptions{MaxConcurrent: 2})

	resetDone := make(chan domain.SweepSummary, 1)
	go func() {
		summary, err := svc.RunReset(context.Background())
		assert.NoError(t, err)
		resetDone <- summary
	}()
	require.Equal(t, 1, <-gate.entered)

	lookaheadDone := make(chan domain.SweepSummary, 1)
	go func() {
		summary, err := svc.RunLookahead(context.Background())
		assert.NoError(t, err)
		lookaheadDone <- summary
	}()

	select {
	case n := <-gate.entered:
		t.Fatalf("lookahead queried the store (call %d) while reset was running", n)
	case <-lookaheadDone:
		t.Fatal("lookahead finished while reset was running")
	case <-time.After(200 * time.Millisecond):
	}

	close(gate.release)
	reset := <-resetDone
	assert.Equal(t, 1, reset.Succeeded)

	assert.Equal(t, 2, <-gate.entered)
	lookahead := <-lookaheadDone
	assert.Equal(t, 1, lookahead.Succeeded)
}
