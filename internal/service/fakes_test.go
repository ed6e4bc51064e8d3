package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// memSubs is an in-memory SubscriptionStore.
type memSubs struct {
	mu       sync.Mutex
	subs     map[string]*domain.Subscription
	failSet  map[string]bool
	dueErr   error
	setCalls int
}

func newMemSubs(subs ...*domain.Subscription) *memSubs {
	m := &memSubs{subs: make(map[string]*domain.Subscription), failSet: make(map[string]bool)}
	for _, s := range subs {
		m.subs[s.ID] = s
	}
	return m
}

func (m *memSubs) FindSubscriptionsDueOn(_ context.Context, days ...int) ([]*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	want := make(map[int]bool, len(days))
	for _, d := range days {
		want[d] = true
	}
	var out []*domain.Subscription
	for _, s := range m.subs {
		if want[s.PaymentDay] {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSubs) SetPaidFlag(_ context.Context, id string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.failSet[id] {
		return domain.PersistenceError("set paid flag", errors.New("connection reset"))
	}
	s, ok := m.subs[id]
	if !ok {
		return domain.ErrNotFoundKind
	}
	s.IsPaid = value
	return nil
}

func (m *memSubs) Create(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memSubs) Update(_ context.Context, sub *domain.Subscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.subs[sub.ID]
	if !ok || cur.AccountID != sub.AccountID {
		return false, nil
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	return true, nil
}

func (m *memSubs) Delete(_ context.Context, id, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.subs[id]
	if !ok || cur.AccountID != accountID {
		return false, nil
	}
	delete(m.subs, id)
	return true, nil
}

func (m *memSubs) FindByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSubs) ListVisible(_ context.Context, accountID string) ([]*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range m.subs {
		if s.AccountID == accountID || !s.IsPrivate {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSubs) paid(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[id].IsPaid
}

// memIdentities is an in-memory identity store.
type memIdentities struct {
	mu        sync.Mutex
	byAccount map[string]string
	upsertErr error
	findErr   error
}

func newMemIdentities() *memIdentities {
	return &memIdentities{byAccount: make(map[string]string)}
}

func (m *memIdentities) link(accountID, channelID string) *memIdentities {
	m.byAccount[accountID] = channelID
	return m
}

func (m *memIdentities) FindLinkedIdentity(_ context.Context, accountID string) (*domain.LinkedIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	ch, ok := m.byAccount[accountID]
	if !ok {
		return nil, nil
	}
	return &domain.LinkedIdentity{AccountID: accountID, ExternalChannelID: ch}, nil
}

func (m *memIdentities) UpsertLinkedIdentity(_ context.Context, accountID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.byAccount[accountID] = channelID
	return nil
}

func (m *memIdentities) DeleteLinkedIdentity(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byAccount, accountID)
	return nil
}

func (m *memIdentities) channel(accountID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.byAccount[accountID]
	return ch, ok
}

// memAccounts is an in-memory AccountStore.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	findErr  error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*domain.Account)}
}

func (m *memAccounts) add(id, email, password, role string) *domain.Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a := &domain.Account{ID: id, Email: email, Password: string(hash), Role: role}
	m.accounts[id] = a
	return a
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) Create(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memAccounts) Exists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) ListAll(_ context.Context) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

// recordingTransport captures deliveries and fails for selected channels.
type recordingTransport struct {
	mu        sync.Mutex
	sent      map[string][]string
	failFor   map[string]error
	inFlight  int
	maxFlight int
	delay     time.Duration
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{sent: make(map[string][]string), failFor: make(map[string]error)}
}

func (t *recordingTransport) Deliver(ctx context.Context, channelID, text string) error {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > t.maxFlight {
		t.maxFlight = t.inFlight
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight--
		t.mu.Unlock()
	}()

	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failFor[channelID]; err != nil {
		return err
	}
	t.sent[channelID] = append(t.sent[channelID], text)
	return nil
}

func (t *recordingTransport) count(channelID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent[channelID])
}

func (t *recordingTransport) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, msgs := range t.sent {
		n += len(msgs)
	}
	return n
}

// memJournal records sweep runs.
type memJournal struct {
	mu   sync.Mutex
	runs []*domain.SweepRun
	err  error
}

func (j *memJournal) Record(_ context.Context, run *domain.SweepRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.runs = append(j.runs, run)
	return nil
}
