package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/subremind/backend/internal/domain"
)

// SessionStore keeps in-flight linking sessions in memory, keyed by channel id.
// Zero ttl means sessions never expire; zero size means no capacity limit.
type SessionStore struct {
	sessions *expirable.LRU[string, domain.LinkingSession]

	mu    sync.Mutex
	locks map[string]*channelLock
}

type channelLock struct {
	sync.Mutex
	refs int
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: expirable.NewLRU[string, domain.LinkingSession](size, nil, ttl),
		locks:    make(map[string]*channelLock),
	}
}

// Lock serialises work for one channel. Callers must invoke the returned func.
// Waiters are not queued in strict arrival order.
func (s *SessionStore) Lock(channelID string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[channelID]
	if !ok {
		l = &channelLock{}
		s.locks[channelID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, channelID)
		}
		s.mu.Unlock()
	}
}

// Get returns the live session for a channel.
func (s *SessionStore) Get(channelID string) (domain.LinkingSession, bool) {
	return s.sessions.Get(channelID)
}

// Put stores session under its channel id, replacing any previous one.
func (s *SessionStore) Put(session domain.LinkingSession) {
	s.sessions.Add(session.ChannelID, session)
}

// Delete removes a session and reports whether one existed.
func (s *SessionStore) Delete(channelID string) bool {
	return s.sessions.Remove(channelID)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
