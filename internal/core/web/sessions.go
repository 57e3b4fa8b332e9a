package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seckatie/urlhealth/internal/core/render"
	"github.com/seckatie/urlhealth/internal/core/view"
)

// session is one dashboard page: its own Store and Dispatcher.
type session struct {
	id         string
	dispatcher *view.Dispatcher
	locale     render.Locale

	// ctx outlives the HTTP requests that start actions and is cancelled
	// when the session is evicted.
	ctx    context.Context
	cancel context.CancelFunc

	unsubscribe func()

	mu       sync.Mutex
	lastSeen time.Time
	conns    int
}

func (s *session) store() *view.Store { return s.dispatcher.Store() }

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// attach and detach count live connections; attached sessions never expire.
func (s *session) attach() {
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()
}

func (s *session) detach(now time.Time) {
	s.mu.Lock()
	s.conns--
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns == 0 && now.Sub(s.lastSeen) > ttl
}

func (s *session) close() {
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// sessionStore holds live sessions keyed by id.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// create registers a new session with a fresh id. The session's context is
// derived from parent.
func (ss *sessionStore) create(parent context.Context, d *view.Dispatcher, locale render.Locale) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:         uuid.NewString(),
		dispatcher: d,
		locale:     locale,
		ctx:        ctx,
		cancel:     cancel,
		lastSeen:   ss.now(),
	}

	ss.mu.Lock()
	ss.sessions[s.id] = s
	ss.mu.Unlock()
	return s
}

// get returns the session and marks it as used.
func (ss *sessionStore) get(id string) (*session, bool) {
	ss.mu.RLock()
	s, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if ok {
		s.touch(ss.now())
	}
	return s, ok
}

func (ss *sessionStore) len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// evictExpired closes and removes sessions idle for longer than the TTL.
func (ss *sessionStore) evictExpired() int {
	now := ss.now()

	ss.mu.Lock()
	var expired []*session
	for id, s := range ss.sessions {
		if s.expired(now, ss.ttl) {
			expired = append(expired, s)
			delete(ss.sessions, id)
		}
	}
	ss.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	return len(expired)
}

// run evicts expired sessions periodically until ctx is done, then closes
// every remaining session.
func (ss *sessionStore) run(ctx context.Context) {
	interval := ss.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			ss.closeAll()
			return
		case <-t.C:
			ss.evictExpired()
		}
	}
}

func (ss *sessionStore) closeAll() {
	ss.mu.Lock()
	sessions := ss.sessions
	ss.sessions = make(map[string]*session)
	ss.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
