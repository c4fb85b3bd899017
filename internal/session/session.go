// Package session keeps per-browser console state in memory: flash
// notifications and flags such as whether releases were fetched.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCookie names the session cookie when none is configured.
	DefaultCookie = "syncconsole_session"
	defaultTTL    = 12 * time.Hour

	flagReleasesFetched = "releases_fetched"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot notification shown on the next page render.
type Flash struct {
	Kind    string
	Message string
}

// Session is the state of one browser.
type Session struct {
	ID string

	mu       sync.Mutex
	flags    map[string]bool
	flashes  []Flash
	lastSeen time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, flags: map[string]bool{}, lastSeen: now}
}

// ReleasesFetched reports whether releases were loaded during this session.
func (s *Session) ReleasesFetched() bool {
	return s.flag(flagReleasesFetched)
}

// MarkReleasesFetched records a successful releases fetch.
func (s *Session) MarkReleasesFetched() {
	s.setFlag(flagReleasesFetched, true)
}

// ClearReleasesFetched makes the next visit fetch releases again.
func (s *Session) ClearReleasesFetched() {
	s.setFlag(flagReleasesFetched, false)
}

func (s *Session) flag(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[name]
}

func (s *Session) setFlag(name string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value {
		s.flags[name] = true
		return
	}
	delete(s.flags, name)
}

// AddFlash queues a notification.
func (s *Session) AddFlash(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
}

// Flashes returns and clears the queued notifications.
func (s *Session) Flashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long an idle session is kept.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecureCookie marks the cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager issues session cookies and holds the sessions.
type Manager struct {
	cookie string
	ttl    time.Duration
	secure bool
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a manager using cookie as the cookie name.
func NewManager(cookie string, opts ...Option) *Manager {
	if cookie == "" {
		cookie = DefaultCookie
	}
	m := &Manager{
		cookie:   cookie,
		ttl:      defaultTTL,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Load returns the session named by the request cookie, creating one when
// the cookie is missing, unknown or expired. created reports a new session.
func (m *Manager) Load(r *http.Request) (sess *Session, created bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	if c, err := r.Cookie(m.cookie); err == nil {
		if sess, ok := m.sessions[c.Value]; ok {
			sess.mu.Lock()
			sess.lastSeen = now
			sess.mu.Unlock()
			return sess, false
		}
	}
	sess = newSession(uuid.NewString(), now)
	m.sessions[sess.ID] = sess
	return sess, true
}

func (m *Manager) sweep(now time.Time) {
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen)
		sess.mu.Unlock()
		if idle > m.ttl {
			delete(m.sessions, id)
		}
	}
}

// Middleware attaches the session to the request context and sets the
// cookie for new sessions.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, created := m.Load(r)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

type ctxKey struct{}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session stored in ctx. Without one it returns a
// detached session so callers never need nil checks.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(ctxKey{}).(*Session); ok && sess != nil {
		return sess
	}
	return newSession("", time.Time{})
}
