// Package session tracks logged-in browser sessions. Each session
// pins the backend access token and owns the dashboard list model for
// that user, so handler code never guesses at ambient state: it loads
// the session explicitly or it gets an error.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"expensebook/internal/backend"
	"expensebook/internal/cache"
	"expensebook/internal/dashboard"
)

// CookieName is the browser session cookie. It is distinct from the
// backend access token, which never reaches the browser.
const CookieName = "expensebook_session"

// ErrNoSession is returned by Load when the request carries no live
// session. Callers decide whether that means "redirect to signin" or
// "render logged-out state"; nothing is inferred silently.
var ErrNoSession = errors.New("session: not signed in")

// Session is one signed-in browser.
type Session struct {
	ID      string
	Backend backend.Session

	once  sync.Once
	model *dashboard.Model
}

// Model returns the session's dashboard model, building it on first
// use against the given adapter.
func (s *Session) Model(api backend.Backend) *dashboard.Model {
	s.once.Do(func() {
		s.model = dashboard.NewModel(api)
	})
	return s.model
}

// Context returns ctx with the session's backend credentials attached.
func (s *Session) Context(ctx context.Context) context.Context {
	return backend.WithSession(ctx, s.Backend)
}

// Manager owns the registry of live sessions. Sessions expire on the
// cache TTL; an expired session simply fails the next Load.
type Manager struct {
	sessions *cache.LRUCache[*Session]
	secure   bool
}

// NewManager sizes the registry and its TTL. secure controls the
// cookie's Secure flag and should be true behind TLS.
func NewManager(maxSessions int, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		sessions: cache.NewLRUCache[*Session](maxSessions, ttl),
		secure:   secure,
	}
}

// Begin registers a new session for the given backend login and sets
// the session cookie.
func (m *Manager) Begin(w http.ResponseWriter, bs backend.Session) *Session {
	s := &Session{ID: uuid.NewString(), Backend: bs}
	m.sessions.Set(s.ID, s)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

// Load resolves the request's session cookie. It returns ErrNoSession
// when the cookie is absent, unknown or expired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return nil, ErrNoSession
	}
	s, ok := m.sessions.Get(ck.Value)
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Clear drops the session and expires its cookie. Clearing a request
// without a session is a no-op.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		m.sessions.Delete(ck.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
