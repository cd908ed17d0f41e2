package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-valuation-pro/internal/metrics"
)

const (
	sessionCookie   = "svp_session"
	sessionLifetime = 24 * time.Hour
)

type session struct {
	id       string
	username string
	expires  time.Time
}

// sessionStore holds the live authenticated sessions in memory. A
// restart logs everyone out, which is acceptable for this dashboard.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

func (ss *sessionStore) create(username string) *session {
	s := &session{
		id:       uuid.NewString(),
		username: username,
		expires:  ss.now().Add(sessionLifetime),
	}
	ss.mu.Lock()
	ss.sessions[s.id] = s
	metrics.ActiveSessions.Set(float64(len(ss.sessions)))
	ss.mu.Unlock()
	return s
}

func (ss *sessionStore) get(id string) (*session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[id]
	if !ok {
		return nil, false
	}
	if ss.now().After(s.expires) {
		delete(ss.sessions, id)
		metrics.ActiveSessions.Set(float64(len(ss.sessions)))
		return nil, false
	}
	return s, true
}

func (ss *sessionStore) drop(id string) {
	ss.mu.Lock()
	delete(ss.sessions, id)
	metrics.ActiveSessions.Set(float64(len(ss.sessions)))
	ss.mu.Unlock()
}

func (ss *sessionStore) fromRequest(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return ss.get(c.Value)
}

type sessionCtxKey struct{}

func withSession(r *http.Request, s *session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionCtxKey{}, s))
}

// sessionFrom returns the session the auth middleware attached. Only
// call it from handlers behind requireSession.
func sessionFrom(r *http.Request) *session {
	s, _ := r.Context().Value(sessionCtxKey{}).(*session)
	return s
}

func setSessionCookie(w http.ResponseWriter, s *session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.expires,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
