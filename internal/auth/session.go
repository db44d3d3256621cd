package auth

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/illegible-ink/crates/internal/shared"
)

// CookieName is the browser cookie carrying the signed session id.
const CookieName = "crates_session"

// Session is one browser's authenticated context. The token pair is replaced
// and cleared atomically; readers never see a half-updated pair.
type Session struct {
	id        string
	createdAt time.Time

	mu    sync.RWMutex
	token *TokenPair
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// Token returns the current token pair, if any.
func (s *Session) Token() (TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return TokenPair{}, false
	}
	return *s.token, true
}

// SetToken adopts a freshly exchanged token pair as the session's credentials.
func (s *Session) SetToken(pair TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
}

// Clear discards the token pair. Used on logout and on detecting an expired
// token; no network call is involved.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

// SessionManager issues and resolves browser sessions. The cookie value is a
// signed JWT whose subject is the session id, so a tampered cookie never
// resolves to a session.
type SessionManager struct {
	secret []byte
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates a [SessionManager] signing cookies with secret.
// A zero ttl defaults to 12 hours.
func NewSessionManager(secret string, ttl time.Duration) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: session secret", shared.ErrMissingCredentials)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		secret:   []byte(secret),
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}, nil
}

// Issue creates a new session and sets its signed cookie on the response.
func (m *SessionManager) Issue(w http.ResponseWriter) (*Session, error) {
	now := m.now()
	session := &Session{id: shared.GenerateID(), createdAt: now}

	claims := jwt.RegisteredClaims{
		Subject:   session.id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session cookie: %w", err)
	}

	m.mu.Lock()
	m.sweep(now)
	m.sessions[session.id] = session
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})

	return session, nil
}

// Lookup resolves the session referenced by the request's cookie. Returns false
// for missing, tampered, or expired cookies and for evicted sessions.
func (m *SessionManager) Lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[claims.Subject]
	return session, ok
}

// Ensure returns the request's session, issuing a fresh one if needed.
func (m *SessionManager) Ensure(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if session, ok := m.Lookup(r); ok {
		return session, nil
	}
	return m.Issue(w)
}

// sweep drops sessions past their TTL. Caller holds m.mu.
func (m *SessionManager) sweep(now time.Time) {
	for id, session := range m.sessions {
		if now.Sub(session.createdAt) > m.ttl {
			delete(m.sessions, id)
		}
	}
}
