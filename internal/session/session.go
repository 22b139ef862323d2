package session

import (
	"sync"
	"time"
)

// Session carries the authenticated user's identity and tokens. It is
// passed explicitly to every component that needs the current user; there
// is no package-level singleton.
type Session struct {
	mu           sync.RWMutex
	uid          string
	email        string
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

// New returns an unauthenticated session.
func New() *Session {
	return &Session{}
}

// SetCredentials installs the tokens issued by the auth endpoint.
func (s *Session) SetCredentials(uid, email, idToken, refreshToken string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = uid
	s.email = email
	s.idToken = idToken
	s.refreshToken = refreshToken
	s.expiresAt = time.Now().Add(ttl)
}

// Clear forgets all credentials (logout).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = ""
	s.email = ""
	s.idToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
}

// UID returns the authenticated user's id, or "" when logged out.
func (s *Session) UID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid
}

// Email returns the authenticated user's email.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Token returns the current id token for request authorization.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idToken
}

// RefreshToken returns the long-lived refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Authenticated reports whether credentials are present and unexpired.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid != "" && time.Now().Before(s.expiresAt)
}
