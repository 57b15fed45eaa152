package web

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/funnyzak/mockflow/internal/config"
)

const (
	roleAdmin  = "admin"
	roleViewer = "viewer"
)

// Session describes an authenticated user session.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the session may change the workspace.
func (s *Session) IsAdmin() bool {
	return s != nil && strings.EqualFold(s.Role, roleAdmin)
}

// ErrInvalidCredential indicates username/password mismatch or an unknown session.
var ErrInvalidCredential = errors.New("invalid username or password")

// AuthManager performs credential validation and session management.
type AuthManager struct {
	enable  bool
	timeout time.Duration
	users   map[string]config.WebUserConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewAuthManager creates a new AuthManager from configuration. Users without
// a known role become viewers.
func NewAuthManager(cfg config.WebAuthConfig) *AuthManager {
	users := make(map[string]config.WebUserConfig, len(cfg.Users))
	for _, user := range cfg.Users {
		name := strings.ToLower(strings.TrimSpace(user.Username))
		if name == "" {
			continue
		}
		user.Role = strings.ToLower(strings.TrimSpace(user.Role))
		if user.Role != roleAdmin {
			user.Role = roleViewer
		}
		users[name] = user
	}

	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &AuthManager{
		enable:   cfg.Enable,
		timeout:  timeout,
		users:    users,
		sessions: make(map[string]*Session),
	}
}

// Enabled indicates whether authentication is active.
func (a *AuthManager) Enabled() bool {
	return a != nil && a.enable
}

// guest is the session used while auth is off. It has full access.
func (a *AuthManager) guest() *Session {
	return &Session{
		ID:        "local",
		Username:  "local",
		Role:      roleAdmin,
		ExpiresAt: time.Now().Add(a.timeout),
	}
}

// Login validates credentials and returns a new session.
func (a *AuthManager) Login(username, password string) (*Session, error) {
	if !a.Enabled() {
		return a.guest(), nil
	}

	user, ok := a.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok || user.Password != password {
		return nil, ErrInvalidCredential
	}

	session := &Session{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(a.timeout),
	}
	a.mu.Lock()
	a.sessions[session.ID] = session
	a.mu.Unlock()
	return session, nil
}

// Validate finds a live session by token. Expired sessions are dropped.
func (a *AuthManager) Validate(token string) (*Session, error) {
	if !a.Enabled() {
		return a.guest(), nil
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredential
	}

	a.mu.RLock()
	session, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredential
	}
	if time.Now().After(session.ExpiresAt) {
		a.mu.Lock()
		delete(a.sessions, token)
		a.mu.Unlock()
		return nil, ErrInvalidCredential
	}
	return session, nil
}

// Logout removes a session token.
func (a *AuthManager) Logout(token string) {
	if !a.Enabled() {
		return
	}
	a.mu.Lock()
	delete(a.sessions, strings.TrimSpace(token))
	a.mu.Unlock()
}

// Cleanup removes expired sessions.
func (a *AuthManager) Cleanup() {
	if !a.Enabled() {
		return
	}
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	for token, session := range a.sessions {
		if now.After(session.ExpiresAt) {
			delete(a.sessions, token)
		}
	}
}
