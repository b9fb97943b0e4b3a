package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reloom/reloom-go/localstore"
	"github.com/reloom/reloom-go/logger"
)

const storageKey = "session"

// User is the authenticated user's identity as last reported by the backend.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Session is the current client session. A zero Session means logged out.
type Session struct {
	User          *User  `json:"user,omitempty"`
	Token         string `json:"token,omitempty"`
	Authenticated bool   `json:"authenticated"`

	// ExpiresAt is a hint parsed from the access token's exp claim without
	// verification. The backend remains the source of truth for validity.
	ExpiresAt time.Time `json:"-"`
}

// Store holds the session and persists it through localstore so it survives
// restarts. All mutations are atomic: token and user are never observable
// in a half-set state.
type Store struct {
	mu      sync.RWMutex
	current Session
	kv      *localstore.Store
	subs    []func(Session)
	log     *logger.Logger
}

// NewStore creates a session store, loading any persisted session.
func NewStore(kv *localstore.Store) (*Store, error) {
	s := &Store{
		kv:  kv,
		log: logger.WithComponent("session"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns a copy of the current session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the current access token, or "" when logged out.
// Suitable as an httpapi.Config TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Authenticated reports whether a session is active.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Authenticated
}

// OnChange registers a subscriber invoked after every session change.
// Subscribers are called outside the store lock.
func (s *Store) OnChange(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Login establishes a session. Token and user are set together.
func (s *Store) Login(token string, user User) error {
	if token == "" {
		return fmt.Errorf("session: login requires a token")
	}
	if user.ID == "" {
		return fmt.Errorf("session: login requires a user")
	}

	next := Session{
		User:          &user,
		Token:         token,
		Authenticated: true,
		ExpiresAt:     tokenExpiry(token),
	}

	s.mu.Lock()
	s.current = next
	err := s.persist()
	subs := append([]func(Session){}, s.subs...)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.log.Info("session established", logger.Fields(logger.FieldUserID, user.ID))
	notify(subs, next)
	return nil
}

// Logout clears the session. Idempotent: calling it while logged out is a
// no-op. Persistence failures are logged, never surfaced; the in-memory
// session is always cleared.
func (s *Store) Logout() {
	s.mu.Lock()
	wasAuthenticated := s.current.Authenticated
	s.current = Session{}
	var err error
	if wasAuthenticated {
		err = s.kv.Delete(storageKey)
	}
	subs := append([]func(Session){}, s.subs...)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("failed to clear persisted session", logger.ErrorFields("logout", err))
	}
	if wasAuthenticated {
		s.log.Info("session cleared")
		notify(subs, Session{})
	}
}

// UpdateUser replaces the session user, e.g. after a profile update.
// No-op when logged out.
func (s *Store) UpdateUser(user User) error {
	s.mu.Lock()
	if !s.current.Authenticated {
		s.mu.Unlock()
		return nil
	}
	s.current.User = &user
	err := s.persist()
	next := s.current
	subs := append([]func(Session){}, s.subs...)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	notify(subs, next)
	return nil
}

// persist writes the current session. Caller holds the lock.
func (s *Store) persist() error {
	data, err := json.Marshal(s.current)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.kv.Set(storageKey, string(data)); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

// load restores a persisted session. A corrupt record is discarded rather
// than failing startup.
func (s *Store) load() error {
	raw, ok, err := s.kv.Get(storageKey)
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	if !ok {
		return nil
	}

	var restored Session
	if err := json.Unmarshal([]byte(raw), &restored); err != nil {
		s.log.Warn("discarding corrupt persisted session", logger.ErrorFields("load", err))
		_ = s.kv.Delete(storageKey)
		return nil
	}
	if restored.Token == "" || restored.User == nil {
		return nil
	}
	restored.Authenticated = true
	restored.ExpiresAt = tokenExpiry(restored.Token)
	s.current = restored
	return nil
}

// tokenExpiry parses the exp claim without verifying the signature.
// Returns the zero time when the token is not a parseable JWT.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func notify(subs []func(Session), sess Session) {
	for _, fn := range subs {
		fn(sess)
	}
}
