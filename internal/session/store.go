// Package session holds the process-wide auth session: one writer path
// (login/logout), many readers, and change notifications.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
)

type Session struct {
	Token    string       `json:"token"`
	Identity *domain.User `json:"user,omitempty"`
}

func (s Session) Authenticated() bool {
	return usableToken(s.Token)
}

type Persister interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSession(ctx context.Context) (*Session, error)
	ClearSession(ctx context.Context) error
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithLogger(log logger.ILogger) Option {
	return func(s *Store) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu        sync.RWMutex
	current   Session
	listeners map[int]func(Session)
	nextID    int

	persister Persister
	log       logger.ILogger
	now       func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		listeners: make(map[int]func(Session)),
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login replaces the session. is_admin and the user id fall back to the
// token claims when the user payload does not carry them.
func (s *Store) Login(ctx context.Context, token string, user domain.User) error {
	token = strings.TrimSpace(token)
	if !usableToken(token) {
		return domain.ValidationError{Field: "access_token", Msg: "server response missing access token"}
	}
	if claims, err := ParseClaims(token); err == nil {
		if !user.IsAdmin && claims.IsAdmin {
			user.IsAdmin = true
		}
		if user.ID == 0 {
			user.ID = claims.UserID
		}
	} else {
		s.log.Debug("access token claims unreadable", logger.Error(err))
	}

	next := Session{Token: token, Identity: &user}
	s.set(next)

	if s.persister != nil {
		if err := s.persister.SaveSession(ctx, next); err != nil {
			s.log.Warning("failed to persist session", logger.Error(err))
		}
	}
	return nil
}

// Logout clears token and identity. Calling it on an empty session still
// notifies listeners so views can redirect.
func (s *Store) Logout(ctx context.Context) {
	s.set(Session{})
	if s.persister != nil {
		if err := s.persister.ClearSession(ctx); err != nil {
			s.log.Warning("failed to clear persisted session", logger.Error(err))
		}
	}
}

// Restore loads a persisted session, dropping it if the token has expired.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}
	saved, err := s.persister.LoadSession(ctx)
	if err != nil {
		return false, err
	}
	if saved == nil || !saved.Authenticated() {
		return false, nil
	}
	if claims, err := ParseClaims(saved.Token); err == nil && claims.Expired(s.now()) {
		s.log.Info("persisted session expired, discarding")
		_ = s.persister.ClearSession(ctx)
		return false, nil
	}
	s.set(*saved)
	return true, nil
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !usableToken(s.current.Token) {
		return ""
	}
	return s.current.Token
}

func (s *Store) Identity() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Identity == nil {
		return domain.User{}, false
	}
	return *s.current.Identity, true
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Authenticated()
}

func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn for session changes and returns its unsubscribe.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) set(next Session) {
	s.mu.Lock()
	s.current = next
	listeners := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

func usableToken(token string) bool {
	return token != "" && token != "null" && token != "undefined"
}
