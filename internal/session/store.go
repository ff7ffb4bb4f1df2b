// Package session owns the console's single authenticated identity and
// keeps it mirrored in durable storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/logger"
	"vpms_console/internal/repository"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Authenticator is the subset of the API the store needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) error
	Profile(ctx context.Context) (*domain.User, error)
}

// AuthError wraps a failed login or registration with the text shown on the form.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error       { return e.Err }
func (e *AuthError) UserMessage() string { return e.Message }

type Store struct {
	repo   repository.KeyValueRepository
	bus    *bus.Bus
	logger *zap.Logger

	mu    sync.RWMutex
	auth  Authenticator
	token string
	user  *domain.User
	ready bool

	now func() time.Time
}

func NewStore(repo repository.KeyValueRepository, b *bus.Bus, l *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		bus:    b,
		logger: logger.Named(l, "session"),
		now:    time.Now,
	}
}

// SetAuthenticator completes construction; the gateway needs the store
// for credentials before it can serve as its authenticator.
func (s *Store) SetAuthenticator(a Authenticator) {
	s.mu.Lock()
	s.auth = a
	s.mu.Unlock()
}

func (s *Store) authenticator() Authenticator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// Restore rehydrates the session from storage. The session is authenticated
// only when both keys are present, the user decodes, and the token is not a
// JWT past its expiry.
func (s *Store) Restore(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
	}()

	token, err := s.repo.Get(ctx, repository.KeyToken)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("restore token: %w", err)
	}
	rawUser, err := s.repo.Get(ctx, repository.KeyUser)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("restore user: %w", err)
	}
	if token == "" || rawUser == "" {
		s.logger.Debug("no persisted session")
		return nil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.Warn("discarding unreadable persisted user", zap.Error(err))
		return s.clear(ctx)
	}
	if s.tokenExpired(token) {
		s.logger.Info("persisted token has expired", zap.Int64("user_id", user.ID))
		return s.clear(ctx)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	s.logger.Info("session restored", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

// tokenExpired inspects the exp claim without verifying the signature; the
// console has no key and only wants to skip a doomed first request.
func (s *Store) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(s.now())
}

func (s *Store) Login(ctx context.Context, email, password string) (domain.Session, error) {
	auth := s.authenticator()
	if auth == nil {
		return domain.Session{}, errors.New("session store has no authenticator")
	}
	resp, err := auth.Login(ctx, email, password)
	if err != nil {
		return domain.Session{}, &AuthError{Message: "Login failed. Please check your credentials.", Err: err}
	}

	user := resp.User
	if err := s.persist(ctx, resp.Token, &user, false); err != nil {
		return domain.Session{}, err
	}
	s.logger.Info("logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	s.bus.Publish(ctx, domain.ChannelSessionChanged, user.ID)
	return s.Current(), nil
}

// Register creates the account and then logs in with the same credentials.
func (s *Store) Register(ctx context.Context, name, email, password string) (domain.Session, error) {
	auth := s.authenticator()
	if auth == nil {
		return domain.Session{}, errors.New("session store has no authenticator")
	}
	if err := auth.Register(ctx, name, email, password); err != nil {
		return domain.Session{}, &AuthError{Message: "Registration failed. Please try again.", Err: err}
	}
	return s.Login(ctx, email, password)
}

// persist writes storage first and memory second, both under the store lock,
// so a concurrent Token() sees the old credential or the new one.
// With sameToken set the write is dropped if the session changed meanwhile.
func (s *Store) persist(ctx context.Context, token string, user *domain.User, sameToken bool) error {
	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sameToken && s.token != token {
		return ErrNotAuthenticated
	}
	if err := s.repo.SetMany(ctx, map[string]string{
		repository.KeyToken: token,
		repository.KeyUser:  string(encoded),
	}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.token = token
	s.user = user
	return nil
}

// Logout clears the session. Calling it while logged out is harmless.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.clear(ctx); err != nil {
		return err
	}
	s.logger.Info("logged out")
	s.bus.Publish(ctx, domain.ChannelSessionChanged, nil)
	return nil
}

// clear mirrors persist: storage first, so a failed delete leaves the
// session intact rather than half gone.
func (s *Store) clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, repository.KeyToken, repository.KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.token = ""
	s.user = nil
	return nil
}

// Expire tears the session down once the API has refused the given token.
// Stale rejections (a token already replaced, or none at all) are ignored.
func (s *Store) Expire(ctx context.Context, rejected string) {
	s.mu.RLock()
	current := s.token
	s.mu.RUnlock()
	if rejected == "" || rejected != current {
		return
	}

	if err := s.clear(ctx); err != nil {
		// the token is dead either way; Restore will drop it on its first 401
		s.logger.Error("failed to clear expired session", zap.Error(err))
		s.mu.Lock()
		s.token = ""
		s.user = nil
		s.mu.Unlock()
	}
	s.logger.Warn("session expired, forcing login")
	s.bus.Publish(ctx, domain.ChannelSessionExpired, nil)
}

// RefreshUser re-reads the profile and persists the new identity.
func (s *Store) RefreshUser(ctx context.Context) (*domain.User, error) {
	auth := s.authenticator()
	token := s.Token()
	if auth == nil || token == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := auth.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh profile: %w", err)
	}
	if user == nil {
		return nil, errors.New("refresh profile: empty response")
	}
	if err := s.persist(ctx, token, user, true); err != nil {
		return nil, err
	}
	return user, nil
}

// SetUser replaces the stored identity after a profile edit.
func (s *Store) SetUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	u := *user
	return s.persist(ctx, s.Token(), &u, true)
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := domain.Session{Token: s.token}
	if s.user != nil {
		u := *s.user
		sess.User = &u
	}
	return sess
}

func (s *Store) Authenticated() bool {
	return s.Current().Authenticated()
}

// Ready reports whether Restore has finished.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
