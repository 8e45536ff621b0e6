// Package auth manages user registration, password verification and
// session tokens. Identity always travels through explicit context values
// set by the API middleware, never through package state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/glanburn/music-manager/internal/model"
	"github.com/glanburn/music-manager/internal/store"
)

var (
	// ErrInvalidCredentials is returned on unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an email twice.
	ErrEmailTaken = errors.New("email already registered")
)

type session struct {
	userID    string
	expiresAt time.Time
}

// Service provides registration, login and session lookup.
type Service struct {
	users store.UserStore

	mu       sync.Mutex
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Service whose sessions live for ttl.
func New(users store.UserStore, ttl time.Duration) *Service {
	return &Service{
		users:    users,
		sessions: make(map[string]session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register creates a user with the given role. The password is stored as a
// bcrypt hash.
func (s *Service) Register(ctx context.Context, email, displayName, password, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	if role != model.RoleAdmin {
		role = model.RoleCompetitor
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := model.NewUser(uuid.New().String(), email, strings.TrimSpace(displayName), string(hash), role)
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// Login verifies the password and opens a session, returning its token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("look up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	tok := uuid.New().String()
	s.mu.Lock()
	s.sessions[tok] = session{userID: u.ID, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return tok, u, nil
}

// Logout closes the session for the given token. Unknown tokens are a
// no-op.
func (s *Service) Logout(tok string) {
	s.mu.Lock()
	delete(s.sessions, tok)
	s.mu.Unlock()
}

// UserForToken resolves a session token to its user. Expired sessions are
// dropped on sight.
func (s *Service) UserForToken(ctx context.Context, tok string) (*model.User, error) {
	s.mu.Lock()
	sess, ok := s.sessions[tok]
	if ok && !s.now().Before(sess.expiresAt) {
		delete(s.sessions, tok)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetUser(ctx, sess.userID)
	if err != nil {
		return nil, fmt.Errorf("look up session user: %w", err)
	}
	return u, nil
}
