// Package auth owns credentials and opaque session tokens.
//
// Registration normalizes identities before the uniqueness check, login
// resolves an identity as username first and email second, and every issued
// session is a random opaque token persisted server-side. Cookie and
// query-parameter transports both resolve through the same validator.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

// SessionValidator resolves an opaque token to a user id. Satisfied by
// *Service; mocked in handler tests.
type SessionValidator interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// Service implements registration, login, and session management on top of
// the store.
type Service struct {
	store      *store.Store
	sessionTTL time.Duration
	bcryptCost int
}

// NewService wires the auth service. bcryptCost below bcrypt.MinCost falls
// back to the library default.
func NewService(st *store.Store, sessionTTL time.Duration, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: st, sessionTTL: sessionTTL, bcryptCost: bcryptCost}
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// RegisterInput carries the raw registration fields before normalization.
type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register validates and normalizes the input, hashes the password, and
// creates the account. Conflicts on username or email surface from the store.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	displayName := strings.TrimSpace(in.DisplayName)

	if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
		return nil, apperr.Validation("username must be between 3 and 32 characters")
	}
	if !usernamePattern.MatchString(username) {
		return nil, apperr.Validation("username may only contain letters, digits, '.', '_' and '-'")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("email is not a valid address")
	}
	if utf8.RuneCountInString(in.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	if displayName == "" || utf8.RuneCountInString(displayName) > 32 {
		return nil, apperr.Validation("display_name must be between 1 and 32 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.store.CreateUser(ctx, username, email, string(hash), displayName)
	if err != nil {
		return nil, err
	}

	logging.Info(ctx, "user registered",
		zap.Int64("user_id", u.ID),
		zap.String("username", u.Username),
	)
	return u, nil
}

// Login resolves identity as a username first and an email second, verifies
// the password, and issues a session token. Unknown identity and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, identity, password string) (string, *store.User, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" || password == "" {
		return "", nil, apperr.Validation("identity and password are required")
	}

	u, err := s.store.GetActiveUserByUsername(ctx, identity)
	if errors.Is(err, apperr.ErrNotFound) {
		u, err = s.store.GetActiveUserByEmail(ctx, identity)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}

	if u.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) != nil {
		return "", nil, apperr.Unauthenticated("Invalid credentials")
	}

	token, err := newSessionToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.store.CreateSession(ctx, token, u.ID, time.Now().Add(s.sessionTTL)); err != nil {
		return "", nil, err
	}

	logging.Info(ctx, "user logged in", zap.Int64("user_id", u.ID))
	return token, u, nil
}

// Logout revokes the token. Idempotent on already-invalid tokens.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Resolve implements SessionValidator.
func (s *Service) Resolve(ctx context.Context, token string) (int64, error) {
	return s.store.ResolveSession(ctx, token)
}

// SessionTTL reports the configured token lifetime, used to set cookie expiry.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// newSessionToken returns 32 bytes of crypto randomness, hex encoded.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
