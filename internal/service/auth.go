// Package service contains application services for authentication and the
// purchase economy.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/paintroom/paintroom/internal/crypto"
	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/limiter"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/repository"
)

// AuthService defines account and session-token operations.
type AuthService interface {
	// Register creates a new account with secure password hashing.
	Register(ctx context.Context, username, password string) (*model.Account, error)
	// LoginWithIP applies rate limiting and authenticates the user, returning
	// the account and a signed session token.
	LoginWithIP(ctx context.Context, username, password, ip string) (*model.Account, string, error)
	// VerifyToken validates a session token and returns its subject.
	VerifyToken(token string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// Register creates a new account record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (*model.Account, error) {
	if username == "" || password == "" {
		return nil, errors.New("empty username/password")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return nil, err
	}
	a := &model.Account{
		ID:       uid,
		Username: username,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, a); err != nil {
		return nil, err
	}
	// The starting balance is a schema default; read it back so the session
	// never guesses.
	return s.users.GetByID(ctx, uid)
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (*model.Account, string, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return nil, "", err
	}
	if !allowed {
		return nil, "", errs.ErrRateLimited
	}

	a, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), a.SaltAuth, a.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return nil, "", errs.ErrRateLimited
		}
		// Lookup errors are masked so usernames cannot be probed.
		return nil, "", errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, username, ipHash)

	token, err := s.issueToken(a.ID)
	if err != nil {
		return nil, "", err
	}
	return a, token, nil
}

// issueToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// VerifyToken validates a session token and returns its subject id.
func (s *AuthServiceImpl) VerifyToken(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}
	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return id, nil
}

// NoAuth serves anonymous relay mode: there are no accounts, so every
// credential operation is rejected and only guest joins get through.
type NoAuth struct{}

// Register always fails in relay mode.
func (NoAuth) Register(context.Context, string, string) (*model.Account, error) {
	return nil, errs.ErrUnauthorized
}

// LoginWithIP always fails in relay mode.
func (NoAuth) LoginWithIP(context.Context, string, string, string) (*model.Account, string, error) {
	return nil, "", errs.ErrUnauthorized
}

// VerifyToken always fails in relay mode.
func (NoAuth) VerifyToken(string) (uuid.UUID, error) {
	return uuid.Nil, errs.ErrUnauthorized
}

// NewGuest builds an ephemeral session-scoped user. Guests carry no currency
// and, outside anonymous relay mode, always join as viewers.
func NewGuest(name string, role model.Role) (model.User, error) {
	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, err
	}
	if !role.Valid() {
		role = model.RoleViewer
	}
	return model.User{
		ID:    uid,
		Name:  name,
		Role:  role,
		Guest: true,
	}, nil
}
