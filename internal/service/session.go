package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

// AccountReader loads accounts by email or id.
type AccountReader interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	RevokeSessions(ctx context.Context, id uint64) error
}

// RefreshStore persists the single live refresh token hash per account.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	FindByRefresh(ctx context.Context, tokenHash string) (*model.User, error)
	RotateRefresh(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeForUser(ctx context.Context, userID uint64) error
}

var (
	_ AccountReader = (*repository.UserRepo)(nil)
	_ RefreshStore  = (*repository.TokenRepo)(nil)
)

// Session is a freshly issued token pair.
type Session struct {
	Access   utils.AccessToken
	Refresh  utils.RefreshToken
	Identity utils.Identity
}

// SessionService issues, validates, rotates and terminates sessions.
type SessionService struct {
	users      AccountReader
	tokens     RefreshStore
	codec      *utils.TokenCodec
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewSessionService(users AccountReader, tokens RefreshStore, codec *utils.TokenCodec, cfg config.AuthConfig, log *zap.Logger) *SessionService {
	ttl := cfg.RefreshTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionService{
		users:      users,
		tokens:     tokens,
		codec:      codec,
		refreshTTL: ttl,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for refresh expiry checks.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	cp := *s
	cp.now = now
	cp.codec = s.codec.WithClock(now)
	return &cp
}

func identityOf(u *model.User) utils.Identity {
	return utils.Identity{UserID: u.ID, Email: u.Email, Role: u.RoleName, TokenVersion: u.TokenVersion}
}

// Login checks credentials and starts a session.  A missing account still
// pays for one bcrypt comparison.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(password)
		s.log.Info("login failed: unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.log.Info("login failed: bad password", zap.Uint64("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}
	if !u.EmailConfirmed {
		return nil, ErrUnconfirmedAccount
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashToken(sess.Refresh.Raw), sess.Refresh.Exp); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	s.log.Info("login", zap.Uint64("user_id", u.ID), zap.String("role", u.RoleName))
	return sess, nil
}

func (s *SessionService) issue(u *model.User) (*Session, error) {
	id := identityOf(u)
	access, err := s.codec.Mint(id)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &Session{Access: access, Refresh: refresh, Identity: id}, nil
}

// Authenticate verifies an access token and checks its version against the
// account as it is now.  Returns ErrTokenInvalid or ErrTokenVersionStale on
// rejection; any other error is a storage failure.
func (s *SessionService) Authenticate(ctx context.Context, raw string) (utils.Identity, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return utils.Identity{}, err
	}
	id, err := claims.Identity()
	if err != nil {
		return utils.Identity{}, err
	}

	u, err := s.users.GetByID(ctx, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.Identity{}, ErrTokenVersionStale
	}
	if err != nil {
		return utils.Identity{}, fmt.Errorf("load account: %w", err)
	}
	if u.TokenVersion != id.TokenVersion {
		return utils.Identity{}, ErrTokenVersionStale
	}
	return id, nil
}

// Refresh exchanges a live refresh token for a new pair.  The old token is
// replaced with a conditional write, so of several concurrent calls with the
// same token at most one succeeds.
func (s *SessionService) Refresh(ctx context.Context, raw string) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrRefreshTokenInvalid
	}
	hash := utils.HashToken(raw)

	u, err := s.tokens.FindByRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRefreshTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !u.RefreshValid(s.now()) {
		return nil, ErrRefreshTokenInvalid
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	err = s.tokens.RotateRefresh(ctx, u.ID, hash, utils.HashToken(sess.Refresh.Raw), sess.Refresh.Exp)
	if errors.Is(err, repository.ErrConflict) {
		s.log.Info("refresh lost rotation race", zap.Uint64("user_id", u.ID))
		return nil, ErrRefreshTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	return sess, nil
}

// Logout revokes whatever the caller presented.  It is idempotent: absent or
// unknown tokens are not an error.
func (s *SessionService) Logout(ctx context.Context, accessRaw, refreshRaw string) error {
	if refreshRaw = strings.TrimSpace(refreshRaw); refreshRaw != "" {
		if err := s.tokens.RevokeByHash(ctx, utils.HashToken(refreshRaw)); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	if accessRaw == "" {
		return nil
	}
	claims, err := s.codec.Verify(accessRaw)
	if err != nil {
		return nil
	}
	id, err := claims.Identity()
	if err != nil {
		return nil
	}
	if err := s.tokens.RevokeForUser(ctx, id.UserID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// Invalidate ends every session of an account: outstanding access tokens
// fail the version check and the refresh token is cleared.
func (s *SessionService) Invalidate(ctx context.Context, userID uint64) error {
	if err := s.users.RevokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	s.log.Info("sessions invalidated", zap.Uint64("user_id", userID))
	return nil
}
