package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/mail"
	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

// ErrPasswordRequired is returned when a reset carries no new password.
var ErrPasswordRequired = errors.New("password is required")

// AccountService handles self-service account flows: registration, email
// confirmation and password reset.
type AccountService struct {
	users   *repository.UserRepo
	mailer  mail.Mailer
	compose mail.Composer
	cfg     config.AuthConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewAccountService(users *repository.UserRepo, mailer mail.Mailer, compose mail.Composer, cfg config.AuthConfig, log *zap.Logger) *AccountService {
	return &AccountService{users: users, mailer: mailer, compose: compose, cfg: cfg, log: log, now: time.Now}
}

// Register creates an unconfirmed account with the User role and mails a
// confirmation link.  A mail failure is logged; the account stays.
func (s *AccountService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate confirmation token: %w", err)
	}

	u := &model.User{
		Email:              email,
		PasswordHash:       hash,
		RoleID:             model.RoleUser,
		ConfirmationToken:  nullString(utils.HashToken(raw)),
		ConfirmationExpiry: nullTime(s.now().Add(s.cfg.ConfirmTTL)),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("account registered", zap.Uint64("user_id", u.ID))

	s.send(ctx, s.compose.Confirmation(u.Email, raw, false))
	return u, nil
}

// ResendConfirmation issues a fresh confirmation link for an unconfirmed
// account.  Unknown or already confirmed emails are ignored.
func (s *AccountService) ResendConfirmation(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if u.EmailConfirmed {
		return nil
	}
	return s.sendConfirmation(ctx, u, false)
}

func (s *AccountService) sendConfirmation(ctx context.Context, u *model.User, byAdmin bool) error {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate confirmation token: %w", err)
	}
	if err := s.users.SetConfirmationToken(ctx, u.ID, utils.HashToken(raw), s.now().Add(s.cfg.ConfirmTTL)); err != nil {
		return fmt.Errorf("store confirmation token: %w", err)
	}
	s.send(ctx, s.compose.Confirmation(u.Email, raw, byAdmin))
	return nil
}

// ConfirmEmail consumes a confirmation token.  Each token works once.
func (s *AccountService) ConfirmEmail(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidToken
	}
	hash := utils.HashToken(raw)
	u, err := s.users.GetByConfirmationHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("lookup confirmation token: %w", err)
	}
	if !u.ConfirmationExpiry.Valid || !u.ConfirmationExpiry.Time.After(s.now()) {
		if err := s.users.ClearConfirmation(ctx, u.ID); err != nil {
			s.log.Warn("clear expired confirmation token", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
		return ErrInvalidToken
	}

	if err := s.users.ConsumeConfirmation(ctx, u.ID, hash); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidToken
		}
		return fmt.Errorf("confirm email: %w", err)
	}
	s.log.Info("email confirmed", zap.Uint64("user_id", u.ID))
	return nil
}

// RequestPasswordReset mails a reset link when the email belongs to an
// account.  It reports success either way.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.users.SetResetToken(ctx, u.ID, utils.HashToken(raw), s.now().Add(s.cfg.ResetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	s.send(ctx, s.compose.PasswordReset(u.Email, raw))
	return nil
}

// ResetPassword sets a new password from a reset token.  The token version
// is bumped and the refresh token cleared, so every session of the account
// ends.
func (s *AccountService) ResetPassword(ctx context.Context, raw, password string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidToken
	}
	if password == "" {
		return ErrPasswordRequired
	}
	hash := utils.HashToken(raw)
	u, err := s.users.GetByResetHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !u.ResetTokenExpiry.Valid || !u.ResetTokenExpiry.Time.After(s.now()) {
		if err := s.users.ClearReset(ctx, u.ID); err != nil {
			s.log.Warn("clear expired reset token", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
		return ErrInvalidToken
	}

	pw, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.ConsumeReset(ctx, u.ID, hash, pw); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidToken
		}
		return fmt.Errorf("reset password: %w", err)
	}
	s.log.Info("password reset", zap.Uint64("user_id", u.ID))
	return nil
}

// EnsureSuperAdmin creates a confirmed SuperAdmin account when no account
// with that email exists yet.  Blank input is a no-op.
func (s *AccountService) EnsureSuperAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load account: %w", err)
	}

	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Email: email, PasswordHash: hash, EmailConfirmed: true, RoleID: model.RoleSuperAdmin}
	if err := s.users.Create(ctx, u); err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}
	s.log.Info("seeded super admin", zap.Uint64("user_id", u.ID))
	return nil
}

func (s *AccountService) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("send mail failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// WithClock returns a copy that reads time from now.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	cp := *s
	cp.now = now
	return &cp
}
