package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

// CreateUserInput is an administrator's request to create an account.
type CreateUserInput struct {
	Email          string
	Password       string
	EmailConfirmed bool
	RoleID         uint8
}

// UpdateUserInput carries the editable account fields.
type UpdateUserInput struct {
	Email          string
	EmailConfirmed bool
	RoleID         uint8
}

// UserService is the administrator's view of accounts.  Every edit bumps
// the account's token version.
type UserService struct {
	users    *repository.UserRepo
	roles    *repository.RoleRepo
	sessions *SessionService
	accounts *AccountService
	log      *zap.Logger
}

func NewUserService(users *repository.UserRepo, roles *repository.RoleRepo, sessions *SessionService, accounts *AccountService, log *zap.Logger) *UserService {
	return &UserService{users: users, roles: roles, sessions: sessions, accounts: accounts, log: log}
}

func (s *UserService) List(ctx context.Context, q repository.ListQuery) ([]model.User, int, error) {
	return s.users.List(ctx, q)
}

func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) checkRole(ctx context.Context, id uint8) error {
	ok, err := s.roles.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !ok {
		return ErrInvalidRole
	}
	return nil
}

// Create adds an account.  Unconfirmed accounts get a confirmation mail.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if err := s.checkRole(ctx, in.RoleID); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.accounts.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{Email: in.Email, PasswordHash: hash, EmailConfirmed: in.EmailConfirmed, RoleID: in.RoleID}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if !u.EmailConfirmed {
		if err := s.accounts.sendConfirmation(ctx, u, true); err != nil {
			s.log.Error("confirmation for new account failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
	}
	return s.users.GetByID(ctx, u.ID)
}

// Update edits an account and reports whether the actor edited their own
// account, in which case their refresh token is cleared as well and they
// must log in again.
func (s *UserService) Update(ctx context.Context, actorID, id uint64, in UpdateUserInput) (bool, error) {
	if strings.TrimSpace(in.Email) == "" {
		return false, ErrMissingFields
	}
	if err := s.checkRole(ctx, in.RoleID); err != nil {
		return false, err
	}
	if err := s.users.UpdateAccount(ctx, id, in.Email, in.EmailConfirmed, in.RoleID); err != nil {
		return false, err
	}
	s.log.Info("account updated", zap.Uint64("user_id", id), zap.Uint64("actor_id", actorID))

	if actorID != id {
		return false, nil
	}
	if err := s.sessions.tokens.RevokeForUser(ctx, id); err != nil {
		return true, fmt.Errorf("revoke own refresh token: %w", err)
	}
	return true, nil
}

func (s *UserService) Delete(ctx context.Context, id uint64) error {
	return s.users.Delete(ctx, id)
}

// BulkDelete removes the listed accounts and returns how many existed.
func (s *UserService) BulkDelete(ctx context.Context, ids []uint64) (int64, error) {
	return s.users.DeleteMany(ctx, ids)
}

// RevokeSessions ends every session of the account.
func (s *UserService) RevokeSessions(ctx context.Context, id uint64) error {
	return s.sessions.Invalidate(ctx, id)
}
