package repository

import (
	"context"
	"time"

	"github.com/vinovest/sqlx"

	"github.com/danielolaru91/AuthSystem/internal/model"
)

// TokenRepo persists refresh tokens.  Each account carries exactly one
// live value in users.refresh_token (a SHA-256 hex digest), so storing a
// new one replaces whatever was there.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh overwrites the account's refresh token hash and expiry.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=?, refresh_token_expires=? WHERE id=?",
		tokenHash, exp.UTC(), userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// FindByRefresh returns the account holding tokenHash.  Expiry is left to
// the caller, see model.User.RefreshValid.
func (r *TokenRepo) FindByRefresh(ctx context.Context, tokenHash string) (*model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u, userSelect+" WHERE u.refresh_token = ? LIMIT 1", tokenHash)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// RotateRefresh replaces oldHash with newHash in a single conditional
// write.  Only one of several concurrent callers presenting the same old
// hash can match the row; the others get ErrConflict.
func (r *TokenRepo) RotateRefresh(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=?, refresh_token_expires=? WHERE id=? AND refresh_token=?",
		newHash, exp.UTC(), userID, oldHash)
	if err != nil {
		return err
	}
	return expectConditional(res)
}

// RevokeByHash clears the refresh token matching tokenHash, if any.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=NULL, refresh_token_expires=NULL WHERE refresh_token=?",
		tokenHash)
	return err
}

// RevokeForUser clears the account's refresh token.
func (r *TokenRepo) RevokeForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=NULL, refresh_token_expires=NULL WHERE id=?",
		userID)
	return err
}
