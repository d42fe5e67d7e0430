package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vinovest/sqlx"

	"github.com/danielolaru91/AuthSystem/internal/model"
)

const userSelect = `SELECT u.id, u.email, u.password_hash, u.email_confirmed,
	u.email_confirmation_token, u.email_confirmation_expires,
	u.reset_token, u.reset_token_expires,
	u.refresh_token, u.refresh_token_expires,
	u.token_version, u.role_id, r.name AS role_name
FROM users u JOIN roles r ON r.id = u.role_id`

// UserRepo is the credential store: accounts, their one-shot tokens and
// the token version used to invalidate issued access tokens.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and sets its ID.  The email is stored as given apart
// from surrounding whitespace.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.TrimSpace(u.Email)
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, email_confirmed, email_confirmation_token, email_confirmation_expires, role_id)
		 VALUES (?,?,?,?,?,?)`,
		u.Email, u.PasswordHash, u.EmailConfirmed, u.ConfirmationToken, u.ConfirmationExpiry, u.RoleID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	if err := r.DB.GetContext(ctx, &u, userSelect+" WHERE "+where+" LIMIT 1", arg); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "u.email = ?", strings.TrimSpace(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "u.id = ?", id)
}

// GetByConfirmationHash fetches the user holding the email confirmation token hash.
func (r *UserRepo) GetByConfirmationHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getOne(ctx, "u.email_confirmation_token = ?", hash)
}

// GetByResetHash fetches the user holding the password reset token hash.
func (r *UserRepo) GetByResetHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getOne(ctx, "u.reset_token = ?", hash)
}

var userSortColumns = map[string]string{
	"id":             "u.id",
	"email":          "u.email",
	"emailconfirmed": "u.email_confirmed",
	"roleid":         "u.role_id",
}

// List returns one page of users plus the total number matching q.Search.
func (r *UserRepo) List(ctx context.Context, q ListQuery) ([]model.User, int, error) {
	where, args := "", []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = " WHERE " + likeClause("u.email")
		args = append(args, likePattern(s))
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM users u"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, args := page(q, args)
	users := []model.User{}
	if err := r.DB.SelectContext(ctx, &users, userSelect+where+orderBy(q, userSortColumns, "u.id")+limit, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// UpdateAccount changes the editable account fields and bumps the token
// version in the same statement, so every access token issued before the
// edit stops validating.
func (r *UserRepo) UpdateAccount(ctx context.Context, id uint64, email string, confirmed bool, roleID uint8) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, email_confirmed=?, role_id=?, token_version = token_version + 1, updated_at=CURRENT_TIMESTAMP
		 WHERE id=?`,
		strings.TrimSpace(email), confirmed, roleID, id)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

// BumpTokenVersion increments the token version. It never decreases.
func (r *UserRepo) BumpTokenVersion(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token_version = token_version + 1 WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RevokeSessions bumps the token version and drops the refresh token in one write.
func (r *UserRepo) RevokeSessions(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET token_version = token_version + 1, refresh_token=NULL, refresh_token_expires=NULL
		 WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetConfirmationToken stores a new confirmation token hash, replacing any previous one.
func (r *UserRepo) SetConfirmationToken(ctx context.Context, id uint64, hash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_confirmation_token=?, email_confirmation_expires=? WHERE id=?",
		hash, exp.UTC(), id)
	return err
}

// ConsumeConfirmation marks the email confirmed and clears the token, but
// only while the stored hash still equals hash.  ErrConflict means the
// token was already used.
func (r *UserRepo) ConsumeConfirmation(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email_confirmed=1, email_confirmation_token=NULL, email_confirmation_expires=NULL
		 WHERE id=? AND email_confirmation_token=?`, id, hash)
	if err != nil {
		return err
	}
	return expectConditional(res)
}

// ClearConfirmation drops the confirmation token without confirming the email.
func (r *UserRepo) ClearConfirmation(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_confirmation_token=NULL, email_confirmation_expires=NULL WHERE id=?", id)
	return err
}

// SetResetToken stores a new password reset token hash.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, hash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token=?, reset_token_expires=? WHERE id=?",
		hash, exp.UTC(), id)
	return err
}

// ConsumeReset replaces the password while the stored reset hash still
// equals hash.  The reset token and the refresh token are cleared and the
// token version bumped, ending every existing session.
func (r *UserRepo) ConsumeReset(ctx context.Context, id uint64, hash, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_token=NULL, reset_token_expires=NULL,
		 refresh_token=NULL, refresh_token_expires=NULL, token_version = token_version + 1, updated_at=CURRENT_TIMESTAMP
		 WHERE id=? AND reset_token=?`, passwordHash, id, hash)
	if err != nil {
		return err
	}
	return expectConditional(res)
}

// ClearReset drops the reset token without touching the password.
func (r *UserRepo) ClearReset(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token=NULL, reset_token_expires=NULL WHERE id=?", id)
	return err
}

// Delete removes one user.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteMany removes every listed user and reports how many existed.
func (r *UserRepo) DeleteMany(ctx context.Context, ids []uint64) (int64, error) {
	return deleteIn(ctx, r.DB, "users", ids)
}

func deleteIn(ctx context.Context, db *sqlx.DB, table string, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func expectConditional(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}
