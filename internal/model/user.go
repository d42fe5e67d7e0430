package model

import (
	"database/sql"
	"time"
)

// Role ids seeded by the initial migration.
const (
	RoleSuperAdmin uint8 = 1
	RoleAdmin      uint8 = 2
	RoleUser       uint8 = 3
)

// Role names as they appear in access token claims.
const (
	RoleNameSuperAdmin = "SuperAdmin"
	RoleNameAdmin      = "Admin"
	RoleNameUser       = "User"
)

// User represents a row of the `users` table joined with its role name.
// Token columns hold SHA-256 hex digests; the raw values only ever exist
// on the client.
//
// Fields:
//
//	ID                 – primary key identifier of the user.
//	Email              – unique login identifier, compared as stored.
//	PasswordHash       – bcrypt hashed password.
//	EmailConfirmed     – login is refused until true.
//	ConfirmationToken  – hash of the pending email confirmation token.
//	ResetToken         – hash of the pending password reset token.
//	RefreshToken       – hash of the single live refresh token.
//	TokenVersion       – bumped to invalidate every issued access token.
//	RoleID / RoleName  – role reference and its name.
type User struct {
	ID                 uint64         `db:"id"`
	Email              string         `db:"email"`
	PasswordHash       string         `db:"password_hash"`
	EmailConfirmed     bool           `db:"email_confirmed"`
	ConfirmationToken  sql.NullString `db:"email_confirmation_token"`
	ConfirmationExpiry sql.NullTime   `db:"email_confirmation_expires"`
	ResetToken         sql.NullString `db:"reset_token"`
	ResetTokenExpiry   sql.NullTime   `db:"reset_token_expires"`
	RefreshToken       sql.NullString `db:"refresh_token"`
	RefreshTokenExpiry sql.NullTime   `db:"refresh_token_expires"`
	TokenVersion       int64          `db:"token_version"`
	RoleID             uint8          `db:"role_id"`
	RoleName           string         `db:"role_name"`
}

// RefreshValid reports whether the stored refresh token is present and unexpired at now.
func (u User) RefreshValid(now time.Time) bool {
	return u.RefreshToken.Valid && u.RefreshTokenExpiry.Valid && u.RefreshTokenExpiry.Time.After(now)
}

// Role represents a row in the `roles` table.
type Role struct {
	ID       uint8  `db:"id"`
	Name     string `db:"name"`
	IsSystem bool   `db:"is_system"`
}
