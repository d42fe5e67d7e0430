// Package service holds the session lifecycle and account workflows.  Handlers
// translate the sentinel errors below into HTTP responses.
package service

import (
	"errors"

	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password; the two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnconfirmedAccount is returned when the password matches but the
	// email has not been confirmed.
	ErrUnconfirmedAccount = errors.New("please confirm your email before logging in")

	// ErrTokenInvalid is the codec's verification failure.
	ErrTokenInvalid = utils.ErrTokenInvalid
	// ErrTokenVersionStale means the token verified but the account has been
	// invalidated (or deleted) since it was minted.
	ErrTokenVersionStale = errors.New("access token revoked")
	// ErrRefreshTokenInvalid covers absent, unknown, expired and already
	// rotated refresh tokens.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")

	// ErrInvalidToken is returned for bad confirmation or reset tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrMissingFields is a validation failure on required input.
	ErrMissingFields = errors.New("email and password are required")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
	ErrPasswordTooLong = utils.ErrPasswordTooLong
	// ErrInvalidRole is returned when a role id does not exist.
	ErrInvalidRole = errors.New("invalid role")

	ErrEmailExists = repository.ErrEmailExists
	ErrNotFound    = repository.ErrNotFound
)
