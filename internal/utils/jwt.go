package utils // package utils provides token creation, verification and hashing helpers

import (
	"errors"  // errors defines the invalid token sentinel
	"fmt"     // fmt wraps parser errors
	"strconv" // strconv encodes the subject claim
	"time"    // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // uuid provides the jti claim

	"github.com/danielolaru91/AuthSystem/internal/config"
)

// ErrTokenInvalid covers every reason an access token fails verification:
// bad signature, wrong algorithm, expired, wrong issuer or audience, or
// claims that cannot be interpreted.
var ErrTokenInvalid = errors.New("access token invalid")

// Identity is the account projection embedded in an access token.
type Identity struct {
	UserID       uint64
	Email        string
	Role         string
	TokenVersion int64
}

// Claims is the fixed claim record carried by every access token.  The
// subject holds the decimal account id.
type Claims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int64  `json:"tv"`
	jwt.RegisteredClaims
}

// Identity converts verified claims back into an Identity.
func (c *Claims) Identity() (Identity, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return Identity{UserID: id, Email: c.Email, Role: c.Role, TokenVersion: c.TokenVersion}, nil
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenCodec mints and verifies HS256 access tokens.  The secret is fixed
// at construction; verification never consults the environment.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenCodec returns a codec for cfg.  An empty secret is a
// configuration error and yields config.ErrSigningSecretMissing.
func NewTokenCodec(cfg config.AuthConfig) (*TokenCodec, error) {
	if cfg.JWTSecret == "" {
		return nil, config.ErrSigningSecretMissing
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenCodec{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source; used by tests to mint expired tokens.
func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *tc
	cp.now = now
	return &cp
}

// TTL returns the access token lifetime.
func (tc *TokenCodec) TTL() time.Duration { return tc.ttl }

// Mint signs an access token for id that expires TTL from now.
func (tc *TokenCodec) Mint(id Identity) (AccessToken, error) {
	now := tc.now().UTC()
	exp := now.Add(tc.ttl)
	claims := Claims{
		Email:        id.Email,
		Role:         id.Role,
		TokenVersion: id.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(id.UserID, 10),
			Issuer:    tc.issuer,
			Audience:  jwt.ClaimStrings{tc.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry with no
// leeway.  It does not look at the token version; that requires the
// credential store.
func (tc *TokenCodec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrTokenInvalid)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(tc.now),
	}
	if tc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tc.issuer))
	}
	if tc.audience != "" {
		opts = append(opts, jwt.WithAudience(tc.audience))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		// Type assert the signing method to HMAC; reject others.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tc.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.Identity(); err != nil {
		return nil, err
	}
	return &claims, nil
}
