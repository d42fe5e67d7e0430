package utils

import (
	"crypto/rand"     // secure random number generation
	"crypto/sha256"   // SHA-256 hashing for stored tokens
	"encoding/base64" // URL safe encoding for emailed tokens
	"encoding/hex"    // hex encoding for refresh tokens and digests
	"time"
)

// RefreshToken represents a long-lived token used to obtain new access tokens.
// Raw is returned to the client; the database only stores HashToken(Raw).
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// NewRefreshToken returns a random refresh token expiring ttl from now.
// 48 random bytes give 384 bits of entropy.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(buf), // 96 hex chars
		Exp: time.Now().UTC().Add(ttl),
	}, nil
}

// NewOpaqueToken returns a 64 byte random token, base64url encoded, for
// email confirmation and password reset links.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest stored in place of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
