package utils_test

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielolaru91/AuthSystem/internal/utils"
)

func TestNewRefreshToken(t *testing.T) {
	a, err := utils.NewRefreshToken(7 * 24 * time.Hour)
	require.NoError(t, err)
	b, err := utils.NewRefreshToken(7 * 24 * time.Hour)
	require.NoError(t, err)

	raw, err := hex.DecodeString(a.Raw)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(raw)*8, 256)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), a.Exp, 2*time.Second)
}

func TestNewOpaqueToken(t *testing.T) {
	tok, err := utils.NewOpaqueToken()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

func TestHashToken(t *testing.T) {
	h := utils.HashToken("abc")

	assert.Len(t, h, 64)
	assert.Equal(t, h, utils.HashToken("abc"))
	assert.NotEqual(t, h, utils.HashToken("abd"))
}

func TestPassword(t *testing.T) {
	hash, err := utils.HashPassword("pw1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, utils.VerifyPassword(hash, "pw1"))
	assert.False(t, utils.VerifyPassword(hash, "pw2"))
	assert.False(t, utils.VerifyPassword("not-a-hash", "pw1"))

	_, err = utils.HashPassword(strings.Repeat("x", utils.MaxPasswordBytes+1), bcrypt.MinCost)
	assert.ErrorIs(t, err, utils.ErrPasswordTooLong)
}
