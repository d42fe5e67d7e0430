package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"go.uber.org/zap/zaptest"

	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/service"
	"github.com/danielolaru91/AuthSystem/internal/testutil"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

func newSessions(t *testing.T) (*service.SessionService, *sqlx.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := service.NewSessionService(
		repository.NewUserRepo(db),
		repository.NewTokenRepo(db),
		testutil.NewCodec(t),
		testutil.AuthConfig(),
		zaptest.NewLogger(t),
	)
	return svc, db
}

func TestLogin_Success(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw", testutil.WithRole(model.RoleAdmin))

	sess, err := svc.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.Access.Token)
	assert.NotEmpty(t, sess.Refresh.Raw)
	assert.Equal(t, utils.Identity{UserID: u.ID, Email: "a@b.com", Role: "Admin", TokenVersion: u.TokenVersion}, sess.Identity)

	stored := testutil.Reload(t, db, u.ID)
	assert.NotEqual(t, sess.Refresh.Raw, stored.RefreshToken.String)
	assert.Equal(t, utils.HashToken(sess.Refresh.Raw), stored.RefreshToken.String)
	assert.WithinDuration(t, sess.Refresh.Exp, stored.RefreshTokenExpiry.Time, time.Second)
}

func TestLogin_Failures(t *testing.T) {
	svc, db := newSessions(t)
	testutil.NewTestUser(t, db, "a@b.com", "pw")
	testutil.NewTestUser(t, db, "new@b.com", "pw", testutil.Unconfirmed())

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@b.com", "pw", service.ErrInvalidCredentials},
		{"wrong password", "a@b.com", "nope", service.ErrInvalidCredentials},
		{"email case differs", "A@B.com", "pw", service.ErrInvalidCredentials},
		{"unconfirmed", "new@b.com", "pw", service.ErrUnconfirmedAccount},
		{"unconfirmed wrong password", "new@b.com", "nope", service.ErrInvalidCredentials},
		{"missing email", "", "pw", service.ErrMissingFields},
		{"missing password", "a@b.com", "", service.ErrMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, sess)
		})
	}
}

func TestLogin_ReplacesPreviousRefreshToken(t *testing.T) {
	svc, db := newSessions(t)
	testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	first, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, first.Refresh.Raw)
	assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
}

func TestAuthenticate(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	id, err := svc.Authenticate(ctx, sess.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "User", id.Role)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, service.ErrTokenInvalid)
	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestAuthenticate_StaleAfterInvalidate(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, u.ID))

	_, err = svc.Authenticate(ctx, sess.Access.Token)
	assert.ErrorIs(t, err, service.ErrTokenVersionStale)

	_, err = svc.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	assert.ErrorIs(t, svc.Invalidate(ctx, 999), repository.ErrNotFound)
}

func TestAuthenticate_DeletedAccount(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, repository.NewUserRepo(db).Delete(ctx, u.ID))

	_, err = svc.Authenticate(ctx, sess.Access.Token)
	assert.ErrorIs(t, err, service.ErrTokenVersionStale)
}

func TestAuthenticate_ExpiredAccessToken(t *testing.T) {
	svc, db := newSessions(t)
	testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	later := svc.WithClock(func() time.Time { return time.Now().Add(16 * time.Minute) })
	_, err = later.Authenticate(ctx, sess.Access.Token)
	assert.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestRefresh_Rotates(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, sess.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.Raw, next.Refresh.Raw)
	assert.NotEqual(t, sess.Access.Token, next.Access.Token)
	assert.Equal(t, utils.HashToken(next.Refresh.Raw), testutil.Reload(t, db, u.ID).RefreshToken.String)

	_, err = svc.Authenticate(ctx, next.Access.Token)
	require.NoError(t, err)

	// the presented token is spent
	_, err = svc.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
}

func TestRefresh_PicksUpAccountChanges(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, repository.NewUserRepo(db).UpdateAccount(ctx, u.ID, "a@b.com", true, model.RoleAdmin))

	_, err = svc.Authenticate(ctx, sess.Access.Token)
	require.ErrorIs(t, err, service.ErrTokenVersionStale)

	next, err := svc.Refresh(ctx, sess.Refresh.Raw)
	require.NoError(t, err)
	assert.Equal(t, "Admin", next.Identity.Role)
	assert.Equal(t, u.TokenVersion+1, next.Identity.TokenVersion)

	id, err := svc.Authenticate(ctx, next.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "Admin", id.Role)
}

func TestRefresh_Rejections(t *testing.T) {
	svc, db := newSessions(t)
	testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	for _, raw := range []string{"", "   ", "unknown-token"} {
		_, err := svc.Refresh(ctx, raw)
		assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid, "raw=%q", raw)
	}

	expired := svc.WithClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) })
	_, err = expired.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	svc, db := newSessions(t)
	testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []*service.Session
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := svc.Refresh(ctx, sess.Refresh.Raw)
			if err != nil {
				assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
				return
			}
			mu.Lock()
			wins = append(wins, next)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, wins, 1)
	_, err = svc.Refresh(ctx, wins[0].Refresh.Raw)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Access.Token, sess.Refresh.Raw))
	assert.False(t, testutil.Reload(t, db, u.ID).RefreshToken.Valid)

	_, err = svc.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	// idempotent, and nothing presented is fine too
	require.NoError(t, svc.Logout(ctx, sess.Access.Token, sess.Refresh.Raw))
	require.NoError(t, svc.Logout(ctx, "", ""))
	require.NoError(t, svc.Logout(ctx, "garbage", "garbage"))
}

func TestLogout_AccessTokenOnly(t *testing.T) {
	svc, db := newSessions(t)
	u := testutil.NewTestUser(t, db, "a@b.com", "pw")
	ctx := context.Background()

	sess, err := svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Access.Token, ""))
	assert.False(t, testutil.Reload(t, db, u.ID).RefreshToken.Valid)
}
