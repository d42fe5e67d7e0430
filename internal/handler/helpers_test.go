package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/testutil"
	"github.com/danielolaru91/AuthSystem/internal/testutil/testserver"
)

// browser is an HTTP client with a cookie jar, like the SPA.
type browser struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func newBrowser(t *testing.T, env *testserver.Env) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: env.URL, hc: &http.Client{Jar: jar}}
}

type result struct {
	Status int
	Body   []byte
	Resp   *http.Response
}

func (r result) JSON(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m), string(r.Body))
	return m
}

func (r result) cookie(name string) *http.Cookie {
	for _, c := range r.Resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (b *browser) do(method, path string, body any, hdr ...string) result {
	b.t.Helper()
	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(b.t, err)
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequest(method, b.base+path, rdr)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := b.hc.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	bs, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return result{Status: resp.StatusCode, Body: bs, Resp: resp}
}

func (b *browser) login(email, password string) result {
	b.t.Helper()
	r := b.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(b.t, http.StatusOK, r.Status, string(r.Body))
	return r
}

// seed creates a confirmed account with the given role and logs a fresh
// browser in as it.
func seed(t *testing.T, env *testserver.Env, email string, role uint8) (*browser, *model.User) {
	t.Helper()
	u := testutil.NewTestUser(t, env.DB, email, "pw", testutil.WithRole(role))
	b := newBrowser(t, env)
	b.login(email, "pw")
	return b, u
}
