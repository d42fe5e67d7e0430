// Package client is the consumer side of the session protocol.  A
// Controller holds the session credentials, resolves the current identity
// on start, and reacts to the server's SESSION_EXPIRED signal according
// to an ExpiryPolicy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	accessCookie  = "auth_token"
	refreshCookie = "refresh_token"

	codeSessionExpired = "SESSION_EXPIRED"
)

// State is the controller's view of the session.
type State int

const (
	StateUnknown State = iota
	StateRestoring
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// ExpiryPolicy decides what Do does when a request comes back with
// SESSION_EXPIRED.
type ExpiryPolicy int

const (
	// RetryOnce refreshes and replays the request a single time.
	RetryOnce ExpiryPolicy = iota
	// ForceLogout drops the credentials straight away.
	ForceLogout
)

// Identity is the caller as reported by /api/auth/me.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	UserID        uint64 `json:"userId"`
	Email         string `json:"email"`
	Role          string `json:"role"`
}

// ExpiredEvent describes the request that hit SESSION_EXPIRED.
type ExpiredEvent struct {
	Method string
	URL    string
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// ErrNotAuthenticated is returned by Refresh when the server rejects the
// refresh token, and by Me when the session cannot be validated.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// Option configures a Controller.
type Option func(*Controller)

func WithHTTPClient(hc *http.Client) Option { return func(c *Controller) { c.hc = hc } }
func WithStore(s CredentialStore) Option    { return func(c *Controller) { c.store = s } }
func WithPolicy(p ExpiryPolicy) Option      { return func(c *Controller) { c.policy = p } }
func WithLogger(l *zap.Logger) Option       { return func(c *Controller) { c.log = l } }

// OnSessionExpired registers a hook called every time a request is
// answered with SESSION_EXPIRED, before the policy runs.
func OnSessionExpired(fn func(ctx context.Context, ev ExpiredEvent)) Option {
	return func(c *Controller) { c.onExpired = fn }
}

// Controller drives the client side of a session.  Safe for concurrent use.
type Controller struct {
	base      string
	hc        *http.Client
	store     CredentialStore
	policy    ExpiryPolicy
	onExpired func(ctx context.Context, ev ExpiredEvent)
	log       *zap.Logger

	refreshes singleflight.Group

	mu       sync.Mutex
	state    State
	identity Identity
}

// New returns a controller for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Controller {
	c := &Controller{
		base:  strings.TrimRight(baseURL, "/"),
		hc:    &http.Client{Timeout: 15 * time.Second},
		store: &MemoryStore{},
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the identity resolved by the last successful Me.
func (c *Controller) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.state == StateAuthenticated
}

func (c *Controller) setState(s State, id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	c.identity = id
}

// Restore resolves the session on start: /me, then at most one refresh
// followed by one more /me.  Anything else ends Anonymous.
func (c *Controller) Restore(ctx context.Context) (State, error) {
	c.setState(StateRestoring, Identity{})

	if _, err := c.Me(ctx); err == nil {
		return StateAuthenticated, nil
	} else if !errors.Is(err, ErrNotAuthenticated) {
		c.setState(StateAnonymous, Identity{})
		return StateAnonymous, err
	}

	if err := c.Refresh(ctx); err != nil {
		c.log.Debug("restore: refresh failed", zap.Error(err))
		c.setState(StateAnonymous, Identity{})
		if errors.Is(err, ErrNotAuthenticated) {
			return StateAnonymous, nil
		}
		return StateAnonymous, err
	}
	if _, err := c.Me(ctx); err != nil {
		c.setState(StateAnonymous, Identity{})
		if errors.Is(err, ErrNotAuthenticated) {
			return StateAnonymous, nil
		}
		return StateAnonymous, err
	}
	return StateAuthenticated, nil
}

// Login authenticates and resolves the identity.
func (c *Controller) Login(ctx context.Context, email, password string) (Identity, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, decodeError(resp)
	}
	return c.Me(ctx)
}

// Me asks the server who the current credentials belong to.
func (c *Controller) Me(ctx context.Context) (Identity, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return Identity{}, ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, decodeError(resp)
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	c.setState(StateAuthenticated, id)
	return id, nil
}

// Refresh rotates the session.  Concurrent callers share one request.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Controller) refresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.store.Clear(ctx); err != nil {
			return err
		}
		return ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Logout ends the session on the server and forgets the credentials.
// The local state becomes Anonymous even when the server is unreachable.
func (c *Controller) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err == nil {
		_ = resp.Body.Close()
	}
	c.setState(StateAnonymous, Identity{})
	if cerr := c.store.Clear(ctx); cerr != nil {
		return cerr
	}
	return err
}

// Do sends req with the session credentials.  A SESSION_EXPIRED answer is
// reported to the OnSessionExpired hook and then handled by the policy;
// any other status, 403 included, is returned untouched.  Requests with a
// body must set GetBody to be replayable.
func (c *Controller) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	resp, err := c.roundTrip(ctx, req)
	if err != nil || !isSessionExpired(resp) {
		return resp, err
	}

	if c.onExpired != nil {
		c.onExpired(ctx, ExpiredEvent{Method: req.Method, URL: req.URL.String()})
	}

	if c.policy == ForceLogout {
		c.forget(ctx)
		return resp, nil
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		c.log.Info("session expired and refresh failed", zap.Error(rerr))
		c.forget(ctx)
		return resp, nil
	}
	retry, err := rewind(req)
	if err != nil {
		return resp, nil
	}
	_ = resp.Body.Close()

	resp, err = c.roundTrip(ctx, retry)
	if err == nil && isSessionExpired(resp) {
		c.forget(ctx)
	}
	return resp, err
}

func (c *Controller) forget(ctx context.Context) {
	c.setState(StateAnonymous, Identity{})
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("clear credentials failed", zap.Error(err))
	}
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

// send builds a JSON request against the API and sends it with credentials.
func (c *Controller) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.roundTrip(ctx, req)
}

func (c *Controller) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	creds, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	// req itself never carries the session cookies.
	out := req.Clone(ctx)
	out.Header.Del("Cookie")
	for _, ck := range req.Cookies() {
		if ck.Name != accessCookie && ck.Name != refreshCookie {
			out.AddCookie(ck)
		}
	}
	if creds.AccessToken != "" {
		out.AddCookie(&http.Cookie{Name: accessCookie, Value: creds.AccessToken})
	}
	if creds.RefreshToken != "" {
		out.AddCookie(&http.Cookie{Name: refreshCookie, Value: creds.RefreshToken})
	}
	resp, err := c.hc.Do(out)
	if err != nil {
		return nil, err
	}
	if err := c.capture(ctx, resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// capture applies Set-Cookie headers for the session cookies to the store.
func (c *Controller) capture(ctx context.Context, resp *http.Response) error {
	var touched bool
	creds, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, ck := range resp.Cookies() {
		var dst *string
		switch ck.Name {
		case accessCookie:
			dst = &creds.AccessToken
		case refreshCookie:
			dst = &creds.RefreshToken
		default:
			continue
		}
		touched = true
		if ck.MaxAge < 0 || ck.Value == "" {
			*dst = ""
		} else {
			*dst = ck.Value
		}
	}
	if !touched {
		return nil
	}
	if creds.Empty() {
		return c.store.Clear(ctx)
	}
	return c.store.Save(ctx, creds)
}

// isSessionExpired peeks at a 401 body for the SESSION_EXPIRED code and
// leaves the body readable.
func isSessionExpired(resp *http.Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	bs, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bs))
	if err != nil {
		return false
	}
	var body struct {
		Error string `json:"error"`
	}
	return json.Unmarshal(bs, &body) == nil && body.Error == codeSessionExpired
}

func decodeError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	bs, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(bs, e) != nil || (e.Message == "" && e.Code == "") {
		e.Message = strings.TrimSpace(string(bs))
	}
	return e
}
