package apiclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-storefront-client/authmodel"
	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
)

// Credentials is the session as seen by the pipeline.
type Credentials interface {
	oauth2.TokenSource
	RefreshToken() string
	// Generation changes whenever the session is replaced or ended.
	Generation() uint64
	// UpdateTokens applies a refresh result unless the session changed since
	// generation, and reports whether it did.
	UpdateTokens(generation uint64, meta authmodel.AuthMeta) bool
	// Expire clears the session and every stored token.
	Expire()
}

// Navigator is the UI hook for a forced logout.
type Navigator interface {
	AtLogin() bool
	RedirectToLogin()
}

type noopNavigator struct{}

func (noopNavigator) AtLogin() bool    { return true }
func (noopNavigator) RedirectToLogin() {}

// Client sends requests with the current bearer credential and recovers from
// an expired access token by refreshing it once. Concurrent 401s share a
// single refresh call.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	endpoints      config.Endpoints
	creds          Credentials
	navigator      Navigator
	refreshTimeout time.Duration
	nowFunc        func() time.Time
	logger         zerolog.Logger

	lock       sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

type refreshResult struct {
	tok *oauth2.Token
	err error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithRefreshTimeout bounds the refresh call. The refresh does not inherit
// the cancellation of the request that triggered it, as other requests may be
// waiting on it.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

func WithEndpoints(e config.Endpoints) Option {
	return func(c *Client) {
		c.endpoints = e
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(cfg config.APIConfig, creds Credentials, options ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.GetHTTPTimeout()},
		baseURL:        strings.TrimRight(cfg.GetBaseURL(), "/") + cfg.GetAPIPrefix(),
		endpoints:      cfg.GetEndpoints(),
		creds:          creds,
		navigator:      noopNavigator{},
		refreshTimeout: 10 * time.Second,
		nowFunc:        time.Now,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Endpoints are the backend paths this client was configured with.
func (c *Client) Endpoints() config.Endpoints {
	return c.endpoints
}

// URL is the absolute URL for a path, for callers that hand it to a browser.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Do sends r and decodes the unwrapped payload into out, which may be nil.
//
// A 401 is answered with at most one retry. If the credential cannot be
// renewed the session is expired, the navigator redirected and ErrAuthExpired
// returned. Every other failure is a *RequestError.
func (c *Client) Do(ctx context.Context, r *Request, out any) error {
	payload, err := r.encode()
	if err != nil {
		return transportError(r.op(), err)
	}

	status, body, sentWith, err := c.send(ctx, r, payload, nil)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !r.SkipAuthRefresh {
		tok, err := c.renew(ctx, r.op(), sentWith)
		if err != nil {
			return err
		}
		// The retry is final: a second 401 goes back to the caller.
		status, body, _, err = c.send(ctx, r, payload, tok)
		if err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return statusError(r.op(), status, body)
	}
	if err := decode(unwrap(body), out); err != nil {
		return &RequestError{Op: r.op(), StatusCode: status, Message: "invalid response from server", Err: err}
	}
	return nil
}

// send performs one round trip. tok overrides the session credential; with a
// nil tok the current one is attached unless the request set its own. It
// returns the access token that was sent, "" for none.
func (c *Client) send(ctx context.Context, r *Request, payload []byte, tok *oauth2.Token) (int, []byte, string, error) {
	req, err := r.build(c.baseURL, payload)
	if err != nil {
		return 0, nil, "", transportError(r.op(), err)
	}
	req = req.WithContext(ctx)

	switch {
	case tok != nil:
		// A retry always carries the renewed credential.
		tok.SetAuthHeader(req)
	case req.Header.Get("Authorization") == "":
		if cur := c.currentToken(); cur != nil && cur.AccessToken != "" {
			cur.SetAuthHeader(req)
		}
	}
	sentWith := credentialOf(req.Header.Get("Authorization"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, sentWith, transportError(r.op(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, sentWith, transportError(r.op(), err)
	}
	return resp.StatusCode, body, sentWith, nil
}

// Refresh renews the access token now, joining a refresh already in flight.
// A failure ends the session exactly like a failed 401 recovery.
func (c *Client) Refresh(ctx context.Context) error {
	sentWith := ""
	if cur := c.currentToken(); cur != nil {
		sentWith = cur.AccessToken
	}
	_, err := c.renew(ctx, http.MethodPost+" "+c.endpoints.Refresh, sentWith)
	return err
}

func (c *Client) currentToken() *oauth2.Token {
	tok, err := c.creds.Token()
	if err != nil {
		return nil
	}
	return tok
}

// renew returns the token to retry with after a 401 on a request that was
// sent with sentWith.
func (c *Client) renew(ctx context.Context, op, sentWith string) (*oauth2.Token, error) {
	c.lock.Lock()

	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.lock.Unlock()

		select {
		case res := <-ch:
			return res.tok, res.err
		case <-ctx.Done():
			return nil, transportError(op, ctx.Err())
		}
	}

	// Another request already refreshed after this one was sent.
	if cur := c.currentToken(); cur != nil && cur.AccessToken != sentWith {
		c.lock.Unlock()
		return cur, nil
	}

	generation := c.creds.Generation()
	refreshToken := c.creds.RefreshToken()
	if refreshToken == "" {
		c.lock.Unlock()
		c.logger.Debug().Msg("apiclient: 401 without a refresh token")
		c.expire()
		return nil, ErrAuthExpired
	}

	c.refreshing = true
	c.lock.Unlock()

	tok, err := c.refresh(ctx, generation, refreshToken)

	if err != nil && !errors.Is(err, errSessionChanged) {
		// Expire while the flag is still held so no late 401 can start a
		// second refresh with the dead refresh token.
		c.expire()
	}

	c.lock.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	c.lock.Unlock()

	if errors.Is(err, errSessionChanged) {
		c.logger.Debug().Int("waiters", len(waiters)).Msg("apiclient: session ended during refresh, dropping the result")
		for _, w := range waiters {
			w <- refreshResult{err: ErrAuthExpired}
		}
		return nil, ErrAuthExpired
	}
	if err != nil {
		c.logger.Warn().Err(err).Int("waiters", len(waiters)).Msg("apiclient: token refresh failed")
		for _, w := range waiters {
			w <- refreshResult{err: ErrAuthExpired}
		}
		return nil, &refreshError{err: err}
	}

	for _, w := range waiters {
		w <- refreshResult{tok: copyToken(tok)}
	}
	return tok, nil
}

// expire is the hard logout. Tokens and session are cleared before the
// redirect so nothing can resurrect them.
func (c *Client) expire() {
	c.creds.Expire()
	if !c.navigator.AtLogin() {
		c.navigator.RedirectToLogin()
	}
}

// credentialOf returns the token part of an Authorization header value.
func credentialOf(header string) string {
	if _, cred, ok := strings.Cut(header, " "); ok {
		return cred
	}
	return header
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	cp := *t
	return &cp
}

// refreshError carries the cause of a failed refresh. It matches
// ErrAuthExpired.
type refreshError struct {
	err error
}

func (e *refreshError) Error() string {
	return ErrAuthExpired.Error()
}

func (e *refreshError) Unwrap() []error {
	return []error{ErrAuthExpired, e.err}
}
