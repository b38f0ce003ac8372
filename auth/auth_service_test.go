package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/auth"
	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/server"
	"github.com/jrsteele09/go-storefront-client/session"
	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/jrsteele09/go-storefront-client/token"
	"github.com/jrsteele09/go-storefront-client/users"
)

type testFixture struct {
	backend *server.Server
	ts      *httptest.Server
	session *session.Manager
	tokens  *token.Store
	service *auth.Service
}

func setupTestFixture(t *testing.T, options ...server.Option) *testFixture {
	t.Helper()

	backend, err := server.New(options...)
	require.NoError(t, err)
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	cfg, err := config.Parse([]byte("api:\n  base_url: " + ts.URL + "\n  prefix: /api\n"))
	require.NoError(t, err)

	durable := storage.NewMemory()
	tokens := token.NewStore(storage.NewMemory(), durable)
	sm := session.NewManager(tokens, session.IdentityOnly(durable))
	client := apiclient.New(cfg, sm)

	service, err := auth.NewService(client, sm)
	require.NoError(t, err)

	return &testFixture{backend: backend, ts: ts, session: sm, tokens: tokens, service: service}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := auth.NewService(nil, nil)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("object payload", func(t *testing.T) {
		f := setupTestFixture(t)
		s, err := f.service.Login(ctx, auth.LoginRequest{Email: "jane@example.com", Password: "password123"})
		require.NoError(t, err)

		require.Equal(t, users.RoleCustomer, s.Role)
		require.Equal(t, "CUSTOMER", s.RawRole)
		require.Equal(t, "jane@example.com", s.User.Email)
		require.Equal(t, "Jane Doe", s.User.FullName)
		require.NotEmpty(t, s.AccessToken)
		require.NotEmpty(t, s.RefreshToken)
		require.NotNil(t, s.ExpiresAt)
		require.Equal(t, s.AccessToken, f.tokens.AccessToken())
		require.True(t, f.session.IsAuthenticated())
	})

	t.Run("bare token payload", func(t *testing.T) {
		f := setupTestFixture(t, server.WithLoginStyle(server.LoginJWT))
		s, err := f.service.Login(ctx, auth.LoginRequest{Email: "admin@example.com", Password: "admin123"})
		require.NoError(t, err)

		require.Equal(t, users.RoleAdmin, s.Role)
		require.Equal(t, "admin@example.com", s.User.Email)
		require.Equal(t, "Store Admin", s.User.FullName)
		require.NotEmpty(t, s.User.ID)
		require.NotNil(t, s.ExpiresAt)
	})

	t.Run("oauth token response", func(t *testing.T) {
		now := time.Now()
		f := setupTestFixture(t, server.WithLoginStyle(server.LoginOAuth))
		s, err := f.service.Login(ctx, auth.LoginRequest{Email: "staff@example.com", Password: "staff123"})
		require.NoError(t, err)

		require.Equal(t, users.RoleAdmin, s.Role)
		require.Equal(t, "staff@example.com", s.User.Email)
		require.NotEmpty(t, s.RefreshToken)
		require.NotNil(t, s.ExpiresAt)
		require.InDelta(t, now.Add(15*time.Minute).UnixMilli(), *s.ExpiresAt, float64(time.Minute.Milliseconds()))
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Login(ctx, auth.LoginRequest{Email: "jane@example.com", Password: "wrong"})
		require.Error(t, err)
		require.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
		require.Contains(t, err.Error(), "Invalid email or password")
		require.False(t, f.session.IsAuthenticated())
		require.Empty(t, f.tokens.AccessToken())
	})
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	s, err := f.service.Signup(ctx, auth.SignupRequest{FullName: "New Person", Email: "new@example.com", Password: "pw123456"})
	require.NoError(t, err)
	require.Equal(t, users.RoleCustomer, s.Role)
	require.Equal(t, "new@example.com", s.User.Email)

	_, err = f.service.Signup(ctx, auth.SignupRequest{FullName: "Again", Email: "new@example.com", Password: "pw123456"})
	require.Error(t, err)
	require.True(t, apiclient.IsStatus(err, http.StatusConflict))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	t.Run("guest", func(t *testing.T) {
		_, err := f.service.Users(ctx)
		require.ErrorIs(t, err, apiclient.ErrAuthExpired)
	})

	t.Run("customer", func(t *testing.T) {
		_, err := f.service.Login(ctx, auth.LoginRequest{Email: "jane@example.com", Password: "password123"})
		require.NoError(t, err)
		_, err = f.service.Users(ctx)
		require.True(t, apiclient.IsStatus(err, http.StatusForbidden))
	})

	t.Run("admin", func(t *testing.T) {
		_, err := f.service.Login(ctx, auth.LoginRequest{Email: "admin@example.com", Password: "admin123"})
		require.NoError(t, err)
		accounts, err := f.service.Users(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, len(server.DefaultUsers))

		byEmail := map[string]auth.Account{}
		for i, a := range accounts {
			if i > 0 {
				require.Less(t, accounts[i-1].Email, a.Email)
			}
			require.NotEmpty(t, a.ID)
			byEmail[a.Email] = a
		}
		require.Equal(t, "Store Admin", byEmail["admin@example.com"].FullName)
		require.Equal(t, users.RoleAdmin, byEmail["admin@example.com"].Role())
		require.Equal(t, "CUSTOMER", byEmail["jane@example.com"].RawRole)
		require.Equal(t, users.RoleCustomer, byEmail["jane@example.com"].Role())
	})
}

func TestOAuth(t *testing.T) {
	f := setupTestFixture(t)
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	redirectQuery := func(t *testing.T, extra url.Values) url.Values {
		t.Helper()
		target := f.service.OAuthAuthorizationURL("google")
		if len(extra) > 0 {
			target += "?" + extra.Encode()
		}
		resp, err := noRedirect.Get(target)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		return loc.Query()
	}

	t.Run("authorization url", func(t *testing.T) {
		require.Equal(t, f.ts.URL+"/api/oauth2/authorization/google", f.service.OAuthAuthorizationURL("google"))
	})

	t.Run("success", func(t *testing.T) {
		s, err := f.service.CompleteOAuthRedirect(redirectQuery(t, nil))
		require.NoError(t, err)
		require.Equal(t, users.RoleCustomer, s.Role)
		require.Equal(t, "jane@example.com", s.User.Email)
		require.NotEmpty(t, s.RefreshToken)
		require.NotNil(t, s.ExpiresAt)
	})

	t.Run("provider error", func(t *testing.T) {
		_, err := f.service.CompleteOAuthRedirect(redirectQuery(t, url.Values{"fail": {"access_denied"}}))
		require.ErrorIs(t, err, auth.OAuthFailedErr)
		require.Contains(t, err.Error(), "access_denied")
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := f.service.CompleteOAuthRedirect(url.Values{})
		require.ErrorIs(t, err, auth.MissingAccessTokenErr)
	})

	t.Run("undecodable token", func(t *testing.T) {
		_, err := f.service.CompleteOAuthRedirect(url.Values{"accessToken": {"not-a-jwt"}})
		var decodeErr *token.DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	s, err := f.service.Login(ctx, auth.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	f.service.Logout()
	require.False(t, f.session.IsAuthenticated())
	require.Empty(t, f.tokens.AccessToken())
	require.Empty(t, f.tokens.RefreshToken())

	require.Eventually(t, func() bool {
		return f.backend.Stats().Logouts == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The revoked refresh token is gone on the server too.
	resp, err := http.Post(f.ts.URL+"/api/auth/refresh", "application/json",
		strings.NewReader(`{"refreshToken":"`+s.RefreshToken+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredSessionIsNotRevoked(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	_, err := f.service.Login(ctx, auth.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	f.session.Expire()
	require.Never(t, func() bool {
		return f.backend.Stats().Logouts > 0
	}, 200*time.Millisecond, 20*time.Millisecond)
}
