package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/authmodel"
	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/session"
	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/jrsteele09/go-storefront-client/token"
	"github.com/jrsteele09/go-storefront-client/users"
)

const (
	staleToken = "stale-access"
	freshToken = "fresh-access"
)

type testAPIConfig struct {
	baseURL string
}

func (c testAPIConfig) GetBaseURL() string           { return c.baseURL }
func (testAPIConfig) GetAPIPrefix() string           { return "/api" }
func (testAPIConfig) GetEndpoints() config.Endpoints { return config.DefaultEndpoints() }
func (testAPIConfig) GetHTTPTimeout() time.Duration  { return 5 * time.Second }

type fakeNavigator struct {
	lock      sync.Mutex
	atLogin   bool
	redirects int
}

func (n *fakeNavigator) AtLogin() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.atLogin
}

func (n *fakeNavigator) RedirectToLogin() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.atLogin = true
	n.redirects++
}

func (n *fakeNavigator) count() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.redirects
}

// backend answers /api/things with 200 only for the fresh token.
type backend struct {
	refreshCalls  atomic.Int32
	refreshFails  atomic.Bool
	alwaysReject  atomic.Bool
	refreshDelay  atomic.Int64
	lastIdemKey   atomic.Value
	lastRefreshed atomic.Value
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		time.Sleep(time.Duration(b.refreshDelay.Load()))
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.lastRefreshed.Store(body.RefreshToken)
		if b.refreshFails.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"refresh token revoked"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"accessToken":"` + freshToken + `"}}`))
	})
	mux.HandleFunc("/api/things", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiclient.IdempotencyKeyHeader) != "" {
			b.lastIdemKey.Store(r.Header.Get(apiclient.IdempotencyKeyHeader))
		}
		if b.alwaysReject.Load() || r.Header.Get("Authorization") != "Bearer "+freshToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"token expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"name":"widget"}}`))
	})
	mux.HandleFunc("/api/errors/message", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":"error","message":"Out of stock"}`))
	})
	mux.HandleFunc("/api/errors/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Bad quantity"}`))
	})
	mux.HandleFunc("/api/errors/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/raw", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	})
	mux.HandleFunc("POST /api/graphql", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Query == "broken" {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Cannot query field"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"products":[{"id":"p-1001"}]}}`))
	})
	return mux
}

type testFixture struct {
	backend   *backend
	server    *httptest.Server
	tokens    *token.Store
	session   *session.Manager
	navigator *fakeNavigator
	client    *apiclient.Client
}

func setupTestFixture(t *testing.T, refreshToken string) *testFixture {
	t.Helper()

	b := &backend{}
	b.refreshDelay.Store(int64(50 * time.Millisecond))
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	durable := storage.NewMemory()
	tokens := token.NewStore(storage.NewMemory(), durable)
	sm := session.NewManager(tokens, session.IdentityOnly(durable))
	_, err := sm.Login(session.Identity{User: users.User{ID: "u-1"}}, "customer", authmodel.AuthMeta{
		AccessToken:  staleToken,
		RefreshToken: refreshToken,
	})
	require.NoError(t, err)

	nav := &fakeNavigator{}
	client := apiclient.New(testAPIConfig{baseURL: srv.URL}, sm, apiclient.WithNavigator(nav))

	return &testFixture{
		backend:   b,
		server:    srv,
		tokens:    tokens,
		session:   sm,
		navigator: nav,
		client:    client,
	}
}

func (f *testFixture) getThing(ctx context.Context) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	err := f.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/things"}, &out)
	return out.Name, err
}

func TestClient_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i], errs[i] = f.getThing(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "widget", names[i])
	}
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, "refresh-1", f.backend.lastRefreshed.Load())
	require.Equal(t, freshToken, f.tokens.AccessToken())
	require.Equal(t, "refresh-1", f.tokens.RefreshToken(), "refresh without rotation keeps the old refresh token")
	require.Equal(t, users.RoleCustomer, f.session.Role())
	require.Equal(t, 0, f.navigator.count())
}

func TestClient_RefreshFailureLogsOutOnce(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")
	f.backend.refreshFails.Store(true)

	var hookCalls, otherReasons atomic.Int32
	f.session.OnLogout(func(_ session.Session, reason session.Reason) {
		if reason != session.ReasonExpired {
			otherReasons.Add(1)
		}
		hookCalls.Add(1)
	})

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.getThing(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, apiclient.ErrAuthExpired)
		require.Equal(t, "session expired, please log in again", err.Error())
	}
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, 1, f.navigator.count())
	require.Equal(t, "", f.tokens.AccessToken())
	require.Equal(t, "", f.tokens.RefreshToken())
	require.True(t, f.session.Current().IsEmpty())
	require.GreaterOrEqual(t, hookCalls.Load(), int32(1))
	require.Equal(t, int32(0), otherReasons.Load())
}

func TestClient_LogoutDuringRefreshKeepsSessionEnded(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")
	f.backend.refreshDelay.Store(int64(200 * time.Millisecond))

	errs := make(chan error, 1)
	go func() {
		_, err := f.getThing(context.Background())
		errs <- err
	}()

	time.Sleep(80 * time.Millisecond)
	f.session.Logout()

	err := <-errs
	require.ErrorIs(t, err, apiclient.ErrAuthExpired)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, "", f.tokens.AccessToken())
	require.Equal(t, "", f.tokens.RefreshToken())
	require.True(t, f.session.Current().IsEmpty())
	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 0, f.navigator.count(), "a user logout is not an expiry redirect")

	t.Run("waiters see the ended session too", func(t *testing.T) {
		f := setupTestFixture(t, "refresh-1")
		f.backend.refreshDelay.Store(int64(200 * time.Millisecond))

		const n = 4
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.getThing(context.Background())
			}(i)
		}
		time.Sleep(80 * time.Millisecond)
		f.session.Logout()
		wg.Wait()

		for _, err := range errs {
			require.ErrorIs(t, err, apiclient.ErrAuthExpired)
		}
		require.Equal(t, "", f.tokens.AccessToken())
		require.True(t, f.session.Current().IsEmpty())
	})

	t.Run("another account signs in", func(t *testing.T) {
		f := setupTestFixture(t, "refresh-1")
		f.backend.refreshDelay.Store(int64(200 * time.Millisecond))

		errs := make(chan error, 1)
		go func() {
			_, err := f.getThing(context.Background())
			errs <- err
		}()

		time.Sleep(80 * time.Millisecond)
		_, err := f.session.Login(session.Identity{User: users.User{ID: "u-2"}}, "admin", authmodel.AuthMeta{
			AccessToken:  "other-access",
			RefreshToken: "other-refresh",
		})
		require.NoError(t, err)

		require.ErrorIs(t, <-errs, apiclient.ErrAuthExpired)
		require.Equal(t, "other-access", f.tokens.AccessToken())
		require.Equal(t, "other-refresh", f.tokens.RefreshToken())
		require.Equal(t, "u-2", f.session.Current().User.ID)
	})
}

func TestClient_CancelledWaiterGetsRequestError(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")
	f.backend.refreshDelay.Store(int64(200 * time.Millisecond))

	leader := make(chan error, 1)
	go func() {
		_, err := f.getThing(context.Background())
		leader <- err
	}()
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(60*time.Millisecond, cancel)
	_, err := f.getThing(ctx)

	var re *apiclient.RequestError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "GET /things", re.Op)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, apiclient.ErrAuthExpired))

	require.NoError(t, <-leader)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
}

func TestClient_NoRefreshTokenIsHardLogout(t *testing.T) {
	f := setupTestFixture(t, "")

	_, err := f.getThing(context.Background())
	require.ErrorIs(t, err, apiclient.ErrAuthExpired)
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
	require.Equal(t, 1, f.navigator.count())
	require.Equal(t, "", f.tokens.AccessToken())
}

func TestClient_NoRedirectWhenAlreadyAtLogin(t *testing.T) {
	f := setupTestFixture(t, "")
	f.navigator.atLogin = true

	_, err := f.getThing(context.Background())
	require.ErrorIs(t, err, apiclient.ErrAuthExpired)
	require.Equal(t, 0, f.navigator.count())
}

func TestClient_RetriesOnlyOnce(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")
	f.backend.alwaysReject.Store(true)

	_, err := f.getThing(context.Background())

	var re *apiclient.RequestError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusUnauthorized, re.StatusCode)
	require.Equal(t, "token expired", re.Message)
	require.False(t, errors.Is(err, apiclient.ErrAuthExpired))
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, 0, f.navigator.count())
}

func TestClient_SkipAuthRefresh(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")

	err := f.client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/things", SkipAuthRefresh: true}, nil)
	require.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
	require.Equal(t, staleToken, f.tokens.AccessToken())
}

func TestClient_CurrentTokenIsReusedAfterRefresh(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")

	_, err := f.getThing(context.Background())
	require.NoError(t, err)

	// A request still carrying the old token must not start a second refresh.
	err = f.client.Do(context.Background(), &apiclient.Request{
		Method: http.MethodGet,
		Path:   "/things",
		Header: http.Header{"Authorization": []string{"Bearer " + staleToken}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
}

func TestClient_ErrorMessages(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")

	tests := []struct {
		path       string
		wantStatus int
		wantMsg    string
	}{
		{"/errors/message", http.StatusConflict, "Out of stock"},
		{"/errors/error", http.StatusBadRequest, "Bad quantity"},
		{"/errors/empty", http.StatusInternalServerError, "request failed with status code 500"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := f.client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: tt.path}, nil)
			var re *apiclient.RequestError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tt.wantStatus, re.StatusCode)
			require.Equal(t, tt.wantMsg, err.Error())
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		f.server.Close()
		err := f.client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/raw"}, nil)
		var re *apiclient.RequestError
		require.ErrorAs(t, err, &re)
		require.Equal(t, 0, re.StatusCode)
		require.NotEmpty(t, re.Message)
	})
}

func TestClient_PayloadWithoutEnvelope(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")

	var out []int
	err := f.client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/raw"}, &out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, out)
}

func TestClient_IdempotencyKey(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")
	key := apiclient.NewIdempotencyKey()
	require.NotEqual(t, key, apiclient.NewIdempotencyKey())

	err := f.client.Do(context.Background(), &apiclient.Request{
		Method:         http.MethodPost,
		Path:           "/things",
		Body:           map[string]string{"a": "b"},
		IdempotencyKey: key,
	}, nil)
	require.NoError(t, err)
	// Sent on the first attempt and again on the retry after refresh.
	require.Equal(t, key, f.backend.lastIdemKey.Load())
}

func TestClient_GraphQL(t *testing.T) {
	f := setupTestFixture(t, "refresh-1")

	var out struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	require.NoError(t, f.client.GraphQL(context.Background(), "{ products { id } }", nil, &out))
	require.Len(t, out.Products, 1)
	require.Equal(t, "p-1001", out.Products[0].ID)

	err := f.client.GraphQL(context.Background(), "broken", nil, nil)
	require.EqualError(t, err, "Cannot query field")
}
