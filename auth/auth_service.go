package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/authmodel"
	"github.com/jrsteele09/go-storefront-client/internal/utils"
	"github.com/jrsteele09/go-storefront-client/session"
	"github.com/jrsteele09/go-storefront-client/token"
	"github.com/jrsteele09/go-storefront-client/users"
)

const revokeTimeout = 5 * time.Second

// LoginRequest is the body of the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of the user creation endpoint. Role is sent in
// the server's upper case form.
type SignupRequest struct {
	FullName string         `json:"fullName"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     users.RoleType `json:"-"`
}

// Account is a user as the admin listing reports it. RawRole is the server's
// designation, unnormalized.
type Account struct {
	users.User
	RawRole string `json:"role"`
}

func (a Account) Role() users.RoleType {
	return users.NormalizeRole(a.RawRole)
}

// Service turns the different ways of signing in into a session.
type Service struct {
	client  *apiclient.Client
	session *session.Manager
	nowTime func() time.Time
	logger  zerolog.Logger
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService wires the service to the session and registers the server side
// logout on it.
func NewService(client *apiclient.Client, sm *session.Manager, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	if sm == nil {
		return nil, errors.New("[NewService] session manager is required")
	}

	s := &Service{
		client:  client,
		session: sm,
		nowTime: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	sm.OnLogout(s.revoke)
	return s, nil
}

// Login posts the credentials and establishes the session from whatever the
// backend returns: an object with tokens and identity, an RFC 6749 token
// response, or a bare signed token whose claims carry the identity.
func (s *Service) Login(ctx context.Context, req LoginRequest) (session.Session, error) {
	var raw json.RawMessage
	err := s.client.Do(ctx, &apiclient.Request{
		Method:          http.MethodPost,
		Path:            s.client.Endpoints().Login,
		Body:            req,
		SkipAuthRefresh: true,
	}, &raw)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "[Login] request failed")
	}

	tr, err := parseLoginPayload(raw)
	if err != nil {
		return session.Session{}, err
	}
	return s.establish(tr)
}

// Signup creates the user and logs in with the same credentials.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (session.Session, error) {
	role := req.Role
	if !role.Valid() {
		role = users.RoleCustomer
	}
	body := struct {
		SignupRequest
		Role string `json:"role"`
	}{req, strings.ToUpper(string(role))}

	err := s.client.Do(ctx, &apiclient.Request{
		Method:          http.MethodPost,
		Path:            s.client.Endpoints().Users,
		Body:            body,
		SkipAuthRefresh: true,
	}, nil)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "[Signup] create user failed")
	}
	return s.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
}

// OAuthAuthorizationURL is where the browser goes to sign in with provider.
func (s *Service) OAuthAuthorizationURL(provider string) string {
	return s.client.URL(strings.TrimRight(s.client.Endpoints().OAuth2, "/") + "/" + url.PathEscape(provider))
}

// CompleteOAuthRedirect builds the session from the query string the backend
// redirects to after a provider sign in.
func (s *Service) CompleteOAuthRedirect(query url.Values) (session.Session, error) {
	if msg := query.Get("error"); msg != "" {
		return session.Session{}, errors.Wrap(OAuthFailedErr, msg)
	}
	access := query.Get("accessToken")
	if access == "" {
		return session.Session{}, errors.Wrap(MissingAccessTokenErr, "[CompleteOAuthRedirect]")
	}
	return s.establish(authmodel.TokenResponse{
		AccessToken:  access,
		RefreshToken: query.Get("refreshToken"),
		TokenType:    authmodel.DefaultTokenType,
		Bare:         true,
	})
}

// Users lists every account, ordered by email. Only admins may call it.
func (s *Service) Users(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: s.client.Endpoints().Users}, &accounts)
	if err != nil {
		return nil, errors.Wrap(err, "[Users] list users failed")
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts, nil
}

// Logout ends the session locally. The server is told in the background.
func (s *Service) Logout() {
	s.session.Logout()
}

// establish decodes claims when the payload did not name the user. Claims are
// display data only; the server checks the token on every request.
func (s *Service) establish(tr authmodel.TokenResponse) (session.Session, error) {
	tr.ResolveExpiry(s.nowTime())
	meta := tr.Meta()

	identity := session.Identity{User: users.User{
		ID:        tr.UserID,
		Email:     tr.Email,
		FullName:  tr.FullName,
		LastLogin: tr.LastLogin,
	}}
	role := tr.Role

	if tr.Bare || !tr.HasIdentity() {
		claims, err := token.DecodeClaims(tr.AccessToken)
		if err != nil {
			return session.Session{}, err
		}
		identity.ID = claims.UserID
		identity.Email = claims.Subject
		identity.FullName = claims.FullName
		identity.LastLogin = claims.LastLogin
		if role == "" {
			role = claims.Role
		}
		if meta.ExpiresAt == nil {
			meta.ExpiresAt = claims.ExpiresAtMillis()
		}
	}

	return s.session.Login(identity, role, meta)
}

// revoke tells the server about a user initiated logout. It never blocks the
// local logout and its failure is only logged.
func (s *Service) revoke(prev session.Session, reason session.Reason) {
	if reason != session.ReasonLogout || (prev.AccessToken == "" && prev.RefreshToken == "") {
		return
	}

	r := &apiclient.Request{
		Method:          http.MethodPost,
		Path:            s.client.Endpoints().Logout,
		SkipAuthRefresh: true,
		Header:          http.Header{},
	}
	if prev.AccessToken != "" {
		r.Header.Set("Authorization", utils.Coalesce(prev.TokenType, authmodel.DefaultTokenType)+" "+prev.AccessToken)
	}
	if prev.RefreshToken != "" {
		r.Body = map[string]string{"refreshToken": prev.RefreshToken}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
		defer cancel()
		if err := s.client.Do(ctx, r, nil); err != nil {
			s.logger.Debug().Err(err).Msg("auth: server logout failed")
		}
	}()
}

// parseLoginPayload rejects an envelope that did not report success and any
// payload without an access token.
func parseLoginPayload(raw json.RawMessage) (authmodel.TokenResponse, error) {
	var env struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Status != "" && env.Status != "success" {
		return authmodel.TokenResponse{}, loginFailed(env.Message)
	}

	var tr authmodel.TokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return authmodel.TokenResponse{}, &token.DecodeError{Err: err}
	}
	if tr.AccessToken == "" {
		return authmodel.TokenResponse{}, loginFailed(env.Message)
	}
	return tr, nil
}

// loginFailed keeps the server's message for display and matches
// LoginFailedErr.
func loginFailed(message string) error {
	if message == "" {
		message = "Login failed"
	}
	return &apiclient.RequestError{Op: "login", StatusCode: http.StatusOK, Message: message, Err: LoginFailedErr}
}
