package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-storefront-client/users"
)

type tokenPair struct {
	access    string
	refresh   string
	expiresAt time.Time
}

// issueTokens must be called with the state lock held.
func (s *Server) issueTokens(u *user) (tokenPair, error) {
	now := s.nowFunc()
	exp := now.Add(s.accessTTL)
	access, err := s.signer.Sign(jwt.MapClaims{
		"sub":       u.Email,
		"role":      u.Role,
		"userId":    u.ID,
		"fullName":  u.FullName,
		"lastLogin": u.LastLogin.UTC().Format(time.RFC3339),
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"gen":       s.currentGeneration(),
		"jti":       uuid.NewString(),
	})
	if err != nil {
		return tokenPair{}, err
	}
	refresh := uuid.NewString()
	s.state.refreshTokens[refresh] = u.ID
	return tokenPair{access: access, refresh: refresh, expiresAt: exp}, nil
}

func (s *Server) verifyAccessToken(raw string) (identity, error) {
	claims, err := s.signer.Verify(raw, s.nowFunc())
	if err != nil {
		return identity{}, err
	}
	if gen, _ := claims["gen"].(float64); int64(gen) < s.currentGeneration() {
		return identity{}, fmt.Errorf("access token revoked")
	}
	userID, _ := claims["userId"].(string)
	email, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	return identity{UserID: userID, Email: email, Role: users.NormalizeRole(role)}, nil
}

func userPayload(u *user) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"fullName":  u.FullName,
		"role":      u.Role,
		"lastLogin": u.LastLogin.UTC().Format(time.RFC3339),
	}
}

// LoginHandler checks the credentials and answers in the configured style.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.Logins++ })

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !readJSON(r, &body) {
			writeError(w, http.StatusBadRequest, "invalid login request")
			return
		}

		s.state.lock.Lock()
		u, ok := s.state.authenticate(body.Email, body.Password)
		if !ok {
			s.state.lock.Unlock()
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		u.LastLogin = s.nowFunc()
		pair, err := s.issueTokens(u)
		s.state.lock.Unlock()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		switch s.login {
		case LoginJWT:
			writeJSON(w, http.StatusOK, map[string]any{
				"status":       "success",
				"message":      "Login successful",
				"data":         pair.access,
				"refreshToken": pair.refresh,
			})
		case LoginOAuth:
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  pair.access,
				"refresh_token": pair.refresh,
				"token_type":    "bearer",
				"expires_in":    int64(s.accessTTL / time.Second),
			})
		default:
			writeJSON(w, http.StatusOK, envelope{
				Status:  "success",
				Message: "Login successful",
				Data: map[string]any{
					"accessToken":  pair.access,
					"refreshToken": pair.refresh,
					"tokenType":    "Bearer",
					"expiresAt":    pair.expiresAt.UnixMilli(),
					"user":         userPayload(u),
				},
			})
		}
	}
}

// RefreshHandler exchanges a refresh token for a new access token, rotating
// the refresh token when configured to.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.Refreshes++ })

		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if !readJSON(r, &body) || body.RefreshToken == "" {
			writeError(w, http.StatusUnauthorized, "refresh token required")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		userID, ok := s.state.refreshTokens[body.RefreshToken]
		u := s.state.userByID(userID)
		if !ok || u == nil {
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}

		pair, err := s.issueTokens(u)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		data := map[string]any{
			"accessToken": pair.access,
			"tokenType":   "Bearer",
			"expiresAt":   pair.expiresAt.UnixMilli(),
		}
		if s.rotate {
			delete(s.state.refreshTokens, body.RefreshToken)
			data["refreshToken"] = pair.refresh
		} else {
			delete(s.state.refreshTokens, pair.refresh)
		}
		writeSuccess(w, http.StatusOK, data)
	}
}

// LogoutHandler forgets the refresh token. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if readJSON(r, &body) && body.RefreshToken != "" {
			s.state.lock.Lock()
			delete(s.state.refreshTokens, body.RefreshToken)
			s.state.lock.Unlock()
		}
		s.count(func(st *Stats) { st.Logouts++ })
		writeSuccess(w, http.StatusOK, nil)
	}
}

// SignupHandler creates a user.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FullName string `json:"fullName"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if !readJSON(r, &body) || body.Email == "" || body.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}
		if body.Role == "" {
			body.Role = "CUSTOMER"
		}

		s.state.lock.Lock()
		u, err := s.state.addUser(body.Email, body.Password, body.FullName, body.Role)
		s.state.lock.Unlock()
		if err != nil {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeSuccess(w, http.StatusCreated, userPayload(u))
	}
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.state.lock.Lock()
		out := make([]map[string]any, 0, len(s.state.users))
		for _, u := range s.state.users {
			out = append(out, userPayload(u))
		}
		s.state.lock.Unlock()
		writeSuccess(w, http.StatusOK, out)
	}
}

// OAuth2AuthorizeHandler stands in for a provider sign in. It signs in the
// account named by login_hint (the first seeded customer otherwise) and
// redirects with the tokens in the query string, or with error=... when
// asked to fail.
func (s *Server) OAuth2AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		redirect := r.URL.Query().Get("redirect_uri")
		if redirect == "" {
			redirect = DefaultOAuth2Redirect
		}
		target, err := url.Parse(redirect)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid redirect_uri")
			return
		}
		q := target.Query()

		if errMsg := r.URL.Query().Get("fail"); errMsg != "" {
			q.Set("error", errMsg)
			target.RawQuery = q.Encode()
			http.Redirect(w, r, target.String(), http.StatusFound)
			return
		}

		email := r.URL.Query().Get("login_hint")
		s.state.lock.Lock()
		u := s.oauthAccount(email)
		if u == nil {
			s.state.lock.Unlock()
			q.Set("error", fmt.Sprintf("no %s account", provider))
			target.RawQuery = q.Encode()
			http.Redirect(w, r, target.String(), http.StatusFound)
			return
		}
		pair, err := s.issueTokens(u)
		s.state.lock.Unlock()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		q.Set("accessToken", pair.access)
		q.Set("refreshToken", pair.refresh)
		target.RawQuery = q.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}

func (s *Server) oauthAccount(email string) *user {
	if email != "" {
		return s.state.users[strings.ToLower(email)]
	}
	for _, a := range s.seedUsers {
		if strings.EqualFold(a.Role, "CUSTOMER") {
			return s.state.users[strings.ToLower(a.Email)]
		}
	}
	return nil
}
