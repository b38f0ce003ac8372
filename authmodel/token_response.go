package authmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-storefront-client/internal/utils"
)

const DefaultTokenType = "Bearer"

// AuthMeta carries the credential fields of a session. Empty strings and a nil
// ExpiresAt mean "not provided".
type AuthMeta struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresAt    *int64 `json:"expiresAt,omitempty"` // epoch milliseconds
}

// TokenResponse is the payload of the login and refresh endpoints after the
// envelope has been removed. Backends disagree on its shape, so decoding
// accepts all of the observed variants:
//
//   - a bare JSON string holding a signed token
//   - {accessToken, refreshToken, tokenType, expiresAt} (camelCase)
//   - {access_token, refresh_token, token_type, expires_in} (RFC 6749)
//   - either of the above with identity fields (id/userId, email/sub,
//     fullName, role, lastLogin) next to the tokens or under "user"
type TokenResponse struct {
	// AccessToken is the bearer credential.
	// Usage: "Authorization: <TokenType> <AccessToken>"
	AccessToken string

	// RefreshToken is only present when the backend issues or rotates one.
	// Absence is not an error: the stored refresh token stays in use.
	RefreshToken string

	// TokenType defaults to "Bearer" when the backend omits it.
	TokenType string

	// ExpiresAt is the access token expiry in epoch milliseconds, taken from
	// expiresAt or derived from expires_in when decoded with ResolveExpiry.
	ExpiresAt *int64

	// ExpiresIn is the lifetime in seconds (RFC 6749 expires_in).
	ExpiresIn int64

	// Identity fields some backends return alongside the tokens.
	UserID    string
	Email     string
	FullName  string
	Role      string
	LastLogin string

	// Bare is true when the payload was only a token string and identity has
	// to come from the token's claims.
	Bare bool
}

type wireUser struct {
	ID        any    `json:"id"`
	UserID    any    `json:"userId"`
	Email     string `json:"email"`
	Sub       string `json:"sub"`
	FullName  string `json:"fullName"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	LastLogin string `json:"lastLogin"`
}

type wireTokenResponse struct {
	wireUser
	AccessToken       string    `json:"accessToken"`
	AccessTokenSnake  string    `json:"access_token"`
	Token             string    `json:"token"`
	RefreshToken      string    `json:"refreshToken"`
	RefreshTokenSnake string    `json:"refresh_token"`
	TokenType         string    `json:"tokenType"`
	TokenTypeSnake    string    `json:"token_type"`
	ExpiresAt         any       `json:"expiresAt"`
	ExpiresIn         any       `json:"expiresIn"`
	ExpiresInSnake    any       `json:"expires_in"`
	User              *wireUser `json:"user"`
}

func (t *TokenResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*t = TokenResponse{AccessToken: strings.TrimSpace(raw), Bare: true}
		return nil
	}

	var w wireTokenResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}

	u := w.wireUser
	if w.User != nil {
		u = mergeUser(*w.User, u)
	}

	*t = TokenResponse{
		AccessToken:  utils.Coalesce(w.AccessToken, w.AccessTokenSnake, w.Token),
		RefreshToken: utils.Coalesce(w.RefreshToken, w.RefreshTokenSnake),
		TokenType:    utils.Coalesce(w.TokenType, w.TokenTypeSnake),
		ExpiresAt:    epochMillis(w.ExpiresAt),
		UserID:       utils.Coalesce(anyString(u.ID), anyString(u.UserID)),
		Email:        utils.Coalesce(u.Email, u.Sub),
		FullName:     utils.Coalesce(u.FullName, u.Name),
		Role:         u.Role,
		LastLogin:    u.LastLogin,
	}
	t.ExpiresIn = anyInt(w.ExpiresInSnake)
	if t.ExpiresIn <= 0 {
		t.ExpiresIn = anyInt(w.ExpiresIn)
	}
	return nil
}

// ResolveExpiry fills ExpiresAt from ExpiresIn when only the lifetime was sent.
func (t *TokenResponse) ResolveExpiry(now time.Time) {
	if t.ExpiresAt == nil && t.ExpiresIn > 0 {
		t.ExpiresAt = utils.Ptr(now.Add(time.Duration(t.ExpiresIn) * time.Second).UnixMilli())
	}
}

// Meta returns the credential part of the response.
func (t *TokenResponse) Meta() AuthMeta {
	return AuthMeta{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    utils.Coalesce(t.TokenType, DefaultTokenType),
		ExpiresAt:    t.ExpiresAt,
	}
}

// HasIdentity reports whether the payload named the user, so claims do not
// need to be decoded.
func (t *TokenResponse) HasIdentity() bool {
	return t.UserID != "" || t.Email != ""
}

// mergeUser prefers the nested user object and fills gaps from top level fields.
func mergeUser(nested, top wireUser) wireUser {
	if nested.ID == nil {
		nested.ID = top.ID
	}
	if nested.UserID == nil {
		nested.UserID = top.UserID
	}
	nested.Email = utils.Coalesce(nested.Email, top.Email)
	nested.Sub = utils.Coalesce(nested.Sub, top.Sub)
	nested.FullName = utils.Coalesce(nested.FullName, top.FullName)
	nested.Name = utils.Coalesce(nested.Name, top.Name)
	nested.Role = utils.Coalesce(nested.Role, top.Role)
	nested.LastLogin = utils.Coalesce(nested.LastLogin, top.LastLogin)
	return nested
}

func anyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func anyInt(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	default:
		return 0
	}
}

// epochMillis accepts a millisecond number, a numeric string or an RFC 3339
// timestamp.
func epochMillis(v any) *int64 {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		return utils.Ptr(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			return &n
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return utils.Ptr(ts.UnixMilli())
		}
	}
	return nil
}
